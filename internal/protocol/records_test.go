package protocol

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/mem"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/streams"
)

// TestRecordSheet pins the exact wire rendering of every record type.
func TestRecordSheet(t *testing.T) {
	lines := []string{
		Pong(),
		StreamOK(0x40800010),
		StopOK(0x40800010),
		CommandError("STREAM", ReasonMaxStreams),
		CommandError("FLY", ReasonUnknownCommand),
		SampleError(0x50000000, ReasonOutOfRange),
		OverflowError(),
		Data(0x40800010, []byte{0x00, 0x01, 0xfe, 0xff}),
		Data(0x40800020, nil),
		Heartbeat(12000, 3),
		Boot("1.0.0", "sim"),
		Status("Memory streamer ready"),
		Ready(),
		HelpReply(),
		Vars([]Var{{Name: "counter", Addr: 0x40800000}, {Name: "temp_c", Addr: 0x40800020}}),
		StreamInfo(streams.Entry{Addr: 0x40800010, Size: 4, RateHz: 10}),
		SlotReport(5000, []string{
			SlotOK("counter", "42"),
			SlotOK("temp_c", "25.5"),
			SlotFailure("ghost", &mem.OutOfBoundsError{Addr: 0x50000000}),
			SlotFailure("tilt", &mem.MisalignedError{Addr: 0x40800001, Align: 4}),
		}),
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "records", []byte(strings.Join(lines, "\n")+"\n"))
}

func TestDataHexIsLowercase(t *testing.T) {
	rec := Data(0x40800000, []byte{0xAB, 0xCD, 0xEF})
	assert.Equal(t, "DATA|addr=0x40800000|hex=abcdef", rec)
}

func TestErrorReason(t *testing.T) {
	assert.Equal(t, ReasonMaxStreams, ErrorReason(streams.ErrCapacity))
	assert.Equal(t, ReasonNotFound, ErrorReason(streams.ErrNotFound))
	assert.Equal(t, ReasonOutOfRange, ErrorReason(&mem.OutOfBoundsError{Addr: 0x50000000}))
	assert.Equal(t, ReasonOutOfRange, ErrorReason(&mem.MisalignedError{Addr: 0x40800001, Align: 4}))
	assert.Equal(t, ReasonUnknownCommand, ErrorReason(&ParseError{Verb: "FLY", Reason: ReasonUnknownCommand}))
	assert.Equal(t, ReasonInvalidParams, ErrorReason(errors.New("unmapped")))

	// Wrapped failures still map.
	assert.Equal(t, ReasonMaxStreams, ErrorReason(fmt.Errorf("engine: add stream: %w", streams.ErrCapacity)))
}

func TestSlotFailureUnknownError(t *testing.T) {
	assert.Equal(t, "x=ERR", SlotFailure("x", errors.New("unmapped")))
}
