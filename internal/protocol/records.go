package protocol

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/mem"
	"github.com/shanemmattner/esp32-c6-agentic-firmware/internal/streams"
)

// MaxChunk is the largest DATA payload in bytes. Streams registered with
// a larger size are clamped per sample, not rejected.
const MaxChunk = 64

// Wire reasons quoted in ERROR records. The exact strings are part of
// the protocol; host-side tooling matches on them.
const (
	ReasonInvalidParams  = "Invalid parameters"
	ReasonUnknownCommand = "Unknown command"
	ReasonMaxStreams     = "Max streams reached"
	ReasonNotFound       = "Stream not found"
	ReasonOutOfRange     = "Out of SRAM range"
	ReasonOverflow       = "Command buffer overflow"
)

// Pong answers PING.
func Pong() string { return "PONG" }

// StreamOK acknowledges a registered stream.
func StreamOK(addr uint32) string {
	return fmt.Sprintf("OK|cmd=STREAM|addr=0x%08x", addr)
}

// StopOK acknowledges a removed stream.
func StopOK(addr uint32) string {
	return fmt.Sprintf("OK|cmd=STOP|addr=0x%08x", addr)
}

// CommandError reports a command that was received but not carried out.
// Verb is echoed exactly as the peer sent it.
func CommandError(verb, reason string) string {
	return fmt.Sprintf("ERROR|cmd=%s|msg=%s", verb, reason)
}

// SampleError reports a stream whose scheduled sample failed validation.
// Addr is the stream's registered address, identifying which stream the
// record belongs to.
func SampleError(addr uint32, reason string) string {
	return fmt.Sprintf("ERROR|addr=0x%08x|msg=%s", addr, reason)
}

// OverflowError reports a command line that exceeded the input buffer.
func OverflowError() string {
	return "ERROR|msg=" + ReasonOverflow
}

// Data renders one sample payload as lowercase hex.
func Data(addr uint32, payload []byte) string {
	return fmt.Sprintf("DATA|addr=0x%08x|hex=%s", addr, hex.EncodeToString(payload))
}

// Heartbeat carries the engine clock and the number of enabled streams.
func Heartbeat(ts uint64, active int) string {
	return fmt.Sprintf("HEARTBEAT|ts=%d|active=%d", ts, active)
}

// Boot is the first record of a session.
func Boot(version, mode string) string {
	return fmt.Sprintf("BOOT|version=%s|mode=%s", version, mode)
}

// Status carries free-form banner text.
func Status(msg string) string {
	return "STATUS|msg=" + msg
}

// Ready marks the end of the startup banner.
func Ready() string { return "READY" }

// HelpReply lists the accepted verbs.
func HelpReply() string {
	return "HELP|commands=PING,STREAM,STOP,LIST,HELP"
}

// Var is one name=address pair published in the VARS record.
type Var struct {
	Name string
	Addr uint32
}

// Vars publishes the simulated firmware's variable addresses so a peer
// can build STREAM commands without a symbol table.
func Vars(vars []Var) string {
	var b strings.Builder
	b.WriteString("VARS")
	for _, v := range vars {
		fmt.Fprintf(&b, "|%s=0x%08x", v.Name, v.Addr)
	}
	return b.String()
}

// StreamInfo renders one active stream for the LIST reply.
func StreamInfo(e streams.Entry) string {
	return fmt.Sprintf("STREAM|addr=0x%08x|size=%d|rate=%d", e.Addr, e.Size, e.RateHz)
}

// SlotReport renders the periodic slot report. Fields appear in slot
// declaration order, each already rendered by SlotOK or SlotFailure.
func SlotReport(ts uint64, fields []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SLOTS|ts=%d", ts)
	for _, f := range fields {
		b.WriteByte('|')
		b.WriteString(f)
	}
	return b.String()
}

// SlotOK renders one healthy slot reading as a report field.
func SlotOK(name, value string) string {
	return name + "=" + value
}

// SlotFailure renders a failed slot reading inline, without suppressing
// the rest of the report. Bounds failures quote the offending address,
// alignment failures the address and the alignment it missed.
func SlotFailure(name string, err error) string {
	var oob *mem.OutOfBoundsError
	if errors.As(err, &oob) {
		return fmt.Sprintf("%s=ERR_BOUNDS(0x%x)", name, oob.Addr)
	}
	var mis *mem.MisalignedError
	if errors.As(err, &mis) {
		return fmt.Sprintf("%s=ERR_ALIGN(0x%x,%d)", name, mis.Addr, mis.Align)
	}
	return name + "=ERR"
}

// ErrorReason maps an engine failure onto its wire reason.
func ErrorReason(err error) string {
	switch {
	case errors.Is(err, streams.ErrCapacity):
		return ReasonMaxStreams
	case errors.Is(err, streams.ErrNotFound):
		return ReasonNotFound
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	var oob *mem.OutOfBoundsError
	if errors.As(err, &oob) {
		return ReasonOutOfRange
	}
	var mis *mem.MisalignedError
	if errors.As(err, &mis) {
		return ReasonOutOfRange
	}
	return ReasonInvalidParams
}
