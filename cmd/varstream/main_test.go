package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNum(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"0x40800000", 0x40800000, true},
		{"0X40800010", 0x40800010, true},
		{"1082130432", 0x40800000, true},
		{"0", 0, true},
		{"0x", 0, false},
		{"zz", 0, false},
		{"-4", 0, false},
		{"0x140800000", 0, false},
	}
	for _, tt := range tests {
		got, err := parseNum(tt.in)
		if !tt.ok {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDecodeLE(t *testing.T) {
	tests := []struct {
		in   []byte
		want uint64
		ok   bool
	}{
		{[]byte{0x2a}, 42, true},
		{[]byte{0x34, 0x12}, 0x1234, true},
		{[]byte{0x0b, 0x00, 0x00, 0x00}, 11, true},
		{[]byte{1, 2, 3, 4, 5, 6, 7, 8}, 0x0807060504030201, true},
		{[]byte{1, 2, 3}, 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := decodeLE(tt.in)
		assert.Equal(t, tt.ok, ok)
		if tt.ok {
			assert.Equal(t, tt.want, got)
		}
	}
}

func TestCaptureVars(t *testing.T) {
	l := newLink(nil)
	l.captureVars("VARS|counter=0x40800000|temp_c=0x40800020|timestamp=0x40800008")

	addr, ok := l.lookupVar("counter")
	require.True(t, ok)
	assert.Equal(t, uint32(0x40800000), addr)

	addr, ok = l.lookupVar("timestamp")
	require.True(t, ok)
	assert.Equal(t, uint32(0x40800008), addr)

	_, ok = l.lookupVar("ghost")
	assert.False(t, ok)
}

func TestAnnotateData(t *testing.T) {
	l := newLink(nil)
	l.captureVars("VARS|counter=0x40800000")
	l.watchVar(0x40800000, "counter", 4)

	// Watched address with matching width gets a decoded suffix.
	got := l.annotateData("DATA|addr=0x40800000|hex=0b000000")
	assert.Equal(t, "DATA|addr=0x40800000|hex=0b000000  (counter=11)", got)

	// Unwatched address passes through.
	got = l.annotateData("DATA|addr=0x40800010|hex=c4090000")
	assert.Equal(t, "DATA|addr=0x40800010|hex=c4090000", got)

	// Width mismatch (clamped or resized stream) passes through.
	got = l.annotateData("DATA|addr=0x40800000|hex=0b00")
	assert.Equal(t, "DATA|addr=0x40800000|hex=0b00", got)

	// Stopping removes the annotation.
	l.unwatch(0x40800000)
	got = l.annotateData("DATA|addr=0x40800000|hex=0b000000")
	assert.Equal(t, "DATA|addr=0x40800000|hex=0b000000", got)
}
