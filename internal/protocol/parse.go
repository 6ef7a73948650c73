package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies a decoded command verb.
type Kind uint8

const (
	KindPing Kind = iota
	KindStream
	KindStop
	KindList
	KindHelp
)

// Request is one decoded command line. Addr, Size, and Rate are only set
// for the verbs that carry them.
type Request struct {
	Kind Kind
	Addr uint32
	Size uint32
	Rate uint32
}

// ParseError reports a line that could not be decoded. Verb is the first
// token exactly as received; Reason is the wire string quoted in the
// ERROR record.
type ParseError struct {
	Verb   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("protocol: %s: %s", e.Verb, e.Reason)
}

// Parse decodes one command line. A blank or all-whitespace line decodes
// to nil with no error: it produces no response at all. Tokens beyond
// what a verb consumes are ignored. Verbs are case-sensitive uppercase.
func Parse(line string) (*Request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, nil
	}
	verb := fields[0]
	switch verb {
	case "PING":
		return &Request{Kind: KindPing}, nil
	case "STREAM":
		args, err := parseArgs(fields[1:], 3)
		if err != nil {
			return nil, &ParseError{Verb: verb, Reason: ReasonInvalidParams}
		}
		return &Request{Kind: KindStream, Addr: args[0], Size: args[1], Rate: args[2]}, nil
	case "STOP":
		args, err := parseArgs(fields[1:], 1)
		if err != nil {
			return nil, &ParseError{Verb: verb, Reason: ReasonInvalidParams}
		}
		return &Request{Kind: KindStop, Addr: args[0]}, nil
	case "LIST":
		return &Request{Kind: KindList}, nil
	case "HELP":
		return &Request{Kind: KindHelp}, nil
	default:
		return nil, &ParseError{Verb: verb, Reason: ReasonUnknownCommand}
	}
}

func parseArgs(fields []string, n int) ([]uint32, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("protocol: want %d arguments, have %d", n, len(fields))
	}
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		v, err := parseUint32(fields[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// parseUint32 accepts hex with an explicit 0x prefix and decimal
// otherwise. A bare leading zero stays decimal, never octal.
func parseUint32(s string) (uint32, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 32)
		return uint32(v), err
	}
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}
