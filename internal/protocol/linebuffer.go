package protocol

// MaxLine is the command accumulator capacity in bytes, terminator
// excluded.
const MaxLine = 256

// LineBuffer accumulates raw peer bytes into command lines. Either CR or
// LF terminates a line. When a line exceeds MaxLine the buffer reports
// the overflow once, then silently discards everything up to and
// including the next terminator, so a runaway peer costs one ERROR
// record rather than one per byte.
type LineBuffer struct {
	buf     [MaxLine]byte
	n       int
	discard bool
}

// Feed consumes one byte. complete reports that b terminated a line (the
// line may be empty); overflow reports the transition into discard mode
// and fires at most once per overlong line.
func (lb *LineBuffer) Feed(b byte) (line string, complete bool, overflow bool) {
	if b == '\n' || b == '\r' {
		if lb.discard {
			lb.discard = false
			return "", false, false
		}
		line = string(lb.buf[:lb.n])
		lb.n = 0
		return line, true, false
	}
	if lb.discard {
		return "", false, false
	}
	if lb.n == len(lb.buf) {
		lb.discard = true
		lb.n = 0
		return "", false, true
	}
	lb.buf[lb.n] = b
	lb.n++
	return "", false, false
}
