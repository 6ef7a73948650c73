package transport

// Transport is the byte link between the engine and its peer. The engine
// polls input one byte at a time between ticks, so reads must never
// block; writes go to the underlying link and must not depend on the
// peer reading anything back.
type Transport interface {
	// TryReadByte returns the next pending input byte, if any.
	TryReadByte() (byte, bool)
	// Write sends rendered record bytes, terminator included.
	Write(p []byte) (int, error)
	// Close releases the link. Safe to call more than once.
	Close() error
}
