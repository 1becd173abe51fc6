package core

// Frame is one encoded outbound event.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
// TrySend must not block: a full buffer is reported as an error.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
