package chathub

// Client is one authenticated socket. The registry and the fan-out path only
// see this interface, so tests can plug in in-memory clients.
type Client interface {
	// ID is unique per socket; a user with two tabs has two clients.
	ID() string
	UserID() string

	// Send queues an encoded frame without blocking. It returns false when the
	// client is closed or its buffer is full.
	Send(frame []byte) bool

	// Run starts the read and write pumps.
	Run()
	// Close stops the write pump, which closes the underlying connection.
	// It is safe to call more than once.
	Close()
}

// FrameHandler receives what a client reads off the wire.
type FrameHandler interface {
	HandleFrame(c Client, raw []byte)
	// Detach is called exactly once when the read pump stops.
	Detach(c Client)
}
