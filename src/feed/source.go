package feed

import "context"

// Message is one feed publication: a topic and its JSON payload.
type Message struct {
	Topic   string
	Payload []byte
}

// Source is a connected market-data transport. Recv blocks until the next
// message or a connection error; Close unblocks a pending Recv.
type Source interface {
	Recv(ctx context.Context) (Message, error)
	Close() error
}

// DialFunc connects a new Source. The subscriber calls it again after the
// previous source failed.
type DialFunc func(ctx context.Context) (Source, error)
