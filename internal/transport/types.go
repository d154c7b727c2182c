package transport

import "context"

// Message is a chat-platform-neutral incoming message.
//
// ReplyTo carries the quoted message when the incoming message is a reply;
// the scan trigger requires it (the listing links live in the quoted message).
type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	ReplyTo      *Message
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	DisablePreview bool
	// ReplyToMessageID threads the outgoing message under an incoming one.
	ReplyToMessageID int
}

// Adapter is the chat-platform boundary.
//
// SendText may split long text into multiple platform messages; the returned
// ref points at the first one.
type Adapter interface {
	Start(ctx context.Context, out chan<- Message) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
