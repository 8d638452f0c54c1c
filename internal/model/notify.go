package model

import "context"

// Button is an inline action attached to a message, rendered by the chat
// adapter. Data uses the "tag:arg1:arg2" callback convention.
type Button struct {
	Label string
	Data  string
}

// Sender delivers a message through the chat platform.
type Sender interface {
	Send(ctx context.Context, recipientID int64, text string, buttons ...Button) error
}
