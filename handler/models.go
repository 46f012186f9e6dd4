package handler

import (
	"context"

	"askbot/backend"
)

// IncomingMessage is a chat message as seen by the handler.
type IncomingMessage struct {
	ID        string
	ChannelID string
	AuthorID  string
	// SelfID is the bot's own user id on the platform.
	SelfID string
	Text   string
}

// OutgoingMessage is the reply to post in ChannelID.
type OutgoingMessage struct {
	ChannelID string
	Text      string
}

// Querier runs one inference call. Implementations may block for the whole
// retry budget.
type Querier interface {
	Query(ctx context.Context, req backend.Request, maxRetries int) (*backend.Response, error)
}

// Typist shows a "bot is typing" indicator until stop is called.
type Typist interface {
	StartTyping(ctx context.Context, channelID string) (stop func())
}
