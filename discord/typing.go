package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

// The indicator expires after about ten seconds, so it is refreshed.
const typingRefresh = 8 * time.Second

type typer interface {
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// Typist keeps the typing indicator alive in a channel.
type Typist struct {
	client   typer
	interval time.Duration
}

// NewTypist creates a Typist using session.
func NewTypist(session *discordgo.Session) *Typist {
	return &Typist{client: session, interval: typingRefresh}
}

// StartTyping shows the indicator until stop is called or ctx ends. stop
// returns once no further indicator requests will be sent.
func (t *Typist) StartTyping(ctx context.Context, channelID string) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			if err := t.client.ChannelTyping(channelID); err != nil {
				log.WithField("channel", channelID).Debugf("Typing indicator failed: %v", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
