package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"askbot/handler"
	"askbot/logging"
)

var log = logging.GetLogger()

// Sender posts a message to a channel.
type Sender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// MessageHandler answers one inbound message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg handler.IncomingMessage) *handler.OutgoingMessage
}

// NewSession creates a gateway session for token with the intents the bot
// needs to read message text.
func NewSession(token string) (*discordgo.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("discord bot token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent
	return s, nil
}

// Bot connects a discordgo session to a MessageHandler. discordgo runs each
// event callback on its own goroutine, so a slow reply only holds up the
// message it answers.
type Bot struct {
	session *discordgo.Session
	sender  Sender
	handler MessageHandler
	ctx     context.Context
}

// NewBot registers the event callbacks on session.
func NewBot(session *discordgo.Session, h MessageHandler) *Bot {
	b := &Bot{
		session: session,
		sender:  session,
		handler: h,
		ctx:     context.Background(),
	}
	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessageCreate)
	return b
}

// Open connects to the gateway. ctx is handed to every message handled
// afterwards.
func (b *Bot) Open(ctx context.Context) error {
	if ctx != nil {
		b.ctx = ctx
	}
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	return nil
}

// Close disconnects from the gateway.
func (b *Bot) Close() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if r.User != nil {
		log.Infof("Logged in as %s (%s)", r.User.String(), r.User.ID)
	}
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	selfID := ""
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	b.dispatch(selfID, m.Message)
}

// dispatch hands m to the handler and sends the reply, if any.
func (b *Bot) dispatch(selfID string, m *discordgo.Message) {
	msg, ok := toIncoming(selfID, m)
	if !ok {
		return
	}
	reply := b.handler.HandleMessage(b.ctx, msg)
	if reply == nil {
		return
	}
	if _, err := b.sender.ChannelMessageSend(reply.ChannelID, reply.Text); err != nil {
		log.WithField("channel", reply.ChannelID).Errorf("Failed to send reply to message %s: %v", msg.ID, err)
	}
}

func toIncoming(selfID string, m *discordgo.Message) (handler.IncomingMessage, bool) {
	if m == nil || m.Author == nil {
		return handler.IncomingMessage{}, false
	}
	return handler.IncomingMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		AuthorID:  m.Author.ID,
		SelfID:    selfID,
		Text:      m.Content,
	}, true
}
