package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"askbot/backend"
	"askbot/logging"
)

var errEmptyResponse = errors.New("model returned an empty response")

// Options configures a MessageHandler.
type Options struct {
	// CommandPrefix and Command form the trigger, e.g. "!" and "ask".
	CommandPrefix string
	Command       string
	// ListenAll answers every message instead of only the command.
	ListenAll  bool
	Parameters backend.Parameters
	MaxRetries int
	// Typist is optional.
	Typist Typist
}

// MessageHandler turns one inbound chat message into at most one reply.
type MessageHandler struct {
	querier Querier
	opts    Options
}

// NewMessageHandler creates a MessageHandler backed by q.
func NewMessageHandler(q Querier, opts Options) *MessageHandler {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = backend.DefaultMaxRetries
	}
	return &MessageHandler{
		querier: q,
		opts:    opts,
	}
}

// Usage is the reply to a bare command.
func (h *MessageHandler) Usage() string {
	return fmt.Sprintf("Usage: %s%s <question>", h.opts.CommandPrefix, h.opts.Command)
}

// HandleMessage answers msg. It returns nil when the message is not for the
// bot. Failures never escape: they become an "Error: ..." reply.
func (h *MessageHandler) HandleMessage(ctx context.Context, msg IncomingMessage) (out *OutgoingMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Recovered panic handling message %s: %v", msg.ID, r)
			out = &OutgoingMessage{ChannelID: msg.ChannelID, Text: Truncate(fmt.Sprintf("Error: %v", r))}
		}
	}()

	if msg.SelfID != "" && msg.AuthorID == msg.SelfID {
		return nil
	}

	question, ok := h.question(msg.Text)
	if !ok {
		return nil
	}
	if question == "" {
		return &OutgoingMessage{ChannelID: msg.ChannelID, Text: h.Usage()}
	}

	requestID := uuid.NewString()
	ctx = logging.WithRequestID(ctx, requestID)
	entry := log.WithFields(logrus.Fields{
		"request_id": requestID,
		"message_id": msg.ID,
		"channel":    msg.ChannelID,
		"author":     msg.AuthorID,
	})
	entry.Debugf("Received question (%d chars)", len(question))

	text, err := h.ask(ctx, entry, msg.ChannelID, question)
	if err != nil {
		errorMessage := fmt.Sprintf("Error: %s", err.Error())
		entry.Errorln(errorMessage)
		return &OutgoingMessage{ChannelID: msg.ChannelID, Text: Truncate(errorMessage)}
	}
	return &OutgoingMessage{ChannelID: msg.ChannelID, Text: Truncate(text)}
}

// question extracts the prompt from text. ok is false when the message does
// not address the bot.
func (h *MessageHandler) question(text string) (string, bool) {
	if h.opts.ListenAll {
		text = strings.TrimSpace(text)
		return text, text != ""
	}

	trigger := h.opts.CommandPrefix + h.opts.Command
	if trigger == "" || !strings.HasPrefix(text, trigger) {
		return "", false
	}
	rest := text[len(trigger):]
	if rest != "" && !startsWithSpace(rest) {
		// "!askfoo" is a different command.
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func (h *MessageHandler) ask(ctx context.Context, entry *logrus.Entry, channelID, question string) (string, error) {
	if h.opts.Typist != nil {
		stop := h.opts.Typist.StartTyping(ctx, channelID)
		defer stop()
	}

	req := backend.Request{
		Inputs:     question,
		Parameters: h.opts.Parameters,
	}
	resp, err := h.querier.Query(ctx, req, h.opts.MaxRetries)
	if err != nil {
		return "", err
	}

	text, err := Normalize(resp)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		entry.WithField("shape", resp.Shape.String()).Debugf("Blank text in response: %s", snippet(resp.Raw))
		return "", errEmptyResponse
	}
	return text, nil
}

func startsWithSpace(s string) bool {
	r, size := utf8.DecodeRuneInString(s)
	return size > 0 && unicode.IsSpace(r)
}

func snippet(raw []byte) string {
	const limit = 200
	r := []rune(string(raw))
	if len(r) > limit {
		return string(r[:limit]) + "..."
	}
	return string(r)
}
