package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"contactbook/internal/mail"
)

type Renderer interface {
	Render(msg mail.Message) (string, error)
}

type Sender interface {
	Send(ctx context.Context, msg mail.Message, html string) error
}

// Processor delivers queued mail. Malformed messages are dropped so the
// consumer acks them; delivery errors are returned and retried later.
type Processor struct {
	renderer Renderer
	sender   Sender
	logger   zerolog.Logger
}

func NewProcessor(renderer Renderer, sender Sender, logger zerolog.Logger) *Processor {
	return &Processor{
		renderer: renderer,
		sender:   sender,
		logger:   logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	message, err := mail.Decode(msg.Values)
	if err != nil {
		return p.drop(msg.ID, err)
	}

	html, err := p.renderer.Render(message)
	if err != nil {
		if errors.Is(err, mail.ErrMalformedMessage) {
			return p.drop(msg.ID, err)
		}
		return fmt.Errorf("render %s: %w", message.Template, err)
	}

	if err := p.sender.Send(ctx, message, html); err != nil {
		return fmt.Errorf("send %s: %w", message.Template, err)
	}

	p.logger.Info().
		Str("message_id", msg.ID).
		Str("template", string(message.Template)).
		Msg("mail delivered")
	return nil
}

func (p *Processor) drop(id string, err error) error {
	p.logger.Warn().Err(err).Str("message_id", id).Msg("dropping malformed mail message")
	return nil
}
