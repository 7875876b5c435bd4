package delivery

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type EventDispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
}

// Processor adapts stream messages to the dispatcher for the queue consumer.
type Processor struct {
	dispatcher EventDispatcher
	logger     zerolog.Logger
}

func NewProcessor(dispatcher EventDispatcher, logger zerolog.Logger) *Processor {
	return &Processor{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Handle returns an error only for failures worth redelivering. Malformed
// messages are logged and acknowledged.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	ev, err := DecodeEvent(msg.Values)
	if err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("undecodable delivery message")
		return nil
	}
	if err := ev.Validate(); err != nil {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("invalid delivery message")
		return nil
	}

	if err := p.dispatcher.Dispatch(ctx, ev); err != nil {
		return fmt.Errorf("dispatch %s: %w", ev.Kind, err)
	}
	return nil
}
