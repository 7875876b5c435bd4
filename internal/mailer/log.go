package mailer

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender records messages in the log only. It is the development default.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	if msg.To.Email == "" {
		return ErrNoRecipient
	}
	s.log.Info().
		Str("to", msg.To.Email).
		Str("subject", msg.Subject).
		Int("html_bytes", len(msg.HTML)).
		Msg("mail (log driver)")
	return nil
}
