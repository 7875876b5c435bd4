// Package mailer renders task notification emails and hands them to one of
// the configured transports: SMTP, an object-store outbox, or the log.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"taskflow/internal/config"
	"taskflow/internal/storage"
)

var ErrNoRecipient = errors.New("mailer: recipient address is empty")

type Address struct {
	Name  string
	Email string
}

type Message struct {
	To      Address
	Subject string
	HTML    string
	Text    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender picks the transport named by cfg.Driver. The outbox driver needs
// an object store.
func NewSender(cfg config.MailConfig, outbox *storage.ObjectStore, log zerolog.Logger) (Sender, error) {
	from := Address{Name: cfg.FromName, Email: cfg.FromAddress}
	switch cfg.Driver {
	case config.MailDriverSMTP:
		return NewSMTPSender(cfg, from)
	case config.MailDriverOutbox:
		if outbox == nil {
			return nil, errors.New("mailer: outbox driver requires object storage")
		}
		return NewOutboxSender(outbox, from), nil
	case config.MailDriverLog, "":
		return NewLogSender(log), nil
	default:
		return nil, fmt.Errorf("mailer: unknown driver %q", cfg.Driver)
	}
}

// ParseAddress validates a single recipient address with the same parser
// outgoing messages use and returns its bare address part.
func ParseAddress(raw string) (string, error) {
	m := mail.NewMsg()
	if err := m.To(raw); err != nil {
		return "", err
	}
	to := m.GetTo()
	if len(to) != 1 {
		return "", fmt.Errorf("mailer: want one address, got %d", len(to))
	}
	return to[0].Address, nil
}

// buildMsg assembles a multipart text/HTML message.
func buildMsg(from Address, msg Message) (*mail.Msg, error) {
	if msg.To.Email == "" {
		return nil, ErrNoRecipient
	}
	m := mail.NewMsg()
	if err := m.FromFormat(from.Name, from.Email); err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	if err := m.AddToFormat(msg.To.Name, msg.To.Email); err != nil {
		return nil, fmt.Errorf("to address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}
	return m, nil
}

// Encode renders msg as an RFC 5322 document.
func Encode(from Address, msg Message) ([]byte, error) {
	m, err := buildMsg(from, msg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return buf.Bytes(), nil
}

// FromConfig builds the sender for cfg.Mail. The object store is created only
// for the outbox driver and returned so callers can health-check it.
func FromConfig(ctx context.Context, cfg *config.AppConfig, log zerolog.Logger) (Sender, *storage.ObjectStore, error) {
	var store *storage.ObjectStore
	if cfg.Mail.Driver == config.MailDriverOutbox {
		s, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			return nil, nil, fmt.Errorf("init object store: %w", err)
		}
		if err := s.EnsureBuckets(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure buckets: %w", err)
		}
		store = s
	}
	sender, err := NewSender(cfg.Mail, store, log)
	if err != nil {
		return nil, nil, err
	}
	return sender, store, nil
}
