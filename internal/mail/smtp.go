// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package mail

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"gopkg.in/gomail.v2"

	"github.com/todopad/todopad/internal/auth"
)

// SMTPConfig configures SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends mail directly over SMTP.
type SMTPSender struct {
	dialer smtpDialer
	from   string
	links  *Links
	logger *slog.Logger
}

// NewSMTPSender creates an SMTPSender. From defaults to Username.
func NewSMTPSender(cfg SMTPConfig, links *Links, logger *slog.Logger) (*SMTPSender, error) {
	if cfg.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("smtp host is required")
	}
	if links == nil {
		return nil, oops.Errorf("links are required")
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   from,
		links:  links,
		logger: logger,
	}, nil
}

// Send renders and sends one message. gomail has no context support, so
// ctx is only checked before dialing.
func (s *SMTPSender) Send(ctx context.Context, d auth.Delivery) error {
	msg, err := s.links.Message(d)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").Wrap(err)
	}

	if err := s.dialer.DialAndSend(s.build(msg)); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("purpose", string(d.Purpose)).
			Wrap(err)
	}
	s.logger.DebugContext(ctx, "mail sent", "purpose", string(d.Purpose))
	return nil
}

func (s *SMTPSender) build(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body())
	return m
}

var _ auth.Mailer = (*SMTPSender)(nil)
