// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package auth

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// Purpose names what a delivered token is for.
type Purpose string

// Delivery purposes.
const (
	PurposeVerifyEmail   Purpose = "verify-email"
	PurposeResetPassword Purpose = "reset-password"
)

// Delivery is the hand-off to the email collaborator. Token is the plaintext
// bearer value; this is the only place it leaves the service.
type Delivery struct {
	Recipient string  `json:"recipient"`
	Token     string  `json:"token"`
	Purpose   Purpose `json:"purpose"`
}

// Mailer hands a token off for delivery.
type Mailer interface {
	Send(ctx context.Context, d Delivery) error
}

// LinkFunc renders the link a delivery carries.
type LinkFunc func(d Delivery) (string, error)

// LogMailer records deliveries without sending them. The token is not logged
// unless a LinkFunc is set.
type LogMailer struct {
	logger *slog.Logger
	link   LinkFunc
}

// NewLogMailer creates a LogMailer writing to logger.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogMailer{logger: logger}
}

// WithLinks returns a copy that also logs each delivery link at debug level.
// The link contains the plaintext token; only use it in development.
func (m *LogMailer) WithLinks(link LinkFunc) *LogMailer {
	return &LogMailer{logger: m.logger, link: link}
}

// Send logs the delivery.
func (m *LogMailer) Send(ctx context.Context, d Delivery) error {
	m.logger.InfoContext(ctx, "mail delivery handed off",
		"recipient", d.Recipient,
		"purpose", string(d.Purpose))

	if m.link == nil {
		return nil
	}
	link, err := m.link(d)
	if err != nil {
		return oops.Code("MAIL_LINK_FAILED").With("purpose", string(d.Purpose)).Wrap(err)
	}
	m.logger.DebugContext(ctx, "mail delivery link",
		"recipient", d.Recipient,
		"purpose", string(d.Purpose),
		"link", link)
	return nil
}

var _ Mailer = (*LogMailer)(nil)
