// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

// Package mail delivers verification and reset links handed off by the auth flows.
package mail

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/todopad/todopad/internal/auth"
)

// Message is what leaves the process: a rendered link, never the bare token.
type Message struct {
	To      string       `json:"to"`
	Subject string       `json:"subject"`
	Link    string       `json:"link"`
	Purpose auth.Purpose `json:"purpose"`
	// ExpiresInSeconds is how long the link stays usable; 0 when it does not expire.
	ExpiresInSeconds int64 `json:"expires_in_seconds,omitempty"`
}

// Body renders the plain-text mail body.
func (m Message) Body() string {
	switch m.Purpose {
	case auth.PurposeResetPassword:
		when := "Open the link below to choose a new password:"
		if m.ExpiresInSeconds > 0 {
			when = "Open the link below within the next " +
				describeDuration(time.Duration(m.ExpiresInSeconds)*time.Second) +
				" to choose a new password:"
		}
		return "Someone asked to reset the password for this account.\n\n" +
			when + "\n\n" + m.Link + "\n\nIf this wasn't you, ignore this message."
	default:
		return "Confirm your email address by opening the link below:\n\n" + m.Link + "\n"
	}
}

// describeDuration renders d in the largest whole unit: "hour", "90 minutes", "2 days".
func describeDuration(d time.Duration) string {
	unit := func(n int64, name string) string {
		if n == 1 {
			return name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}
	switch {
	case d%(24*time.Hour) == 0:
		return unit(int64(d/(24*time.Hour)), "day")
	case d%time.Hour == 0:
		return unit(int64(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return unit(int64(d/time.Minute), "minute")
	default:
		return unit(int64(d/time.Second), "second")
	}
}

// Links builds absolute links into the web app.
type Links struct {
	base     *url.URL
	resetTTL time.Duration
}

// NewLinks parses baseURL, e.g. "https://todopad.example". resetTTL is the
// lifetime of reset tokens, quoted in reset mails; 0 leaves it out.
func NewLinks(baseURL string, resetTTL time.Duration) (*Links, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, oops.Code("MAIL_INVALID_BASE_URL").With("base_url", baseURL).Wrap(err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, oops.Code("MAIL_INVALID_BASE_URL").
			With("base_url", baseURL).
			Errorf("base url must be absolute")
	}
	return &Links{base: u, resetTTL: resetTTL}, nil
}

// Message turns a delivery into a mail message.
func (l *Links) Message(d auth.Delivery) (Message, error) {
	var path, subject string
	switch d.Purpose {
	case auth.PurposeVerifyEmail:
		path, subject = "/verify", "Verify your email"
	case auth.PurposeResetPassword:
		path, subject = "/reset-password", "Reset your password"
	default:
		return Message{}, oops.Code("MAIL_UNKNOWN_PURPOSE").
			With("purpose", string(d.Purpose)).
			Errorf("unknown delivery purpose")
	}

	u := *l.base
	u.Path = l.base.Path + path
	u.RawQuery = url.Values{"token": {d.Token}}.Encode()

	msg := Message{
		To:      d.Recipient,
		Subject: subject,
		Link:    u.String(),
		Purpose: d.Purpose,
	}
	if d.Purpose == auth.PurposeResetPassword {
		msg.ExpiresInSeconds = int64(l.resetTTL / time.Second)
	}
	return msg, nil
}

// Link returns only the link a delivery would carry.
func (l *Links) Link(d auth.Delivery) (string, error) {
	msg, err := l.Message(d)
	if err != nil {
		return "", err
	}
	return msg.Link, nil
}
