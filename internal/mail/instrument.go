// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package mail

import (
	"context"

	"github.com/todopad/todopad/internal/auth"
	"github.com/todopad/todopad/internal/observability"
)

// countingMailer counts failed hand-offs whatever error the driver returns.
type countingMailer struct {
	next    auth.Mailer
	metrics *observability.Metrics
}

// Instrument wraps next so every failed Send is counted by purpose.
// With nil metrics it returns next unchanged.
func Instrument(next auth.Mailer, metrics *observability.Metrics) auth.Mailer {
	if metrics == nil {
		return next
	}
	return &countingMailer{next: next, metrics: metrics}
}

func (m *countingMailer) Send(ctx context.Context, d auth.Delivery) error {
	err := m.next.Send(ctx, d)
	if err != nil {
		m.metrics.RecordMailFailure(string(d.Purpose))
	}
	return err
}
