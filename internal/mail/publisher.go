// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package mail

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/oops"

	"github.com/todopad/todopad/internal/auth"
)

// DefaultQueue is the durable queue mail messages are published to.
const DefaultQueue = "todopad.mail"

// amqpChannel is the subset of *amqp.Channel the publisher uses.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher hands deliveries to a RabbitMQ queue for an out-of-process sender.
type Publisher struct {
	conn    *amqp.Connection
	channel amqpChannel
	queue   string
	links   *Links
	now     func() time.Time
	logger  *slog.Logger
}

// DialPublisher connects to RabbitMQ and declares a durable queue.
func DialPublisher(amqpURL, queue string, links *Links, logger *slog.Logger) (*Publisher, error) {
	if links == nil {
		return nil, oops.Errorf("links are required")
	}
	if queue == "" {
		queue = DefaultQueue
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, oops.Code("MAIL_CONNECT_FAILED").With("operation", "dial amqp").Wrap(err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close() //nolint:errcheck // channel error takes precedence
		return nil, oops.Code("MAIL_CONNECT_FAILED").With("operation", "open channel").Wrap(err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()   //nolint:errcheck // declare error takes precedence
		_ = conn.Close() //nolint:errcheck // declare error takes precedence
		return nil, oops.Code("MAIL_CONNECT_FAILED").
			With("operation", "declare queue").
			With("queue", queue).
			Wrap(err)
	}

	p := newPublisher(ch, queue, links, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch amqpChannel, queue string, links *Links, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{
		channel: ch,
		queue:   queue,
		links:   links,
		now:     time.Now,
		logger:  logger,
	}
}

// Send publishes a persistent JSON message.
func (p *Publisher) Send(ctx context.Context, d auth.Delivery) error {
	msg, err := p.links.Message(d)
	if err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return oops.Code("MAIL_PUBLISH_FAILED").With("operation", "marshal message").Wrap(err)
	}

	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    p.now(),
		Type:         string(d.Purpose),
	})
	if err != nil {
		return oops.Code("MAIL_PUBLISH_FAILED").
			With("queue", p.queue).
			With("purpose", string(d.Purpose)).
			Wrap(err)
	}

	p.logger.DebugContext(ctx, "mail message published", "queue", p.queue, "purpose", string(d.Purpose))
	return nil
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	var errs []error
	if err := p.channel.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return oops.Code("MAIL_CLOSE_FAILED").Wrap(errors.Join(errs...))
	}
	return nil
}

var _ auth.Mailer = (*Publisher)(nil)
