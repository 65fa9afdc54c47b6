package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bugtrail/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Client publishes notification emails to a durable queue and, on the
// worker side, consumes them.
type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
}

func New(urlForConn string, queueName string) (*Client, error) {
	const op = "rabbitmq.New"

	conn, err := amqp.Dial(urlForConn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	q, err := ch.QueueDeclare(
		queueName, true, false, false, false, nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Client{
		conn:    conn,
		channel: ch,
		queue:   q,
	}, nil
}

// Send implements the notification sender contract: one email message
// per call, delivery handled asynchronously by the mail worker.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	const op = "rabbitmq.Send"

	payload, err := json.Marshal(models.EmailMessage{
		To:      to,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	err = c.channel.PublishWithContext(
		ctx,
		"",
		c.queue.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Consume delivers queued messages to handler until ctx is cancelled.
func (c *Client) Consume(ctx context.Context, handler func(msg []byte)) error {
	const op = "rabbitmq.Consume"

	msgs, err := c.channel.Consume(
		c.queue.Name, "", true, false, false, false, nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("%s: channel closed", op)
			}
			handler(msg.Body)
		}
	}
}

func (c *Client) Close() {
	_ = c.channel.Close()
	_ = c.conn.Close()
}
