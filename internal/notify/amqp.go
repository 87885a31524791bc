package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultEmailQueue is the queue the delivery worker consumes from.
const DefaultEmailQueue = "email_jobs"

// AMQPNotifier publishes e-mail jobs to a RabbitMQ queue. Delivery
// itself is the worker's concern; a successful publish counts as one
// dispatched notification.
type AMQPNotifier struct {
	conn  *amqp.Connection
	chn   *amqp.Channel
	queue string
}

// DialAMQP connects to the broker and declares the durable queue.
func DialAMQP(url, queue string) (*AMQPNotifier, error) {
	if queue == "" {
		queue = DefaultEmailQueue
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	chn, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := chn.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = chn.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPNotifier{conn: conn, chn: chn, queue: queue}, nil
}

// Send publishes the message as a persistent JSON job.
func (n *AMQPNotifier) Send(ctx context.Context, msg Message) (int, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return 0, err
	}
	err = n.chn.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return 0, fmt.Errorf("publish to %s: %w", n.queue, err)
	}
	return 1, nil
}

// Close releases the channel and connection.
func (n *AMQPNotifier) Close() error {
	if err := n.chn.Close(); err != nil {
		return err
	}
	return n.conn.Close()
}
