package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camagru/camagru/internal/config"
	"github.com/camagru/camagru/pkg/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName      = "camagru"
	DefaultEmailQueue = "camagru.emails"
)

// Queue provides message queue operations
type Queue struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	emailQueue string
}

// New creates a new queue client and declares the e-mail topology
func New(cfg config.QueueConfig) (*Queue, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Vhost)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	name := cfg.EmailQueue
	if name == "" {
		name = DefaultEmailQueue
	}

	q := &Queue{conn: conn, channel: channel, emailQueue: name}
	if err := q.declare(); err != nil {
		q.Close()
		return nil, err
	}
	return q, nil
}

func (q *Queue) declare() error {
	err := q.channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(
		q.emailQueue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	if err := q.channel.QueueBind(q.emailQueue, q.emailQueue, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return q.setupRetryQueues()
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// PublishEmail queues an e-mail for the worker
func (q *Queue) PublishEmail(ctx context.Context, job *models.EmailJob) error {
	return q.publishEmail(ctx, job, 0)
}

func (q *Queue) publishEmail(ctx context.Context, job *models.EmailJob, retryCount int) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal email job: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		ExchangeName,
		q.emailQueue,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			Headers:      amqp.Table{retryHeader: int32(retryCount)},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish email job: %w", err)
	}

	return nil
}

// ConsumeEmails delivers queued e-mails to handler until ctx is done.
// Failed deliveries are retried with backoff and dead-lettered after
// MaxRetries attempts.
func (q *Queue) ConsumeEmails(ctx context.Context, handler func(context.Context, *models.EmailJob) error) error {
	err := q.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		q.emailQueue,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				q.handle(ctx, msg, handler)
			}
		}
	}()

	return nil
}

func (q *Queue) handle(ctx context.Context, msg amqp.Delivery, handler func(context.Context, *models.EmailJob) error) {
	var job models.EmailJob
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		msg.Nack(false, false)
		return
	}

	if err := handler(ctx, &job); err != nil {
		if err := q.retry(ctx, &job, retryCount(msg.Headers), err.Error()); err != nil {
			msg.Nack(false, true)
			return
		}
	}
	msg.Ack(false)
}

// Depth returns the number of e-mails waiting in the queue
func (q *Queue) Depth() (int, error) {
	info, err := q.channel.QueueInspect(q.emailQueue)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}
