package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camagru/camagru/pkg/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	MaxRetries  = 5
	retryHeader = "x-retry-count"
)

func (q *Queue) retryQueueName() string {
	return q.emailQueue + ".retry"
}

func (q *Queue) deadLetterQueueName() string {
	return q.emailQueue + ".dlq"
}

// setupRetryQueues declares the retry queue, whose expired messages flow back
// to the e-mail queue, and the dead letter queue
func (q *Queue) setupRetryQueues() error {
	_, err := q.channel.QueueDeclare(
		q.deadLetterQueueName(),
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	retryArgs := amqp.Table{
		"x-dead-letter-exchange":    ExchangeName,
		"x-dead-letter-routing-key": q.emailQueue,
	}

	_, err = q.channel.QueueDeclare(
		q.retryQueueName(),
		true,
		false,
		false,
		false,
		retryArgs,
	)
	if err != nil {
		return fmt.Errorf("failed to declare retry queue: %w", err)
	}

	return nil
}

// retry schedules another delivery attempt, or dead-letters the job once
// MaxRetries attempts have failed
func (q *Queue) retry(ctx context.Context, job *models.EmailJob, attempt int, reason string) error {
	if attempt >= MaxRetries {
		return q.publishToDeadLetterQueue(ctx, job, reason)
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal email job: %w", err)
	}

	delay := calculateBackoffDelay(attempt)

	err = q.channel.PublishWithContext(ctx,
		"",
		q.retryQueueName(),
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			Headers:      amqp.Table{retryHeader: int32(attempt + 1)},
			Expiration:   fmt.Sprintf("%d", delay.Milliseconds()),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to retry queue: %w", err)
	}

	return nil
}

func (q *Queue) publishToDeadLetterQueue(ctx context.Context, job *models.EmailJob, reason string) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal email job: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		"",
		q.deadLetterQueueName(),
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
			Headers: amqp.Table{
				"x-failure-reason": reason,
				"x-failed-at":      time.Now().Format(time.RFC3339),
			},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	return nil
}

// calculateBackoffDelay doubles from 30s and caps at 30 minutes
func calculateBackoffDelay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	if retryCount > 10 {
		return 30 * time.Minute
	}

	delay := 30 * time.Second * (1 << retryCount)
	if delay > 30*time.Minute {
		delay = 30 * time.Minute
	}

	return delay
}

// retryCount reads the attempt counter from message headers
func retryCount(headers amqp.Table) int {
	switch v := headers[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case int16:
		return int(v)
	case int8:
		return int(v)
	default:
		return 0
	}
}
