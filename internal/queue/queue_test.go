package queue

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

func TestCalculateBackoffDelay(t *testing.T) {
	tests := []struct {
		retry int
		want  time.Duration
	}{
		{-1, 30 * time.Second},
		{0, 30 * time.Second},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{4, 8 * time.Minute},
		{6, 30 * time.Minute},
		{50, 30 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, calculateBackoffDelay(tt.retry), "retry %d", tt.retry)
	}
}

func TestRetryCount(t *testing.T) {
	assert.Equal(t, 0, retryCount(nil))
	assert.Equal(t, 0, retryCount(amqp.Table{}))
	assert.Equal(t, 3, retryCount(amqp.Table{retryHeader: int32(3)}))
	assert.Equal(t, 4, retryCount(amqp.Table{retryHeader: int64(4)}))
	assert.Equal(t, 0, retryCount(amqp.Table{retryHeader: "2"}))
}

func TestQueueNames(t *testing.T) {
	q := &Queue{emailQueue: "mail"}
	assert.Equal(t, "mail.retry", q.retryQueueName())
	assert.Equal(t, "mail.dlq", q.deadLetterQueueName())
}
