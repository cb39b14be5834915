package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/camagru/camagru/internal/config"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

type scriptedReader struct {
	msgs []kafka.Message
}

func (r *scriptedReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		return kafka.Message{}, context.Canceled
	}
	msg := r.msgs[0]
	r.msgs = r.msgs[1:]
	return msg, nil
}

func (r *scriptedReader) Close() error { return nil }

func TestNewDisabled(t *testing.T) {
	p := New(config.EventsConfig{Enabled: false, Brokers: []string{"localhost:9092"}})
	assert.IsType(t, Nop{}, p)
	assert.NoError(t, p.Publish(context.Background(), Event{Type: PhotoCreated}))

	p = New(config.EventsConfig{Enabled: true})
	assert.IsType(t, Nop{}, p)

	p = New(config.EventsConfig{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "t"})
	assert.IsType(t, &Kafka{}, p)
}

func TestKafkaPublish(t *testing.T) {
	w := &recordingWriter{}
	k := &Kafka{writer: w}

	err := k.Publish(context.Background(), Event{Type: PhotoCreated, UserID: 42, PhotoID: 7, IsGIF: true})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "42", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, PhotoCreated, string(msg.Headers[0].Value))

	var got Event
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, int64(7), got.PhotoID)
	assert.True(t, got.IsGIF)
	assert.False(t, got.OccurredAt.IsZero())
}

func TestKafkaPublishError(t *testing.T) {
	k := &Kafka{writer: &recordingWriter{err: errors.New("broker down")}}
	err := k.Publish(context.Background(), Event{Type: PhotoDeleted})
	assert.ErrorContains(t, err, "broker down")
}

func TestConsumerRun(t *testing.T) {
	good, err := encode(Event{Type: PhotoDeleted, UserID: 1, PhotoID: 2, OccurredAt: time.Now()})
	require.NoError(t, err)

	c := &Consumer{reader: &scriptedReader{msgs: []kafka.Message{
		{Value: []byte("not json"), Offset: 3},
		good,
	}}}

	var handled []Event
	var errs []error
	err = c.Run(context.Background(),
		func(_ context.Context, e Event) error {
			handled = append(handled, e)
			return nil
		},
		func(err error) { errs = append(errs, err) },
	)

	require.NoError(t, err)
	require.Len(t, handled, 1)
	assert.Equal(t, PhotoDeleted, handled[0].Type)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "offset 3")
}
