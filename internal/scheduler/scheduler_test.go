package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/camagru/camagru/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) ClearStaleVerificationTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTokenStore) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func TestTokenCleanup(t *testing.T) {
	store := new(MockTokenStore)
	before := time.Now()

	store.On("ClearStaleVerificationTokens", mock.Anything, mock.MatchedBy(func(cutoff time.Time) bool {
		return cutoff.Before(before.Add(-23*time.Hour)) && cutoff.After(before.Add(-25*time.Hour))
	})).Return(int64(2), nil)
	store.On("ClearExpiredResetTokens", mock.Anything, mock.AnythingOfType("time.Time")).Return(int64(1), nil)

	task := TokenCleanup(store, 24*time.Hour, time.Hour, logging.NewNop())
	assert.Equal(t, "token_cleanup", task.Name)
	assert.Equal(t, time.Hour, task.Interval)

	require.NoError(t, task.Run(context.Background()))
	store.AssertExpectations(t)
}

func TestTokenCleanupStopsOnError(t *testing.T) {
	store := new(MockTokenStore)
	store.On("ClearStaleVerificationTokens", mock.Anything, mock.Anything).Return(int64(0), errors.New("db down"))

	task := TokenCleanup(store, 24*time.Hour, time.Hour, logging.NewNop())
	err := task.Run(context.Background())

	assert.ErrorContains(t, err, "db down")
	store.AssertNotCalled(t, "ClearExpiredResetTokens", mock.Anything, mock.Anything)
}

func TestSchedulerRunsTasks(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(logging.NewNop(), Task{
		Name:     "count",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	s.Stop()
	stopped := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())

	// Stop is idempotent
	s.Stop()
}

func TestSchedulerRejectsZeroInterval(t *testing.T) {
	s := NewScheduler(logging.NewNop(), Task{Name: "bad", Run: func(context.Context) error { return nil }})
	assert.Error(t, s.Start(context.Background()))
}

func TestSchedulerKeepsRunningAfterFailure(t *testing.T) {
	var runs atomic.Int32
	s := NewScheduler(logging.NewNop(), Task{
		Name:     "flaky",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return errors.New("boom")
		},
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
}
