package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/camagru/camagru/internal/database"
	"github.com/camagru/camagru/internal/logging"
	"github.com/camagru/camagru/internal/middleware"
	"github.com/camagru/camagru/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateUser(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockRepository) user(args mock.Arguments) (*models.User, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return m.user(m.Called(ctx, id))
}

func (m *MockRepository) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	return m.user(m.Called(ctx, login))
}

func (m *MockRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.user(m.Called(ctx, email))
}

func (m *MockRepository) FindConflicts(ctx context.Context, username, email string, excludeID int64) (bool, bool, error) {
	args := m.Called(ctx, username, email, excludeID)
	return args.Bool(0), args.Bool(1), args.Error(2)
}

func (m *MockRepository) VerifyUser(ctx context.Context, token string, notBefore time.Time) (int64, error) {
	args := m.Called(ctx, token, notBefore)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) SetResetToken(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, token, expiresAt)
	return args.Error(0)
}

func (m *MockRepository) ResetTokenValid(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ResetPassword(ctx context.Context, token, passwordHash string) (int64, error) {
	args := m.Called(ctx, token, passwordHash)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) TouchActivity(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type fakeQueue struct {
	jobs []*models.EmailJob
	err  error
}

func (q *fakeQueue) PublishEmail(_ context.Context, job *models.EmailJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type fakeSessions struct {
	revoked map[string]time.Duration
	hits    map[string]int64
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{revoked: map[string]time.Duration{}, hits: map[string]int64{}}
}

func (f *fakeSessions) RevokeToken(_ context.Context, id string, ttl time.Duration) error {
	f.revoked[id] = ttl
	return nil
}

func (f *fakeSessions) CheckRateLimit(_ context.Context, key string, limit int64, _ time.Duration) (bool, error) {
	f.hits[key]++
	return f.hits[key] <= limit, nil
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *MockRepository, *fakeQueue, *fakeSessions) {
	t.Helper()
	repo := new(MockRepository)
	queue := &fakeQueue{}
	sessions := newFakeSessions()
	jwt := middleware.NewJWTAuth("test-secret", "authToken", nil)

	s := NewService(repo, queue, sessions, jwt, Config{
		TokenTTL:        24 * time.Hour,
		VerificationTTL: 24 * time.Hour,
		ResetTTL:        time.Hour,
	}, logging.NewNop())
	s.now = func() time.Time { return testNow }
	return s, repo, queue, sessions
}

func verifiedUser(t *testing.T, password string) *models.User {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	return &models.User{ID: 7, Username: "alice", Email: "alice@example.com", PasswordHash: hash, IsVerified: true}
}

func TestRegister(t *testing.T) {
	s, repo, queue, _ := newTestService(t)

	repo.On("FindConflicts", mock.Anything, "alice", "alice@example.com", int64(0)).Return(false, false, nil)
	repo.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
		return u.Username == "alice" && u.VerificationToken != nil && u.EmailNotifications && !u.IsVerified
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*models.User).ID = 7
	}).Return(nil)

	user, err := s.Register(context.Background(), " alice ", "alice@example.com", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)

	ok, err := VerifyPassword(user.PasswordHash, "Secret123")
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.EmailVerification, queue.jobs[0].Kind)
	assert.Equal(t, *user.VerificationToken, queue.jobs[0].Token)
	repo.AssertExpectations(t)
}

func TestRegisterLostRace(t *testing.T) {
	tests := []struct {
		name          string
		usernameTaken bool
		emailTaken    bool
		want          error
	}{
		{"email", false, true, ErrEmailTaken},
		{"username", true, false, ErrUsernameTaken},
		{"both", true, true, ErrUsernameTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, repo, queue, _ := newTestService(t)
			repo.On("FindConflicts", mock.Anything, "alice", "alice@example.com", int64(0)).Return(false, false, nil).Once()
			repo.On("CreateUser", mock.Anything, mock.Anything).Return(database.ErrConflict)
			repo.On("FindConflicts", mock.Anything, "alice", "alice@example.com", int64(0)).
				Return(tt.usernameTaken, tt.emailTaken, nil).Once()

			_, err := s.Register(context.Background(), "alice", "alice@example.com", "Secret123")
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, queue.jobs)
			repo.AssertExpectations(t)
		})
	}
}

func TestRegisterRejects(t *testing.T) {
	s, repo, _, _ := newTestService(t)
	repo.On("FindConflicts", mock.Anything, "taken", "new@example.com", int64(0)).Return(true, false, nil)
	repo.On("FindConflicts", mock.Anything, "fresh", "used@example.com", int64(0)).Return(false, true, nil)

	_, err := s.Register(context.Background(), "valid", "a@b.co", "weak")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.Register(context.Background(), "taken", "new@example.com", "Secret123")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = s.Register(context.Background(), "fresh", "used@example.com", "Secret123")
	assert.ErrorIs(t, err, ErrEmailTaken)

	repo.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestRegisterSucceedsWhenQueueFails(t *testing.T) {
	s, repo, queue, _ := newTestService(t)
	queue.err = errors.New("broker down")
	repo.On("FindConflicts", mock.Anything, mock.Anything, mock.Anything, int64(0)).Return(false, false, nil)
	repo.On("CreateUser", mock.Anything, mock.Anything).Return(nil)

	_, err := s.Register(context.Background(), "alice", "alice@example.com", "Secret123")
	assert.NoError(t, err)
}

func TestVerify(t *testing.T) {
	s, repo, _, _ := newTestService(t)
	repo.On("VerifyUser", mock.Anything, "good", testNow.Add(-24*time.Hour)).Return(int64(7), nil)
	repo.On("VerifyUser", mock.Anything, "stale", mock.Anything).Return(int64(0), database.ErrNotFound)

	assert.NoError(t, s.Verify(context.Background(), "good"))
	assert.ErrorIs(t, s.Verify(context.Background(), "stale"), ErrInvalidToken)
	assert.ErrorIs(t, s.Verify(context.Background(), ""), ErrInvalidToken)
}

func TestLogin(t *testing.T) {
	s, repo, _, _ := newTestService(t)
	user := verifiedUser(t, "Secret123")
	repo.On("GetUserByLogin", mock.Anything, "alice").Return(user, nil)
	repo.On("TouchActivity", mock.Anything, int64(7)).Return(nil)

	session, err := s.Login(context.Background(), "alice", "Secret123")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), session.ExpiresAt, time.Minute)

	claims, err := s.jwt.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
}

func TestLoginFailures(t *testing.T) {
	s, repo, _, _ := newTestService(t)
	user := verifiedUser(t, "Secret123")
	unverified := *user
	unverified.IsVerified = false

	repo.On("GetUserByLogin", mock.Anything, "alice").Return(user, nil)
	repo.On("GetUserByLogin", mock.Anything, "pending").Return(&unverified, nil)
	repo.On("GetUserByLogin", mock.Anything, "ghost").Return(nil, database.ErrNotFound)

	_, err := s.Login(context.Background(), "alice", "Wrong123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login(context.Background(), "ghost", "Secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Login(context.Background(), "pending", "Secret123")
	assert.ErrorIs(t, err, ErrNotVerified)

	_, err = s.Login(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	repo.AssertNotCalled(t, "TouchActivity", mock.Anything, mock.Anything)
}

func TestLogout(t *testing.T) {
	s, _, _, sessions := newTestService(t)

	_, claims, err := s.jwt.GenerateToken(7, "alice", 2*time.Hour)
	require.NoError(t, err)

	require.NoError(t, s.Logout(context.Background(), claims))
	require.Contains(t, sessions.revoked, claims.ID)
	assert.Greater(t, sessions.revoked[claims.ID], time.Duration(0))

	assert.NoError(t, s.Logout(context.Background(), nil))
}

func TestForgotPassword(t *testing.T) {
	s, repo, queue, _ := newTestService(t)
	user := verifiedUser(t, "Secret123")
	repo.On("GetUserByEmail", mock.Anything, "alice@example.com").Return(user, nil)
	repo.On("GetUserByEmail", mock.Anything, "nobody@example.com").Return(nil, database.ErrNotFound)
	repo.On("SetResetToken", mock.Anything, int64(7), mock.AnythingOfType("string"), testNow.Add(time.Hour)).Return(nil)

	require.NoError(t, s.ForgotPassword(context.Background(), "alice@example.com"))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, models.EmailPasswordReset, queue.jobs[0].Kind)
	assert.NotEmpty(t, queue.jobs[0].Token)

	// Unknown addresses look the same to the caller
	require.NoError(t, s.ForgotPassword(context.Background(), "nobody@example.com"))
	assert.Len(t, queue.jobs, 1)
}

func TestForgotPasswordRateLimited(t *testing.T) {
	s, repo, _, _ := newTestService(t)
	repo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(nil, database.ErrNotFound)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.ForgotPassword(context.Background(), "x@example.com"))
	}
	assert.ErrorIs(t, s.ForgotPassword(context.Background(), "X@example.com"), ErrRateLimited)
}

func TestForgotPasswordConfiguredLimit(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetUserByEmail", mock.Anything, mock.Anything).Return(nil, database.ErrNotFound)
	s := NewService(repo, &fakeQueue{}, newFakeSessions(), middleware.NewJWTAuth("test-secret", "authToken", nil),
		Config{ResetTTL: time.Hour, ResetRequestsPerHour: 1}, logging.NewNop())

	require.NoError(t, s.ForgotPassword(context.Background(), "x@example.com"))
	assert.ErrorIs(t, s.ForgotPassword(context.Background(), "x@example.com"), ErrRateLimited)
}

func TestResetPassword(t *testing.T) {
	s, repo, _, _ := newTestService(t)
	repo.On("ResetPassword", mock.Anything, "tok", mock.AnythingOfType("string")).Return(int64(7), nil)
	repo.On("ResetPassword", mock.Anything, "expired", mock.Anything).Return(int64(0), database.ErrNotFound)

	assert.NoError(t, s.ResetPassword(context.Background(), "tok", "NewSecret1"))
	assert.ErrorIs(t, s.ResetPassword(context.Background(), "expired", "NewSecret1"), ErrInvalidToken)
	assert.ErrorIs(t, s.ResetPassword(context.Background(), "tok", "weak"), ErrValidation)
	assert.ErrorIs(t, s.ResetPassword(context.Background(), "", "NewSecret1"), ErrInvalidToken)
}

func TestStatus(t *testing.T) {
	s, repo, _, _ := newTestService(t)
	avatar := "/img/avatars/cat.png"
	repo.On("GetUserByID", mock.Anything, int64(7)).Return(&models.User{ID: 7, Username: "alice", AvatarPath: &avatar}, nil)
	repo.On("GetUserByID", mock.Anything, int64(8)).Return(nil, database.ErrNotFound)

	st, err := s.Status(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "alice", st.User.Username)
	assert.Equal(t, &avatar, st.User.Avatar)

	st, err = s.Status(context.Background(), 8)
	require.NoError(t, err)
	assert.False(t, st.IsAuthenticated)

	st, err = s.Status(context.Background(), 0)
	require.NoError(t, err)
	assert.Nil(t, st.User)
}
