package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"otp_expense_tracker/internal/apperror"
	"otp_expense_tracker/internal/logging"
	"otp_expense_tracker/internal/model"
	"otp_expense_tracker/internal/ratelimit"
	"otp_expense_tracker/internal/repository"
	"otp_expense_tracker/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPhone = "+15551234567"

type recordingDispatcher struct {
	mu         sync.Mutex
	deliveries []model.OTPDelivery
	err        error
}

func (d *recordingDispatcher) DispatchOTP(_ context.Context, del model.OTPDelivery) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deliveries = append(d.deliveries, del)
	return d.err
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type authFixture struct {
	svc        *authService
	users      *repository.MemoryUserRepository
	dispatcher *recordingDispatcher
	clock      *fakeClock
	jwt        *utils.JWTUtil
}

func newAuthFixture(t *testing.T, limiter ratelimit.Limiter) *authFixture {
	t.Helper()
	jwtUtil, err := utils.NewJWTUtil("test-secret", 7*24*time.Hour, "HS256")
	require.NoError(t, err)

	users := repository.NewMemoryUserRepository()
	dispatcher := &recordingDispatcher{}
	clock := &fakeClock{t: time.Now()}

	svc := NewAuthService(users, jwtUtil, dispatcher, limiter, logging.Discard()).(*authService)
	svc.now = clock.Now
	return &authFixture{svc: svc, users: users, dispatcher: dispatcher, clock: clock, jwt: jwtUtil}
}

func TestRequestOTP_CreatesIdentity(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	issue, err := f.svc.RequestOTP(ctx, testPhone, "  Alice ")
	require.NoError(t, err)
	assert.True(t, issue.NewUser)
	assert.Len(t, issue.Code, 6)
	assert.Equal(t, f.clock.Now().Add(utils.OTPTTL), issue.ExpiresAt)

	user, err := f.users.FindByPhone(ctx, testPhone)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, issue.UserID, user.ID)
	assert.Equal(t, "Alice", user.Name)
	assert.False(t, user.IsVerified)
	require.NotNil(t, user.Challenge)
	assert.NotEqual(t, issue.Code, user.Challenge.CodeHash)

	require.Len(t, f.dispatcher.deliveries, 1)
	assert.Equal(t, issue.Code, f.dispatcher.deliveries[0].Code)
	assert.Equal(t, testPhone, f.dispatcher.deliveries[0].Phone)
}

func TestRequestOTP_SecondRequestInvalidatesFirst(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.RequestOTP(ctx, testPhone, "Alice")
	require.NoError(t, err)
	second, err := f.svc.RequestOTP(ctx, testPhone, "Alicia")
	require.NoError(t, err)
	assert.False(t, second.NewUser)
	assert.Equal(t, first.UserID, second.UserID)

	if first.Code != second.Code {
		_, _, err = f.svc.VerifyOTP(ctx, testPhone, first.Code)
		assert.ErrorIs(t, err, ErrInvalidOTP)
	}

	user, token, err := f.svc.VerifyOTP(ctx, testPhone, second.Code)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "Alicia", user.Name)
}

func TestVerifyOTP_SingleUse(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	issue, err := f.svc.RequestOTP(ctx, testPhone, "Alice")
	require.NoError(t, err)

	user, token, err := f.svc.VerifyOTP(ctx, testPhone, issue.Code)
	require.NoError(t, err)
	assert.True(t, user.IsVerified)
	assert.Nil(t, user.Challenge)

	claims, err := f.jwt.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	stored, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsVerified)
	assert.Nil(t, stored.Challenge)

	_, _, err = f.svc.VerifyOTP(ctx, testPhone, issue.Code)
	assert.ErrorIs(t, err, ErrInvalidOTP)
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestVerifyOTP_Expired(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	issue, err := f.svc.RequestOTP(ctx, testPhone, "Alice")
	require.NoError(t, err)

	f.clock.Advance(utils.OTPTTL)
	_, _, err = f.svc.VerifyOTP(ctx, testPhone, issue.Code)
	assert.ErrorIs(t, err, ErrInvalidOTP)

	user, err := f.users.FindByPhone(ctx, testPhone)
	require.NoError(t, err)
	assert.False(t, user.IsVerified)
}

func TestVerifyOTP_WrongCodeAndUnknownUser(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	_, _, err := f.svc.VerifyOTP(ctx, testPhone, "123456")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, "User not found", apperror.MessageOf(err, ""))

	issue, err := f.svc.RequestOTP(ctx, testPhone, "Alice")
	require.NoError(t, err)

	wrong := "000000"
	if issue.Code == wrong {
		wrong = "111111"
	}
	_, _, err = f.svc.VerifyOTP(ctx, testPhone, wrong)
	assert.ErrorIs(t, err, ErrInvalidOTP)

	// a failed attempt leaves the challenge usable
	_, _, err = f.svc.VerifyOTP(ctx, testPhone, issue.Code)
	assert.NoError(t, err)
}

func TestRequestOTP_DispatchFailureDoesNotFail(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.dispatcher.err = errors.New("broker down")

	issue, err := f.svc.RequestOTP(context.Background(), testPhone, "Alice")
	require.NoError(t, err)
	assert.Len(t, issue.Code, 6)
}

func TestRequestOTP_RateLimited(t *testing.T) {
	f := newAuthFixture(t, ratelimit.NewMemoryLimiter(2))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.RequestOTP(ctx, testPhone, "Alice")
		require.NoError(t, err)
	}
	_, err := f.svc.RequestOTP(ctx, testPhone, "Alice")
	assert.ErrorIs(t, err, ErrTooManyRequests)
	assert.Equal(t, 429, apperror.HTTPStatus(apperror.KindOf(err)))

	// other phones are unaffected
	_, err = f.svc.RequestOTP(ctx, "+15557654321", "Bob")
	assert.NoError(t, err)
}

// Issuance is read-modify-write without compare-and-set: concurrent
// requests for one phone end with exactly one identity and the last
// stored challenge wins.
func TestRequestOTP_ConcurrentRequestsLastWriteWins(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	codes := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			issue, err := f.svc.RequestOTP(ctx, testPhone, "Alice")
			if assert.NoError(t, err) {
				codes <- issue.Code
			}
		}()
	}
	wg.Wait()
	close(codes)

	user, err := f.users.FindByPhone(ctx, testPhone)
	require.NoError(t, err)
	require.NotNil(t, user)

	matching := 0
	for code := range codes {
		if utils.VerifyOTP(user.Challenge, code, f.clock.Now()) {
			matching++
		}
	}
	assert.GreaterOrEqual(t, matching, 1)
}

func TestAuthenticate(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	issue, err := f.svc.RequestOTP(ctx, testPhone, "Alice")
	require.NoError(t, err)
	_, token, err := f.svc.VerifyOTP(ctx, testPhone, issue.Code)
	require.NoError(t, err)

	user, err := f.svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, issue.UserID, user.ID)

	_, err = f.svc.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, apperror.KindAuth, apperror.KindOf(err))

	orphan, err := f.jwt.GenerateToken("missing-user")
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, orphan)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfile(t *testing.T) {
	f := newAuthFixture(t, nil)
	ctx := context.Background()

	a, err := f.svc.RequestOTP(ctx, testPhone, "Alice")
	require.NoError(t, err)
	b, err := f.svc.RequestOTP(ctx, "+15557654321", "Bob")
	require.NoError(t, err)

	name, email := "Alice Smith", " Alice@Example.com "
	user, err := f.svc.UpdateProfile(ctx, a.UserID, model.UpdateProfileRequest{Name: &name, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "Alice Smith", user.Name)
	require.NotNil(t, user.Email)
	assert.Equal(t, "alice@example.com", *user.Email)

	_, err = f.svc.UpdateProfile(ctx, b.UserID, model.UpdateProfileRequest{Email: &email})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.svc.UpdateProfile(ctx, "nobody", model.UpdateProfileRequest{Name: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}
