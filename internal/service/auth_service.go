package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"otp_expense_tracker/internal/apperror"
	"otp_expense_tracker/internal/metrics"
	"otp_expense_tracker/internal/model"
	"otp_expense_tracker/internal/ratelimit"
	"otp_expense_tracker/internal/repository"
	"otp_expense_tracker/internal/utils"
)

var (
	ErrUserNotFound    = apperror.New(apperror.KindNotFound, "User not found")
	ErrInvalidOTP      = apperror.New(apperror.KindValidation, "Invalid or expired OTP")
	ErrInvalidToken    = apperror.New(apperror.KindAuth, "Not authorized, token failed")
	ErrTooManyRequests = apperror.New(apperror.KindRateLimited, "Too many OTP requests, try again later")
	ErrEmailTaken      = apperror.New(apperror.KindConflict, "Email already in use")
)

// OTPIssue is the result of a code request. Code is only surfaced to
// clients when test mode is on.
type OTPIssue struct {
	UserID    string
	Code      string
	ExpiresAt time.Time
	NewUser   bool
}

// OTPDispatcher hands a freshly issued code to the out-of-band channel.
type OTPDispatcher interface {
	DispatchOTP(ctx context.Context, d model.OTPDelivery) error
}

// AuthService provides phone/OTP authentication
type AuthService interface {
	RequestOTP(ctx context.Context, phone, name string) (*OTPIssue, error)
	VerifyOTP(ctx context.Context, phone, code string) (*model.User, string, error)
	Authenticate(ctx context.Context, token string) (*model.User, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID string, req model.UpdateProfileRequest) (*model.User, error)
}

type authService struct {
	userRepo   repository.UserRepository
	jwtUtil    *utils.JWTUtil
	dispatcher OTPDispatcher
	limiter    ratelimit.Limiter
	logger     *slog.Logger
	now        func() time.Time
}

// NewAuthService creates a new AuthService. dispatcher and limiter may be nil.
func NewAuthService(
	userRepo repository.UserRepository,
	jwtUtil *utils.JWTUtil,
	dispatcher OTPDispatcher,
	limiter ratelimit.Limiter,
	logger *slog.Logger,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		jwtUtil:    jwtUtil,
		dispatcher: dispatcher,
		limiter:    limiter,
		logger:     logger.With("component", "auth_service"),
		now:        time.Now,
	}
}

// RequestOTP issues a fresh challenge for phone, creating the identity on
// first contact. Any earlier outstanding code stops working.
func (s *authService) RequestOTP(ctx context.Context, phone, name string) (*OTPIssue, error) {
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, phone)
		if err != nil {
			s.logger.Warn("rate limiter unavailable, allowing request", "error", err)
		}
		if !allowed {
			metrics.RecordRateLimited()
			return nil, ErrTooManyRequests
		}
	}

	now := s.now()
	code, expiresAt, err := utils.GenerateOTP(now)
	if err != nil {
		return nil, err
	}
	hash, err := utils.HashCode(code)
	if err != nil {
		return nil, fmt.Errorf("failed to hash otp: %w", err)
	}
	challenge := &model.Challenge{CodeHash: hash, ExpiresAt: expiresAt}
	name = strings.TrimSpace(name)

	user, err := s.userRepo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	newUser := user == nil
	if newUser {
		user = &model.User{
			Name:      name,
			Phone:     phone,
			Challenge: challenge,
			CreatedAt: now,
		}
		err = s.userRepo.Create(ctx, user)
		if errors.Is(err, repository.ErrDuplicate) {
			// a concurrent request created the identity first
			newUser = false
			user, err = s.userRepo.FindByPhone(ctx, phone)
			if err == nil && user == nil {
				err = repository.ErrNotFound
			}
			if err == nil {
				err = s.overwriteChallenge(ctx, user, name, challenge)
			}
		}
	} else {
		err = s.overwriteChallenge(ctx, user, name, challenge)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store otp: %w", err)
	}

	metrics.RecordOTPIssued(newUser)
	s.logger.Info("otp issued", "user_id", user.ID, "new_user", newUser)

	if s.dispatcher != nil {
		delivery := model.OTPDelivery{UserID: user.ID, Phone: phone, Code: code, ExpiresAt: expiresAt}
		if err := s.dispatcher.DispatchOTP(ctx, delivery); err != nil {
			s.logger.Error("failed to dispatch otp", "user_id", user.ID, "error", err)
		}
	}

	return &OTPIssue{UserID: user.ID, Code: code, ExpiresAt: expiresAt, NewUser: newUser}, nil
}

func (s *authService) overwriteChallenge(ctx context.Context, user *model.User, name string, ch *model.Challenge) error {
	user.Challenge = ch
	if name != "" {
		user.Name = name
	}
	return s.userRepo.Update(ctx, user)
}

// VerifyOTP consumes the outstanding challenge and returns a session token.
func (s *authService) VerifyOTP(ctx context.Context, phone, code string) (*model.User, string, error) {
	user, err := s.userRepo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		metrics.RecordOTPVerification("unknown_user")
		return nil, "", ErrUserNotFound
	}

	if !utils.VerifyOTP(user.Challenge, code, s.now()) {
		metrics.RecordOTPVerification("invalid")
		return nil, "", ErrInvalidOTP
	}

	user.IsVerified = true
	user.Challenge = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, "", fmt.Errorf("failed to clear otp: %w", err)
	}

	token, err := s.jwtUtil.GenerateToken(user.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	metrics.RecordOTPVerification("success")
	s.logger.Info("otp verified", "user_id", user.ID)
	return user, token, nil
}

// Authenticate validates a bearer token and resolves its identity.
// A valid token whose identity no longer exists yields ErrUserNotFound.
func (s *authService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.jwtUtil.ValidateToken(token)
	if err != nil {
		return nil, ErrInvalidToken.Wrap(err)
	}
	return s.GetUser(ctx, claims.UserID)
}

func (s *authService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, req model.UpdateProfileRequest) (*model.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		user.Email = &email
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrEmailTaken
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}
