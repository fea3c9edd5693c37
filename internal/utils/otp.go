package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"otp_expense_tracker/internal/model"
)

const (
	OTPLength = 6
	OTPTTL    = 10 * time.Minute
)

var otpSpace = big.NewInt(1_000_000)

// GenerateOTP returns a uniformly random zero-padded 6-digit code and its expiry.
func GenerateOTP(now time.Time) (string, time.Time, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), now.Add(OTPTTL), nil
}

// VerifyOTP reports whether code matches the outstanding challenge and the
// challenge is still fresh at now. It does not mutate the challenge.
func VerifyOTP(ch *model.Challenge, code string, now time.Time) bool {
	if ch == nil || ch.CodeHash == "" {
		return false
	}
	if len(code) != OTPLength {
		return false
	}
	if !CheckCodeHash(code, ch.CodeHash) {
		return false
	}
	return now.Before(ch.ExpiresAt)
}
