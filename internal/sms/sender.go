// Package sms delivers one-time codes to phones.
package sms

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
)

// Sender delivers a text message to a phone number.
type Sender interface {
	Send(ctx context.Context, phone, text string) error
}

// OTPText renders the message body for a code.
func OTPText(code string) string {
	return fmt.Sprintf("Your verification code is %s. It expires in 10 minutes.", code)
}

// LogSender writes messages to the log instead of sending them. The phone is
// masked and digits in the text are redacted, so codes never reach the log.
// Development only.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a new LogSender writing to logger.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs a redacted copy of the message and always succeeds.
func (s *LogSender) Send(_ context.Context, phone, text string) error {
	s.logger.Info("sms not sent (log provider)", "phone", MaskPhone(phone), "text", redactDigits(text))
	return nil
}

// MaskPhone keeps only the last four characters of a phone number.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return "****" + phone[len(phone)-4:]
}

func redactDigits(text string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return '*'
		}
		return r
	}, text)
}

// AuthKeyConfig configures the authkey.io gateway.
type AuthKeyConfig struct {
	BaseURL     string
	APIKey      string
	Sender      string
	CountryCode string
	Timeout     time.Duration
}

// AuthKeySender sends through the authkey.io GET API.
type AuthKeySender struct {
	cfg    AuthKeyConfig
	client *http.Client
}

// NewAuthKeySender creates a new AuthKeySender. A zero Timeout defaults to ten seconds.
func NewAuthKeySender(cfg AuthKeyConfig) *AuthKeySender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &AuthKeySender{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Send delivers text to phone through the gateway. Any non-2xx status is an error.
func (s *AuthKeySender) Send(ctx context.Context, phone, text string) error {
	q := url.Values{}
	q.Set("authkey", s.cfg.APIKey)
	q.Set("sms", text)
	q.Set("mobile", phone)
	q.Set("country_code", s.cfg.CountryCode)
	q.Set("sender", s.cfg.Sender)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, body)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
