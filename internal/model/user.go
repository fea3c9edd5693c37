package model

import "time"

// User is an identity keyed by phone number.
type User struct {
	ID         string     `json:"id"`
	Name       string     `json:"name,omitempty"`
	Phone      string     `json:"phone"`
	Email      *string    `json:"email,omitempty"`
	IsVerified bool       `json:"isVerified"`
	Challenge  *Challenge `json:"-"` // never leaves the server
	CreatedAt  time.Time  `json:"createdAt"`
}

// Challenge is an outstanding one-time code. Only a hash of the code is kept.
type Challenge struct {
	CodeHash  string
	ExpiresAt time.Time
}

// Clone returns a deep copy so stores can hand out values safely.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Email != nil {
		email := *u.Email
		c.Email = &email
	}
	if u.Challenge != nil {
		ch := *u.Challenge
		c.Challenge = &ch
	}
	return &c
}

// PublicUser is the identity summary returned after verification.
type PublicUser struct {
	ID         string `json:"id"`
	Phone      string `json:"phone"`
	IsVerified bool   `json:"isVerified"`
}

// Public returns the fields of u that are safe to send to the client.
func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Phone: u.Phone, IsVerified: u.IsVerified}
}

// RequestOTPRequest is the body of POST /auth/request-otp.
type RequestOTPRequest struct {
	Phone string `json:"phone" binding:"required,phone"`
	Name  string `json:"name" binding:"required,notblank,max=100"`
}

// VerifyOTPRequest is the body of POST /auth/verify-otp.
type VerifyOTPRequest struct {
	Phone string `json:"phone" binding:"required,phone"`
	OTP   string `json:"otp" binding:"required,len=6"`
}

// UpdateProfileRequest carries optional profile changes.
type UpdateProfileRequest struct {
	Name  *string `json:"name,omitempty" binding:"omitempty,notblank,max=100"`
	Email *string `json:"email,omitempty" binding:"omitempty,email"`
}

// OTPDelivery is handed to the delivery channel after issuance.
type OTPDelivery struct {
	UserID    string    `json:"userId"`
	Phone     string    `json:"phone"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expiresAt"`
}
