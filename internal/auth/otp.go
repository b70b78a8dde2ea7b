// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	"edustream/internal/mail"
	"edustream/internal/models"
)

// DefaultOTPTTL is how long an issued passcode stays valid.
const DefaultOTPTTL = 5 * time.Minute

// OTPSubject is the subject line of the passcode email.
const OTPSubject = "Your EduStream Login OTP"

const (
	otpMin   = 100000
	otpRange = 900000 // codes span otpMin..otpMin+otpRange-1
)

// OTPStore persists the passcode fields on the user row.
type OTPStore interface {
	SetOTP(ctx context.Context, userID uuid.UUID, code string, issuedAt time.Time) error
	ClearOTP(ctx context.Context, userID uuid.UUID) error
}

// OTPManager issues and verifies emailed one-time passcodes.
type OTPManager struct {
	store  OTPStore
	sender mail.Sender
	ttl    time.Duration
	now    func() time.Time
	random io.Reader
}

// NewOTPManager creates a manager. A non-positive ttl falls back to
// DefaultOTPTTL.
func NewOTPManager(store OTPStore, sender mail.Sender, ttl time.Duration) *OTPManager {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &OTPManager{
		store:  store,
		sender: sender,
		ttl:    ttl,
		now:    time.Now,
		random: rand.Reader,
	}
}

// TTL returns the configured passcode lifetime.
func (m *OTPManager) TTL() time.Duration {
	return m.ttl
}

// TTLText returns the passcode lifetime in words, e.g. "5 minutes".
func (m *OTPManager) TTLText() string {
	return humanDuration(m.ttl)
}

// GenerateCode returns a six-digit code drawn uniformly from
// 100000..999999.
func GenerateCode(r io.Reader) (string, error) {
	n, err := rand.Int(r, big.NewInt(otpRange))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%d", otpMin+n.Int64()), nil
}

// Issue creates a new passcode for user, replacing any outstanding one, and
// emails it. The challenge counts as issued once it is stored; a delivery
// failure is only logged.
func (m *OTPManager) Issue(ctx context.Context, user *models.User) error {
	code, err := GenerateCode(m.random)
	if err != nil {
		return err
	}
	issuedAt := m.now().UTC()

	if err := m.store.SetOTP(ctx, user.ID, code, issuedAt); err != nil {
		return fmt.Errorf("issue otp: %w", err)
	}
	user.OTPCode = &code
	user.OTPIssuedAt = &issuedAt

	if err := m.sender.Send(ctx, user.Email, OTPSubject, m.body(code)); err != nil {
		slog.Error("otp email failed", "user_id", user.ID, "error", err)
	}
	return nil
}

func (m *OTPManager) body(code string) string {
	return fmt.Sprintf("Dear User,\n\n"+
		"Your One-Time Password (OTP) for EduStream login is: %s\n\n"+
		"This OTP is valid for %s. Please do not share it with anyone.\n\n"+
		"If you did not request this OTP, please ignore this email.\n",
		code, humanDuration(m.ttl))
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "1 minute"
	case d%time.Minute == 0:
		return fmt.Sprintf("%d minutes", int(d/time.Minute))
	}
	return d.String()
}

// Verify checks code against user's outstanding challenge at time now.
// A mismatch keeps the stored code so the user may retry until it
// expires. Expiry and success both clear it.
func (m *OTPManager) Verify(ctx context.Context, user *models.User, code string, now time.Time) error {
	if !user.HasActiveChallenge() {
		return ErrNoActiveChallenge
	}

	if subtle.ConstantTimeCompare([]byte(code), []byte(*user.OTPCode)) != 1 {
		return ErrCodeMismatch
	}

	if now.Sub(*user.OTPIssuedAt) >= m.ttl {
		if err := m.clear(ctx, user); err != nil {
			return err
		}
		return ErrChallengeExpired
	}

	return m.clear(ctx, user)
}

func (m *OTPManager) clear(ctx context.Context, user *models.User) error {
	if err := m.store.ClearOTP(ctx, user.ID); err != nil {
		return fmt.Errorf("clear otp: %w", err)
	}
	user.OTPCode = nil
	user.OTPIssuedAt = nil
	return nil
}
