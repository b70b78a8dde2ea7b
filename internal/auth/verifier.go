// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package auth implements the two login steps: password verification and
// the emailed one-time passcode challenge. Neither step touches the HTTP
// session; handlers decide what to store there.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"edustream/internal/models"
)

// Sentinel errors returned by the login steps.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNoActiveChallenge  = errors.New("no active passcode challenge")
	ErrCodeMismatch       = errors.New("passcode does not match")
	ErrChallengeExpired   = errors.New("passcode expired")
)

// UserFinder looks up accounts by username. Returns nil, nil when the
// username does not exist.
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// Verifier checks a username and password pair.
type Verifier struct {
	users UserFinder
}

// NewVerifier creates a Verifier over the given user lookup.
func NewVerifier(users UserFinder) *Verifier {
	return &Verifier{users: users}
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// dummy returns a bcrypt hash compared against when the username is
// unknown, so both failure cases cost one bcrypt comparison.
func dummy() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("edustream-dummy-password"), bcrypt.DefaultCost)
	})
	return dummyHash
}

// Verify returns the user when the password matches. An unknown username
// and a wrong password both yield ErrInvalidCredentials.
func (v *Verifier) Verify(ctx context.Context, username, password string) (*models.User, error) {
	user, err := v.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}

	if user == nil {
		bcrypt.CompareHashAndPassword(dummy(), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
