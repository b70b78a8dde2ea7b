// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package models defines the data structures that map to database tables
// and provides the core types used throughout the application.
package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownRole is returned when a role name is neither student nor teacher.
var ErrUnknownRole = errors.New("unknown role")

// Role is the closed set of account kinds. The zero value is not a valid
// role; it marks a session that has not completed login.
type Role uint8

const (
	RoleStudent Role = iota + 1
	RoleTeacher
)

// ParseRole converts the stored/form representation into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "student":
		return RoleStudent, nil
	case "teacher":
		return RoleTeacher, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// String returns the lowercase role name used in the database and forms.
func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleTeacher:
		return "teacher"
	}
	return "unknown"
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher:
		return true
	}
	return false
}

// HomePath is the dashboard a user of this role lands on after login.
func (r Role) HomePath() string {
	switch r {
	case RoleStudent:
		return "/student/dashboard"
	case RoleTeacher:
		return "/teacher/dashboard"
	}
	return "/login"
}

// MarshalText encodes the role by name so sessions stay readable in Valkey.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, r)
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Value implements driver.Valuer for the users.role text column.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, r)
	}
	return r.String(), nil
}

// Scan implements sql.Scanner for the users.role text column.
func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	}
	return fmt.Errorf("scan role: unsupported type %T", src)
}

// User is a marketplace account. The OTP fields are owned by the login
// challenge: both are set while a code is outstanding and both are nil
// otherwise.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never serialize the hash
	Role         Role       `json:"role"`
	OTPCode      *string    `json:"-"`
	OTPIssuedAt  *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsTeacher returns true if the user publishes courses.
func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// IsStudent returns true if the user buys and takes courses.
func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}

// HasActiveChallenge returns true while a one-time passcode is outstanding.
func (u *User) HasActiveChallenge() bool {
	return u.OTPCode != nil && u.OTPIssuedAt != nil
}
