// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrCourseNotFound is returned when a course id does not resolve.
var ErrCourseNotFound = errors.New("course not found")

// Course is owned by exactly one teacher. Deleting it removes its content
// and enrollments.
type Course struct {
	ID          uuid.UUID       `json:"id"`
	TeacherID   uuid.UUID       `json:"teacher_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// Virtual fields populated by store methods.
	TeacherUsername string `json:"teacher_username,omitempty"`
	CategoryName    string `json:"category_name,omitempty"`
}

// IsFree returns true for zero-priced courses.
func (c *Course) IsFree() bool {
	return c.Price.IsZero()
}

// OwnedBy returns true if the given user is the course's teacher.
func (c *Course) OwnedBy(userID uuid.UUID) bool {
	return c.TeacherID == userID
}
