// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// Enrollment grants one student access to one course. The database holds
// at most one row per (student, course).
type Enrollment struct {
	ID        uuid.UUID `json:"id"`
	StudentID uuid.UUID `json:"student_id"`
	CourseID  uuid.UUID `json:"course_id"`
	CreatedAt time.Time `json:"created_at"`
	Completed bool      `json:"completed"`

	// Virtual fields populated by list queries.
	CourseTitle     string `json:"course_title,omitempty"`
	TeacherUsername string `json:"teacher_username,omitempty"`
	StudentUsername string `json:"student_username,omitempty"`
	StudentEmail    string `json:"student_email,omitempty"`
}

// PendingPurchase correlates a gateway order with the student and course
// that started it. It lives only in the browser session for one checkout.
type PendingPurchase struct {
	OrderID   string    `json:"order_id"`
	CourseID  uuid.UUID `json:"course_id"`
	StudentID uuid.UUID `json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}
