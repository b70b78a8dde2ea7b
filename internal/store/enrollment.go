// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"edustream/internal/models"
)

// EnrollmentStore is the ledger of which student may access which course.
// The (student_id, course_id) unique constraint is the source of truth;
// Create relies on it instead of a read-then-write check.
type EnrollmentStore struct {
	db *sql.DB
}

// NewEnrollmentStore creates a new EnrollmentStore with the given database connection.
func NewEnrollmentStore(db *sql.DB) *EnrollmentStore {
	return &EnrollmentStore{db: db}
}

const enrollmentColumns = `id, student_id, course_id, created_at, completed`

// Create enrolls a student in a course. It is safe to call concurrently and
// repeatedly: when the pair already exists the existing row is returned with
// created=false.
func (s *EnrollmentStore) Create(ctx context.Context, studentID, courseID uuid.UUID) (*models.Enrollment, bool, error) {
	e := &models.Enrollment{}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO enrollments (student_id, course_id)
		VALUES ($1, $2)
		ON CONFLICT (student_id, course_id) DO NOTHING
		RETURNING `+enrollmentColumns,
		studentID, courseID,
	).Scan(&e.ID, &e.StudentID, &e.CourseID, &e.CreatedAt, &e.Completed)
	if err == nil {
		return e, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("create enrollment: %w", err)
	}

	existing, err := s.Find(ctx, studentID, courseID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		// The conflicting row vanished between the insert and the read,
		// e.g. the course was deleted.
		return nil, false, fmt.Errorf("create enrollment: %w", sql.ErrNoRows)
	}
	return existing, false, nil
}

// Find returns the enrollment for the pair or nil if none exists.
func (s *EnrollmentStore) Find(ctx context.Context, studentID, courseID uuid.UUID) (*models.Enrollment, error) {
	e := &models.Enrollment{}
	err := s.db.QueryRowContext(ctx, `
		SELECT `+enrollmentColumns+` FROM enrollments WHERE student_id = $1 AND course_id = $2
	`, studentID, courseID).Scan(&e.ID, &e.StudentID, &e.CourseID, &e.CreatedAt, &e.Completed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return e, nil
}

// Exists reports whether the student is enrolled in the course.
func (s *EnrollmentStore) Exists(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2)
	`, studentID, courseID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return ok, nil
}

// ListByStudent returns a student's enrollments, newest first, with the
// course title and teacher.
func (s *EnrollmentStore) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]models.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.student_id, e.course_id, e.created_at, e.completed, c.title, t.username
		FROM enrollments e
		JOIN courses c ON c.id = e.course_id
		JOIN users t ON t.id = c.teacher_id
		WHERE e.student_id = $1
		ORDER BY e.created_at DESC
	`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments by student: %w", err)
	}
	defer rows.Close()

	var items []models.Enrollment
	for rows.Next() {
		var e models.Enrollment
		if err := rows.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.CreatedAt, &e.Completed,
			&e.CourseTitle, &e.TeacherUsername); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// ListByCourse returns the roster of a course ordered by student username.
func (s *EnrollmentStore) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.student_id, e.course_id, e.created_at, e.completed, u.username, u.email
		FROM enrollments e
		JOIN users u ON u.id = e.student_id
		WHERE e.course_id = $1
		ORDER BY u.username
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments by course: %w", err)
	}
	defer rows.Close()

	var items []models.Enrollment
	for rows.Next() {
		var e models.Enrollment
		if err := rows.Scan(&e.ID, &e.StudentID, &e.CourseID, &e.CreatedAt, &e.Completed,
			&e.StudentUsername, &e.StudentEmail); err != nil {
			return nil, fmt.Errorf("scan roster entry: %w", err)
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// MarkCompleted flags the enrollment completed. Returns false when the
// student is not enrolled.
func (s *EnrollmentStore) MarkCompleted(ctx context.Context, studentID, courseID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE enrollments SET completed = TRUE WHERE student_id = $1 AND course_id = $2
	`, studentID, courseID)
	if err != nil {
		return false, fmt.Errorf("mark enrollment completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark enrollment completed: %w", err)
	}
	return n > 0, nil
}

// CourseStudentEmails returns the email of every student enrolled in the
// course.
func (s *EnrollmentStore) CourseStudentEmails(ctx context.Context, courseID uuid.UUID) ([]string, error) {
	return s.emails(ctx, "course student emails", `
		SELECT DISTINCT u.email
		FROM enrollments e JOIN users u ON u.id = e.student_id
		WHERE e.course_id = $1
		ORDER BY u.email
	`, courseID)
}

// TeacherStudentEmails returns the email of every student enrolled in any
// course taught by the teacher, once each.
func (s *EnrollmentStore) TeacherStudentEmails(ctx context.Context, teacherID uuid.UUID) ([]string, error) {
	return s.emails(ctx, "teacher student emails", `
		SELECT DISTINCT u.email
		FROM enrollments e
		JOIN users u ON u.id = e.student_id
		JOIN courses c ON c.id = e.course_id
		WHERE c.teacher_id = $1
		ORDER BY u.email
	`, teacherID)
}

func (s *EnrollmentStore) emails(ctx context.Context, op, query string, arg any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan email: %w", err)
		}
		out = append(out, email)
	}
	return out, rows.Err()
}
