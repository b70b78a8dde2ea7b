// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"edustream/internal/models"
)

// CourseStore handles course persistence. Read queries join the teacher
// and category so templates can show them without extra lookups.
type CourseStore struct {
	db *sql.DB
}

// NewCourseStore creates a new CourseStore with the given database connection.
func NewCourseStore(db *sql.DB) *CourseStore {
	return &CourseStore{db: db}
}

const courseSelect = `
	SELECT co.id, co.teacher_id, co.title, co.description, co.price, co.category_id,
	       co.created_at, co.updated_at, u.username, COALESCE(ca.name, '')
	FROM courses co
	JOIN users u ON u.id = co.teacher_id
	LEFT JOIN categories ca ON ca.id = co.category_id`

func scanCourse(scanner interface{ Scan(...any) error }) (*models.Course, error) {
	c := &models.Course{}
	err := scanner.Scan(
		&c.ID, &c.TeacherID, &c.Title, &c.Description, &c.Price, &c.CategoryID,
		&c.CreatedAt, &c.UpdatedAt, &c.TeacherUsername, &c.CategoryName,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CourseStore) list(ctx context.Context, op, query string, args ...any) ([]models.Course, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var items []models.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// FindByID retrieves a course by its UUID. Returns nil if not found.
func (s *CourseStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	c, err := scanCourse(s.db.QueryRowContext(ctx, courseSelect+` WHERE co.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return c, nil
}

// ListByTeacher returns a teacher's courses, newest first.
func (s *CourseStore) ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.Course, error) {
	return s.list(ctx, "list courses by teacher",
		courseSelect+` WHERE co.teacher_id = $1 ORDER BY co.created_at DESC`, teacherID)
}

// ListRecent returns the newest courses, at most limit of them.
func (s *CourseStore) ListRecent(ctx context.Context, limit int) ([]models.Course, error) {
	return s.list(ctx, "list recent courses",
		courseSelect+` ORDER BY co.created_at DESC, co.id LIMIT $1`, limit)
}

// CourseFilter narrows the public course listing.
type CourseFilter struct {
	// Query matches title, description, teacher username or category name.
	Query      string
	CategoryID *uuid.UUID
	// ExcludeStudent hides courses the given student is already enrolled in.
	ExcludeStudent *uuid.UUID
}

// Search returns courses matching the filter, sorted by title.
func (s *CourseStore) Search(ctx context.Context, f CourseFilter) ([]models.Course, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		p := arg("%" + escapeLike(q) + "%")
		where = append(where, fmt.Sprintf(
			"(co.title ILIKE %[1]s OR co.description ILIKE %[1]s OR u.username ILIKE %[1]s OR ca.name ILIKE %[1]s)", p))
	}
	if f.CategoryID != nil {
		where = append(where, "co.category_id = "+arg(*f.CategoryID))
	}
	if f.ExcludeStudent != nil {
		where = append(where, "NOT EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = co.id AND e.student_id = "+arg(*f.ExcludeStudent)+")")
	}

	query := courseSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY co.title, co.id"
	return s.list(ctx, "search courses", query, args...)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Create inserts a new course owned by c.TeacherID.
func (s *CourseStore) Create(ctx context.Context, c *models.Course) (*models.Course, error) {
	var id uuid.UUID
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO courses (teacher_id, title, description, price, category_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, c.TeacherID, c.Title, c.Description, c.Price, c.CategoryID).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	return s.FindByID(ctx, id)
}

// Update saves title, description, price and category. The owner cannot
// change.
func (s *CourseStore) Update(ctx context.Context, c *models.Course) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE courses
		SET title = $1, description = $2, price = $3, category_id = $4, updated_at = NOW()
		WHERE id = $5
	`, c.Title, c.Description, c.Price, c.CategoryID, c.ID)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update course: %w", sql.ErrNoRows)
	}
	return nil
}

// Delete removes a course. Contents and enrollments cascade.
func (s *CourseStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}
