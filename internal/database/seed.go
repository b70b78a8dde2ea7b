package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// Development accounts created by Seed. Both share one password.
const (
	SeedTeacherEmail = "teacher@edustream.local"
	SeedStudentEmail = "student@edustream.local"
	seedPassword     = "edustream"
)

// Seed populates the database with initial development data: one teacher,
// one student, a category and a free and a paid course. It does nothing
// when any user already exists.
func Seed(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return fmt.Errorf("seed check users: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	var teacherID string
	err = tx.QueryRow(`
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, $3, 'teacher')
		RETURNING id
	`, "teacher", SeedTeacherEmail, string(hash)).Scan(&teacherID)
	if err != nil {
		return fmt.Errorf("seed insert teacher: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO users (username, email, password_hash, role)
		VALUES ($1, $2, $3, 'student')
	`, "student", SeedStudentEmail, string(hash)); err != nil {
		return fmt.Errorf("seed insert student: %w", err)
	}

	var categoryID string
	err = tx.QueryRow(`
		INSERT INTO categories (name, description)
		VALUES ('Programming', 'Software development courses')
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`).Scan(&categoryID)
	if err != nil {
		return fmt.Errorf("seed insert category: %w", err)
	}

	var freeID string
	err = tx.QueryRow(`
		INSERT INTO courses (teacher_id, title, description, price, category_id)
		VALUES ($1, 'Go Basics', 'A free introduction to Go.', 0, $2)
		RETURNING id
	`, teacherID, categoryID).Scan(&freeID)
	if err != nil {
		return fmt.Errorf("seed insert free course: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO courses (teacher_id, title, description, price, category_id)
		VALUES ($1, 'Concurrency in Practice', 'Goroutines, channels and everything between.', 19.99, $2)
	`, teacherID, categoryID); err != nil {
		return fmt.Errorf("seed insert paid course: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO course_contents (course_id, title, kind, text_body, display_order)
		VALUES ($1, 'Welcome', 'text', 'Welcome to Go Basics.', 0)
	`, freeID); err != nil {
		return fmt.Errorf("seed insert content: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with development accounts",
		"teacher", SeedTeacherEmail,
		"student", SeedStudentEmail,
		"password", seedPassword,
	)

	return nil
}
