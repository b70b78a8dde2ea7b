// store_test.go provides a shared test database helper for all store
// integration tests. Tests are skipped if PostgreSQL is not available.
package store

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"edustream/internal/database"
	"edustream/internal/models"
)

// testDSN returns the PostgreSQL connection string for testing.
// Uses environment variables with defaults matching docker-compose.yml.
func testDSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "edustream")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "edustream")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test database and runs migrations.
// If the database is unavailable, the test is skipped. A cleanup
// function is registered to close the connection when the test finishes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("pgx", testDSN())
	if err != nil {
		t.Skipf("skipping integration test: cannot open DB: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping integration test: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	// Reset goose global state.
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// cleanUsers removes test users by username. Courses and enrollments
// cascade. Call in t.Cleanup().
func cleanUsers(t *testing.T, db *sql.DB, usernames ...string) {
	t.Helper()
	for _, name := range usernames {
		db.Exec("DELETE FROM users WHERE username = $1", name)
	}
}

// fixture creates a teacher, a student and one course owned by the teacher.
// Everything is removed when the test finishes.
type fixture struct {
	teacher *models.User
	student *models.User
	course  *models.Course
}

func newFixture(t *testing.T, db *sql.DB) fixture {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]
	users := NewUserStore(db)

	teacherName, studentName := "t-"+suffix, "s-"+suffix
	t.Cleanup(func() { cleanUsers(t, db, teacherName, studentName) })

	teacher, err := users.Create(ctx, teacherName, teacherName+"@store-test.local", "pass", models.RoleTeacher)
	if err != nil {
		t.Fatalf("create teacher: %v", err)
	}
	student, err := users.Create(ctx, studentName, studentName+"@store-test.local", "pass", models.RoleStudent)
	if err != nil {
		t.Fatalf("create student: %v", err)
	}
	course, err := NewCourseStore(db).Create(ctx, &models.Course{
		TeacherID:   teacher.ID,
		Title:       "Course " + suffix,
		Description: "fixture",
		Price:       decimal.RequireFromString("9.99"),
	})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	return fixture{teacher: teacher, student: student, course: course}
}
