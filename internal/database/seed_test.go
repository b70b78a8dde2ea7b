package database

import (
	"testing"
)

func TestSeedIdempotent(t *testing.T) {
	db, err := Connect(testDSN())
	if err != nil {
		t.Skipf("skipping: DB not available: %v", err)
	}
	defer db.Close()

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	// Seed creates data only when no user exists. Other test packages may
	// share this database, so it is not cleared first.
	if err := Seed(db); err != nil {
		t.Fatalf("first Seed: %v", err)
	}
	if err := Seed(db); err != nil {
		t.Fatalf("second Seed: %v", err)
	}

	var userCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&userCount); err != nil {
		t.Fatalf("count users: %v", err)
	}
	if userCount < 1 {
		t.Errorf("expected at least 1 user, got %d", userCount)
	}

	var teachers int
	if err := db.QueryRow("SELECT COUNT(*) FROM users WHERE email = $1", SeedTeacherEmail).Scan(&teachers); err != nil {
		t.Fatalf("count seed teacher: %v", err)
	}
	if teachers > 1 {
		t.Errorf("seed teacher inserted %d times", teachers)
	}
}
