// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"edustream/internal/models"
)

func TestRoster(t *testing.T) {
	course := &models.Course{ID: uuid.New(), Title: "Go Basics"}
	enrolled := time.Date(2026, 2, 3, 10, 30, 0, 0, time.UTC)
	rows := []models.Enrollment{
		{StudentUsername: "alice", StudentEmail: "alice@test.local", CreatedAt: enrolled, Completed: true},
		{StudentUsername: "bob", StudentEmail: "bob@test.local", CreatedAt: enrolled},
	}

	var buf bytes.Buffer
	require.NoError(t, Roster(&buf, course, rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Roster"}, f.GetSheetList())
	got, err := f.GetRows("Roster")
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, "Go Basics", got[0][0])
	assert.Equal(t, "2 students", got[1][0])
	assert.Equal(t, []string{"Username", "Email", "Enrolled At", "Completed"}, got[2])
	assert.Equal(t, []string{"alice", "alice@test.local", "2026-02-03 10:30", "yes"}, got[3])
	assert.Equal(t, []string{"bob", "bob@test.local", "2026-02-03 10:30", "no"}, got[4])
}

func TestRosterEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Roster(&buf, &models.Course{Title: "Empty"}, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows("Roster")
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "0 students", got[1][0])
}
