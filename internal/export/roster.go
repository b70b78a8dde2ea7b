// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package export renders teacher reports as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"edustream/internal/models"
)

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const rosterSheet = "Roster"

var rosterHeader = []any{"Username", "Email", "Enrolled At", "Completed"}

// Roster writes the enrolled students of a course as an .xlsx workbook.
func Roster(w io.Writer, course *models.Course, enrollments []models.Enrollment) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rosterSheet); err != nil {
		return fmt.Errorf("roster sheet: %w", err)
	}

	if err := f.SetCellValue(rosterSheet, "A1", course.Title); err != nil {
		return fmt.Errorf("roster title: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("roster style: %w", err)
	}
	if err := f.SetCellStyle(rosterSheet, "A1", "D3", bold); err != nil {
		return fmt.Errorf("roster style: %w", err)
	}
	if err := f.SetCellValue(rosterSheet, "A2", fmt.Sprintf("%d students", len(enrollments))); err != nil {
		return fmt.Errorf("roster count: %w", err)
	}
	if err := f.SetSheetRow(rosterSheet, "A3", &rosterHeader); err != nil {
		return fmt.Errorf("roster header: %w", err)
	}

	for i, e := range enrollments {
		cell, err := excelize.CoordinatesToCellName(1, i+4)
		if err != nil {
			return err
		}
		completed := "no"
		if e.Completed {
			completed = "yes"
		}
		row := []any{e.StudentUsername, e.StudentEmail, e.CreatedAt.UTC().Format("2006-01-02 15:04"), completed}
		if err := f.SetSheetRow(rosterSheet, cell, &row); err != nil {
			return fmt.Errorf("roster row %d: %w", i, err)
		}
	}

	if err := f.SetColWidth(rosterSheet, "A", "B", 32); err != nil {
		return fmt.Errorf("roster widths: %w", err)
	}
	if err := f.SetColWidth(rosterSheet, "C", "D", 18); err != nil {
		return fmt.Errorf("roster widths: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write roster: %w", err)
	}
	return nil
}
