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

// ContentStore handles the ordered content items of a course.
type ContentStore struct {
	db *sql.DB
}

// NewContentStore creates a new ContentStore with the given database connection.
func NewContentStore(db *sql.DB) *ContentStore {
	return &ContentStore{db: db}
}

const contentColumns = `id, course_id, title, kind, text_body, video_url, file_key, display_order, created_at`

func scanContent(scanner interface{ Scan(...any) error }) (*models.CourseContent, error) {
	c := &models.CourseContent{}
	err := scanner.Scan(
		&c.ID, &c.CourseID, &c.Title, &c.Kind, &c.TextBody, &c.VideoURL,
		&c.FileKey, &c.DisplayOrder, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListByCourse returns a course's content in display order. Equal orders
// keep insertion order.
func (s *ContentStore) ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.CourseContent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contentColumns+`
		FROM course_contents
		WHERE course_id = $1
		ORDER BY display_order, created_at, id
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list content by course: %w", err)
	}
	defer rows.Close()

	var items []models.CourseContent
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// FindByID retrieves a content item by its UUID. Returns nil if not found.
func (s *ContentStore) FindByID(ctx context.Context, id uuid.UUID) (*models.CourseContent, error) {
	c, err := scanContent(s.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM course_contents WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find content by id: %w", err)
	}
	return c, nil
}

// Create inserts a single content item after validating its payload.
func (s *ContentStore) Create(ctx context.Context, c *models.CourseContent) (*models.CourseContent, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	created, err := scanContent(s.db.QueryRowContext(ctx, insertContentSQL,
		c.CourseID, c.Title, c.Kind, c.TextBody, c.VideoURL, c.FileKey, c.DisplayOrder))
	if err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}
	return created, nil
}

const insertContentSQL = `
	INSERT INTO course_contents (course_id, title, kind, text_body, video_url, file_key, display_order)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING ` + contentColumns

// BatchResult summarizes an applied batch.
type BatchResult struct {
	Added   int
	Updated int
	Deleted int
	// RemovedFileKeys lists storage keys no longer referenced after the
	// batch, so the caller can delete the objects.
	RemovedFileKeys []string
}

// ApplyBatch applies additions, updates and deletions to one course's
// content in a single transaction. Every change is validated first; items
// that belong to another course are rejected and nothing is written.
func (s *ContentStore) ApplyBatch(ctx context.Context, courseID uuid.UUID, changes []models.ContentChange) (*BatchResult, error) {
	for i := range changes {
		if changes[i].Delete {
			if changes[i].ID == nil {
				return nil, fmt.Errorf("%w: delete requires an id", models.ErrInvalidContent)
			}
			continue
		}
		if err := changes[i].Content.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin content batch: %w", err)
	}
	defer tx.Rollback()

	res := &BatchResult{}
	for _, ch := range changes {
		switch {
		case ch.Delete:
			var key sql.NullString
			err := tx.QueryRowContext(ctx, `
				DELETE FROM course_contents WHERE id = $1 AND course_id = $2 RETURNING file_key
			`, *ch.ID, courseID).Scan(&key)
			if err == sql.ErrNoRows {
				return nil, fmt.Errorf("delete content %s: %w", *ch.ID, sql.ErrNoRows)
			}
			if err != nil {
				return nil, fmt.Errorf("delete content: %w", err)
			}
			if key.Valid {
				res.RemovedFileKeys = append(res.RemovedFileKeys, key.String)
			}
			res.Deleted++

		case ch.IsAddition():
			c := ch.Content
			if _, err := tx.ExecContext(ctx, insertContentSQL,
				courseID, c.Title, c.Kind, c.TextBody, c.VideoURL, c.FileKey, c.DisplayOrder); err != nil {
				return nil, fmt.Errorf("insert content: %w", err)
			}
			res.Added++

		default:
			c := ch.Content
			var oldKey sql.NullString
			err := tx.QueryRowContext(ctx, `
				SELECT file_key FROM course_contents WHERE id = $1 AND course_id = $2 FOR UPDATE
			`, *ch.ID, courseID).Scan(&oldKey)
			if err == sql.ErrNoRows {
				return nil, fmt.Errorf("update content %s: %w", *ch.ID, sql.ErrNoRows)
			}
			if err != nil {
				return nil, fmt.Errorf("lock content: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE course_contents
				SET title = $1, kind = $2, text_body = $3, video_url = $4, file_key = $5, display_order = $6
				WHERE id = $7
			`, c.Title, c.Kind, c.TextBody, c.VideoURL, c.FileKey, c.DisplayOrder, *ch.ID); err != nil {
				return nil, fmt.Errorf("update content: %w", err)
			}
			if oldKey.Valid && (c.FileKey == nil || *c.FileKey != oldKey.String) {
				res.RemovedFileKeys = append(res.RemovedFileKeys, oldKey.String)
			}
			res.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit content batch: %w", err)
	}
	return res, nil
}
