// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidContent wraps every payload validation failure.
var ErrInvalidContent = errors.New("invalid course content")

// ContentKind distinguishes the lesson formats a course can hold.
type ContentKind string

const (
	ContentKindText  ContentKind = "text"
	ContentKindVideo ContentKind = "video"
	ContentKindFile  ContentKind = "file"
	ContentKindQuiz  ContentKind = "quiz"
)

// ContentKinds lists the kinds in display order for form selects.
var ContentKinds = []ContentKind{ContentKindText, ContentKindVideo, ContentKindFile, ContentKindQuiz}

// Label returns the human-readable name of the kind.
func (k ContentKind) Label() string {
	switch k {
	case ContentKindText:
		return "Text Lesson"
	case ContentKindVideo:
		return "Video Link"
	case ContentKindFile:
		return "Downloadable File"
	case ContentKindQuiz:
		return "Quiz"
	}
	return string(k)
}

// CourseContent is one ordered item inside a course.
type CourseContent struct {
	ID           uuid.UUID   `json:"id"`
	CourseID     uuid.UUID   `json:"course_id"`
	Title        string      `json:"title"`
	Kind         ContentKind `json:"kind"`
	TextBody     *string     `json:"text_body,omitempty"`
	VideoURL     *string     `json:"video_url,omitempty"`
	FileKey      *string     `json:"file_key,omitempty"`
	DisplayOrder int         `json:"display_order"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Validate checks that the payload matching the declared kind is present.
func (c *CourseContent) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidContent)
	}
	if c.DisplayOrder < 0 {
		return fmt.Errorf("%w: display order must not be negative", ErrInvalidContent)
	}

	switch c.Kind {
	case ContentKindText:
		if blank(c.TextBody) {
			return fmt.Errorf("%w: text content is required for text lessons", ErrInvalidContent)
		}
	case ContentKindVideo:
		if blank(c.VideoURL) {
			return fmt.Errorf("%w: video URL is required for video lessons", ErrInvalidContent)
		}
	case ContentKindFile:
		if blank(c.FileKey) {
			return fmt.Errorf("%w: a file is required for downloadable content", ErrInvalidContent)
		}
	case ContentKindQuiz:
		// Quiz items carry no payload yet.
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidContent, c.Kind)
	}
	return nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// ContentChange is one row of a batch content edit. A nil ID inserts a new
// item; Delete removes the item with the given ID.
type ContentChange struct {
	ID      *uuid.UUID
	Delete  bool
	Content CourseContent
}

// IsAddition returns true if the change creates a new content item.
func (c ContentChange) IsAddition() bool {
	return c.ID == nil && !c.Delete
}
