// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func strPtr(s string) *string { return &s }

// TestCourseContentValidate covers the kind/payload pairing rules.
func TestCourseContentValidate(t *testing.T) {
	tests := []struct {
		name    string
		content CourseContent
		wantErr bool
	}{
		{
			name:    "text with body",
			content: CourseContent{Title: "Intro", Kind: ContentKindText, TextBody: strPtr("Welcome")},
		},
		{
			name:    "text without body",
			content: CourseContent{Title: "Intro", Kind: ContentKindText},
			wantErr: true,
		},
		{
			name:    "text with blank body",
			content: CourseContent{Title: "Intro", Kind: ContentKindText, TextBody: strPtr("   ")},
			wantErr: true,
		},
		{
			name:    "video with url",
			content: CourseContent{Title: "Lecture", Kind: ContentKindVideo, VideoURL: strPtr("https://video.example.com/1")},
		},
		{
			name:    "video with body only",
			content: CourseContent{Title: "Lecture", Kind: ContentKindVideo, TextBody: strPtr("oops")},
			wantErr: true,
		},
		{
			name:    "file with key",
			content: CourseContent{Title: "Slides", Kind: ContentKindFile, FileKey: strPtr("course-files/x/slides.pdf")},
		},
		{
			name:    "file without key",
			content: CourseContent{Title: "Slides", Kind: ContentKindFile},
			wantErr: true,
		},
		{
			name:    "quiz needs no payload",
			content: CourseContent{Title: "Check", Kind: ContentKindQuiz},
		},
		{
			name:    "unknown kind",
			content: CourseContent{Title: "Odd", Kind: ContentKind("podcast")},
			wantErr: true,
		},
		{
			name:    "missing title",
			content: CourseContent{Kind: ContentKindQuiz},
			wantErr: true,
		},
		{
			name:    "negative order",
			content: CourseContent{Title: "Check", Kind: ContentKindQuiz, DisplayOrder: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.content.Validate()
			if tt.wantErr && !errors.Is(err, ErrInvalidContent) {
				t.Errorf("Validate() = %v, want ErrInvalidContent", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestContentChangeIsAddition(t *testing.T) {
	id := uuid.New()
	if !(ContentChange{}).IsAddition() {
		t.Error("change without ID should be an addition")
	}
	if (ContentChange{ID: &id}).IsAddition() {
		t.Error("change with ID is an update")
	}
	if (ContentChange{Delete: true}).IsAddition() {
		t.Error("delete is never an addition")
	}
}

func TestCourseHelpers(t *testing.T) {
	teacher := uuid.New()
	c := &Course{TeacherID: teacher, Price: decimal.Zero}
	if !c.IsFree() {
		t.Error("zero price should be free")
	}
	if !c.OwnedBy(teacher) || c.OwnedBy(uuid.New()) {
		t.Error("OwnedBy mismatch")
	}
	c.Price = decimal.RequireFromString("19.99")
	if c.IsFree() {
		t.Error("19.99 should not be free")
	}
}
