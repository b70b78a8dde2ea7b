// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"errors"
	"testing"

	"edustream/internal/models"
)

func sp(s string) *string { return &s }

func TestContentStoreOrdering(t *testing.T) {
	db := testDB(t)
	fx := newFixture(t, db)
	s := NewContentStore(db)
	ctx := context.Background()

	// Equal display orders fall back to insertion order.
	titles := []struct {
		title string
		order int
	}{
		{"second-a", 1},
		{"first", 0},
		{"second-b", 1},
	}
	for _, tt := range titles {
		if _, err := s.Create(ctx, &models.CourseContent{
			CourseID: fx.course.ID, Title: tt.title, Kind: models.ContentKindQuiz, DisplayOrder: tt.order,
		}); err != nil {
			t.Fatalf("Create %s: %v", tt.title, err)
		}
	}

	items, err := s.ListByCourse(ctx, fx.course.ID)
	if err != nil {
		t.Fatalf("ListByCourse: %v", err)
	}
	want := []string{"first", "second-a", "second-b"}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, w := range want {
		if items[i].Title != w {
			t.Errorf("item %d: got %q, want %q", i, items[i].Title, w)
		}
	}
}

func TestContentStoreCreateValidates(t *testing.T) {
	db := testDB(t)
	fx := newFixture(t, db)

	_, err := NewContentStore(db).Create(context.Background(), &models.CourseContent{
		CourseID: fx.course.ID, Title: "Video", Kind: models.ContentKindVideo,
	})
	if !errors.Is(err, models.ErrInvalidContent) {
		t.Errorf("got %v, want ErrInvalidContent", err)
	}
}

func TestContentStoreApplyBatch(t *testing.T) {
	db := testDB(t)
	fx := newFixture(t, db)
	s := NewContentStore(db)
	ctx := context.Background()

	keep, err := s.Create(ctx, &models.CourseContent{
		CourseID: fx.course.ID, Title: "Slides", Kind: models.ContentKindFile,
		FileKey: sp("course-files/x/old.pdf"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	drop, err := s.Create(ctx, &models.CourseContent{
		CourseID: fx.course.ID, Title: "Drop", Kind: models.ContentKindQuiz,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	res, err := s.ApplyBatch(ctx, fx.course.ID, []models.ContentChange{
		{Content: models.CourseContent{Title: "New text", Kind: models.ContentKindText, TextBody: sp("hello"), DisplayOrder: 2}},
		{ID: &keep.ID, Content: models.CourseContent{Title: "Slides v2", Kind: models.ContentKindText, TextBody: sp("now text")}},
		{ID: &drop.ID, Delete: true},
	})
	if err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if res.Added != 1 || res.Updated != 1 || res.Deleted != 1 {
		t.Errorf("result: %+v", res)
	}
	if len(res.RemovedFileKeys) != 1 || res.RemovedFileKeys[0] != "course-files/x/old.pdf" {
		t.Errorf("removed keys: %v", res.RemovedFileKeys)
	}

	items, _ := s.ListByCourse(ctx, fx.course.ID)
	if len(items) != 2 {
		t.Fatalf("got %d items after batch, want 2", len(items))
	}
	if items[0].Title != "Slides v2" || items[0].FileKey != nil {
		t.Errorf("updated item: %+v", items[0])
	}
}

func TestContentStoreApplyBatchAtomic(t *testing.T) {
	db := testDB(t)
	fx := newFixture(t, db)
	other := newFixture(t, db)
	s := NewContentStore(db)
	ctx := context.Background()

	foreign, err := s.Create(ctx, &models.CourseContent{
		CourseID: other.course.ID, Title: "Foreign", Kind: models.ContentKindQuiz,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// The second change targets another course's item so the whole batch
	// must roll back.
	_, err = s.ApplyBatch(ctx, fx.course.ID, []models.ContentChange{
		{Content: models.CourseContent{Title: "Added", Kind: models.ContentKindQuiz}},
		{ID: &foreign.ID, Delete: true},
	})
	if err == nil {
		t.Fatal("expected error for foreign content id")
	}

	items, _ := s.ListByCourse(ctx, fx.course.ID)
	if len(items) != 0 {
		t.Errorf("expected rollback, got %d items", len(items))
	}
	still, _ := s.FindByID(ctx, foreign.ID)
	if still == nil {
		t.Error("foreign item must not be deleted")
	}
}

func TestContentStoreApplyBatchValidatesFirst(t *testing.T) {
	db := testDB(t)
	fx := newFixture(t, db)
	s := NewContentStore(db)

	_, err := s.ApplyBatch(context.Background(), fx.course.ID, []models.ContentChange{
		{Content: models.CourseContent{Title: "ok", Kind: models.ContentKindQuiz}},
		{Content: models.CourseContent{Title: "bad", Kind: models.ContentKindText}},
	})
	if !errors.Is(err, models.ErrInvalidContent) {
		t.Fatalf("got %v, want ErrInvalidContent", err)
	}
	items, _ := s.ListByCourse(context.Background(), fx.course.ID)
	if len(items) != 0 {
		t.Errorf("expected nothing written, got %d", len(items))
	}
}
