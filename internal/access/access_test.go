// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edustream/internal/metrics"
	"edustream/internal/models"
)

type fakeCourses map[uuid.UUID]*models.Course

func (f fakeCourses) FindByID(_ context.Context, id uuid.UUID) (*models.Course, error) {
	return f[id], nil
}

type fakeContents []models.CourseContent

func (f fakeContents) ListByCourse(_ context.Context, courseID uuid.UUID) ([]models.CourseContent, error) {
	var out []models.CourseContent
	for _, c := range f {
		if c.CourseID == courseID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f fakeContents) FindByID(_ context.Context, id uuid.UUID) (*models.CourseContent, error) {
	for i := range f {
		if f[i].ID == id {
			return &f[i], nil
		}
	}
	return nil, nil
}

type fakeEnrollments map[[2]uuid.UUID]*models.Enrollment

func (f fakeEnrollments) Find(_ context.Context, s, c uuid.UUID) (*models.Enrollment, error) {
	return f[[2]uuid.UUID{s, c}], nil
}

type fakeSigner struct {
	keys []string
	err  error
}

func (s *fakeSigner) PresignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.keys = append(s.keys, key)
	return "https://s3.test/" + key + "?ttl=" + ttl.String(), nil
}

func strPtr(s string) *string { return &s }

type fixture struct {
	gate     *Gate
	signer   *fakeSigner
	student  uuid.UUID
	course   *models.Course
	other    *models.Course
	text     models.CourseContent
	file     models.CourseContent
	foreign  models.CourseContent
	enrolled fakeEnrollments
}

func newFixture() *fixture {
	student := uuid.New()
	course := &models.Course{ID: uuid.New(), Title: "Go"}
	other := &models.Course{ID: uuid.New(), Title: "Rust"}
	text := models.CourseContent{ID: uuid.New(), CourseID: course.ID, Title: "Intro", Kind: models.ContentKindText, TextBody: strPtr("hi")}
	file := models.CourseContent{ID: uuid.New(), CourseID: course.ID, Title: "Slides", Kind: models.ContentKindFile, FileKey: strPtr("course-files/a/slides.pdf"), DisplayOrder: 1}
	foreign := models.CourseContent{ID: uuid.New(), CourseID: other.ID, Title: "Other", Kind: models.ContentKindQuiz}

	enrolled := fakeEnrollments{
		{student, course.ID}: {ID: uuid.New(), StudentID: student, CourseID: course.ID},
	}
	signer := &fakeSigner{}
	return &fixture{
		gate:     NewGate(fakeCourses{course.ID: course, other.ID: other}, fakeContents{text, file, foreign}, enrolled, signer, 10*time.Minute),
		signer:   signer,
		student:  student,
		course:   course,
		other:    other,
		text:     text,
		file:     file,
		foreign:  foreign,
		enrolled: enrolled,
	}
}

func TestCourseAdmitsEnrolled(t *testing.T) {
	f := newFixture()
	view, err := f.gate.Course(context.Background(), f.student, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, f.course.ID, view.Course.ID)
	require.Len(t, view.Contents, 2)
	assert.Equal(t, "Intro", view.Contents[0].Title)
	assert.Equal(t, "Slides", view.Contents[1].Title)
	assert.NotNil(t, view.Enrollment)
}

func TestCourseDenied(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	before := testutil.ToFloat64(metrics.AccessDeniedTotal.WithLabelValues("not_enrolled"))

	_, err := f.gate.Course(ctx, uuid.New(), f.course.ID)
	assert.ErrorIs(t, err, ErrNotEnrolled)
	_, err = f.gate.Course(ctx, f.student, f.other.ID)
	assert.ErrorIs(t, err, ErrNotEnrolled)
	_, err = f.gate.Course(ctx, f.student, uuid.New())
	assert.ErrorIs(t, err, ErrCourseNotFound)

	after := testutil.ToFloat64(metrics.AccessDeniedTotal.WithLabelValues("not_enrolled"))
	assert.Equal(t, before+2, after)
}

func TestContentScopedToCourse(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	view, err := f.gate.Content(ctx, f.student, f.course.ID, f.text.ID)
	require.NoError(t, err)
	assert.Equal(t, "Intro", view.Content.Title)
	assert.Empty(t, view.DownloadURL)

	_, err = f.gate.Content(ctx, f.student, f.course.ID, f.foreign.ID)
	assert.ErrorIs(t, err, ErrContentNotFound)
	_, err = f.gate.Content(ctx, f.student, f.course.ID, uuid.New())
	assert.ErrorIs(t, err, ErrContentNotFound)
}

func TestContentRequiresEnrollmentBeforeLookup(t *testing.T) {
	f := newFixture()
	_, err := f.gate.Content(context.Background(), uuid.New(), f.course.ID, f.file.ID)
	assert.ErrorIs(t, err, ErrNotEnrolled)
	assert.Empty(t, f.signer.keys, "no URL may be signed for a denied student")
}

func TestContentSignsFiles(t *testing.T) {
	f := newFixture()
	view, err := f.gate.Content(context.Background(), f.student, f.course.ID, f.file.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.test/course-files/a/slides.pdf?ttl=10m0s", view.DownloadURL)
	assert.Equal(t, []string{"course-files/a/slides.pdf"}, f.signer.keys)
}

func TestContentFileErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.signer.err = errors.New("signing failed")
	_, err := f.gate.Content(ctx, f.student, f.course.ID, f.file.ID)
	assert.Error(t, err)

	gate := NewGate(fakeCourses{f.course.ID: f.course}, fakeContents{f.file}, f.enrolled, nil, 0)
	view, err := gate.Content(ctx, f.student, f.course.ID, f.file.ID)
	assert.ErrorIs(t, err, ErrFileNotAvailable)
	require.NotNil(t, view)
	assert.Equal(t, "Slides", view.Content.Title)
}
