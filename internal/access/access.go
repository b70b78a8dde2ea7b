// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package access decides whether a student may see a course's content.
// The decision is made on every request from the enrollment ledger; no
// grant is cached in the session.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"edustream/internal/metrics"
	"edustream/internal/models"
)

var (
	ErrCourseNotFound   = models.ErrCourseNotFound
	ErrNotEnrolled      = errors.New("not enrolled in course")
	ErrContentNotFound  = errors.New("content not found")
	ErrFileNotAvailable = errors.New("file downloads are not available")
)

// CourseFinder loads courses. Returns nil, nil when missing.
type CourseFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

// ContentReader loads course content.
type ContentReader interface {
	ListByCourse(ctx context.Context, courseID uuid.UUID) ([]models.CourseContent, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.CourseContent, error)
}

// EnrollmentFinder looks up a single enrollment. Returns nil, nil when the
// student does not own the course.
type EnrollmentFinder interface {
	Find(ctx context.Context, studentID, courseID uuid.UUID) (*models.Enrollment, error)
}

// URLSigner issues short-lived download links for stored files.
type URLSigner interface {
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Gate guards course content.
type Gate struct {
	courses     CourseFinder
	contents    ContentReader
	enrollments EnrollmentFinder
	signer      URLSigner
	urlTTL      time.Duration
}

// NewGate creates a gate. signer may be nil when object storage is not
// configured; file items then cannot be downloaded.
func NewGate(courses CourseFinder, contents ContentReader, enrollments EnrollmentFinder, signer URLSigner, urlTTL time.Duration) *Gate {
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &Gate{
		courses:     courses,
		contents:    contents,
		enrollments: enrollments,
		signer:      signer,
		urlTTL:      urlTTL,
	}
}

// CourseView is an admitted student's view of a course.
type CourseView struct {
	Course     *models.Course
	Enrollment *models.Enrollment
	Contents   []models.CourseContent
}

// ContentView is one admitted content item. DownloadURL is set for file
// items only.
type ContentView struct {
	Course      *models.Course
	Content     *models.CourseContent
	DownloadURL string
}

// Course returns the course with its contents in display order.
func (g *Gate) Course(ctx context.Context, studentID, courseID uuid.UUID) (*CourseView, error) {
	course, enrollment, err := g.admit(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	contents, err := g.contents.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("access course: %w", err)
	}
	return &CourseView{Course: course, Enrollment: enrollment, Contents: contents}, nil
}

// Content returns one item of the course. An item that exists but belongs
// to another course is reported as not found.
func (g *Gate) Content(ctx context.Context, studentID, courseID, contentID uuid.UUID) (*ContentView, error) {
	course, _, err := g.admit(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	item, err := g.contents.FindByID(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("access content: %w", err)
	}
	if item == nil || item.CourseID != courseID {
		g.deny("content_not_found", studentID, courseID)
		return nil, ErrContentNotFound
	}

	view := &ContentView{Course: course, Content: item}
	if item.Kind == models.ContentKindFile && item.FileKey != nil {
		if g.signer == nil {
			return view, ErrFileNotAvailable
		}
		url, err := g.signer.PresignedURL(ctx, *item.FileKey, g.urlTTL)
		if err != nil {
			return nil, fmt.Errorf("access content: %w", err)
		}
		view.DownloadURL = url
	}
	return view, nil
}

func (g *Gate) admit(ctx context.Context, studentID, courseID uuid.UUID) (*models.Course, *models.Enrollment, error) {
	course, err := g.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, nil, fmt.Errorf("access: load course: %w", err)
	}
	if course == nil {
		g.deny("course_not_found", studentID, courseID)
		return nil, nil, ErrCourseNotFound
	}
	enrollment, err := g.enrollments.Find(ctx, studentID, courseID)
	if err != nil {
		return nil, nil, fmt.Errorf("access: load enrollment: %w", err)
	}
	if enrollment == nil {
		g.deny("not_enrolled", studentID, courseID)
		return nil, nil, ErrNotEnrolled
	}
	return course, enrollment, nil
}

func (g *Gate) deny(reason string, studentID, courseID uuid.UUID) {
	metrics.AccessDeniedTotal.WithLabelValues(reason).Inc()
	slog.Warn("access denied", "reason", reason, "student_id", studentID, "course_id", courseID)
}
