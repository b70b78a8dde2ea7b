// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package purchase turns a student's intent to buy a course into exactly
// one enrollment. Two paths exist: a simulated purchase that enrolls
// directly, and a gateway checkout that enrolls after a completed capture.
// Every path checks the ledger first and writes through its idempotent
// create, so retries and duplicate callbacks never double-enroll.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"edustream/internal/metrics"
	"edustream/internal/models"
	"edustream/internal/payment"
)

// Sentinel errors. Handlers map each to a flash message and redirect.
var (
	ErrCourseNotFound         = models.ErrCourseNotFound
	ErrAlreadyEnrolled        = errors.New("already enrolled")
	ErrPurchaseSessionExpired = errors.New("purchase session expired or invalid")
	ErrPaymentGateway         = errors.New("payment gateway error")
	ErrFreeCourse             = errors.New("free courses cannot be paid through the gateway")
)

// NotCompletedError reports a capture that went through but did not end in
// a completed payment. It matches ErrPaymentGateway with errors.Is.
type NotCompletedError struct {
	Status string
}

func (e *NotCompletedError) Error() string {
	return fmt.Sprintf("%v: payment not completed (status %s)", ErrPaymentGateway, e.Status)
}

func (e *NotCompletedError) Unwrap() error { return ErrPaymentGateway }

// MaxPendingAge bounds how long a started checkout may be completed.
const MaxPendingAge = 3 * time.Hour

// CourseFinder loads courses. Returns nil, nil when missing.
type CourseFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

// Ledger records enrollments. Create must be safe to call repeatedly for
// the same pair.
type Ledger interface {
	Exists(ctx context.Context, studentID, courseID uuid.UUID) (bool, error)
	Create(ctx context.Context, studentID, courseID uuid.UUID) (*models.Enrollment, bool, error)
}

// Orchestrator drives both purchase paths.
type Orchestrator struct {
	courses  CourseFinder
	ledger   Ledger
	gateway  payment.Gateway
	currency string
	now      func() time.Time
}

// NewOrchestrator creates an orchestrator. gateway may be nil when no
// payment provider is configured; only the simulated path then works.
func NewOrchestrator(courses CourseFinder, ledger Ledger, gateway payment.Gateway, currency string) *Orchestrator {
	if currency == "" {
		currency = "USD"
	}
	return &Orchestrator{
		courses:  courses,
		ledger:   ledger,
		gateway:  gateway,
		currency: currency,
		now:      time.Now,
	}
}

// GatewayEnabled reports whether gateway checkout is available.
func (o *Orchestrator) GatewayEnabled() bool {
	return o.gateway != nil
}

// Detail is what the course page shows a student.
type Detail struct {
	Course     *models.Course
	IsEnrolled bool
}

// Result is the outcome of a purchase that ended in an enrollment.
type Result struct {
	Course     *models.Course
	Enrollment *models.Enrollment
	// Created is false when a concurrent attempt enrolled first.
	Created bool
}

// Checkout is a started gateway purchase. The caller stores Pending in the
// session and redirects the browser to ApprovalURL.
type Checkout struct {
	Course      *models.Course
	Pending     *models.PendingPurchase
	ApprovalURL string
}

// Detail returns the course and whether the student already owns it.
func (o *Orchestrator) Detail(ctx context.Context, studentID, courseID uuid.UUID) (*Detail, error) {
	course, err := o.course(ctx, courseID)
	if err != nil {
		return nil, err
	}
	enrolled, err := o.ledger.Exists(ctx, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("purchase detail: %w", err)
	}
	return &Detail{Course: course, IsEnrolled: enrolled}, nil
}

// Simulate enrolls the student without payment. When the student already
// owns the course the error is ErrAlreadyEnrolled and the result still
// carries the course.
func (o *Orchestrator) Simulate(ctx context.Context, studentID, courseID uuid.UUID) (*Result, error) {
	course, err := o.guard(ctx, studentID, courseID)
	if errors.Is(err, ErrAlreadyEnrolled) {
		return &Result{Course: course}, err
	}
	if err != nil {
		return nil, err
	}
	return o.enroll(ctx, studentID, course, "simulated")
}

// Begin creates a gateway order for the course price and returns where to
// send the buyer.
func (o *Orchestrator) Begin(ctx context.Context, studentID, courseID uuid.UUID, returnURL, cancelURL string) (*Checkout, error) {
	if o.gateway == nil {
		return nil, fmt.Errorf("%w: no payment provider configured", ErrPaymentGateway)
	}
	course, err := o.guard(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if course.IsFree() {
		return nil, ErrFreeCourse
	}

	order, err := o.gateway.CreateOrder(ctx, payment.OrderRequest{
		Amount:      course.Price,
		Currency:    o.currency,
		Description: "Course: " + course.Title,
		ReturnURL:   returnURL,
		CancelURL:   cancelURL,
	})
	if err != nil {
		slog.Error("gateway create order failed", "course_id", courseID, "student_id", studentID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	slog.Info("checkout started", "order_id", order.ID, "course_id", courseID, "student_id", studentID)
	return &Checkout{
		Course: course,
		Pending: &models.PendingPurchase{
			OrderID:   order.ID,
			CourseID:  course.ID,
			StudentID: studentID,
			CreatedAt: o.now().UTC(),
		},
		ApprovalURL: order.ApprovalURL,
	}, nil
}

// Complete captures the order recorded in pending and enrolls the student
// when the capture reports completion. Only the session's pending record
// is trusted; identifiers on the return URL are ignored. The caller clears
// the pending record whatever the outcome.
func (o *Orchestrator) Complete(ctx context.Context, studentID uuid.UUID, pending *models.PendingPurchase) (*Result, error) {
	if pending == nil || pending.OrderID == "" || pending.StudentID != studentID {
		return nil, ErrPurchaseSessionExpired
	}
	if !pending.CreatedAt.IsZero() && o.now().Sub(pending.CreatedAt) > MaxPendingAge {
		return nil, ErrPurchaseSessionExpired
	}
	if o.gateway == nil {
		return nil, fmt.Errorf("%w: no payment provider configured", ErrPaymentGateway)
	}

	// Already owning the course means a second capture would charge twice.
	course, err := o.guard(ctx, studentID, pending.CourseID)
	if errors.Is(err, ErrAlreadyEnrolled) {
		return &Result{Course: course}, err
	}
	if err != nil {
		return nil, err
	}

	capture, err := o.gateway.CaptureOrder(ctx, pending.OrderID)
	if err != nil {
		slog.Error("gateway capture failed", "order_id", pending.OrderID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	if !capture.Completed() {
		slog.Warn("gateway capture not completed", "order_id", pending.OrderID, "status", capture.Status)
		return nil, &NotCompletedError{Status: capture.Status}
	}

	return o.enroll(ctx, studentID, course, "gateway")
}

// Webhook records a provider notification. It never grants access; the
// synchronous capture in Complete is authoritative.
func (o *Orchestrator) Webhook(_ context.Context, body []byte) (*payment.WebhookEvent, error) {
	ev, err := payment.ParseWebhook(body)
	if err != nil {
		return nil, err
	}
	metrics.WebhookEventsTotal.WithLabelValues(ev.Kind()).Inc()
	slog.Info("payment webhook received",
		"event_id", ev.ID,
		"event_type", ev.EventType,
		"order_id", ev.Resource.ID,
		"status", ev.Resource.Status,
	)
	return ev, nil
}

func (o *Orchestrator) course(ctx context.Context, courseID uuid.UUID) (*models.Course, error) {
	course, err := o.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if course == nil {
		return nil, ErrCourseNotFound
	}
	return course, nil
}

// guard loads the course and refuses to proceed when the student already
// owns it.
func (o *Orchestrator) guard(ctx context.Context, studentID, courseID uuid.UUID) (*models.Course, error) {
	course, err := o.course(ctx, courseID)
	if err != nil {
		return nil, err
	}
	enrolled, err := o.ledger.Exists(ctx, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("check enrollment: %w", err)
	}
	if enrolled {
		return course, ErrAlreadyEnrolled
	}
	return course, nil
}

func (o *Orchestrator) enroll(ctx context.Context, studentID uuid.UUID, course *models.Course, path string) (*Result, error) {
	enrollment, created, err := o.ledger.Create(ctx, studentID, course.ID)
	if err != nil {
		return nil, fmt.Errorf("enroll: %w", err)
	}
	if created {
		metrics.EnrollmentsTotal.WithLabelValues(path).Inc()
		slog.Info("student enrolled", "student_id", studentID, "course_id", course.ID, "path", path)
	}
	return &Result{Course: course, Enrollment: enrollment, Created: created}, nil
}
