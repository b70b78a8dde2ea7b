// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"edustream/internal/access"
	"edustream/internal/middleware"
	"edustream/internal/purchase"
	"edustream/internal/render"
	"edustream/internal/session"
	"edustream/internal/store"
)

const (
	studentDashboardPath = "/student/dashboard"
	studentCoursesPath   = "/student/courses"

	// maxWebhookBody caps provider notification payloads.
	maxWebhookBody = 1 << 20
)

const msgNotEnrolled = "You are not enrolled in this course or your enrollment could not be verified."

func coursePath(id uuid.UUID) string        { return fmt.Sprintf("%s/%s", studentCoursesPath, id) }
func courseContentPath(id uuid.UUID) string { return coursePath(id) + "/content" }

// Student groups the pages of a signed-in student: browsing, buying and
// taking courses.
type Student struct {
	responder
	courses     *store.CourseStore
	categories  *store.CategoryStore
	enrollments *store.EnrollmentStore
	purchases   *purchase.Orchestrator
	gate        *access.Gate
	baseURL     string
}

// NewStudent creates a new Student handler group. baseURL is the external
// site URL used for the payment provider's return and cancel links.
func NewStudent(renderer *render.Renderer, sessions *session.Store, courses *store.CourseStore, categories *store.CategoryStore, enrollments *store.EnrollmentStore, purchases *purchase.Orchestrator, gate *access.Gate, baseURL string) *Student {
	return &Student{
		responder:   responder{renderer: renderer, sessions: sessions},
		courses:     courses,
		categories:  categories,
		enrollments: enrollments,
		purchases:   purchases,
		gate:        gate,
		baseURL:     strings.TrimRight(baseURL, "/"),
	}
}

// Dashboard lists the student's enrollments, newest first.
func (s *Student) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	enrollments, err := s.enrollments.ListByStudent(r.Context(), sess.UserID)
	if err != nil {
		s.serverError(w, r, "list enrollments failed", err)
		return
	}

	s.page(w, r, "student_dashboard", &render.PageData{
		Title:   "My learning",
		Section: "dashboard",
		Data:    map[string]any{"Enrollments": enrollments},
	})
}

// searchParams reads the catalog query string. An unparseable category is
// ignored.
func searchParams(r *http.Request) (string, *uuid.UUID) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	var category *uuid.UUID
	if id, err := uuid.Parse(r.URL.Query().Get("category")); err == nil {
		category = &id
	}
	return query, category
}

// CourseList shows courses the student does not own yet, filtered by the
// search query and category.
func (s *Student) CourseList(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	query, category := searchParams(r)

	courses, err := s.courses.Search(r.Context(), store.CourseFilter{
		Query:          query,
		CategoryID:     category,
		ExcludeStudent: &sess.UserID,
	})
	if err != nil {
		s.serverError(w, r, "search courses failed", err)
		return
	}
	categories, err := s.categories.List(r.Context())
	if err != nil {
		slog.Error("list categories failed", "error", err)
	}

	s.page(w, r, "course_list", &render.PageData{
		Title:   "Browse courses",
		Section: "courses",
		Data: map[string]any{
			"Courses":      courses,
			"Categories":   categories,
			"Query":        query,
			"CategoryID":   category,
			"SearchAction": studentCoursesPath,
		},
	})
}

// CourseDetail shows one course and whether the student owns it.
func (s *Student) CourseDetail(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		s.notFound(w, r, "Course not found.")
		return
	}
	sess := middleware.SessionFromCtx(r.Context())

	detail, err := s.purchases.Detail(r.Context(), sess.UserID, courseID)
	if errors.Is(err, purchase.ErrCourseNotFound) {
		s.notFound(w, r, "Course not found.")
		return
	}
	if err != nil {
		s.serverError(w, r, "load course detail failed", err)
		return
	}

	s.page(w, r, "course_detail", &render.PageData{
		Title:   detail.Course.Title,
		Section: "courses",
		Data:    map[string]any{"Course": detail.Course, "IsEnrolled": detail.IsEnrolled},
	})
}

// PurchaseConfirm asks the student to confirm the purchase.
func (s *Student) PurchaseConfirm(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		s.notFound(w, r, "Course not found.")
		return
	}
	sess := middleware.SessionFromCtx(r.Context())

	detail, err := s.purchases.Detail(r.Context(), sess.UserID, courseID)
	if errors.Is(err, purchase.ErrCourseNotFound) {
		s.notFound(w, r, "Course not found.")
		return
	}
	if err != nil {
		s.serverError(w, r, "load course detail failed", err)
		return
	}
	if detail.IsEnrolled {
		s.redirect(w, r, courseContentPath(courseID), session.FlashInfo,
			fmt.Sprintf("You are already enrolled in %q.", detail.Course.Title))
		return
	}

	s.page(w, r, "purchase_confirm", &render.PageData{
		Title:   "Enroll in " + detail.Course.Title,
		Section: "courses",
		Data: map[string]any{
			"Course":         detail.Course,
			"GatewayEnabled": s.purchases.GatewayEnabled(),
		},
	})
}

// Purchase runs the purchase chosen on the confirm page: "simulate"
// enrolls at once, "paypal" starts a gateway checkout.
func (s *Student) Purchase(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		s.notFound(w, r, "Course not found.")
		return
	}

	switch r.FormValue("action") {
	case "paypal":
		s.beginCheckout(w, r, courseID)
	case "simulate", "":
		s.simulate(w, r, courseID)
	default:
		s.redirect(w, r, coursePath(courseID), session.FlashError, "Unknown purchase option.")
	}
}

func (s *Student) simulate(w http.ResponseWriter, r *http.Request, courseID uuid.UUID) {
	sess := middleware.SessionFromCtx(r.Context())

	res, err := s.purchases.Simulate(r.Context(), sess.UserID, courseID)
	switch {
	case errors.Is(err, purchase.ErrCourseNotFound):
		s.notFound(w, r, "Course not found.")
	case errors.Is(err, purchase.ErrAlreadyEnrolled):
		s.redirect(w, r, courseContentPath(courseID), session.FlashInfo, alreadyEnrolledMsg(res))
	case err != nil:
		s.serverError(w, r, "simulated purchase failed", err)
	default:
		s.redirect(w, r, courseContentPath(courseID), session.FlashSuccess,
			fmt.Sprintf("Congratulations! You have successfully purchased %q.", res.Course.Title))
	}
}

func alreadyEnrolledMsg(res *purchase.Result) string {
	if res == nil || res.Course == nil {
		return "You are already enrolled in this course."
	}
	return fmt.Sprintf("You are already enrolled in %q.", res.Course.Title)
}

func (s *Student) beginCheckout(w http.ResponseWriter, r *http.Request, courseID uuid.UUID) {
	sess := middleware.SessionFromCtx(r.Context())

	checkout, err := s.purchases.Begin(r.Context(), sess.UserID, courseID,
		s.baseURL+"/student/paypal/return", s.baseURL+"/student/paypal/cancel")
	switch {
	case errors.Is(err, purchase.ErrCourseNotFound):
		s.notFound(w, r, "Course not found.")
		return
	case errors.Is(err, purchase.ErrAlreadyEnrolled):
		s.redirect(w, r, courseContentPath(courseID), session.FlashInfo, "You are already enrolled in this course.")
		return
	case errors.Is(err, purchase.ErrFreeCourse):
		s.redirect(w, r, coursePath(courseID)+"/purchase", session.FlashInfo, "This course is free. Enroll without payment.")
		return
	case errors.Is(err, purchase.ErrPaymentGateway):
		s.redirect(w, r, coursePath(courseID), session.FlashError, "Could not start the PayPal payment. Please try again later.")
		return
	case err != nil:
		s.serverError(w, r, "begin checkout failed", err)
		return
	}

	sess.PendingPurchase = checkout.Pending
	s.save(w, r, sess)
	http.Redirect(w, r, checkout.ApprovalURL, http.StatusSeeOther)
}

// PayPalReturn completes the checkout recorded in the session. Query
// parameters from the provider are not trusted.
func (s *Student) PayPalReturn(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	pending := sess.PendingPurchase
	sess.PendingPurchase = nil

	res, err := s.purchases.Complete(r.Context(), sess.UserID, pending)
	var notCompleted *purchase.NotCompletedError
	switch {
	case errors.Is(err, purchase.ErrPurchaseSessionExpired):
		s.redirectWith(w, r, sess, studentDashboardPath, session.FlashError, "Payment session expired or invalid.")
	case errors.Is(err, purchase.ErrCourseNotFound):
		s.redirectWith(w, r, sess, studentCoursesPath, session.FlashError, "The course no longer exists.")
	case errors.Is(err, purchase.ErrAlreadyEnrolled):
		s.redirectWith(w, r, sess, courseContentPath(pending.CourseID), session.FlashInfo, alreadyEnrolledMsg(res))
	case errors.As(err, &notCompleted):
		s.redirectWith(w, r, sess, coursePath(pending.CourseID), session.FlashError,
			fmt.Sprintf("PayPal payment not completed. Status: %s.", notCompleted.Status))
	case errors.Is(err, purchase.ErrPaymentGateway):
		s.redirectWith(w, r, sess, coursePath(pending.CourseID), session.FlashError,
			"Could not confirm the PayPal payment. You have not been charged twice; please try again.")
	case err != nil:
		s.save(w, r, sess)
		s.serverError(w, r, "complete checkout failed", err)
	default:
		s.redirectWith(w, r, sess, courseContentPath(res.Course.ID), session.FlashSuccess,
			fmt.Sprintf("Course '%s' purchased successfully via PayPal!", res.Course.Title))
	}
}

// PayPalCancel drops the pending checkout. Nothing is enrolled.
func (s *Student) PayPalCancel(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	if sess.PendingPurchase != nil {
		slog.Info("checkout cancelled", "order_id", sess.PendingPurchase.OrderID, "student_id", sess.UserID)
	}
	sess.PendingPurchase = nil
	s.redirectWith(w, r, sess, studentCoursesPath, session.FlashInfo, "PayPal payment was cancelled.")
}

// PayPalWebhook acknowledges provider notifications. They are recorded but
// never change enrollments.
func (s *Student) PayPalWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}
	if _, err := s.purchases.Webhook(r.Context(), body); err != nil {
		slog.Warn("invalid webhook payload", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// CourseContent lists the lessons of an owned course.
func (s *Student) CourseContent(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		s.notFound(w, r, "Course not found.")
		return
	}
	sess := middleware.SessionFromCtx(r.Context())

	view, err := s.gate.Course(r.Context(), sess.UserID, courseID)
	switch {
	case errors.Is(err, access.ErrCourseNotFound):
		s.notFound(w, r, "Course not found.")
		return
	case errors.Is(err, access.ErrNotEnrolled):
		s.redirect(w, r, coursePath(courseID), session.FlashWarning, msgNotEnrolled)
		return
	case err != nil:
		s.serverError(w, r, "load course content failed", err)
		return
	}

	s.page(w, r, "course_content", &render.PageData{
		Title:   view.Course.Title,
		Section: "dashboard",
		Data: map[string]any{
			"Course":     view.Course,
			"Enrollment": view.Enrollment,
			"Contents":   view.Contents,
		},
	})
}

// ContentDetail shows one lesson of an owned course. File lessons get a
// short-lived download link.
func (s *Student) ContentDetail(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		s.notFound(w, r, "Course not found.")
		return
	}
	contentID, ok := urlID(r, "contentID")
	if !ok {
		s.notFound(w, r, "Content not found.")
		return
	}
	sess := middleware.SessionFromCtx(r.Context())

	view, err := s.gate.Content(r.Context(), sess.UserID, courseID, contentID)
	switch {
	case errors.Is(err, access.ErrCourseNotFound):
		s.notFound(w, r, "Course not found.")
		return
	case errors.Is(err, access.ErrNotEnrolled):
		s.redirect(w, r, coursePath(courseID), session.FlashWarning, msgNotEnrolled)
		return
	case errors.Is(err, access.ErrContentNotFound):
		s.notFound(w, r, "Content not found.")
		return
	case errors.Is(err, access.ErrFileNotAvailable):
		slog.Warn("file storage not configured", "content_id", contentID)
	case err != nil:
		s.serverError(w, r, "load content failed", err)
		return
	}

	s.page(w, r, "content_detail", &render.PageData{
		Title:   view.Content.Title,
		Section: "dashboard",
		Data: map[string]any{
			"Course":      view.Course,
			"Content":     view.Content,
			"DownloadURL": view.DownloadURL,
		},
	})
}

// Complete flags an owned course as completed.
func (s *Student) Complete(w http.ResponseWriter, r *http.Request) {
	courseID, ok := urlID(r, "courseID")
	if !ok {
		s.notFound(w, r, "Course not found.")
		return
	}
	sess := middleware.SessionFromCtx(r.Context())

	marked, err := s.enrollments.MarkCompleted(r.Context(), sess.UserID, courseID)
	if err != nil {
		s.serverError(w, r, "mark completed failed", err)
		return
	}
	if !marked {
		s.redirect(w, r, coursePath(courseID), session.FlashWarning, msgNotEnrolled)
		return
	}
	s.redirect(w, r, courseContentPath(courseID), session.FlashSuccess, "Course marked as completed. Well done!")
}
