// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/google/uuid"

	"edustream/internal/cache"
	"edustream/internal/export"
	"edustream/internal/middleware"
	"edustream/internal/models"
	"edustream/internal/notify"
	"edustream/internal/render"
	"edustream/internal/session"
	"edustream/internal/slug"
	"edustream/internal/storage"
	"edustream/internal/store"
	"edustream/internal/validate"
)

const (
	teacherDashboardPath = "/teacher/dashboard"
	maxCategoryName      = 100
)

// Teacher groups the course authoring pages. Every course route checks
// that the signed-in teacher owns the course.
type Teacher struct {
	responder
	courses     *store.CourseStore
	categories  *store.CategoryStore
	contents    *store.ContentStore
	enrollments *store.EnrollmentStore
	files       FileStore
	queue       *notify.Queue
	pageCache   *cache.PageCache
	validator   *validate.Validator
	maxUpload   int64
}

// NewTeacher creates a new Teacher handler group. files may be nil when
// object storage is not configured; file lessons are then rejected.
func NewTeacher(renderer *render.Renderer, sessions *session.Store, courses *store.CourseStore, categories *store.CategoryStore, contents *store.ContentStore, enrollments *store.EnrollmentStore, files FileStore, queue *notify.Queue, pageCache *cache.PageCache, v *validate.Validator, maxUpload int64) *Teacher {
	if maxUpload <= 0 {
		maxUpload = 50 << 20
	}
	return &Teacher{
		responder:   responder{renderer: renderer, sessions: sessions},
		courses:     courses,
		categories:  categories,
		contents:    contents,
		enrollments: enrollments,
		files:       files,
		queue:       queue,
		pageCache:   pageCache,
		validator:   v,
		maxUpload:   maxUpload,
	}
}

// Dashboard lists the teacher's courses, newest first.
func (t *Teacher) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	courses, err := t.courses.ListByTeacher(r.Context(), sess.UserID)
	if err != nil {
		t.serverError(w, r, "list teacher courses failed", err)
		return
	}

	t.page(w, r, "teacher_dashboard", &render.PageData{
		Title:   "My courses",
		Section: "dashboard",
		Data:    map[string]any{"Courses": courses},
	})
}

// ownedCourse loads the {courseID} course and renders 404 unless the
// signed-in teacher owns it.
func (t *Teacher) ownedCourse(w http.ResponseWriter, r *http.Request) (*models.Course, bool) {
	id, ok := urlID(r, "courseID")
	if !ok {
		t.notFound(w, r, "Course not found.")
		return nil, false
	}
	course, err := t.courses.FindByID(r.Context(), id)
	if err != nil {
		t.serverError(w, r, "load course failed", err)
		return nil, false
	}
	sess := middleware.SessionFromCtx(r.Context())
	if course == nil || !course.OwnedBy(sess.UserID) {
		t.notFound(w, r, "Course not found.")
		return nil, false
	}
	return course, true
}

// --- Course CRUD ---

func (t *Teacher) courseForm(w http.ResponseWriter, r *http.Request, status int, title, action string, form validate.Course, errMsg string) {
	categories, err := t.categories.List(r.Context())
	if err != nil {
		slog.Error("list categories failed", "error", err)
	}
	section := ""
	if action == "/teacher/courses/new" {
		section = "new-course"
	}

	t.pageStatus(w, r, status, "course_form", &render.PageData{
		Title:   title,
		Section: section,
		Data: map[string]any{
			"Form":       form,
			"Categories": categories,
			"Action":     action,
			"Error":      errMsg,
		},
	})
}

func courseFormFromRequest(r *http.Request) validate.Course {
	return validate.Course{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Price:       r.FormValue("price"),
		CategoryID:  r.FormValue("category"),
	}
}

// applyCourseForm validates form and copies it onto c. It returns a user
// facing message when the form is rejected.
func (t *Teacher) applyCourseForm(ctx context.Context, form validate.Course, c *models.Course) (string, error) {
	if msg := t.validator.Check(form); msg != "" {
		return msg, nil
	}
	title, _ := validate.Title(form.Title)
	price, err := validate.ParsePrice(form.Price)
	if err != nil {
		return "Enter a valid price with at most two decimals.", nil
	}

	var categoryID *uuid.UUID
	if form.CategoryID != "" {
		id := uuid.MustParse(form.CategoryID) // validated by the uuid rule
		cat, err := t.categories.FindByID(ctx, id)
		if err != nil {
			return "", err
		}
		if cat == nil {
			return "Select a valid category.", nil
		}
		categoryID = &cat.ID
	}

	c.Title = title
	c.Description = form.Description
	c.Price = price
	c.CategoryID = categoryID
	return "", nil
}

// NewCoursePage renders an empty course form.
func (t *Teacher) NewCoursePage(w http.ResponseWriter, r *http.Request) {
	t.courseForm(w, r, http.StatusOK, "New course", "/teacher/courses/new", validate.Course{Price: "0.00"}, "")
}

// CreateCourse stores a new course and announces it to the teacher's
// students.
func (t *Teacher) CreateCourse(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromCtx(r.Context())
	form := courseFormFromRequest(r)

	course := &models.Course{TeacherID: sess.UserID}
	msg, err := t.applyCourseForm(r.Context(), form, course)
	if err != nil {
		t.serverError(w, r, "validate course failed", err)
		return
	}
	if msg != "" {
		t.courseForm(w, r, http.StatusUnprocessableEntity, "New course", "/teacher/courses/new", form, msg)
		return
	}

	created, err := t.courses.Create(r.Context(), course)
	if err != nil {
		t.serverError(w, r, "create course failed", err)
		return
	}
	t.pageCache.InvalidateAll(r.Context())

	if err := t.queue.PublishCourseCreated(r.Context(), notify.CourseCreated{
		CourseID:        created.ID,
		TeacherID:       sess.UserID,
		TeacherUsername: sess.Username,
		Title:           created.Title,
		Description:     created.Description,
	}); err != nil {
		slog.Error("publish course created failed", "course_id", created.ID, "error", err)
	}

	slog.Info("course created", "course_id", created.ID, "teacher_id", sess.UserID)
	t.redirect(w, r, teacherDashboardPath, session.FlashSuccess,
		fmt.Sprintf("Course %q created successfully!", created.Title))
}

// EditCoursePage renders the form filled with the course.
func (t *Teacher) EditCoursePage(w http.ResponseWriter, r *http.Request) {
	course, ok := t.ownedCourse(w, r)
	if !ok {
		return
	}
	form := validate.Course{
		Title:       course.Title,
		Description: course.Description,
		Price:       course.Price.StringFixed(2),
	}
	if course.CategoryID != nil {
		form.CategoryID = course.CategoryID.String()
	}
	t.courseForm(w, r, http.StatusOK, "Edit course", editCoursePath(course.ID), form, "")
}

func editCoursePath(id uuid.UUID) string { return fmt.Sprintf("/teacher/courses/%s/edit", id) }

// UpdateCourse saves the edited course.
func (t *Teacher) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	course, ok := t.ownedCourse(w, r)
	if !ok {
		return
	}
	form := courseFormFromRequest(r)

	msg, err := t.applyCourseForm(r.Context(), form, course)
	if err != nil {
		t.serverError(w, r, "validate course failed", err)
		return
	}
	if msg != "" {
		t.courseForm(w, r, http.StatusUnprocessableEntity, "Edit course", editCoursePath(course.ID), form, msg)
		return
	}

	if err := t.courses.Update(r.Context(), course); err != nil {
		t.serverError(w, r, "update course failed", err)
		return
	}
	t.pageCache.InvalidateAll(r.Context())

	t.redirect(w, r, teacherDashboardPath, session.FlashSuccess,
		fmt.Sprintf("Course %q updated successfully!", course.Title))
}

// DeleteCoursePage asks for confirmation.
func (t *Teacher) DeleteCoursePage(w http.ResponseWriter, r *http.Request) {
	course, ok := t.ownedCourse(w, r)
	if !ok {
		return
	}
	t.page(w, r, "course_delete", &render.PageData{
		Title:   "Delete course",
		Section: "dashboard",
		Data:    map[string]any{"Course": course},
	})
}

// DeleteCourse removes the course with its content and enrollments, then
// deletes its stored files.
func (t *Teacher) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	course, ok := t.ownedCourse(w, r)
	if !ok {
		return
	}

	items, err := t.contents.ListByCourse(r.Context(), course.ID)
	if err != nil {
		t.serverError(w, r, "list course content failed", err)
		return
	}
	var keys []string
	for _, item := range items {
		if item.FileKey != nil {
			keys = append(keys, *item.FileKey)
		}
	}

	if err := t.courses.Delete(r.Context(), course.ID); err != nil {
		t.serverError(w, r, "delete course failed", err)
		return
	}
	t.removeFiles(r.Context(), course.ID, keys)
	t.pageCache.InvalidateAll(r.Context())

	slog.Info("course deleted", "course_id", course.ID)
	t.redirect(w, r, teacherDashboardPath, session.FlashSuccess,
		fmt.Sprintf("Course %q deleted successfully!", course.Title))
}

// --- Roster ---

// Roster lists the students enrolled in the course.
func (t *Teacher) Roster(w http.ResponseWriter, r *http.Request) {
	course, ok := t.ownedCourse(w, r)
	if !ok {
		return
	}
	enrollments, err := t.enrollments.ListByCourse(r.Context(), course.ID)
	if err != nil {
		t.serverError(w, r, "list roster failed", err)
		return
	}

	t.page(w, r, "roster", &render.PageData{
		Title:   "Students in " + course.Title,
		Section: "dashboard",
		Data:    map[string]any{"Course": course, "Enrollments": enrollments},
	})
}

// RosterExport downloads the roster as a spreadsheet.
func (t *Teacher) RosterExport(w http.ResponseWriter, r *http.Request) {
	course, ok := t.ownedCourse(w, r)
	if !ok {
		return
	}
	enrollments, err := t.enrollments.ListByCourse(r.Context(), course.ID)
	if err != nil {
		t.serverError(w, r, "list roster failed", err)
		return
	}

	name := slug.Generate(course.Title)
	if name == "" {
		name = "course"
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-students.xlsx"`, name))
	if err := export.Roster(w, course, enrollments); err != nil {
		slog.Error("write roster export failed", "course_id", course.ID, "error", err)
	}
}

// --- Categories ---

func (t *Teacher) categoriesPage(w http.ResponseWriter, r *http.Request, status int, name, description, errMsg string) {
	categories, err := t.categories.List(r.Context())
	if err != nil {
		t.serverError(w, r, "list categories failed", err)
		return
	}
	t.pageStatus(w, r, status, "categories", &render.PageData{
		Title:   "Categories",
		Section: "categories",
		Data: map[string]any{
			"Categories":  categories,
			"Name":        name,
			"Description": description,
			"Error":       errMsg,
		},
	})
}

// Categories lists categories with their course counts.
func (t *Teacher) Categories(w http.ResponseWriter, r *http.Request) {
	t.categoriesPage(w, r, http.StatusOK, "", "", "")
}

// CreateCategory adds a category.
func (t *Teacher) CreateCategory(w http.ResponseWriter, r *http.Request) {
	name, ok := validate.Title(r.FormValue("name"))
	description := r.FormValue("description")
	if !ok || utf8.RuneCountInString(name) > maxCategoryName {
		t.categoriesPage(w, r, http.StatusUnprocessableEntity, name, description, "Category name is required (max 100 characters).")
		return
	}

	var desc *string
	if description != "" {
		desc = &description
	}
	cat, err := t.categories.Create(r.Context(), name, desc)
	if errors.Is(err, store.ErrDuplicate) {
		t.categoriesPage(w, r, http.StatusConflict, name, description, "A category with this name already exists.")
		return
	}
	if err != nil {
		t.serverError(w, r, "create category failed", err)
		return
	}
	t.pageCache.InvalidateAll(r.Context())

	t.redirect(w, r, "/teacher/categories", session.FlashSuccess,
		fmt.Sprintf("Category %q created.", cat.Name))
}

// DeleteCategory removes a category. Its courses become uncategorized.
func (t *Teacher) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "categoryID")
	if !ok {
		t.notFound(w, r, "Category not found.")
		return
	}
	if err := t.categories.Delete(r.Context(), id); err != nil {
		t.serverError(w, r, "delete category failed", err)
		return
	}
	t.pageCache.InvalidateAll(r.Context())
	t.redirect(w, r, "/teacher/categories", session.FlashSuccess, "Category deleted.")
}

// removeFiles deletes stored objects of a course. Failures leave orphans
// behind and are only logged.
func (t *Teacher) removeFiles(ctx context.Context, courseID uuid.UUID, keys []string) {
	if t.files == nil {
		return
	}
	for _, key := range keys {
		if !storage.BelongsToCourse(key, courseID) {
			slog.Warn("refusing to delete foreign file", "key", key, "course_id", courseID)
			continue
		}
		if err := t.files.Delete(ctx, key); err != nil {
			slog.Error("delete course file failed", "key", key, "error", err)
		}
	}
}
