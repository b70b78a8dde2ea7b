// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"edustream/internal/middleware"
	"edustream/internal/models"
	"edustream/internal/notify"
	"edustream/internal/render"
	"edustream/internal/session"
	"edustream/internal/validate"
)

// FileStore keeps uploaded course files. *storage.Client implements it.
type FileStore interface {
	Upload(ctx context.Context, courseID uuid.UUID, filename, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

const (
	// blankContentRows is how many empty rows the editor offers for new
	// items.
	blankContentRows = 2
	maxContentRows   = 200

	// multipartMemory is kept in memory before spilling uploads to disk.
	multipartMemory = 32 << 20

	// pendingUploadKey stands in for the storage key until the file is
	// uploaded, so validation can run before anything is stored.
	pendingUploadKey = "pending-upload"
)

// contentRow is one editor row as shown in and submitted from the form.
type contentRow struct {
	ID       string
	Title    string
	Kind     string
	Order    string
	Text     string
	VideoURL string
	FileName string

	remove bool
	file   *multipart.FileHeader
}

func rowsFromContent(items []models.CourseContent) []contentRow {
	rows := make([]contentRow, 0, len(items)+blankContentRows)
	next := 0
	for _, item := range items {
		row := contentRow{
			ID:       item.ID.String(),
			Title:    item.Title,
			Kind:     string(item.Kind),
			Order:    strconv.Itoa(item.DisplayOrder),
			Text:     derefString(item.TextBody),
			VideoURL: derefString(item.VideoURL),
		}
		if item.FileKey != nil {
			row.FileName = path.Base(*item.FileKey)
		}
		rows = append(rows, row)
		next = max(next, item.DisplayOrder+1)
	}
	for i := 0; i < blankContentRows; i++ {
		rows = append(rows, contentRow{Kind: string(models.ContentKindText), Order: strconv.Itoa(next + i)})
	}
	return rows
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// readContentRows reads the submitted editor rows in form order.
func readContentRows(r *http.Request) ([]contentRow, error) {
	n, err := strconv.Atoi(r.FormValue("rows"))
	if err != nil || n < 0 || n > maxContentRows {
		return nil, fmt.Errorf("invalid row count %q", r.FormValue("rows"))
	}

	rows := make([]contentRow, 0, n)
	for i := 0; i < n; i++ {
		p := fmt.Sprintf("row-%d-", i)
		row := contentRow{
			ID:       strings.TrimSpace(r.FormValue(p + "id")),
			Title:    strings.TrimSpace(r.FormValue(p + "title")),
			Kind:     r.FormValue(p + "kind"),
			Order:    strings.TrimSpace(r.FormValue(p + "order")),
			Text:     r.FormValue(p + "text"),
			VideoURL: strings.TrimSpace(r.FormValue(p + "video")),
			remove:   r.FormValue(p+"delete") != "",
		}
		if r.MultipartForm != nil {
			if files := r.MultipartForm.File[p+"file"]; len(files) > 0 && files[0].Size > 0 {
				row.file = files[0]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// blank reports whether an unsaved row was left empty.
func (row contentRow) blank() bool {
	return row.ID == "" && row.Title == "" && strings.TrimSpace(row.Text) == "" && row.VideoURL == "" && row.file == nil
}

// pendingUpload ties an uploaded file to the change that will reference it.
type pendingUpload struct {
	change int
	file   *multipart.FileHeader
}

// buildChanges turns editor rows into a batch. existing holds the
// course's current items by ID. The returned message is shown to the
// teacher when a row is rejected.
func (t *Teacher) buildChanges(rows []contentRow, existing map[uuid.UUID]models.CourseContent) ([]models.ContentChange, []pendingUpload, string) {
	var (
		changes []models.ContentChange
		uploads []pendingUpload
	)

	for i, row := range rows {
		n := i + 1
		if row.blank() {
			continue
		}

		var current *models.CourseContent
		if row.ID != "" {
			id, err := uuid.Parse(row.ID)
			item, ok := existing[id]
			if err != nil || !ok {
				return nil, nil, fmt.Sprintf("Item %d no longer exists. Reload the page and try again.", n)
			}
			current = &item
			if row.remove {
				changes = append(changes, models.ContentChange{ID: &item.ID, Delete: true})
				continue
			}
		}

		order := 0
		if row.Order != "" {
			v, err := strconv.Atoi(row.Order)
			if err != nil {
				return nil, nil, fmt.Sprintf("Item %d: display order must be a whole number.", n)
			}
			order = v
		}

		if msg := t.validator.Check(validate.Content{
			Title:    row.Title,
			Kind:     row.Kind,
			VideoURL: row.VideoURL,
			Order:    order,
		}); msg != "" {
			return nil, nil, fmt.Sprintf("Item %d: %s", n, msg)
		}

		c := models.CourseContent{Title: row.Title, Kind: models.ContentKind(row.Kind), DisplayOrder: order}
		switch c.Kind {
		case models.ContentKindText:
			text := row.Text
			c.TextBody = &text
		case models.ContentKindVideo:
			video := row.VideoURL
			c.VideoURL = &video
		case models.ContentKindFile:
			switch {
			case row.file != nil:
				if t.files == nil {
					return nil, nil, fmt.Sprintf("Item %d: file uploads are not configured on this server.", n)
				}
				placeholder := pendingUploadKey
				c.FileKey = &placeholder
				uploads = append(uploads, pendingUpload{change: len(changes), file: row.file})
			case current != nil && current.FileKey != nil:
				c.FileKey = current.FileKey
			}
		}

		if err := c.Validate(); err != nil {
			return nil, nil, fmt.Sprintf("Item %d: %s.", n, contentProblem(err))
		}

		ch := models.ContentChange{Content: c}
		if current != nil {
			ch.ID = &current.ID
		}
		changes = append(changes, ch)
	}
	return changes, uploads, ""
}

// contentProblem strips the sentinel prefix from a validation error.
func contentProblem(err error) string {
	msg := strings.TrimPrefix(err.Error(), models.ErrInvalidContent.Error()+": ")
	if msg == "" {
		return "invalid content"
	}
	return msg
}

// ContentPage renders the batch editor for a course.
func (t *Teacher) ContentPage(w http.ResponseWriter, r *http.Request) {
	course, ok := t.ownedCourse(w, r)
	if !ok {
		return
	}
	items, err := t.contents.ListByCourse(r.Context(), course.ID)
	if err != nil {
		t.serverError(w, r, "list course content failed", err)
		return
	}
	t.contentForm(w, r, http.StatusOK, course, rowsFromContent(items), "")
}

func (t *Teacher) contentForm(w http.ResponseWriter, r *http.Request, status int, course *models.Course, rows []contentRow, errMsg string) {
	t.pageStatus(w, r, status, "content_manage", &render.PageData{
		Title:   "Content for " + course.Title,
		Section: "dashboard",
		Data: map[string]any{
			"Course":   course,
			"Rows":     rows,
			"RowCount": len(rows),
			"Error":    errMsg,
		},
	})
}

// ContentSave applies the editor rows as one batch: new rows are added,
// edited rows updated and ticked rows deleted. Nothing is written when
// any row is rejected.
func (t *Teacher) ContentSave(w http.ResponseWriter, r *http.Request) {
	course, ok := t.ownedCourse(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, t.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		slog.Warn("content form rejected", "course_id", course.ID, "error", err)
		t.renderer.Error(w, r, http.StatusRequestEntityTooLarge, "The upload is too large or the form is malformed.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	rows, err := readContentRows(r)
	if err != nil {
		t.renderer.Error(w, r, http.StatusBadRequest, "The content form is malformed. Reload the page and try again.")
		return
	}

	items, err := t.contents.ListByCourse(ctx, course.ID)
	if err != nil {
		t.serverError(w, r, "list course content failed", err)
		return
	}
	existing := make(map[uuid.UUID]models.CourseContent, len(items))
	for _, item := range items {
		existing[item.ID] = item
	}
	for i := range rows {
		if id, err := uuid.Parse(rows[i].ID); err == nil {
			if item, ok := existing[id]; ok && item.FileKey != nil {
				rows[i].FileName = path.Base(*item.FileKey)
			}
		}
	}

	changes, uploads, msg := t.buildChanges(rows, existing)
	if msg != "" {
		t.contentForm(w, r, http.StatusUnprocessableEntity, course, rows, msg)
		return
	}
	if len(changes) == 0 {
		t.redirect(w, r, contentManagePath(course.ID), session.FlashInfo, "Nothing to save.")
		return
	}

	var stored []string
	for _, up := range uploads {
		key, err := t.upload(ctx, course.ID, up.file)
		if err != nil {
			t.removeFiles(ctx, course.ID, stored)
			t.serverError(w, r, "upload course file failed", err)
			return
		}
		stored = append(stored, key)
		changes[up.change].Content.FileKey = &key
	}

	res, err := t.contents.ApplyBatch(ctx, course.ID, changes)
	if err != nil {
		t.removeFiles(ctx, course.ID, stored)
		switch {
		case errors.Is(err, models.ErrInvalidContent):
			t.contentForm(w, r, http.StatusUnprocessableEntity, course, rows, "Content rejected: "+contentProblem(errors.Unwrap(err))+".")
		case errors.Is(err, sql.ErrNoRows):
			t.contentForm(w, r, http.StatusConflict, course, rows, "Some items were changed by someone else. Reload the page and try again.")
		default:
			t.serverError(w, r, "apply content batch failed", err)
		}
		return
	}
	t.removeFiles(ctx, course.ID, res.RemovedFileKeys)

	if res.Added > 0 {
		sess := middleware.SessionFromCtx(ctx)
		if err := t.queue.PublishContentAdded(ctx, notify.ContentAdded{
			CourseID:        course.ID,
			CourseTitle:     course.Title,
			TeacherUsername: sess.Username,
			Added:           res.Added,
		}); err != nil {
			slog.Error("publish content added failed", "course_id", course.ID, "error", err)
		}
	}

	slog.Info("course content updated",
		"course_id", course.ID,
		"added", res.Added,
		"updated", res.Updated,
		"deleted", res.Deleted,
	)
	t.redirect(w, r, contentManagePath(course.ID), session.FlashSuccess, "Course content updated successfully!")
}

func contentManagePath(id uuid.UUID) string { return fmt.Sprintf("/teacher/courses/%s/content", id) }

func (t *Teacher) upload(ctx context.Context, courseID uuid.UUID, fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return t.files.Upload(ctx, courseID, fh.Filename, fh.Header.Get("Content-Type"), f, fh.Size)
}
