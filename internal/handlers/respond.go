// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers contains the HTTP handlers for the EduStream
// marketplace. Handlers are grouped by audience (auth, student, teacher,
// public) and receive their dependencies through the handler struct.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"edustream/internal/middleware"
	"edustream/internal/render"
	"edustream/internal/session"
)

// responder bundles what every handler group needs to answer a request:
// the page renderer and the session store used for flashes.
type responder struct {
	renderer *render.Renderer
	sessions *session.Store
}

// current returns the request's session, or a fresh anonymous one. Mutate
// it and call save at most once per request.
func current(r *http.Request) *session.Data {
	if sess := middleware.SessionFromCtx(r.Context()); sess != nil {
		return sess
	}
	return &session.Data{}
}

// page renders name with any queued flashes, clearing them from the
// session.
func (rs responder) page(w http.ResponseWriter, r *http.Request, name string, data *render.PageData) {
	rs.pageStatus(w, r, http.StatusOK, name, data)
}

func (rs responder) pageStatus(w http.ResponseWriter, r *http.Request, status int, name string, data *render.PageData) {
	if sess := middleware.SessionFromCtx(r.Context()); sess != nil && len(sess.Flashes) > 0 {
		data.Flashes = sess.PopFlashes()
		if err := rs.sessions.Update(r.Context(), r, sess); err != nil {
			slog.Warn("clear flashes failed", "error", err)
		}
	}
	rs.renderer.PageStatus(w, r, status, name, data)
}

// save persists sess, creating the session cookie when needed.
func (rs responder) save(w http.ResponseWriter, r *http.Request, sess *session.Data) {
	if err := rs.sessions.Save(r.Context(), w, r, sess); err != nil {
		slog.Error("save session failed", "error", err, "path", r.URL.Path)
	}
}

// redirect queues a flash on the current session and sends a 303.
func (rs responder) redirect(w http.ResponseWriter, r *http.Request, url, level, message string) {
	rs.redirectWith(w, r, current(r), url, level, message)
}

// redirectWith is redirect for handlers that already changed sess.
func (rs responder) redirectWith(w http.ResponseWriter, r *http.Request, sess *session.Data, url, level, message string) {
	sess.AddFlash(level, message)
	rs.save(w, r, sess)
	http.Redirect(w, r, url, http.StatusSeeOther)
}

func (rs responder) notFound(w http.ResponseWriter, r *http.Request, message string) {
	rs.renderer.Error(w, r, http.StatusNotFound, message)
}

// serverError logs err and renders a generic 500 page.
func (rs responder) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "error", err, "path", r.URL.Path)
	rs.renderer.Error(w, r, http.StatusInternalServerError, "Something went wrong. Please try again later.")
}

// urlID parses a UUID route parameter. ok is false when it is malformed.
func urlID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}
