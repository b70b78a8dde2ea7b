// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"edustream/internal/cache"
	"edustream/internal/middleware"
	"edustream/internal/render"
	"edustream/internal/session"
	"edustream/internal/store"
)

// homeCourseLimit is how many recent courses the home page shows.
const homeCourseLimit = 6

// Public groups the pages anyone may see. Pages rendered for anonymous
// visitors without pending flashes are served from the Valkey page cache.
type Public struct {
	responder
	courses    *store.CourseStore
	categories *store.CategoryStore
	pageCache  *cache.PageCache
	db         *sql.DB
	valkey     *redis.Client
}

// NewPublic creates a new Public handler group. db and valkey are pinged by
// the health check.
func NewPublic(renderer *render.Renderer, sessions *session.Store, courses *store.CourseStore, categories *store.CategoryStore, pageCache *cache.PageCache, db *sql.DB, valkey *redis.Client) *Public {
	return &Public{
		responder:  responder{renderer: renderer, sessions: sessions},
		courses:    courses,
		categories: categories,
		pageCache:  pageCache,
		db:         db,
		valkey:     valkey,
	}
}

// cacheable reports whether the response for r is the same for every
// visitor.
func cacheable(r *http.Request) bool {
	sess := middleware.SessionFromCtx(r.Context())
	return sess == nil || (!sess.IsAuthenticated() && len(sess.Flashes) == 0)
}

// servePage renders a public page through the page cache.
func (p *Public) servePage(w http.ResponseWriter, r *http.Request, key, name string, build func() (*render.PageData, error)) {
	ctx := r.Context()
	useCache := cacheable(r)

	if useCache {
		if cached, ok := p.pageCache.Get(ctx, key); ok {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Header().Set("X-Cache", "HIT")
			w.Write(cached)
			return
		}
	}

	data, err := build()
	if err != nil {
		p.serverError(w, r, "build "+name+" page failed", err)
		return
	}

	if !useCache {
		p.page(w, r, name, data)
		return
	}

	rendered, err := p.renderer.Render(r, name, data)
	if err != nil {
		p.serverError(w, r, "render "+name+" failed", err)
		return
	}
	p.pageCache.Set(ctx, key, rendered)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Cache", "MISS")
	w.Write(rendered)
}

// Home renders the landing page with the newest courses.
func (p *Public) Home(w http.ResponseWriter, r *http.Request) {
	p.servePage(w, r, cache.HomeKey(), "home", func() (*render.PageData, error) {
		courses, err := p.courses.ListRecent(r.Context(), homeCourseLimit)
		if err != nil {
			return nil, err
		}
		return &render.PageData{
			Title:   "Learn from independent teachers",
			Section: "home",
			Data:    map[string]any{"Courses": courses},
		}, nil
	})
}

// Catalog lists every course, filtered by search query and category.
func (p *Public) Catalog(w http.ResponseWriter, r *http.Request) {
	query, category := searchParams(r)
	categoryParam := ""
	if category != nil {
		categoryParam = category.String()
	}

	p.servePage(w, r, cache.CatalogKey(query, categoryParam), "catalog", func() (*render.PageData, error) {
		courses, err := p.courses.Search(r.Context(), store.CourseFilter{Query: query, CategoryID: category})
		if err != nil {
			return nil, err
		}
		categories, err := p.categories.List(r.Context())
		if err != nil {
			return nil, err
		}
		return &render.PageData{
			Title:   "Course catalog",
			Section: "catalog",
			Data: map[string]any{
				"Courses":      courses,
				"Categories":   categories,
				"Query":        query,
				"CategoryID":   category,
				"SearchAction": "/courses",
			},
		}, nil
	})
}

// Health reports whether PostgreSQL and Valkey answer.
func (p *Public) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := map[string]string{"database": "ok", "valkey": "ok"}
	code := http.StatusOK

	if p.db != nil {
		if err := p.db.PingContext(ctx); err != nil {
			slog.Error("health check: database", "error", err)
			status["database"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	if p.valkey != nil {
		if err := p.valkey.Ping(ctx).Err(); err != nil {
			slog.Error("health check: valkey", "error", err)
			status["valkey"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
