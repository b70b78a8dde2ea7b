// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for
// EduStream. Routes are organized into public, student and teacher groups
// with appropriate middleware stacks.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"edustream/internal/handlers"
	"edustream/internal/middleware"
	"edustream/internal/models"
	"edustream/internal/session"
	"edustream/web"
)

// Config carries the router's cross-cutting settings.
type Config struct {
	Sessions *session.Store

	// LoginLimiter throttles credential and passcode submissions. Nil
	// disables throttling.
	LoginLimiter *middleware.RateLimiter

	// Secure marks cookies Secure and enables HSTS.
	Secure bool
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(cfg Config, auth *handlers.Auth, public *handlers.Public, student *handlers.Student, teacher *handlers.Teacher) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.NewSecureHeaders(cfg.Secure))
	r.Use(middleware.Metrics)
	r.Use(middleware.LoadSession(cfg.Sessions))

	// Infrastructure: no CSRF, no auth.
	r.Get("/healthz", public.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/static/*", http.FileServer(http.FS(web.StaticFS)))

	// Server-to-server payment notifications carry no CSRF token.
	r.Post("/student/paypal/webhook", student.PayPalWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRF(cfg.Secure))

		r.Get("/", public.Home)
		r.Get("/courses", public.Catalog)

		r.Get("/signup", auth.SignupPage)
		r.Post("/signup", auth.SignupSubmit)
		r.Post("/logout", auth.Logout)

		r.Group(func(r chi.Router) {
			if cfg.LoginLimiter != nil {
				r.Use(cfg.LoginLimiter.Middleware)
			}
			r.Get("/login", auth.LoginPage)
			r.Post("/login", auth.LoginSubmit)
			r.Get("/login/verify", auth.VerifyPage)
			r.Post("/login/verify", auth.VerifySubmit)
		})

		r.Route("/student", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.RequireRole(models.RoleStudent))

			r.Get("/dashboard", student.Dashboard)

			r.Get("/paypal/return", student.PayPalReturn)
			r.Get("/paypal/cancel", student.PayPalCancel)

			r.Route("/courses", func(r chi.Router) {
				r.Get("/", student.CourseList)
				r.Route("/{courseID}", func(r chi.Router) {
					r.Get("/", student.CourseDetail)
					r.Get("/purchase", student.PurchaseConfirm)
					r.Post("/purchase", student.Purchase)
					r.Get("/content", student.CourseContent)
					r.Get("/content/{contentID}", student.ContentDetail)
					r.Post("/complete", student.Complete)
				})
			})
		})

		r.Route("/teacher", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.RequireRole(models.RoleTeacher))

			r.Get("/dashboard", teacher.Dashboard)

			r.Route("/courses", func(r chi.Router) {
				r.Get("/new", teacher.NewCoursePage)
				r.Post("/new", teacher.CreateCourse)
				r.Route("/{courseID}", func(r chi.Router) {
					r.Get("/edit", teacher.EditCoursePage)
					r.Post("/edit", teacher.UpdateCourse)
					r.Get("/delete", teacher.DeleteCoursePage)
					r.Post("/delete", teacher.DeleteCourse)
					r.Get("/content", teacher.ContentPage)
					r.Post("/content", teacher.ContentSave)
					r.Get("/students", teacher.Roster)
					r.Get("/students.xlsx", teacher.RosterExport)
				})
			})

			r.Get("/categories", teacher.Categories)
			r.Post("/categories", teacher.CreateCategory)
			r.Post("/categories/{categoryID}/delete", teacher.DeleteCategory)
		})
	})

	return r
}
