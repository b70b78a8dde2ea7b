// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package main is the entry point for the EduStream server.
// It loads configuration, connects to services, sets up routing, and starts
// the HTTP server with graceful shutdown support.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"edustream/internal/access"
	"edustream/internal/auth"
	"edustream/internal/cache"
	"edustream/internal/config"
	"edustream/internal/database"
	"edustream/internal/handlers"
	"edustream/internal/mail"
	"edustream/internal/metrics"
	"edustream/internal/middleware"
	"edustream/internal/notify"
	"edustream/internal/payment"
	"edustream/internal/purchase"
	"edustream/internal/render"
	"edustream/internal/router"
	"edustream/internal/session"
	"edustream/internal/storage"
	"edustream/internal/store"
	"edustream/internal/validate"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if !cfg.IsDev() {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
		slog.SetDefault(logger)
	}

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"addr", cfg.Addr(),
		"base_url", cfg.BaseURL,
	)

	db, err := database.Connect(cfg.DSN())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Seed demo accounts and catalog (no-op if data already exists).
	if cfg.IsDev() {
		if err := database.Seed(db); err != nil {
			slog.Error("failed to seed database", "error", err)
			os.Exit(1)
		}
	}

	valkeyClient, err := cache.ConnectValkey(cfg.ValkeyHost, cfg.ValkeyPort, cfg.ValkeyPassword)
	if err != nil {
		slog.Error("failed to connect to valkey", "error", err)
		os.Exit(1)
	}
	defer valkeyClient.Close()

	metrics.MustRegister()

	secureCookies := cfg.SecureCookies()
	sessionStore := session.NewStore(valkeyClient, secureCookies)

	renderer, err := render.New()
	if err != nil {
		slog.Error("failed to initialize template renderer", "error", err)
		os.Exit(1)
	}

	userStore := store.NewUserStore(db)
	categoryStore := store.NewCategoryStore(db)
	courseStore := store.NewCourseStore(db)
	contentStore := store.NewContentStore(db)
	enrollmentStore := store.NewEnrollmentStore(db)

	// Outbound mail goes through the in-process queue so requests never
	// wait on the relay.
	var sender mail.Sender
	if cfg.SMTPHost != "" {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			Timeout:  cfg.MailTimeout,
		})
		slog.Info("smtp relay configured", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
	} else {
		sender = mail.NewLogSender()
		slog.Warn("smtp not configured, emails are only logged")
	}

	queue := notify.NewQueue(sender, enrollmentStore, cfg.BaseURL)
	queueCtx, stopQueue := context.WithCancel(context.Background())
	defer stopQueue()
	if err := queue.Start(queueCtx); err != nil {
		slog.Error("failed to start notification queue", "error", err)
		os.Exit(1)
	}

	otp := auth.NewOTPManager(userStore, queue, cfg.OTPTTL)

	var gateway payment.Gateway
	if cfg.PaymentsEnabled() {
		gateway = payment.NewPayPal(payment.PayPalConfig{
			BaseURL:  cfg.PayPalBaseURL,
			ClientID: cfg.PayPalClientID,
			Secret:   cfg.PayPalSecret,
			Timeout:  cfg.PayPalTimeout,
		})
		slog.Info("paypal checkout enabled", "base_url", cfg.PayPalBaseURL, "currency", cfg.PayPalCurrency)
	} else {
		slog.Warn("paypal not configured, only simulated purchases are available")
	}
	orchestrator := purchase.NewOrchestrator(courseStore, enrollmentStore, gateway, cfg.PayPalCurrency)

	// Object storage is optional; without it file lessons cannot be
	// uploaded or downloaded.
	storageClient, err := storage.New(storage.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
	})
	if err != nil {
		slog.Error("failed to initialize S3 storage", "error", err)
		os.Exit(1)
	}
	var (
		signer access.URLSigner
		files  handlers.FileStore
	)
	if storageClient != nil {
		signer, files = storageClient, storageClient
		slog.Info("s3 storage connected", "endpoint", cfg.S3Endpoint, "bucket", storageClient.Bucket())
	} else {
		slog.Warn("s3 storage not configured, file uploads disabled")
	}
	gate := access.NewGate(courseStore, contentStore, enrollmentStore, signer, cfg.S3URLTTL)

	pageCache := cache.NewPageCache(valkeyClient, cache.DefaultPageTTL)
	validator := validate.New()

	authHandlers := handlers.NewAuth(renderer, sessionStore, userStore, otp, validator)
	publicHandlers := handlers.NewPublic(renderer, sessionStore, courseStore, categoryStore, pageCache, db, valkeyClient)
	studentHandlers := handlers.NewStudent(renderer, sessionStore, courseStore, categoryStore, enrollmentStore, orchestrator, gate, cfg.BaseURL)
	teacherHandlers := handlers.NewTeacher(renderer, sessionStore, courseStore, categoryStore, contentStore, enrollmentStore,
		files, queue, pageCache, validator, cfg.MaxUploadSize)

	loginLimiter := middleware.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow, cfg.TrustProxy)
	defer loginLimiter.Stop()

	r := router.New(router.Config{
		Sessions:     sessionStore,
		LoginLimiter: loginLimiter,
		Secure:       secureCookies,
	}, authHandlers, publicHandlers, studentHandlers, teacherHandlers)

	// WriteTimeout covers gateway calls and file uploads.
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// Stop the notification consumers once the last request finished.
	// Jobs already being handled complete; jobs not yet picked up are dropped.
	if err := queue.Close(); err != nil {
		slog.Error("notification queue close failed", "error", err)
	}

	slog.Info("server stopped gracefully")
}
