// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides shared test infrastructure for handler integration
// tests. Tests are skipped when PostgreSQL is unavailable; Valkey is
// replaced by miniredis.
package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"edustream/internal/access"
	"edustream/internal/auth"
	"edustream/internal/cache"
	"edustream/internal/database"
	"edustream/internal/mail"
	"edustream/internal/middleware"
	"edustream/internal/models"
	"edustream/internal/notify"
	"edustream/internal/payment"
	"edustream/internal/purchase"
	"edustream/internal/render"
	"edustream/internal/session"
	"edustream/internal/storage"
	"edustream/internal/store"
	"edustream/internal/validate"
)

const testPassword = "correct-horse-42"

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// testDB opens a connection to the test PostgreSQL and runs migrations.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "edustream")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "edustream")
	dsn := "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("skipping: cannot open DB: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("skipping: DB not reachable: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}
	goose.SetBaseFS(nil)

	t.Cleanup(func() { db.Close() })
	return db
}

// fakeGateway is an in-memory checkout provider.
type fakeGateway struct {
	mu            sync.Mutex
	orders        int
	captured      []string
	captureStatus string
	createErr     error
}

func (g *fakeGateway) CreateOrder(_ context.Context, req payment.OrderRequest) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.orders++
	id := fmt.Sprintf("ORDER-%d", g.orders)
	return &payment.Order{ID: id, Status: "CREATED", ApprovalURL: "https://checkout.test/approve?token=" + id}, nil
}

func (g *fakeGateway) CaptureOrder(_ context.Context, orderID string) (*payment.Capture, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.captured = append(g.captured, orderID)
	status := g.captureStatus
	if status == "" {
		status = payment.StatusCompleted
	}
	return &payment.Capture{OrderID: orderID, Status: status}, nil
}

func (g *fakeGateway) captures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.captured)
}

// fakeFiles stores uploads in memory and signs links for them.
type fakeFiles struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{objects: make(map[string][]byte)}
}

func (f *fakeFiles) Upload(_ context.Context, courseID uuid.UUID, filename, _ string, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	key := storage.CourseFileKey(courseID, filename)
	f.mu.Lock()
	f.objects[key] = data
	f.mu.Unlock()
	return key, nil
}

func (f *fakeFiles) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	delete(f.objects, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeFiles) PresignedURL(_ context.Context, key string, expires time.Duration) (string, error) {
	return fmt.Sprintf("https://files.test/%s?expires=%d", key, int(expires.Seconds())), nil
}

func (f *fakeFiles) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

func (f *fakeFiles) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// testEnv holds all dependencies for handler integration tests.
type testEnv struct {
	DB          *sql.DB
	Redis       *miniredis.Miniredis
	Valkey      *redis.Client
	Renderer    *render.Renderer
	Sessions    *session.Store
	Users       *store.UserStore
	Categories  *store.CategoryStore
	Courses     *store.CourseStore
	Contents    *store.ContentStore
	Enrollments *store.EnrollmentStore
	PageCache   *cache.PageCache
	Mail        *mail.LogSender
	OTP         *auth.OTPManager
	Gateway     *fakeGateway
	Files       *fakeFiles
	Auth        *Auth
	Public      *Public
	Student     *Student
	Teacher     *Teacher
}

// newTestEnv creates a complete test environment with all handler dependencies.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	mr := miniredis.RunT(t)
	vk := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { vk.Close() })

	renderer, err := render.New()
	if err != nil {
		t.Fatalf("render.New: %v", err)
	}

	sessions := session.NewStore(vk, false)
	users := store.NewUserStore(db)
	categories := store.NewCategoryStore(db)
	courses := store.NewCourseStore(db)
	contents := store.NewContentStore(db)
	enrollments := store.NewEnrollmentStore(db)
	pageCache := cache.NewPageCache(vk, time.Minute)
	sender := mail.NewLogSender()
	v := validate.New()

	queue := notify.NewQueue(sender, enrollments, "http://edustream.test")
	ctx, cancel := context.WithCancel(context.Background())
	if err := queue.Start(ctx); err != nil {
		cancel()
		t.Fatalf("queue start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		queue.Close()
	})

	// Passcodes go straight to the log sender so tests can read them.
	otp := auth.NewOTPManager(users, sender, 5*time.Minute)
	gateway := &fakeGateway{}
	files := newFakeFiles()
	orchestrator := purchase.NewOrchestrator(courses, enrollments, gateway, "USD")
	gate := access.NewGate(courses, contents, enrollments, files, 10*time.Minute)

	return &testEnv{
		DB:          db,
		Redis:       mr,
		Valkey:      vk,
		Renderer:    renderer,
		Sessions:    sessions,
		Users:       users,
		Categories:  categories,
		Courses:     courses,
		Contents:    contents,
		Enrollments: enrollments,
		PageCache:   pageCache,
		Mail:        sender,
		OTP:         otp,
		Gateway:     gateway,
		Files:       files,
		Auth:        NewAuth(renderer, sessions, users, otp, v),
		Public:      NewPublic(renderer, sessions, courses, categories, pageCache, db, vk),
		Student:     NewStudent(renderer, sessions, courses, categories, enrollments, orchestrator, gate, "http://edustream.test"),
		Teacher:     NewTeacher(renderer, sessions, courses, categories, contents, enrollments, files, queue, pageCache, v, 5<<20),
	}
}

// uniqueName returns a username that will not collide across test runs.
func uniqueName(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

// createUser registers a user with testPassword and removes it when the
// test finishes. Courses and enrollments cascade.
func (env *testEnv) createUser(t *testing.T, role models.Role) *models.User {
	t.Helper()
	name := uniqueName(role.String())
	u, err := env.Users.Create(context.Background(), name, name+"@handler-test.local", testPassword, role)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	t.Cleanup(func() { env.DB.Exec("DELETE FROM users WHERE id = $1", u.ID) })
	return u
}

// createCourse stores a course owned by teacher at the given price.
func (env *testEnv) createCourse(t *testing.T, teacher *models.User, title, price string) *models.Course {
	t.Helper()
	c, err := env.Courses.Create(context.Background(), &models.Course{
		TeacherID:   teacher.ID,
		Title:       title,
		Description: "Handler test course",
		Price:       decimal.RequireFromString(price),
	})
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	return c
}

// enroll grants student access to course.
func (env *testEnv) enroll(t *testing.T, student *models.User, course *models.Course) {
	t.Helper()
	if _, _, err := env.Enrollments.Create(context.Background(), student.ID, course.ID); err != nil {
		t.Fatalf("enroll: %v", err)
	}
}

// loggedIn returns a fully authenticated session for u.
func loggedIn(u *models.User) *session.Data {
	s := &session.Data{}
	s.Login(u)
	return s
}

// ctxWithSession adds session data to a context using the middleware key.
func ctxWithSession(ctx context.Context, data *session.Data) context.Context {
	return middleware.WithSession(ctx, data)
}

// withChiURLParams adds chi URL parameters given as key, value pairs.
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// formRequest builds a url-encoded POST.
func formRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// serve runs h with sess attached to the request context.
func serve(h http.HandlerFunc, req *http.Request, sess *session.Data) *httptest.ResponseRecorder {
	if sess != nil {
		req = req.WithContext(ctxWithSession(req.Context(), sess))
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

// lastFlash returns the newest queued flash, or the zero value.
func lastFlash(sess *session.Data) session.Flash {
	if sess == nil || len(sess.Flashes) == 0 {
		return session.Flash{}
	}
	return sess.Flashes[len(sess.Flashes)-1]
}

// storedSession loads the session referenced by the response cookie.
func (env *testEnv) storedSession(t *testing.T, rec *httptest.ResponseRecorder) *session.Data {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.Value != "" {
			req.AddCookie(c)
		}
	}
	data, err := env.Sessions.Get(context.Background(), req)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	return data
}

// multipartBody assembles a multipart form. files maps field names to
// file name and contents.
func multipartBody(t *testing.T, fields map[string]string, files map[string][2]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for field, f := range files {
		w, err := mw.CreateFormFile(field, f[0])
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		io.WriteString(w, f[1])
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}
