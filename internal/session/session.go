// Package session provides Valkey-backed HTTP session management.
// Sessions are identified by a secure cookie and stored as JSON in Valkey
// with automatic TTL expiry.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"edustream/internal/models"
)

const (
	// CookieName is the name of the session cookie sent to the browser.
	CookieName = "es_session"

	// DefaultTTL is how long a session lives in Valkey before automatic expiry.
	DefaultTTL = 24 * time.Hour

	// keyPrefix namespaces session keys in Valkey to avoid collisions.
	keyPrefix = "session:"

	// idLength is the byte length of the random session ID (32 bytes = 64 hex chars).
	idLength = 32
)

// ErrNoSession is returned by Update and Rotate when the request carries
// no session cookie.
var ErrNoSession = errors.New("no session cookie")

// Flash levels used by templates to pick a style.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashError   = "error"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Data holds the session payload stored in Valkey. Anonymous visitors get
// a session too, so the login challenge marker and flashes survive the
// redirects between steps.
type Data struct {
	UserID        uuid.UUID   `json:"user_id,omitempty"`
	Username      string      `json:"username,omitempty"`
	Role          models.Role `json:"role,omitempty"`
	Authenticated bool        `json:"authenticated"`

	// PendingUserID is set after the password step and consumed by the
	// passcode step.
	PendingUserID *uuid.UUID `json:"pending_user_id,omitempty"`

	// PendingPurchase correlates the gateway return callback with the
	// checkout that started it.
	PendingPurchase *models.PendingPurchase `json:"pending_purchase,omitempty"`

	Flashes   []Flash   `json:"flashes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAuthenticated reports whether both login steps completed.
func (d *Data) IsAuthenticated() bool {
	return d != nil && d.Authenticated && d.UserID != uuid.Nil && d.Role.Valid()
}

// AddFlash queues a message for the next page render.
func (d *Data) AddFlash(level, message string) {
	d.Flashes = append(d.Flashes, Flash{Level: level, Message: message})
}

// PopFlashes returns queued messages and clears them.
func (d *Data) PopFlashes() []Flash {
	f := d.Flashes
	d.Flashes = nil
	return f
}

// Login marks the session authenticated for u and drops the challenge
// marker.
func (d *Data) Login(u *models.User) {
	d.UserID = u.ID
	d.Username = u.Username
	d.Role = u.Role
	d.Authenticated = true
	d.PendingUserID = nil
}

// Store manages session lifecycle in Valkey.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	secure bool
}

// NewStore creates a session store backed by the given Valkey client.
// Set secure to true behind TLS so cookies carry the Secure flag.
func NewStore(client *redis.Client, secure bool) *Store {
	return &Store{
		client: client,
		ttl:    DefaultTTL,
		secure: secure,
	}
}

// Create generates a new session, stores it in Valkey, and sets the
// session cookie on the response. Returns the session ID.
func (s *Store) Create(ctx context.Context, w http.ResponseWriter, data *Data) (string, error) {
	id, err := generateID()
	if err != nil {
		return "", fmt.Errorf("session create: %w", err)
	}

	if data.CreatedAt.IsZero() {
		data.CreatedAt = time.Now()
	}

	if err := s.put(ctx, id, data); err != nil {
		return "", err
	}
	s.setCookie(w, id)
	return id, nil
}

// Get retrieves session data from Valkey using the session ID from the
// request cookie. Returns nil if no valid session exists.
func (s *Store) Get(ctx context.Context, r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil, nil // No cookie = no session (not an error)
	}

	payload, err := s.client.Get(ctx, keyPrefix+cookie.Value).Bytes()
	if err == redis.Nil {
		return nil, nil // Session expired or doesn't exist
	}
	if err != nil {
		return nil, fmt.Errorf("session get: %w", err)
	}

	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("session unmarshal: %w", err)
	}

	return &data, nil
}

// Update replaces the session data in Valkey without changing the session
// ID or cookie. Resets the TTL.
func (s *Store) Update(ctx context.Context, r *http.Request, data *Data) error {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return fmt.Errorf("session update: %w", ErrNoSession)
	}
	return s.put(ctx, cookie.Value, data)
}

// Save writes data under the request's existing session, or creates a new
// session when the request has none.
func (s *Store) Save(ctx context.Context, w http.ResponseWriter, r *http.Request, data *Data) error {
	if _, err := r.Cookie(CookieName); err != nil {
		_, err := s.Create(ctx, w, data)
		return err
	}
	return s.Update(ctx, r, data)
}

// Rotate moves the session data to a fresh ID and deletes the old key.
// Call it whenever the privilege level changes, such as after login.
func (s *Store) Rotate(ctx context.Context, w http.ResponseWriter, r *http.Request, data *Data) (string, error) {
	id, err := s.Create(ctx, w, data)
	if err != nil {
		return "", err
	}
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != id {
		if err := s.client.Del(ctx, keyPrefix+cookie.Value).Err(); err != nil {
			return "", fmt.Errorf("session rotate: %w", err)
		}
	}
	return id, nil
}

// Destroy removes the session from Valkey and clears the cookie.
func (s *Store) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return nil // No cookie, nothing to destroy
	}

	s.client.Del(ctx, keyPrefix+cookie.Value)

	// Expire the cookie immediately.
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		MaxAge:   -1,
	})

	return nil
}

func (s *Store) put(ctx context.Context, id string, data *Data) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("session marshal: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+id, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	return nil
}

func (s *Store) setCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.ttl.Seconds()),
	})
}

// generateID creates a cryptographically random session identifier.
func generateID() (string, error) {
	b := make([]byte, idLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
