// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"edustream/internal/auth"
	"edustream/internal/metrics"
	"edustream/internal/middleware"
	"edustream/internal/models"
	"edustream/internal/render"
	"edustream/internal/session"
	"edustream/internal/store"
	"edustream/internal/validate"
)

const verifyPath = "/login/verify"

// Flash texts shown by the login flow.
const (
	msgLoginExpired  = "Authentication session expired or invalid. Please log in again."
	msgInvalidLogin  = "Invalid username or password."
	msgInvalidOTP    = "Invalid OTP. Please try again."
	msgOTPExpired    = "OTP expired. Please try logging in again."
	msgOTPSent       = "An OTP has been sent to your email. Please enter it to complete your login."
	msgLoginOK       = "Login successful!"
	msgSignedUp      = "Account created successfully! Please log in."
	msgLoggedOut     = "You have been successfully logged out."
	msgDuplicateUser = "This username or email is already registered. Please log in or choose another."
)

// Auth groups signup, the two-step login and logout.
type Auth struct {
	responder
	users     *store.UserStore
	verifier  *auth.Verifier
	otp       *auth.OTPManager
	validator *validate.Validator
	now       func() time.Time
}

// NewAuth creates a new Auth handler group.
func NewAuth(renderer *render.Renderer, sessions *session.Store, users *store.UserStore, otp *auth.OTPManager, v *validate.Validator) *Auth {
	return &Auth{
		responder: responder{renderer: renderer, sessions: sessions},
		users:     users,
		verifier:  auth.NewVerifier(users),
		otp:       otp,
		validator: v,
		now:       time.Now,
	}
}

// redirectIfAuthenticated sends signed-in users to their dashboard.
func redirectIfAuthenticated(w http.ResponseWriter, r *http.Request) bool {
	sess := middleware.SessionFromCtx(r.Context())
	if !sess.IsAuthenticated() {
		return false
	}
	http.Redirect(w, r, sess.Role.HomePath(), http.StatusSeeOther)
	return true
}

// SignupPage renders the registration form.
func (a *Auth) SignupPage(w http.ResponseWriter, r *http.Request) {
	if redirectIfAuthenticated(w, r) {
		return
	}
	a.signupForm(w, r, http.StatusOK, validate.Signup{Role: models.RoleStudent.String()}, "")
}

func (a *Auth) signupForm(w http.ResponseWriter, r *http.Request, status int, form validate.Signup, errMsg string) {
	form.Password, form.PasswordConfirm = "", ""
	a.pageStatus(w, r, status, "signup", &render.PageData{
		Title:   "Sign up",
		Section: "signup",
		Data:    map[string]any{"Form": form, "Error": errMsg},
	})
}

// SignupSubmit creates the account and sends the user to the login page.
func (a *Auth) SignupSubmit(w http.ResponseWriter, r *http.Request) {
	if redirectIfAuthenticated(w, r) {
		return
	}

	form := validate.Signup{
		Username:        strings.TrimSpace(r.FormValue("username")),
		Email:           strings.ToLower(strings.TrimSpace(r.FormValue("email"))),
		Password:        r.FormValue("password"),
		PasswordConfirm: r.FormValue("password_confirm"),
		Role:            r.FormValue("role"),
	}
	if msg := a.validator.Check(form); msg != "" {
		a.signupForm(w, r, http.StatusUnprocessableEntity, form, msg)
		return
	}

	role, err := models.ParseRole(form.Role)
	if err != nil {
		a.signupForm(w, r, http.StatusUnprocessableEntity, form, "Choose whether you want to learn or teach.")
		return
	}

	user, err := a.users.Create(r.Context(), form.Username, form.Email, form.Password, role)
	if errors.Is(err, store.ErrDuplicate) {
		a.signupForm(w, r, http.StatusConflict, form, msgDuplicateUser)
		return
	}
	if err != nil {
		a.serverError(w, r, "create user failed", err)
		return
	}

	slog.Info("account created", "user_id", user.ID, "role", user.Role)
	a.redirect(w, r, middleware.LoginPath, session.FlashSuccess, msgSignedUp)
}

// LoginPage renders the username and password form.
func (a *Auth) LoginPage(w http.ResponseWriter, r *http.Request) {
	if redirectIfAuthenticated(w, r) {
		return
	}
	a.loginForm(w, r, http.StatusOK, "", "")
}

func (a *Auth) loginForm(w http.ResponseWriter, r *http.Request, status int, username, errMsg string) {
	a.pageStatus(w, r, status, "login", &render.PageData{
		Title:   "Log in",
		Section: "login",
		Data:    map[string]any{"Username": username, "Error": errMsg},
	})
}

// LoginSubmit checks the password, issues a passcode and marks the session
// as waiting for it.
func (a *Auth) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if redirectIfAuthenticated(w, r) {
		return
	}

	form := validate.Login{
		Username: strings.TrimSpace(r.FormValue("username")),
		Password: r.FormValue("password"),
	}
	if msg := a.validator.Check(form); msg != "" {
		a.loginForm(w, r, http.StatusUnprocessableEntity, form.Username, msg)
		return
	}

	user, err := a.verifier.Verify(r.Context(), form.Username, form.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		metrics.LoginAttemptsTotal.WithLabelValues("password", "invalid").Inc()
		slog.Warn("login failed", "username", form.Username, "remote", r.RemoteAddr)
		a.loginForm(w, r, http.StatusUnauthorized, form.Username, msgInvalidLogin)
		return
	}
	if err != nil {
		a.serverError(w, r, "verify credentials failed", err)
		return
	}

	if err := a.otp.Issue(r.Context(), user); err != nil {
		a.serverError(w, r, "issue otp failed", err)
		return
	}
	metrics.LoginAttemptsTotal.WithLabelValues("password", "ok").Inc()

	sess := current(r)
	sess.PendingUserID = &user.ID
	a.redirectWith(w, r, sess, verifyPath, session.FlashInfo, msgOTPSent)
}

// VerifyPage renders the passcode form for a session that passed the
// password step.
func (a *Auth) VerifyPage(w http.ResponseWriter, r *http.Request) {
	if redirectIfAuthenticated(w, r) {
		return
	}
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil || sess.PendingUserID == nil {
		a.redirect(w, r, middleware.LoginPath, session.FlashError, msgLoginExpired)
		return
	}
	a.verifyForm(w, r, http.StatusOK, "")
}

func (a *Auth) verifyForm(w http.ResponseWriter, r *http.Request, status int, errMsg string) {
	a.pageStatus(w, r, status, "login_verify", &render.PageData{
		Title:   "Verify login",
		Section: "login",
		Data:    map[string]any{"TTL": a.otp.TTLText(), "Error": errMsg},
	})
}

// VerifySubmit completes the login when the passcode matches and is still
// fresh. A wrong code may be retried; an expired one restarts the login.
func (a *Auth) VerifySubmit(w http.ResponseWriter, r *http.Request) {
	if redirectIfAuthenticated(w, r) {
		return
	}
	sess := middleware.SessionFromCtx(r.Context())
	if sess == nil || sess.PendingUserID == nil {
		a.redirect(w, r, middleware.LoginPath, session.FlashError, msgLoginExpired)
		return
	}

	user, err := a.users.FindByID(r.Context(), *sess.PendingUserID)
	if err != nil {
		a.serverError(w, r, "load pending user failed", err)
		return
	}
	if user == nil {
		sess.PendingUserID = nil
		a.redirectWith(w, r, sess, middleware.LoginPath, session.FlashError, msgLoginExpired)
		return
	}

	form := validate.OTP{Code: strings.TrimSpace(r.FormValue("otp"))}
	if msg := a.validator.Check(form); msg != "" {
		metrics.LoginAttemptsTotal.WithLabelValues("otp", "mismatch").Inc()
		a.verifyForm(w, r, http.StatusUnprocessableEntity, msgInvalidOTP)
		return
	}

	err = a.otp.Verify(r.Context(), user, form.Code, a.now())
	switch {
	case errors.Is(err, auth.ErrCodeMismatch):
		metrics.LoginAttemptsTotal.WithLabelValues("otp", "mismatch").Inc()
		a.verifyForm(w, r, http.StatusUnauthorized, msgInvalidOTP)
		return

	case errors.Is(err, auth.ErrChallengeExpired):
		metrics.LoginAttemptsTotal.WithLabelValues("otp", "expired").Inc()
		sess.PendingUserID = nil
		a.redirectWith(w, r, sess, middleware.LoginPath, session.FlashError, msgOTPExpired)
		return

	case errors.Is(err, auth.ErrNoActiveChallenge):
		sess.PendingUserID = nil
		a.redirectWith(w, r, sess, middleware.LoginPath, session.FlashError, msgLoginExpired)
		return

	case err != nil:
		a.serverError(w, r, "verify otp failed", err)
		return
	}

	metrics.LoginAttemptsTotal.WithLabelValues("otp", "ok").Inc()
	sess.Login(user)
	sess.AddFlash(session.FlashSuccess, msgLoginOK)
	if _, err := a.sessions.Rotate(r.Context(), w, r, sess); err != nil {
		a.serverError(w, r, "rotate session failed", err)
		return
	}

	slog.Info("user logged in", "user_id", user.ID, "role", user.Role)
	http.Redirect(w, r, user.Role.HomePath(), http.StatusSeeOther)
}

// Logout destroys the session and starts a fresh one carrying the
// goodbye message.
func (a *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r.Context(), w, r); err != nil {
		slog.Error("destroy session failed", "error", err)
	}

	next := &session.Data{}
	next.AddFlash(session.FlashSuccess, msgLoggedOut)
	if _, err := a.sessions.Create(r.Context(), w, next); err != nil {
		slog.Warn("create logout session failed", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
