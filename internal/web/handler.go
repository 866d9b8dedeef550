// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

// Package web exposes the auth flows over HTTP.
//
// Handlers that need a signed-in caller are wrapped with RequireSession,
// which hands the live session to them as an argument; nothing is stashed on
// the request context.
package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/samber/oops"

	"github.com/todopad/todopad/internal/auth"
	"github.com/todopad/todopad/internal/observability"
)

// Redirect targets.
const (
	PathAfterSignIn    = "/todos"
	PathSignIn         = "/signin"
	PathProfile        = "/profile"
	PathForgotPassword = "/forgot-password"
	PathAfterSignOut   = PathSignIn
)

// HandlerConfig holds the collaborators of a Handler.
type HandlerConfig struct {
	Auth         *auth.Service
	Resets       *auth.PasswordResetService
	Verification *auth.VerificationService
	Sessions     *auth.SessionManager
	// Metrics is optional.
	Metrics *observability.Metrics
	Logger  *slog.Logger
	// RequestTimeout bounds each request. Zero disables the timeout.
	RequestTimeout time.Duration
}

// Handler serves the auth routes.
type Handler struct {
	auth         *auth.Service
	resets       *auth.PasswordResetService
	verification *auth.VerificationService
	sessions     *auth.SessionManager
	metrics      *observability.Metrics
	logger       *slog.Logger
	timeout      time.Duration
}

// NewHandler creates a Handler.
func NewHandler(cfg HandlerConfig) (*Handler, error) {
	if cfg.Auth == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if cfg.Resets == nil {
		return nil, oops.Errorf("password reset service is required")
	}
	if cfg.Verification == nil {
		return nil, oops.Errorf("verification service is required")
	}
	if cfg.Sessions == nil {
		return nil, oops.Errorf("session manager is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		auth:         cfg.Auth,
		resets:       cfg.Resets,
		verification: cfg.Verification,
		sessions:     cfg.Sessions,
		metrics:      cfg.Metrics,
		logger:       logger,
		timeout:      cfg.RequestTimeout,
	}, nil
}

// currentSession returns the live session named by the request cookie, or nil.
func (h *Handler) currentSession(r *http.Request) (*auth.Session, error) {
	cookie, err := r.Cookie(h.sessions.CookieName())
	if err != nil {
		return nil, nil //nolint:nilerr // a missing cookie means no session
	}
	return h.sessions.ValidateSession(r.Context(), cookie.Value)
}

// SessionHandlerFunc handles a request made by a signed-in caller.
type SessionHandlerFunc func(w http.ResponseWriter, r *http.Request, session *auth.Session)

// RequireSession validates the session cookie on every request and calls next
// with the live session. Callers without one are redirected to PathSignIn.
func (h *Handler) RequireSession(next SessionHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := h.currentSession(r)
		if err != nil {
			h.fail(w, r, "session", err)
			return
		}
		if session == nil {
			http.Redirect(w, r, PathSignIn, http.StatusSeeOther)
			return
		}
		next(w, r, session)
	}
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var form signUpForm
	if err := decodeForm(r, &form); err != nil {
		h.fail(w, r, "signup", err)
		return
	}

	_, session, err := h.auth.SignUp(r.Context(), auth.SignUpInput{
		Email:           form.Email,
		Password:        form.Password,
		ConfirmPassword: form.ConfirmPassword,
	})
	if err != nil {
		h.fail(w, r, "signup", err)
		return
	}

	h.metrics.RecordAuth("signup", observability.OutcomeSuccess)
	http.SetCookie(w, h.sessions.IssueCookie(session))
	http.Redirect(w, r, PathAfterSignIn, http.StatusSeeOther)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var form signInForm
	if err := decodeForm(r, &form); err != nil {
		h.fail(w, r, "signin", err)
		return
	}

	session, err := h.auth.SignIn(r.Context(), auth.SignInInput{Email: form.Email, Password: form.Password})
	if err != nil {
		h.fail(w, r, "signin", err)
		return
	}

	h.metrics.RecordAuth("signin", observability.OutcomeSuccess)
	http.SetCookie(w, h.sessions.IssueCookie(session))
	http.Redirect(w, r, PathAfterSignIn, http.StatusSeeOther)
}

// handleSignOut always clears the cookie. Without a live session it is a plain redirect.
func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	session, err := h.currentSession(r)
	if err != nil {
		h.fail(w, r, "signout", err)
		return
	}

	if err := h.auth.SignOut(r.Context(), session); err != nil {
		h.fail(w, r, "signout", err)
		return
	}

	h.metrics.RecordAuth("signout", observability.OutcomeSuccess)
	http.SetCookie(w, h.sessions.ClearCookie())
	http.Redirect(w, r, PathAfterSignOut, http.StatusSeeOther)
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var form forgotPasswordForm
	if err := decodeForm(r, &form); err != nil {
		h.fail(w, r, "forgot_password", err)
		return
	}

	if err := h.resets.ForgotPassword(r.Context(), form.Email); err != nil {
		h.fail(w, r, "forgot_password", err)
		return
	}

	h.metrics.RecordAuth("forgot_password", observability.OutcomeSuccess)
	respondMessage(w, r, http.StatusOK, auth.MsgResetRequested)
}

// handleCheckResetToken answers whether the token in a reset link is still usable.
// Without a token the caller is sent to request one.
func (h *Handler) handleCheckResetToken(w http.ResponseWriter, r *http.Request) {
	token := auth.ResetToken(r.URL.Query().Get("token"))
	if token == "" {
		http.Redirect(w, r, PathForgotPassword, http.StatusSeeOther)
		return
	}
	if _, err := h.resets.ValidateToken(r.Context(), token); err != nil {
		h.fail(w, r, "reset_password", err)
		return
	}
	respondMessage(w, r, http.StatusOK, "Choose a new password")
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var form resetPasswordForm
	if err := decodeForm(r, &form); err != nil {
		h.fail(w, r, "reset_password", err)
		return
	}

	err := h.resets.ResetPassword(r.Context(), auth.ResetPasswordInput{
		Token:           auth.ResetToken(form.Token),
		Password:        form.Password,
		ConfirmPassword: form.ConfirmPassword,
	})
	if err != nil {
		h.fail(w, r, "reset_password", err)
		return
	}

	h.metrics.RecordAuth("reset_password", observability.OutcomeSuccess)
	http.Redirect(w, r, PathSignIn, http.StatusSeeOther)
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, PathProfile, http.StatusSeeOther)
		return
	}

	if err := h.verification.VerifyEmail(r.Context(), auth.VerificationToken(token)); err != nil {
		h.fail(w, r, "verify_email", err)
		return
	}

	h.metrics.RecordAuth("verify_email", observability.OutcomeSuccess)
	http.Redirect(w, r, PathProfile, http.StatusSeeOther)
}

func (h *Handler) handleResendVerification(w http.ResponseWriter, r *http.Request, session *auth.Session) {
	result, err := h.verification.ResendVerification(r.Context(), session)
	if err != nil {
		h.fail(w, r, "resend_verification", err)
		return
	}

	if result == auth.ResendSent {
		h.metrics.RecordAuth("resend_verification", observability.OutcomeSuccess)
	}
	http.Redirect(w, r, PathProfile, http.StatusSeeOther)
}

type profileResponse struct {
	Email      string `json:"email"`
	IsVerified bool   `json:"is_verified"`
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request, session *auth.Session) {
	user, err := h.auth.CurrentUser(r.Context(), session)
	if err != nil {
		h.fail(w, r, "profile", err)
		return
	}

	respondValue(w, r, http.StatusOK, profileResponse{Email: user.Email, IsVerified: user.IsVerified}, profileText(user))
}

func profileText(u *auth.User) string {
	status := "not verified"
	if u.IsVerified {
		status = "verified"
	}
	return u.Email + " (" + status + ")"
}
