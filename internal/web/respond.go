// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package web

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/samber/oops"

	"github.com/todopad/todopad/internal/observability"
	"github.com/todopad/todopad/pkg/errutil"
)

// MsgInternalError is the body of every 5xx response.
const MsgInternalError = "Something went wrong, please try again"

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// MessageResponse is the JSON body of a non-redirect success.
type MessageResponse struct {
	Message string `json:"message"`
}

func errCode(err error) string {
	return errutil.Code(err)
}

// statusFor maps an error code to a response status. Zero means redirect to sign-in.
func statusFor(code string) int {
	switch code {
	case "AUTH_VALIDATION_FAILED":
		return http.StatusBadRequest
	case "AUTH_DUPLICATE_EMAIL":
		return http.StatusConflict
	case "AUTH_INVALID_CREDENTIALS":
		return http.StatusUnauthorized
	case "AUTH_INVALID_OR_EXPIRED_TOKEN", "AUTH_INVALID_TOKEN":
		return http.StatusBadRequest
	case "AUTH_NOT_AUTHENTICATED":
		return 0
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the response for a failed flow.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, flow string, err error) {
	status := statusFor(errCode(err))

	switch {
	case status == 0:
		h.metrics.RecordAuth(flow, observability.OutcomeRejected)
		http.Redirect(w, r, PathSignIn, http.StatusSeeOther)
		return
	case status >= http.StatusInternalServerError:
		h.metrics.RecordAuth(flow, observability.OutcomeError)
		errutil.LogErrorContext(r.Context(), h.logger, "request failed", oops.With("flow", flow).Wrap(err))
		respondError(w, r, status, MsgInternalError, "")
		return
	}

	h.metrics.RecordAuth(flow, observability.OutcomeRejected)
	respondError(w, r, status, oops.GetPublic(err, MsgMalformedRequest), fieldOf(err))
}

// fieldOf returns the form field an error is about, if the error names one.
func fieldOf(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	if field, ok := oopsErr.Context()["field"].(string); ok {
		return field
	}
	return ""
}

func wantsJSON(r *http.Request) bool {
	return render.GetAcceptedContentType(r) == render.ContentTypeJSON
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg, field string) {
	render.Status(r, status)
	if wantsJSON(r) {
		render.JSON(w, r, ErrorResponse{Error: msg, Field: field})
		return
	}
	render.PlainText(w, r, msg)
}

func respondMessage(w http.ResponseWriter, r *http.Request, status int, msg string) {
	respondValue(w, r, status, MessageResponse{Message: msg}, msg)
}

func respondValue(w http.ResponseWriter, r *http.Request, status int, v any, text string) {
	render.Status(r, status)
	if wantsJSON(r) {
		render.JSON(w, r, v)
		return
	}
	render.PlainText(w, r, text)
}
