// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Todopad Contributors

package web

import (
	"errors"
	"net/http"

	"github.com/ajg/form"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
)

// Upper bounds keep oversized input away from argon2.
type signUpForm struct {
	Email           string `json:"email" form:"email" validate:"max=254"`
	Password        string `json:"password" form:"password" validate:"max=1024"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword" validate:"max=1024"`
}

type signInForm struct {
	Email    string `json:"email" form:"email" validate:"max=254"`
	Password string `json:"password" form:"password" validate:"max=1024"`
}

type forgotPasswordForm struct {
	Email string `json:"email" form:"email" validate:"max=254"`
}

type resetPasswordForm struct {
	Token           string `json:"token" form:"token" validate:"max=256"`
	Password        string `json:"password" form:"password" validate:"max=1024"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword" validate:"max=1024"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// MsgMalformedRequest is shown when the body cannot be decoded or is out of bounds.
const MsgMalformedRequest = "Malformed request"

// decodeForm reads a urlencoded or JSON body into v and checks its bounds.
// Fields the form struct does not name, such as a CSRF token or a submit
// button, are ignored.
func decodeForm(r *http.Request, v any) error {
	if err := decodeBody(r, v); err != nil {
		return oops.Code("AUTH_VALIDATION_FAILED").
			With("content_type", r.Header.Get("Content-Type")).
			Public(MsgMalformedRequest).
			Wrap(err)
	}
	if err := validate.Struct(v); err != nil {
		return oops.Code("AUTH_VALIDATION_FAILED").
			Public(MsgMalformedRequest).
			Wrap(err)
	}
	return nil
}

func decodeBody(r *http.Request, v any) error {
	switch render.GetRequestContentType(r) {
	case render.ContentTypeJSON:
		return render.DecodeJSON(r.Body, v)
	case render.ContentTypeForm:
		dec := form.NewDecoder(r.Body)
		dec.IgnoreUnknownKeys(true)
		return dec.Decode(v)
	default:
		return errors.New("unsupported content type")
	}
}
