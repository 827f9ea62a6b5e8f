// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package restutil holds the plumbing shared by the REST handlers:
// error-returning handler funcs, JSON helpers and the mapping from the
// ledger's error taxonomy to HTTP status codes.
package restutil

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/terahash/tera/errs"
)

type httpError struct {
	cause  error
	status int
}

func (e *httpError) Error() string {
	return e.cause.Error()
}

// HTTPError creates an error carrying an http status code.
func HTTPError(cause error, status int) error {
	return &httpError{cause: cause, status: status}
}

// BadRequest creates an http bad request error.
func BadRequest(cause error) error {
	return &httpError{cause: cause, status: http.StatusBadRequest}
}

// Forbidden creates an http forbidden error.
func Forbidden(cause error) error {
	return &httpError{cause: cause, status: http.StatusForbidden}
}

// NotFound creates an http not found error.
func NotFound(cause error) error {
	return &httpError{cause: cause, status: http.StatusNotFound}
}

// FromTaxonomy maps a ledger error to its http equivalent. Errors
// outside the taxonomy pass through and end up as 500s.
func FromTaxonomy(err error) error {
	if err == nil {
		return nil
	}
	switch errs.KindOf(err) {
	case errs.KindUnknown:
		return err
	case errs.PositionNotFound:
		return NotFound(err)
	case errs.Forbidden, errs.ParticipantFrozen:
		return Forbidden(err)
	case errs.RateLimited:
		return HTTPError(err, http.StatusTooManyRequests)
	case errs.Paused, errs.CircuitBreakerActive:
		return HTTPError(err, http.StatusServiceUnavailable)
	case errs.StaleOrInvalidData:
		return HTTPError(err, http.StatusBadGateway)
	default:
		return BadRequest(err)
	}
}

// HandlerFunc is like http.HandlerFunc but returns an error. An
// httpError responds with its status, anything else with 500.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// WrapHandlerFunc converts a HandlerFunc to http.HandlerFunc.
func WrapHandlerFunc(f HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := f(w, r); err != nil {
			if he, ok := err.(*httpError); ok {
				if he.cause != nil {
					http.Error(w, he.cause.Error(), he.status)
				} else {
					w.WriteHeader(he.status)
				}
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

// JSONContentType for all REST responses.
const JSONContentType = "application/json; charset=utf-8"

// ParseJSON decodes a JSON object in strict mode.
func ParseJSON(r io.Reader, v any) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// WriteJSON responds with an object in JSON encoding.
func WriteJSON(w http.ResponseWriter, obj any) error {
	w.Header().Set("Content-Type", JSONContentType)
	return json.NewEncoder(w).Encode(obj)
}

// M shortcut for map[string]any.
type M map[string]any
