// Package response provides the JSON envelope used by every API endpoint and
// maps lbmap's typed errors onto HTTP status codes.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/logging"
)

// Response represents the standardized API response structure.
type Response struct {
	Data  any    `json:"data"`
	Error *Error `json:"error"`
}

// Error represents an API error with code, message, and optional details.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Success creates a successful response with data.
func Success(data any) Response {
	return Response{Data: data}
}

// Fail creates an error response.
func Fail(code, message, details string) Response {
	return Response{
		Error: &Error{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// headers are already sent, so an encoding error has nowhere to go
	_ = json.NewEncoder(w).Encode(resp)
}

// Text writes a plain-text body with 200 status.
func Text(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// OK writes a successful response with 200 status.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Success(data))
}

// NoContent writes an empty 204 response.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// BadRequest writes a 400 error response.
func BadRequest(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusBadRequest, Fail("BAD_REQUEST", message, details))
}

// Unauthorized writes a 401 error response.
func Unauthorized(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusUnauthorized, Fail("UNAUTHORIZED", message, details))
}

// NotFound writes a 404 error response.
func NotFound(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusNotFound, Fail("NOT_FOUND", message, details))
}

// MethodNotAllowed writes a 405 error response.
func MethodNotAllowed(w http.ResponseWriter, method string) {
	JSON(w, http.StatusMethodNotAllowed, Fail(
		"METHOD_NOT_ALLOWED",
		"Method not allowed",
		"Method "+method+" is not supported for this endpoint",
	))
}

// RequestTooLarge writes a 413 error response.
func RequestTooLarge(w http.ResponseWriter, details string) {
	JSON(w, http.StatusRequestEntityTooLarge, Fail("REQUEST_TOO_LARGE", "Request body too large", details))
}

// Unprocessable writes a 422 error response.
func Unprocessable(w http.ResponseWriter, message, details string) {
	JSON(w, http.StatusUnprocessableEntity, Fail("RENDER_FAILED", message, details))
}

// RateLimited writes a 429 error response.
func RateLimited(w http.ResponseWriter, message string) {
	JSON(w, http.StatusTooManyRequests, Fail("RATE_LIMITED", "Rate limit exceeded", message))
}

// InternalError writes a 500 error response. The error itself is not exposed.
func InternalError(w http.ResponseWriter) {
	JSON(w, http.StatusInternalServerError, Fail(
		"INTERNAL_ERROR",
		"Internal server error",
		"An unexpected error occurred",
	))
}

// ServiceUnavailable writes a 503 error response.
func ServiceUnavailable(w http.ResponseWriter, message string) {
	JSON(w, http.StatusServiceUnavailable, Fail("SERVICE_UNAVAILABLE", "Service unavailable", message))
}

// Status returns the HTTP status an error maps to.
func Status(err error) int {
	switch {
	case errors.IsMalformedReport(err), errors.IsValidationError(err):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsStorageUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.IsRenderFailure(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrorFromType maps typed errors to HTTP responses and logs the ones the
// client cannot fix.
func ErrorFromType(w http.ResponseWriter, r *http.Request, err error) {
	switch Status(err) {
	case http.StatusBadRequest:
		code := "BAD_REQUEST"
		if errors.IsMalformedReport(err) {
			code = "MALFORMED_REPORT"
		}
		JSON(w, http.StatusBadRequest, Fail(code, err.Error(), ""))
	case http.StatusNotFound:
		NotFound(w, err.Error(), "")
	case http.StatusServiceUnavailable:
		logging.FromContext(r.Context()).Error().Err(err).Msg("Store unavailable")
		ServiceUnavailable(w, err.Error())
	case http.StatusUnprocessableEntity:
		Unprocessable(w, err.Error(), "")
	default:
		logging.FromContext(r.Context()).Error().Err(err).Msg("Request failed")
		InternalError(w)
	}
}
