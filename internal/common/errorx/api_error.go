package errorx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryAuthorization  ErrorCategory = "authorization"
	CategoryNotFound       ErrorCategory = "not_found"
	CategoryConflict       ErrorCategory = "conflict"
	CategoryInvariant      ErrorCategory = "invariant_violation"
	CategoryInternal       ErrorCategory = "internal"
)

// APIError represents a structured API error returned by the HTTP surface
type APIError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Category   ErrorCategory  `json:"category"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Category, e.Message)
}

// JSON returns the error as a JSON string
func (e *APIError) JSON() string {
	out, _ := json.Marshal(e)
	return string(out)
}

// WithDetail returns a copy of the error carrying an extra detail
func (e *APIError) WithDetail(key string, value any) *APIError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

type mapping struct {
	target   error
	code     string
	category ErrorCategory
	status   int
}

var mappings = []mapping{
	{ErrInvalidSite, "E1001", CategoryValidation, http.StatusBadRequest},
	{ErrInvalidRule, "E1002", CategoryValidation, http.StatusBadRequest},
	{ErrUnknownBusinessUnit, "E1003", CategoryValidation, http.StatusBadRequest},
	{ErrUnauthorized, "E2001", CategoryAuthentication, http.StatusUnauthorized},
	{ErrForbidden, "E3001", CategoryAuthorization, http.StatusForbidden},
	{ErrSiteNotFound, "E4001", CategoryNotFound, http.StatusNotFound},
	{ErrRuleNotFound, "E4002", CategoryNotFound, http.StatusNotFound},
	{ErrSiteExists, "E4091", CategoryConflict, http.StatusConflict},
	{ErrRevisionConflict, "E4092", CategoryConflict, http.StatusConflict},
	{ErrLastSite, "E4221", CategoryInvariant, http.StatusUnprocessableEntity},
	{ErrWildcardRevoke, "E4222", CategoryInvariant, http.StatusUnprocessableEntity},
}

// FromError converts any error to an APIError. Unknown errors become internal errors.
func FromError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return &APIError{
				Code:       m.code,
				Message:    err.Error(),
				Category:   m.category,
				HTTPStatus: m.status,
			}
		}
	}
	return &APIError{
		Code:       "E5001",
		Message:    "Internal server error occurred",
		Category:   CategoryInternal,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// HTTPStatus maps err to the HTTP status code the API responds with
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return FromError(err).HTTPStatus
}
