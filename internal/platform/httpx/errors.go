// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrUpstream     = errors.New("upstream unavailable")
)

type problemKind struct {
	err    error
	status int
	slug   string
	title  string
}

// Checked in order; the first sentinel found in the chain wins.
var problemKinds = []problemKind{
	{ErrNotFound, http.StatusNotFound, "not-found", "Not Found"},
	{ErrDuplicate, http.StatusConflict, "duplicate", "Duplicate"},
	{ErrConflict, http.StatusConflict, "conflict", "Conflict"},
	{ErrValidation, http.StatusBadRequest, "validation", "Validation Failed"},
	{ErrForbidden, http.StatusForbidden, "forbidden", "Forbidden"},
	{ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Unauthorized"},
	{ErrUpstream, http.StatusBadGateway, "upstream", "Bad Gateway"},
}

// StatusOf returns the HTTP status RespondError would use for err.
func StatusOf(err error) int {
	if kind, ok := kindOf(err); ok {
		return kind.status
	}
	return http.StatusInternalServerError
}

func kindOf(err error) (problemKind, bool) {
	for _, kind := range problemKinds {
		if errors.Is(err, kind.err) {
			return kind, true
		}
	}
	return problemKind{}, false
}

// RespondError maps domain errors to RFC7807 responses. Errors outside the
// sentinel set become a 500 with no detail.
func RespondError(w http.ResponseWriter, err error) {
	kind, ok := kindOf(err)
	if !ok {
		writeProblem(w, ProblemDetail{Type: problemType("internal"), Title: "Internal Error", Status: http.StatusInternalServerError})
		return
	}
	writeProblem(w, ProblemDetail{
		Type:   problemType(kind.slug),
		Title:  kind.title,
		Status: kind.status,
		Detail: err.Error(),
	})
}
