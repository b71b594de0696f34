package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors forming the domain error taxonomy. Domain packages wrap
// these with package-prefixed messages so handlers can map them uniformly.
var (
	// ErrValidation marks malformed input: unknown status values, missing ids.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized marks a request without a valid session.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks a failed permission guard. Fail-closed.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound marks a missing user/role/project/survey.
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate marks an already-active binding or unique constraint hit.
	ErrDuplicate = errors.New("duplicate entry")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Unrecognized errors surface as an opaque 500 without store internals.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
