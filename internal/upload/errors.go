package upload

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"armory/internal/formdata"
)

// Failure kinds. Every error returned by Handler.Receive matches exactly one
// of these with errors.Is.
var (
	ErrInvalidContentType = errors.New("invalid content type")
	ErrMissingBoundary    = formdata.ErrMissingBoundary
	ErrInvalidLength      = errors.New("invalid content length")
	ErrConnectionReset    = errors.New("connection reset by peer")
	ErrNoFileFound        = formdata.ErrNoFileFound
	ErrMalformedPart      = formdata.ErrMalformedPart
	ErrInvalidFilename    = errors.New("invalid filename")
	ErrInternal           = errors.New("internal server error")
)

var kinds = []struct {
	err    error
	name   string
	status int
}{
	{ErrInvalidContentType, "InvalidContentType", http.StatusBadRequest},
	{ErrMissingBoundary, "MissingBoundary", http.StatusBadRequest},
	{ErrInvalidLength, "InvalidLength", http.StatusBadRequest},
	{ErrNoFileFound, "NoFileFound", http.StatusBadRequest},
	{ErrMalformedPart, "MalformedPart", http.StatusBadRequest},
	{ErrInvalidFilename, "InvalidFilename", http.StatusBadRequest},
	{ErrConnectionReset, "ConnectionReset", http.StatusInternalServerError},
	{ErrInternal, "InternalError", http.StatusInternalServerError},
}

// StatusCode maps an upload error to the HTTP status sent to the client.
// Unknown errors are treated as internal.
func StatusCode(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Kind names the failure kind of err for logs.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "InternalError"
}

// fail tags cause with a failure kind, keeping both matchable.
func fail(kind, cause error) error {
	switch {
	case cause == nil:
		return kind
	case errors.Is(cause, kind):
		return cause
	default:
		return fmt.Errorf("%w: %w", kind, cause)
	}
}
