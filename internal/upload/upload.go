// Package upload implements POST /upload: a multipart/form-data request
// carrying one file is parsed, its filename sanitized and the file stored in
// the upload directory.
package upload

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"armory/internal/filename"
	"armory/internal/formdata"
	"armory/internal/mediainfo"
	"armory/internal/progress"
	"armory/internal/store"
)

// Bodies are buffered in memory; the declared length only sizes the first
// allocation up to this much, the rest grows as bytes actually arrive.
const maxPrealloc = 1 << 20

const successBody = "File uploaded successfully"

type Options struct {
	Store  *store.Store
	Logger zerolog.Logger
	// Progress receives a progress line while the body is received.
	// Nil disables it.
	Progress io.Writer
}

type Handler struct {
	store    *store.Store
	log      zerolog.Logger
	progress io.Writer
}

func New(opts Options) *Handler {
	return &Handler{
		store:    opts.Store,
		log:      opts.Logger,
		progress: opts.Progress,
	}
}

// ServeHTTP answers 201 with a short confirmation when the file was stored.
// Failures are logged and answered with a bare status code.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lg := h.log.With().Str("remote", r.RemoteAddr).Logger()
	if _, err := h.Receive(r, &lg); err != nil {
		code := StatusCode(err)
		ev := lg.Warn()
		if code >= http.StatusInternalServerError {
			ev = lg.Error()
		}
		ev.Err(err).Str("kind", Kind(err)).Int("status", code).Msg("Upload failed")
		w.WriteHeader(code)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusCreated)
	_, _ = io.WriteString(w, successBody)
}

// Receive runs one upload request through header checks, body read, parse,
// sanitize and write. lg gains a file field once the name is known.
func (h *Handler) Receive(r *http.Request, lg *zerolog.Logger) (store.Stored, error) {
	ct := r.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(ct), "multipart/form-data") {
		return store.Stored{}, ErrInvalidContentType
	}
	if _, err := formdata.Boundary(ct); err != nil {
		return store.Stored{}, fail(ErrMissingBoundary, err)
	}
	// -1 for chunked or missing Content-Length.
	if r.ContentLength <= 0 {
		return store.Stored{}, ErrInvalidLength
	}

	body, err := h.readBody(r.Body, r.ContentLength)
	if err != nil {
		return store.Stored{}, fail(ErrConnectionReset, err)
	}

	raw, content, err := formdata.Parse(ct, body)
	if err != nil {
		return store.Stored{}, err
	}
	name, err := filename.Sanitize(raw)
	if err != nil {
		return store.Stored{}, fail(ErrInvalidFilename, err)
	}
	if !filename.Usable(name) {
		return store.Stored{}, fail(ErrInvalidFilename, errors.Errorf("filename %q is empty after sanitizing", raw))
	}
	*lg = lg.With().Str("file", name).Logger()

	lg.Info().Msgf("Starting upload of %s...", name)
	stored, err := h.store.Put(r.Context(), name, content)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return store.Stored{}, fail(ErrConnectionReset, err)
		}
		return store.Stored{}, fail(ErrInternal, err)
	}

	ev := lg.Info().Int64("size", stored.Size).Str("blake2b", stored.Digest)
	if info, ok := mediainfo.Probe(content); ok {
		ev = ev.Stringer("image", info)
	}
	ev.Msgf("Uploaded: %s (Size: %d bytes)", stored.Name, stored.Size)
	if stored.Replaced {
		lg.Warn().Str("path", stored.Path).Msg("Existing file was overwritten")
	}
	return stored, nil
}

func (h *Handler) readBody(body io.Reader, n int64) ([]byte, error) {
	bar := progress.New(h.progress, "Receiving upload", n)
	defer bar.Finish()

	var buf bytes.Buffer
	buf.Grow(int(min(n, maxPrealloc)))
	got, err := buf.ReadFrom(io.TeeReader(io.LimitReader(body, n), bar))
	if err != nil {
		return nil, err
	}
	if got != n {
		return nil, errors.Errorf("short body: got %d of %d bytes", got, n)
	}
	return buf.Bytes(), nil
}
