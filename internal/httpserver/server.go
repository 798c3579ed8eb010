package httpserver

import (
	"context"
	"errors"
	"io"
	stdlog "log"
	"mime"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"armory/internal/config"
	"armory/internal/fsutil"
	"armory/internal/progress"
	"armory/internal/store"
	"armory/internal/upload"
)

type Options struct {
	Config config.Config
	Logger zerolog.Logger
	// Progress receives transfer progress lines (usually stderr). Nil
	// disables them.
	Progress io.Writer
}

type Server struct {
	cfg      config.Config
	log      zerolog.Logger
	progress io.Writer
	uploads  *upload.Handler

	httpServer *http.Server
}

func New(opts Options) *Server {
	s := &Server{
		cfg:      opts.Config,
		log:      opts.Logger,
		progress: opts.Progress,
	}
	s.uploads = upload.New(upload.Options{
		Store:    store.New(opts.Config.UploadDir, opts.Progress),
		Logger:   opts.Logger,
		Progress: opts.Progress,
	})
	s.httpServer = &http.Server{
		Addr:              opts.Config.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          stdlog.New(opts.Logger.With().Str("component", "http").Logger(), "", 0),
	}
	return s
}

// Handler routes by method and path:
//
//	POST /upload    upload handler
//	GET|HEAD /...   file from the served root
//	other POST      404
//	anything else   501
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /upload", s.uploads)
	mux.HandleFunc("GET /", s.handleFile)
	mux.HandleFunc("/", s.handleOther)
	return s.logRequests(withHeaders(mux))
}

// Listen binds the configured address.
func (s *Server) Listen() (net.Listener, error) {
	return net.Listen("tcp", s.httpServer.Addr)
}

// Serve blocks until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- handlers ---

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	abs, err := fsutil.JoinWithinRoot(s.cfg.Root, r.URL.Path)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	f, err := os.Open(abs)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	defer f.Close()

	st, err := f.Stat()
	// Directories are never listed.
	if err != nil || !st.Mode().IsRegular() {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if ct := contentTypeForName(st.Name()); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	var content io.ReadSeeker = f
	if r.Method != http.MethodHead && s.progress != nil {
		bar := progress.New(s.progress, fsutil.CleanRelPath(r.URL.Path), st.Size())
		defer bar.Finish()
		content = &countingReader{ReadSeeker: f, bar: bar}
	}
	http.ServeContent(w, r, st.Name(), st.ModTime(), content)
}

func (s *Server) handleOther(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNotImplemented)
}

// --- middleware ---

func withHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		next.ServeHTTP(w, r)
	})
}

// logRequests writes one line per request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.log.Info().
			Str("remote", r.RemoteAddr).
			Int64("bytes", rec.size).
			Dur("elapsed", time.Since(start)).
			Msgf(`"%s %s %s" %d`, r.Method, r.URL.RequestURI(), r.Proto, rec.status)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int64
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += int64(n)
	return n, err
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type countingReader struct {
	io.ReadSeeker
	bar *progress.Bar
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.ReadSeeker.Read(p)
	c.bar.Add(int64(n))
	return n, err
}

// --- helpers ---

func contentTypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return ""
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	// Fallbacks for systems with sparse mime tables.
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".zip":
		return "application/zip"
	case ".gz":
		return "application/gzip"
	case ".tar":
		return "application/x-tar"
	case ".txt", ".log", ".md", ".sh", ".ps1", ".py", ".go", ".conf", ".ini":
		return "text/plain; charset=utf-8"
	default:
		return ""
	}
}
