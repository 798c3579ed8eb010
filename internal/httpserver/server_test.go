package httpserver

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"armory/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	root := filepath.Join(t.TempDir(), "www")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "uploads"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello, world"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "tool.bin"), []byte{0, 1, 2, 3}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(root), "secret.txt"), []byte("outside"), 0o644))
	return config.Config{
		Host:      "127.0.0.1",
		Port:      0,
		Root:      root,
		UploadDir: filepath.Join(root, "uploads"),
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(Options{Config: testConfig(t), Logger: zerolog.Nop()})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func doRequest(t *testing.T, method, url string, body io.Reader, hdr map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func TestGetFile(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := doRequest(t, http.MethodGet, ts.URL+"/hello.txt", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello, world", string(body))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.Empty(t, resp.Header.Get("Server"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/sub/tool.bin", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte{0, 1, 2, 3}, body)
}

func TestGetNeverListsDirectories(t *testing.T) {
	_, ts := newTestServer(t)

	for _, p := range []string{"/", "/uploads", "/uploads/", "/sub", "/missing.txt", "/upload"} {
		resp, body := doRequest(t, http.MethodGet, ts.URL+p, nil, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, p)
		assert.Empty(t, body, p)
	}
}

func TestGetStaysInsideRoot(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/hello.txt", nil)
	req.URL.Path = "/../secret.txt"
	rr := httptest.NewRecorder()

	srv.handleFile(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NotContains(t, rr.Body.String(), "outside")
}

func TestHeadAndRange(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := doRequest(t, http.MethodHead, ts.URL+"/hello.txt", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)
	assert.Equal(t, "12", resp.Header.Get("Content-Length"))

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/hello.txt", nil, map[string]string{"Range": "bytes=0-4"})
	require.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Equal(t, "hello", string(body))
}

func TestDispatch(t *testing.T) {
	_, ts := newTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/elsewhere", http.StatusNotFound},
		{http.MethodPost, "/", http.StatusNotFound},
		{http.MethodPut, "/hello.txt", http.StatusNotImplemented},
		{http.MethodDelete, "/hello.txt", http.StatusNotImplemented},
		{http.MethodPut, "/upload", http.StatusNotImplemented},
		{http.MethodPost, "/upload", http.StatusBadRequest},
	}
	for _, tt := range tests {
		resp, body := doRequest(t, tt.method, ts.URL+tt.path, nil, nil)
		assert.Equal(t, tt.want, resp.StatusCode, "%s %s", tt.method, tt.path)
		assert.Empty(t, body, "%s %s", tt.method, tt.path)
	}
}

func TestUploadThenDownload(t *testing.T) {
	_, ts := newTestServer(t)
	content := []byte("%PDF-1.4...\x00\xff\r\n")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "report.PDF")
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/upload", &buf,
		map[string]string{"Content-Type": mw.FormDataContentType()})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "File uploaded successfully", string(body))

	resp, body = doRequest(t, http.MethodGet, ts.URL+"/uploads/report.PDF", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, content, body)
}

func TestUploadTextPlainRejected(t *testing.T) {
	srv, ts := newTestServer(t)

	resp, body := doRequest(t, http.MethodPost, ts.URL+"/upload", bytes.NewReader([]byte("hi")),
		map[string]string{"Content-Type": "text/plain"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, body)

	ents, err := os.ReadDir(srv.cfg.UploadDir)
	require.NoError(t, err)
	assert.Empty(t, ents)
}

func TestDownloadProgress(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	srv := New(Options{Config: cfg, Logger: zerolog.Nop(), Progress: &out})
	rr := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/hello.txt", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, out.String(), "hello.txt 100% 12 B/12 B\n")
}

func TestRequestLog(t *testing.T) {
	var logs bytes.Buffer
	srv := New(Options{Config: testConfig(t), Logger: zerolog.New(&logs)})
	rr := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, logs.String(), `\"GET /nope HTTP/1.1\" 404`)
}

func TestServeAndShutdown(t *testing.T) {
	srv := New(Options{Config: testConfig(t), Logger: zerolog.Nop()})
	ln, err := srv.Listen()
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	resp, body := doRequest(t, http.MethodGet, "http://"+ln.Addr().String()+"/hello.txt", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello, world", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-errCh)
}

func TestListenAddrInUse(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := testConfig(t)
	cfg.Port, err = strconv.Atoi(portOf(t, taken.Addr()))
	require.NoError(t, err)

	_, err = New(Options{Config: cfg, Logger: zerolog.Nop()}).Listen()
	require.Error(t, err)
	assert.True(t, IsAddrInUse(err), "%v", err)
	assert.False(t, IsAddrInUse(os.ErrPermission))
}

func portOf(t *testing.T, a net.Addr) string {
	t.Helper()
	_, port, err := net.SplitHostPort(a.String())
	require.NoError(t, err)
	return port
}
