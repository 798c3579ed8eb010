// Package formdata extracts the first uploaded file from a fully buffered
// multipart/form-data body.
//
// It works on the raw bytes: the body is split on the boundary delimiter and
// every part is scanned with plain offsets, so file content is returned
// exactly as sent. Nested multipart bodies and Content-Transfer-Encoding are
// not interpreted.
package formdata

import (
	"bytes"
	"mime"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrMissingBoundary = errors.New("missing multipart boundary")
	ErrNoFileFound     = errors.New("no file part found")
	ErrMalformedPart   = errors.New("malformed multipart part")
)

var (
	crlf          = []byte("\r\n")
	headerEnd     = []byte("\r\n\r\n")
	dispositionFD = []byte("content-disposition: form-data")
	filenameAttr  = []byte(`filename="`)
	terminal      = []byte("--")
)

// Part is one section of a multipart body. Header and Content alias the body
// passed to Split.
type Part struct {
	Header  []byte
	Content []byte

	// Framed is false when the part has no blank line between its headers and
	// its content. Header then holds the whole part and Content is nil.
	Framed bool
}

// Boundary returns the boundary parameter of a multipart Content-Type value.
func Boundary(contentType string) (string, error) {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if b := params["boundary"]; b != "" {
			return b, nil
		}
		return "", ErrMissingBoundary
	}

	// Not a well formed media type; take whatever follows the last boundary=.
	i := strings.LastIndex(strings.ToLower(contentType), "boundary=")
	if i < 0 {
		return "", ErrMissingBoundary
	}
	b := contentType[i+len("boundary="):]
	if j := strings.IndexByte(b, ';'); j >= 0 {
		b = b[:j]
	}
	b = strings.Trim(strings.TrimSpace(b), `"`)
	if b == "" {
		return "", ErrMissingBoundary
	}
	return b, nil
}

// Split cuts body on "--"+boundary and returns the parts between delimiters.
// The preamble before the first delimiter is not a part. The segment after the
// closing delimiter is dropped, as is a trailing empty segment.
func Split(body []byte, boundary string) []Part {
	delim := append([]byte("--"), boundary...)
	segs := bytes.Split(body, delim)[1:]
	if n := len(segs); n > 0 {
		last := segs[n-1]
		if len(bytes.TrimSpace(last)) == 0 || bytes.HasPrefix(last, terminal) {
			segs = segs[:n-1]
		}
	}
	parts := make([]Part, 0, len(segs))
	for _, seg := range segs {
		parts = append(parts, splitPart(seg))
	}
	return parts
}

func splitPart(seg []byte) Part {
	i := bytes.Index(seg, headerEnd)
	if i < 0 {
		return Part{Header: seg}
	}
	content := seg[i+len(headerEnd):]
	// The CRLF in front of the next delimiter belongs to the framing.
	content = bytes.TrimSuffix(content, crlf)
	return Part{Header: seg[:i], Content: content, Framed: true}
}

// FormData reports whether the part declares Content-Disposition: form-data.
// Header names are matched case-insensitively.
func (p Part) FormData() bool {
	return bytes.Contains(bytes.ToLower(p.Header), dispositionFD)
}

// FileName returns the value of the filename="..." attribute. ok is false when
// the attribute is absent or unterminated.
func (p Part) FileName() (name string, ok bool) {
	h := p.Header
	off := 0
	for {
		i := bytes.Index(h[off:], filenameAttr)
		if i < 0 {
			return "", false
		}
		start := off + i
		off = start + len(filenameAttr)
		// Skip matches inside a longer attribute name such as myfilename="x".
		if start > 0 && !isAttrSep(h[start-1]) {
			continue
		}
		v := h[off:]
		end := bytes.IndexByte(v, '"')
		if end < 0 || bytes.IndexByte(v[:end], '\n') >= 0 {
			return "", false
		}
		return string(v[:end]), true
	}
}

func isAttrSep(c byte) bool {
	return c == ' ' || c == '\t' || c == ';'
}

// Parse returns the filename and content of the first file-bearing part of a
// multipart/form-data body. Parts whose filename is empty are skipped.
func Parse(contentType string, body []byte) (filename string, content []byte, err error) {
	boundary, err := Boundary(contentType)
	if err != nil {
		return "", nil, err
	}
	for i, p := range Split(body, boundary) {
		if !p.FormData() {
			continue
		}
		name, ok := p.FileName()
		if !ok || name == "" {
			continue
		}
		if !p.Framed {
			return "", nil, errors.Wrapf(ErrMalformedPart, "part %d (%q) has no header terminator", i, name)
		}
		return name, p.Content, nil
	}
	return "", nil, ErrNoFileFound
}
