// Package filename turns untrusted upload names into names that are safe to
// join with the upload directory.
package filename

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalid is returned for names that still hold more than one dot after
// sanitizing.
var ErrInvalid = errors.New("filename contains multiple dots")

// Sanitize replaces every rune outside [A-Za-z0-9.] with '_' and rejects the
// result if it has more than one '.'. Bytes that are not valid UTF-8 are
// replaced one by one. The empty string sanitizes to itself; callers decide
// whether that is acceptable.
func Sanitize(raw string) (string, error) {
	var b strings.Builder
	b.Grow(len(raw))
	dots := 0
	for _, r := range raw {
		switch {
		case r == '.':
			dots++
			b.WriteByte('.')
		case allowed(r):
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if dots > 1 {
		return "", errors.Wrapf(ErrInvalid, "%q", raw)
	}
	return b.String(), nil
}

// Usable reports whether a sanitized name can be used as a file inside a
// directory: "" and "." would both resolve to the directory itself.
func Usable(name string) bool {
	return name != "" && name != "."
}

func allowed(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
