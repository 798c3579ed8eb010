// Package store writes accepted uploads into the upload directory.
//
// Every file is written to a temporary name inside the upload directory and
// renamed over its final name once complete, so a crash or a dropped client
// never leaves a truncated file under the final name. An existing file with
// the same name is replaced.
package store

import (
	"context"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"armory/internal/progress"
)

const (
	chunkSize = 64 << 10
	tmpPrefix = ".upload-"
)

var ErrBadName = errors.New("name is not a plain file name")

type Store struct {
	dir      string
	progress io.Writer
}

// Stored describes a file after a successful Put.
type Stored struct {
	Name string
	Path string
	Size int64
	// Digest is the hex BLAKE2b-256 of the content.
	Digest string
	// Replaced is true when a file with the same name existed before.
	Replaced bool
}

// New returns a store rooted at dir. The directory is created lazily by Put.
// Write progress is drawn on progress when it is not nil.
func New(dir string, progress io.Writer) *Store {
	return &Store{dir: filepath.Clean(dir), progress: progress}
}

func (s *Store) Dir() string {
	return s.dir
}

// Put writes content to <dir>/<name>. name must already be sanitized; it is
// only checked to be a single path element.
func (s *Store) Put(ctx context.Context, name string, content []byte) (Stored, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, tmpPrefix) {
		return Stored{}, errors.Wrapf(ErrBadName, "%q", name)
	}
	// Safe under concurrent first uploads: MkdirAll ignores an existing dir.
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Stored{}, errors.Wrap(err, "create upload dir")
	}
	dst := filepath.Join(s.dir, name)
	_, statErr := os.Lstat(dst)
	replaced := statErr == nil

	tmp, err := os.CreateTemp(s.dir, tmpPrefix+"*")
	if err != nil {
		return Stored{}, errors.Wrap(err, "create temp file")
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	h, err := blake2b.New256(nil)
	if err != nil {
		return Stored{}, err
	}
	bar := progress.New(s.progress, "Uploading "+name, int64(len(content)))
	defer bar.Finish()

	w := io.MultiWriter(tmp, h, bar)
	for off := 0; off < len(content); off += chunkSize {
		if err := ctx.Err(); err != nil {
			return Stored{}, errors.Wrapf(err, "write %s interrupted at %d bytes", name, off)
		}
		end := min(off+chunkSize, len(content))
		if _, err := w.Write(content[off:end]); err != nil {
			return Stored{}, errors.Wrapf(err, "write %s", name)
		}
	}
	if err := tmp.Sync(); err != nil {
		return Stored{}, errors.Wrapf(err, "sync %s", name)
	}
	if err := tmp.Close(); err != nil {
		return Stored{}, errors.Wrapf(err, "close %s", name)
	}
	// CreateTemp uses 0600.
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return Stored{}, errors.Wrapf(err, "chmod %s", name)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return Stored{}, errors.Wrapf(err, "move %s into place", name)
	}
	committed = true

	return Stored{
		Name:     name,
		Path:     dst,
		Size:     int64(len(content)),
		Digest:   hex.EncodeToString(h.Sum(nil)),
		Replaced: replaced,
	}, nil
}
