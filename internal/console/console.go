// Package console implements the interactive directory listing: pressing L
// (followed by Enter on a line-buffered terminal) prints the contents of the
// served directory.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
)

const Hint = "Press 'L' to list the current directory contents."

type Lister struct {
	In  io.Reader
	Out io.Writer
	Dir string
}

// Run reads keys until ctx is done or In reaches EOF. The goroutine blocked
// on In is left behind when ctx ends first; stdin cannot be interrupted.
func (l *Lister) Run(ctx context.Context) error {
	keys := make(chan byte)
	readErr := make(chan error, 1)
	go func() {
		br := bufio.NewReader(l.In)
		for {
			c, err := br.ReadByte()
			if err != nil {
				readErr <- err
				return
			}
			select {
			case keys <- c:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, "read console")
		case c := <-keys:
			if c != 'l' && c != 'L' {
				continue
			}
			if err := l.List(); err != nil {
				fmt.Fprintf(l.Out, "Error: %v\n", err)
			}
		}
	}
}

// List prints the sorted entry names of Dir.
func (l *Lister) List() error {
	ents, err := os.ReadDir(l.Dir)
	if err != nil {
		return errors.Wrapf(err, "list %s", l.Dir)
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	fmt.Fprintln(l.Out, "\nCurrent Directory Contents:")
	for _, n := range names {
		fmt.Fprintf(l.Out, "  - %s\n", n)
	}
	return nil
}
