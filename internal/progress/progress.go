// Package progress draws a single-line transfer indicator on a terminal.
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
)

// Bar counts bytes written through it and redraws a status line each time
// the whole percentage changes. A Bar with a nil output only counts.
type Bar struct {
	out   io.Writer
	desc  string
	total int64

	mu   sync.Mutex
	done int64
	pct  int
	end  bool
}

func New(out io.Writer, desc string, total int64) *Bar {
	return &Bar{out: out, desc: desc, total: total, pct: -1}
}

// Write implements io.Writer; it never fails.
func (b *Bar) Write(p []byte) (int, error) {
	b.Add(int64(len(p)))
	return len(p), nil
}

// Add records n more transferred bytes.
func (b *Bar) Add(n int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done += n
	pct := b.percent()
	if pct != b.pct {
		b.pct = pct
		b.draw()
	}
}

// Done is the number of bytes counted so far.
func (b *Bar) Done() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Finish redraws the final state and ends the line. Further calls are no-ops.
func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.end {
		return
	}
	b.end = true
	b.draw()
	if b.out != nil {
		_, _ = io.WriteString(b.out, "\n")
	}
}

func (b *Bar) percent() int {
	if b.total <= 0 {
		return 100
	}
	p := int(b.done * 100 / b.total)
	if p > 100 {
		p = 100
	}
	return p
}

func (b *Bar) draw() {
	if b.out == nil {
		return
	}
	_, _ = fmt.Fprintf(b.out, "\r%s %3d%% %s/%s", b.desc, b.percent(),
		humanize.Bytes(uint64(b.done)), humanize.Bytes(uint64(max(b.total, 0))))
}
