package launcher

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// TailLines is how many output lines are kept for error reports.
const TailLines = 20

// ring keeps the last n lines written to it.
type ring struct {
	lines []string
	next  int
	full  bool
}

func newRing(n int) *ring {
	return &ring{lines: make([]string, n)}
}

func (r *ring) add(line string) {
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
}

func (r *ring) snapshot() []string {
	if !r.full {
		return append([]string(nil), r.lines[:r.next]...)
	}
	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.next:]...)
	return append(out, r.lines[:r.next]...)
}

// lineWriter splits subprocess output into lines. Every line goes to the
// ring; in verbose mode it is also echoed to out with a prefix. Stdout and
// stderr each get a lineWriter and share the ring and mutex.
type lineWriter struct {
	mu      *sync.Mutex
	tail    *ring
	out     io.Writer // nil unless verbose
	prefix  string
	pending []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.emit(string(bytes.TrimRight(w.pending[:i], "\r")))
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

// flush emits a trailing partial line.
func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.pending) > 0 {
		w.emit(string(w.pending))
		w.pending = nil
	}
}

func (w *lineWriter) emit(line string) {
	w.tail.add(line)
	if w.out != nil {
		fmt.Fprintf(w.out, "%s%s\n", w.prefix, line)
	}
}
