package executor

import (
	"strings"
	"sync"
)

// tailWriter retains the last limit lines written through it so failure
// reports can show the end of a package's output without rereading log files.
type tailWriter struct {
	mu      sync.Mutex
	limit   int
	lines   []string
	partial strings.Builder
}

func newTailWriter(limit int) *tailWriter {
	if limit < 1 {
		limit = 1
	}
	return &tailWriter{limit: limit}
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, b := range p {
		if b == '\n' {
			w.lines = append(w.lines, w.partial.String())
			w.partial.Reset()
			if len(w.lines) > w.limit {
				w.lines = w.lines[len(w.lines)-w.limit:]
			}
			continue
		}
		w.partial.WriteByte(b)
	}
	return len(p), nil
}

// String returns the retained tail, including any unterminated final line.
func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	lines := w.lines
	if w.partial.Len() > 0 {
		lines = append(append([]string{}, lines...), w.partial.String())
		if len(lines) > w.limit {
			lines = lines[len(lines)-w.limit:]
		}
	}
	return strings.Join(lines, "\n")
}
