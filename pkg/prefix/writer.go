package prefix

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// Writer interleaves the output of several named sources, one whole line at
// a time, each line led by its padded source name.
type Writer struct {
	lock   sync.Mutex
	max    int
	writer io.Writer
}

func NewWriter(w io.Writer, prefixes []string) *Writer {
	max := 0

	for _, p := range prefixes {
		if l := len(p); l > max {
			max = l
		}
	}

	return &Writer{max: max, writer: w}
}

// Writer returns an io.Writer for prefix. Partial lines are held until their
// newline arrives or Flush is called.
func (w *Writer) Writer(prefix string) *Line {
	return &Line{parent: w, prefix: prefix}
}

func (w *Writer) Writef(prefix string, format string, args ...interface{}) {
	w.lock.Lock()
	defer w.lock.Unlock()

	fmt.Fprintf(w.writer, "%-*s | %s", w.max, prefix, fmt.Sprintf(format, args...))
}

type Line struct {
	lock   sync.Mutex
	parent *Writer
	prefix string
	buf    []byte
}

func (l *Line) Write(p []byte) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.buf = append(l.buf, p...)

	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}

		l.parent.Writef(l.prefix, "%s\n", l.buf[:i])
		l.buf = l.buf[i+1:]
	}

	return len(p), nil
}

// Flush writes any held partial line.
func (l *Line) Flush() {
	l.lock.Lock()
	defer l.lock.Unlock()

	if len(l.buf) > 0 {
		l.parent.Writef(l.prefix, "%s\n", l.buf)
		l.buf = nil
	}
}
