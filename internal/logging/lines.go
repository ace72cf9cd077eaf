package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
)

// LineWriter turns a byte stream into one log record per line. Partial lines
// are buffered until a newline arrives or Flush is called.
type LineWriter struct {
	logger *slog.Logger
	level  slog.Level
	attrs  []any

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLineWriter logs every line written to it at level, with attrs attached.
func NewLineWriter(logger *slog.Logger, level slog.Level, attrs ...any) *LineWriter {
	return &LineWriter{
		logger: Ensure(logger),
		level:  level,
		attrs:  attrs,
	}
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		idx := bytes.IndexByte(w.buf.Bytes(), '\n')
		if idx < 0 {
			break
		}
		line := string(w.buf.Next(idx + 1))
		w.emit(line)
	}
	return len(p), nil
}

// Flush logs any buffered partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return
	}
	w.emit(w.buf.String())
	w.buf.Reset()
}

func (w *LineWriter) emit(line string) {
	line = strings.TrimRight(line, "\r\n\t ")
	if line == "" {
		return
	}
	w.logger.Log(context.Background(), w.level, line, w.attrs...)
}
