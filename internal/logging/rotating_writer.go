package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// RotatingWriter writes to files that rotate on UTC day boundaries and when
// a write would push the current file past MaxBytes. Output files are named
// <prefix>-YYYY-MM-DD[-N].log next to the configured base path.
type RotatingWriter struct {
	basePath string
	maxBytes int64

	mu      sync.Mutex
	curDate string
	curIdx  int
	file    *os.File
	size    int64
}

// NewRotatingWriter creates a rotating writer using basePath as the logical
// log file. A basePath of "-" discards all output.
func NewRotatingWriter(basePath string, maxBytes int64) (io.WriteCloser, error) {
	if strings.TrimSpace(basePath) == "-" {
		return nopWriteCloser{w: io.Discard}, nil
	}
	w := &RotatingWriter{basePath: basePath, maxBytes: maxBytes}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotateIfNeeded(0); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotateIfNeeded(int64(len(p))); err != nil {
		return 0, err
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close releases the current log file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}

func (w *RotatingWriter) rotateIfNeeded(incoming int64) error {
	today := time.Now().UTC().Format("2006-01-02")
	switch {
	case w.file == nil || w.curDate != today:
		w.curDate = today
		w.curIdx = 1
	case w.size+incoming > w.maxBytes:
		w.curIdx++
	default:
		return nil
	}
	return w.openCurrent()
}

func (w *RotatingWriter) openCurrent() error {
	if w.file != nil {
		_ = w.file.Close()
	}
	dir := filepath.Dir(w.basePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	name := filepath.Base(w.basePath)
	ext := filepath.Ext(name)
	if ext == "" {
		ext = ".log"
	}
	prefix := strings.TrimSuffix(name, filepath.Ext(name))
	suffix := ""
	if w.curIdx > 1 {
		suffix = fmt.Sprintf("-%d", w.curIdx)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s%s%s", prefix, w.curDate, suffix, ext))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	w.file = f
	w.size = size
	return nil
}

type nopWriteCloser struct{ w io.Writer }

func (n nopWriteCloser) Write(p []byte) (int, error) { return n.w.Write(p) }
func (n nopWriteCloser) Close() error                { return nil }
