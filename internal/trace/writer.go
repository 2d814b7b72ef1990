package trace

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/ayusman/palak/internal/blink"
)

// Writer appends records to a trace stream. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	closer io.Closer
	w      *bufio.Writer
	n      uint64
	path   string
}

// Create opens a new timestamped trace file in dir.
func Create(dir, prefix string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := filepath.Join(dir, fmt.Sprintf("%s_%s.trace", time.Now().Format("20060102_150405"), prefix))
	f, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.closer = f
	w.path = name
	return w, nil
}

// NewWriter writes the trace magic to out and returns a Writer for it.
func NewWriter(out io.Writer) (*Writer, error) {
	w := bufio.NewWriterSize(out, 64*1024)
	if _, err := w.WriteString(Magic); err != nil {
		return nil, err
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return &Writer{w: w}, nil
}

// Path returns the file path for writers opened with Create.
func (t *Writer) Path() string {
	return t.path
}

// Count returns the number of records written.
func (t *Writer) Count() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

// RecordFrame appends frame stamped with at. A nil frame is recorded as absent.
func (t *Writer) RecordFrame(at time.Time, frame *blink.EyeFrame) error {
	return t.Write(NewRecord(at, frame))
}

// Write appends r.
func (t *Writer) Write(r Record) error {
	payload, err := cbor.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return ErrClosed
	}

	var header [headerSize]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(r.Nanos))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(payload)))
	if _, err := t.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := t.w.Write(payload); err != nil {
		return err
	}
	t.n++
	return nil
}

// Flush writes buffered records to the underlying stream.
func (t *Writer) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return ErrClosed
	}
	return t.w.Flush()
}

// Close flushes and, for files opened with Create, closes the file.
// Closing twice is a no-op.
func (t *Writer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return nil
	}
	err := t.w.Flush()
	t.w = nil
	if t.closer != nil {
		if cerr := t.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
