package trace

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Reader reads records from a trace stream.
type Reader struct {
	r *bufio.Reader
	n uint64
}

// NewReader checks the trace magic and returns a Reader positioned at the first record.
func NewReader(in io.Reader) (*Reader, error) {
	r := bufio.NewReader(in)
	magic := make([]byte, len(Magic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != Magic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, magic)
	}
	return &Reader{r: r}, nil
}

// Next returns the next record, or io.EOF after the last complete record.
// A record cut short by a crashed writer is reported as io.ErrUnexpectedEOF.
func (t *Reader) Next() (Record, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(t.r, header[:]); err != nil {
		return Record{}, err
	}
	ts := int64(binary.LittleEndian.Uint64(header[:8]))
	size := binary.LittleEndian.Uint32(header[8:12])
	if size > MaxRecordSize {
		return Record{}, fmt.Errorf("record %d: %w: %d bytes", t.n, ErrRecordTooLarge, size)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(t.r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Record{}, err
	}

	var rec Record
	if err := cbor.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("record %d: decode: %w", t.n, err)
	}
	if rec.Nanos == 0 {
		rec.Nanos = ts
	}
	rec.Time = time.Unix(0, rec.Nanos)
	t.n++
	return rec, nil
}

// Count returns the number of records read so far.
func (t *Reader) Count() uint64 {
	return t.n
}
