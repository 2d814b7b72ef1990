// Package trace records the eye frames fed to the blink detector so a session
// can be replayed offline with different detector settings.
//
// A trace file is the 8-byte magic "PALAKTR1" followed by records. Each record
// is an 8-byte little-endian unix-nano timestamp, a 4-byte little-endian payload
// size, and a CBOR payload.
package trace

import (
	"errors"
	"time"

	"github.com/ayusman/palak/internal/blink"
)

// Magic identifies a trace file.
const Magic = "PALAKTR1"

const headerSize = 12

// MaxRecordSize bounds a record payload. Real records are a few dozen bytes.
const MaxRecordSize = 64 * 1024

var (
	// ErrBadMagic is returned when a stream does not start with Magic.
	ErrBadMagic = errors.New("trace: bad magic")
	// ErrRecordTooLarge is returned for a record header claiming more than MaxRecordSize bytes.
	ErrRecordTooLarge = errors.New("trace: record too large")
	// ErrClosed is returned when recording to a closed Writer.
	ErrClosed = errors.New("trace: writer is closed")
)

// Record is one frame as seen by the detector.
type Record struct {
	Time    time.Time `cbor:"-"`
	Nanos   int64     `cbor:"t"`
	Present bool      `cbor:"present"`
	Left    float64   `cbor:"l"`
	Right   float64   `cbor:"r"`
}

// NewRecord builds a record for frame. A nil frame is recorded as absent.
func NewRecord(at time.Time, frame *blink.EyeFrame) Record {
	r := Record{Time: at, Nanos: at.UnixNano()}
	if frame != nil {
		r.Present = true
		r.Left = frame.Left
		r.Right = frame.Right
	}
	return r
}

// Frame returns the recorded frame, or nil when no face was present.
func (r Record) Frame() *blink.EyeFrame {
	if !r.Present {
		return nil
	}
	return &blink.EyeFrame{Left: r.Left, Right: r.Right}
}
