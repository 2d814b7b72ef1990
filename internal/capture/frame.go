package capture

import (
	"time"

	"gocv.io/x/gocv"
)

// Frame is one captured image stamped at the moment the device delivered it.
// Blink timing is measured from Captured, not from when the frame is processed.
type Frame struct {
	Mat      gocv.Mat
	Seq      uint64
	Captured time.Time
}

// Close releases the underlying Mat.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Stats summarizes a camera's delivery since it was opened.
type Stats struct {
	Frames      uint64    `json:"frames"`
	Failures    uint64    `json:"failures"`
	FirstFrame  time.Time `json:"first_frame"`
	LastCapture time.Time `json:"last_capture"`
}

// EffectiveFPS is the delivered frame rate between the first and last frame.
// It is 0 until two frames have arrived.
func (s Stats) EffectiveFPS() float64 {
	if s.Frames < 2 {
		return 0
	}
	elapsed := s.LastCapture.Sub(s.FirstFrame).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.Frames-1) / elapsed
}

// record updates s for a frame delivered at t.
func (s *Stats) record(t time.Time) {
	if s.Frames == 0 {
		s.FirstFrame = t
	}
	s.Frames++
	s.LastCapture = t
}
