package detector

import "gocv.io/x/gocv"

// Detector defines the interface for face landmark implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the eye landmarks of one face.
	// Returns nil, nil if no face is detected.
	Detect(frame *gocv.Mat) (*FaceLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for face landmark detection.
type Config struct {
	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// IdleTimeoutSec stops the landmark service after this many idle seconds.
	IdleTimeoutSec int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		IdleTimeoutSec:  30,
	}
}

// SelectBest picks the highest scoring face. Only one face is tracked.
func SelectBest(faces []FaceLandmarks) *FaceLandmarks {
	if len(faces) == 0 {
		return nil
	}

	best := &faces[0]
	for i := range faces[1:] {
		if faces[i+1].Score > best.Score {
			best = &faces[i+1]
		}
	}
	return best
}
