package blink

import (
	"errors"
	"fmt"
	"math"
)

// Default tuning values.
const (
	// DefaultWindowSize is the number of raw samples averaged per eye.
	DefaultWindowSize = 5
	// DefaultCalibrationMin is the smoothed height both eyes must exceed before
	// the baseline locks.
	DefaultCalibrationMin = 0.02
	// DefaultClosureRatio is the fraction of the baseline below which an eye counts as closed.
	DefaultClosureRatio = 0.6
	// DefaultInitialBaseline is the baseline used until calibration succeeds.
	DefaultInitialBaseline = 0.1

	// MaxWindowSize bounds the smoothing window: 20 s of history at 15 FPS.
	MaxWindowSize = 300
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid blink config")

// Config holds the tunable parameters of a Detector.
type Config struct {
	// WindowSize is the smoothing window capacity (default: 5).
	WindowSize int `json:"window_size"`

	// CalibrationMin is the plausibility threshold for calibration (default: 0.02).
	CalibrationMin float64 `json:"calibration_min"`

	// ClosureRatio is the closed-eye ratio relative to the baseline (default: 0.6).
	ClosureRatio float64 `json:"closure_ratio"`

	// InitialBaseline is the threshold baseline while uncalibrated (default: 0.1).
	InitialBaseline float64 `json:"initial_baseline"`
}

// DefaultConfig returns a Config with the stock tuning values.
func DefaultConfig() Config {
	return Config{
		WindowSize:      DefaultWindowSize,
		CalibrationMin:  DefaultCalibrationMin,
		ClosureRatio:    DefaultClosureRatio,
		InitialBaseline: DefaultInitialBaseline,
	}
}

// Validate reports whether the config can drive a Detector.
func (c Config) Validate() error {
	if c.WindowSize < 1 || c.WindowSize > MaxWindowSize {
		return fmt.Errorf("%w: window size %d must be in [1, %d]", ErrInvalidConfig, c.WindowSize, MaxWindowSize)
	}
	if !finite(c.ClosureRatio) || c.ClosureRatio <= 0 || c.ClosureRatio > 1 {
		return fmt.Errorf("%w: closure ratio %v must be in (0, 1]", ErrInvalidConfig, c.ClosureRatio)
	}
	if !finite(c.CalibrationMin) || c.CalibrationMin < 0 {
		return fmt.Errorf("%w: calibration min %v must be non-negative", ErrInvalidConfig, c.CalibrationMin)
	}
	if !finite(c.InitialBaseline) || c.InitialBaseline < 0 {
		return fmt.Errorf("%w: initial baseline %v must be non-negative", ErrInvalidConfig, c.InitialBaseline)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
