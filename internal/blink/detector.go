// Package blink turns per-frame eye heights into a running count of blinks.
//
// A Detector smooths each eye's height over a short window, locks a baseline
// "open eye" height from the first plausible frame, and counts a blink on every
// transition from open to closed. A Detector is not safe for concurrent use;
// callers must serialise frame delivery.
package blink

import (
	"fmt"

	"go.uber.org/zap"
)

// State is the combined open/closed classification of both eyes.
type State int

const (
	// Open means neither eye is below the closure threshold.
	Open State = iota
	// Closed means at least one eye is below the closure threshold.
	Closed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EyeFrame holds the raw normalized eye heights for one video frame.
type EyeFrame struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// FrameResult is the decision produced for one frame.
type FrameResult struct {
	State         State   `json:"state"`
	BlinkOccurred bool    `json:"blink"`
	Count         uint64  `json:"count"`
	Present       bool    `json:"present"`
	LeftSmoothed  float64 `json:"left_smoothed"`
	RightSmoothed float64 `json:"right_smoothed"`
	Baseline      float64 `json:"baseline"`
	Calibrated    bool    `json:"calibrated"`
}

// Snapshot is a read-only view of a Detector.
type Snapshot struct {
	State              State   `json:"state"`
	Count              uint64  `json:"count"`
	Baseline           float64 `json:"baseline"`
	Calibrated         bool    `json:"calibrated"`
	Frames             uint64  `json:"frames"`
	AbsentFrames       uint64  `json:"absent_frames"`
	UncalibratedFrames uint64  `json:"uncalibrated_frames"`
}

// Detector is the stateful blink classifier.
type Detector struct {
	config   Config
	logger   *zap.Logger
	left     *Window
	right    *Window
	baseline Baseline
	state    State
	count    uint64

	lastLeft  float64
	lastRight float64

	frames       uint64
	absent       uint64
	uncalibrated uint64
}

// New creates a Detector with the given config.
// A nil logger disables logging.
func New(config Config, logger *zap.Logger) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Detector{
		config: config,
		logger: logger,
		left:   NewWindow(config.WindowSize),
		right:  NewWindow(config.WindowSize),
		state:  Open,
	}, nil
}

// Process consumes one frame. A nil frame means no face was found and leaves
// all detector state untouched.
func (d *Detector) Process(frame *EyeFrame) FrameResult {
	if frame == nil {
		d.absent++
		return d.result(false, false)
	}
	d.frames++

	d.lastLeft = d.left.Push(frame.Left)
	d.lastRight = d.right.Push(frame.Right)

	if d.baseline.Calibrate(d.lastLeft, d.lastRight, d.config.CalibrationMin) {
		value, _ := d.baseline.Value()
		d.logger.Info("baseline calibrated",
			zap.Float64("baseline", value),
			zap.Uint64("frame", d.frames),
		)
	}
	if !d.baseline.Calibrated() {
		d.uncalibrated++
	}

	threshold := d.baseline.Or(d.config.InitialBaseline) * d.config.ClosureRatio
	closedNow := d.lastLeft < threshold || d.lastRight < threshold

	blinked := false
	switch {
	case d.state == Open && closedNow:
		d.state = Closed
		d.count++
		blinked = true
		d.logger.Debug("blink",
			zap.Uint64("count", d.count),
			zap.Float64("left", d.lastLeft),
			zap.Float64("right", d.lastRight),
			zap.Float64("threshold", threshold),
		)
	case d.state == Closed && !closedNow:
		d.state = Open
	}

	return d.result(true, blinked)
}

func (d *Detector) result(present, blinked bool) FrameResult {
	return FrameResult{
		State:         d.state,
		BlinkOccurred: blinked,
		Count:         d.count,
		Present:       present,
		LeftSmoothed:  d.lastLeft,
		RightSmoothed: d.lastRight,
		Baseline:      d.baseline.Or(d.config.InitialBaseline),
		Calibrated:    d.baseline.Calibrated(),
	}
}

// Count returns the cumulative number of blinks.
func (d *Detector) Count() uint64 {
	return d.count
}

// State returns the current classification.
func (d *Detector) State() State {
	return d.state
}

// Baseline returns the calibration state.
func (d *Detector) Baseline() Baseline {
	return d.baseline
}

// Config returns the detector's config.
func (d *Detector) Config() Config {
	return d.config
}

// Snapshot returns the current detector state.
func (d *Detector) Snapshot() Snapshot {
	return Snapshot{
		State:              d.state,
		Count:              d.count,
		Baseline:           d.baseline.Or(d.config.InitialBaseline),
		Calibrated:         d.baseline.Calibrated(),
		Frames:             d.frames,
		AbsentFrames:       d.absent,
		UncalibratedFrames: d.uncalibrated,
	}
}
