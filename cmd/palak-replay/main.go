// Command palak-replay feeds a recorded frame trace through the blink
// detector, so detector settings can be tuned against a real session.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/palak/internal/blink"
	"github.com/ayusman/palak/internal/logging"
	"github.com/ayusman/palak/internal/trace"
)

// summary is the outcome of one replay.
type summary struct {
	Frames     uint64
	Absent     uint64
	Blinks     uint64
	Calibrated bool
	Baseline   float64
	Truncated  bool
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "palak-replay: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	defaults := blink.DefaultConfig()
	fs := flag.NewFlagSet("palak-replay", flag.ContinueOnError)
	var (
		path            = fs.String("path", "", "Path to a .trace file")
		window          = fs.Int("window", defaults.WindowSize, "Smoothing window size in frames")
		calibrationMin  = fs.Float64("calibration-min", defaults.CalibrationMin, "Minimum smoothed height to lock the baseline")
		closureRatio    = fs.Float64("closure-ratio", defaults.ClosureRatio, "Fraction of baseline below which an eye is closed")
		initialBaseline = fs.Float64("initial-baseline", defaults.InitialBaseline, "Baseline used before calibration")
		verbose         = fs.Bool("v", false, "Log every frame")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *path == "" {
		return errors.New("path is required")
	}

	cfg := blink.Config{
		WindowSize:      *window,
		CalibrationMin:  *calibrationMin,
		ClosureRatio:    *closureRatio,
		InitialBaseline: *initialBaseline,
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid detector config: %w", err)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, err := logging.NewLogger(level, true)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	f, err := os.Open(*path)
	if err != nil {
		return fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	s, err := replay(f, cfg, stdout, logger)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if s.Truncated {
		logger.Warn("trace ends in a partial record", zap.String("path", *path), zap.Uint64("frames", s.Frames))
	}
	fmt.Fprintf(stdout, "frames=%d absent=%d calibrated=%t baseline=%.4f blinks=%d\n",
		s.Frames, s.Absent, s.Calibrated, s.Baseline, s.Blinks)
	return nil
}

// replay runs every record in r through a fresh detector built from cfg and
// prints one line per blink to w.
func replay(r io.Reader, cfg blink.Config, w io.Writer, logger *zap.Logger) (summary, error) {
	d, err := blink.New(cfg, logger)
	if err != nil {
		return summary{}, err
	}

	tr, err := trace.NewReader(r)
	if err != nil {
		return summary{}, err
	}

	var (
		s     summary
		start time.Time
	)
	for {
		rec, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			s.Truncated = true
			break
		}
		if err != nil {
			return s, err
		}

		if s.Frames == 0 {
			start = rec.Time
		}
		s.Frames++

		result := d.Process(rec.Frame())
		if !result.Present {
			s.Absent++
			continue
		}
		if result.BlinkOccurred {
			fmt.Fprintf(w, "blink %d frame=%d at=%s left=%.4f right=%.4f baseline=%.4f\n",
				result.Count, s.Frames-1, rec.Time.Sub(start), result.LeftSmoothed, result.RightSmoothed, result.Baseline)
		}
	}

	snap := d.Snapshot()
	s.Blinks = snap.Count
	s.Calibrated = snap.Calibrated
	s.Baseline = snap.Baseline
	return s, nil
}
