// Package app wires the camera, landmark detector, and blink detector into the
// running palak pipeline and fans its results out to sinks and plugin actions.
package app

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/palak/internal/blink"
	"github.com/ayusman/palak/internal/capture"
	"github.com/ayusman/palak/internal/detector"
	"github.com/ayusman/palak/internal/logging"
	"github.com/ayusman/palak/internal/plugin"
	"github.com/ayusman/palak/internal/store"
	"github.com/ayusman/palak/internal/trace"
)

// DefaultUncalibratedWarnFrames is how many present frames may pass without a
// baseline before a warning is logged. About ten seconds at the default rate.
const DefaultUncalibratedWarnFrames = 150

// Config holds configuration options for the application.
type Config struct {
	Store                  *store.Store
	PluginDir              string
	CameraID               int
	FPS                    int
	Blink                  blink.Config
	UncalibratedWarnFrames uint64
	TraceDir               string
	Logger                 *zap.Logger
}

// Update is published to sinks whenever the blink state changes.
type Update struct {
	Count         uint64      `json:"count"`
	BlinkOccurred bool        `json:"blink"`
	State         blink.State `json:"state"`
	Calibrated    bool        `json:"calibrated"`
	Timestamp     time.Time   `json:"timestamp"`
}

// Sink receives pipeline updates. Publish must not block for long; it runs on
// the frame path.
type Sink interface {
	Publish(Update)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Update)

// Publish calls f(u).
func (f SinkFunc) Publish(u Update) { f(u) }

// App is the main application that turns camera frames into blink counts.
type App struct {
	config     Config
	logger     *zap.Logger
	camera     capture.Camera
	detector   detector.Detector
	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor
	preview    *capture.Preview
	sinks      []Sink
	enabled    bool
	mu         sync.RWMutex
	stopCh     chan struct{}
	doneCh     chan struct{}

	// frameMu serialises all access to the blink detector.
	frameMu sync.Mutex
	blink   *blink.Detector
	offset  uint64
	warned  bool
	trace   *trace.Writer

	actions sync.WaitGroup
}

// New creates a new App instance with the given configuration.
// A zero Blink config selects blink.DefaultConfig.
func New(config Config) (*App, error) {
	config.Logger = logging.OrNop(config.Logger)
	if config.Blink == (blink.Config{}) {
		config.Blink = blink.DefaultConfig()
	}
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.UncalibratedWarnFrames == 0 {
		config.UncalibratedWarnFrames = DefaultUncalibratedWarnFrames
	}
	logger := logging.WithOperation(config.Logger, "app", "")

	core, err := blink.New(config.Blink, logging.WithOperation(config.Logger, "blink", "process"))
	if err != nil {
		return nil, err
	}

	camera := capture.NewCamera(config.CameraID)
	camera.SetFPS(config.FPS)

	a := &App{
		config:     config,
		logger:     logger,
		camera:     camera,
		preview:    capture.NewPreview(),
		pluginMgr:  plugin.NewManager(config.PluginDir, logging.WithOperation(config.Logger, "plugin", "discover")),
		pluginExec: plugin.NewExecutor(plugin.DefaultTimeout, logging.WithOperation(config.Logger, "plugin", "execute")),
		blink:      core,
	}

	if config.TraceDir != "" {
		w, err := trace.Create(config.TraceDir, "frames")
		if err != nil {
			return nil, fmt.Errorf("create trace: %w", err)
		}
		a.trace = w
		logger.Info("recording frame trace", zap.String("path", w.Path()))
	}

	// Try MediaPipe first, fall back to mock detector
	if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig(), logging.WithOperation(config.Logger, "detector", "detect")); err == nil {
		a.detector = mp
		logger.Info("using MediaPipe face mesh detection")
	} else {
		logger.Warn("MediaPipe not available, using mock detector", zap.Error(err))
		a.detector = detector.NewMockDetector()
	}

	return a, nil
}

// SetEnabled enables or disables blink detection.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether blink detection is currently enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetDetector sets the landmark detector implementation to use.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.detector = d
}

// SetCamera replaces the frame source. It must be called before Start.
func (a *App) SetCamera(c capture.Camera) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.camera = c
}

// AddSink registers s to receive updates.
func (a *App) AddSink(s Sink) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sinks = append(a.sinks, s)
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// Start opens the camera and begins the detection pipeline.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.camera.SetFPS(a.config.FPS)

	a.stopCh = make(chan struct{})
	a.doneCh = make(chan struct{})
	go a.runPipeline(a.stopCh, a.doneCh)

	a.logger.Info("detection pipeline started", zap.Int("fps", a.config.FPS))
	return nil
}

// Stop halts the detection pipeline, closes the camera, and waits for
// in-flight plugin actions. It may be called more than once.
func (a *App) Stop() {
	a.mu.Lock()
	stop, done := a.stopCh, a.doneCh
	a.stopCh, a.doneCh = nil, nil
	camera := a.camera
	a.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	if err := camera.Close(); err != nil {
		a.logger.Warn("error closing camera", zap.Error(err))
	}

	a.actions.Wait()

	a.frameMu.Lock()
	if a.trace != nil {
		if err := a.trace.Flush(); err != nil {
			a.logger.Warn("error flushing trace", zap.Error(err))
		}
	}
	a.frameMu.Unlock()

	if stop != nil {
		a.logger.Info("detection pipeline stopped")
	}
}

// Close stops the pipeline and releases the detector and trace file.
func (a *App) Close() error {
	a.Stop()

	var firstErr error
	if d := a.Detector(); d != nil {
		if err := d.Close(); err != nil {
			a.logger.Warn("error closing detector", zap.Error(err))
			firstErr = err
		}
	}

	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	if a.trace != nil {
		if err := a.trace.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.trace = nil
	}
	return firstErr
}

// Reconfigure swaps in a detector built from cfg. The new detector
// recalibrates from scratch; the published count carries on from where the
// old detector left off.
func (a *App) Reconfigure(cfg blink.Config) error {
	core, err := blink.New(cfg, logging.WithOperation(a.config.Logger, "blink", "process"))
	if err != nil {
		return err
	}

	a.frameMu.Lock()
	defer a.frameMu.Unlock()

	a.offset += a.blink.Count()
	a.blink = core
	a.warned = false

	a.mu.Lock()
	a.config.Blink = cfg
	a.mu.Unlock()

	a.logger.Info("blink detector reconfigured",
		zap.Int("window_size", cfg.WindowSize),
		zap.Float64("closure_ratio", cfg.ClosureRatio),
		zap.Uint64("count", a.offset),
	)
	return nil
}

// BlinkConfig returns the active detector config.
func (a *App) BlinkConfig() blink.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.config.Blink
}

// Snapshot returns the current blink state with the cumulative count.
func (a *App) Snapshot() blink.Snapshot {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()

	s := a.blink.Snapshot()
	s.Count += a.offset
	return s
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.camera
}

// Preview returns the live preview fed by the pipeline.
func (a *App) Preview() *capture.Preview {
	return a.preview
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Detector returns the landmark detector.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}
