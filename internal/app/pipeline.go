package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/palak/internal/blink"
	"github.com/ayusman/palak/internal/capture"
	"github.com/ayusman/palak/internal/logging"
	"github.com/ayusman/palak/internal/plugin"
	"github.com/ayusman/palak/internal/store"
)

// runPipeline reads frames at the configured rate until stop is closed.
// Every tick yields exactly one call into the blink detector: a frame whose
// read or detection fails counts as a frame without a face.
func (a *App) runPipeline(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(a.config.FPS))
	defer ticker.Stop()

	var ticks uint64
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}
			ticks++

			camera := a.Camera()
			frame, err := camera.ReadFrame()
			if err != nil {
				a.logger.Debug("frame skipped", zap.Error(logging.NewOperationError("read_frame", ticks, err)))
				a.ProcessEyeFrame(nil)
				continue
			}

			if err := a.preview.Update(frame); err != nil {
				a.logger.Debug("preview skipped", zap.Error(logging.NewOperationError("preview", frame.Seq, err)))
			}
			if _, err := a.ProcessFrame(frame); err != nil {
				a.logger.Debug("frame skipped", zap.Error(logging.NewOperationError("detect", frame.Seq, err)))
			}
			frame.Close()

			if ticks%statsEvery == 0 {
				a.checkFrameRate(camera.Stats())
			}
		}
	}
}

// statsEvery is how many ticks pass between frame rate checks.
const statsEvery = 300

// checkFrameRate warns when the camera delivers too few frames to catch
// short blinks.
func (a *App) checkFrameRate(s capture.Stats) {
	fps := s.EffectiveFPS()
	if fps == 0 || fps >= capture.MinBlinkFPS {
		return
	}
	a.logger.Warn("camera frame rate too low for reliable blink detection",
		zap.Float64("effective_fps", fps),
		zap.Int("min_fps", capture.MinBlinkFPS),
		zap.Uint64("failures", s.Failures),
	)
}

// ProcessFrame runs landmark detection on frame and feeds the result to the
// blink detector, stamped with the frame's capture time. A detection error is
// returned alongside the result of processing the frame as absent.
func (a *App) ProcessFrame(frame *capture.Frame) (blink.FrameResult, error) {
	d := a.Detector()
	if d == nil {
		return a.processAt(frame.Captured, nil), errors.New("no detector configured")
	}

	face, err := d.Detect(&frame.Mat)
	if err != nil {
		return a.processAt(frame.Captured, nil), err
	}
	return a.processAt(frame.Captured, face.EyeFrame()), nil
}

// ProcessEyeFrame feeds one frame of eye heights to the blink detector and
// publishes the outcome. A nil frame means no face was found.
func (a *App) ProcessEyeFrame(frame *blink.EyeFrame) blink.FrameResult {
	return a.processAt(time.Now(), frame)
}

// processAt is ProcessEyeFrame for a frame captured at the given time.
func (a *App) processAt(captured time.Time, frame *blink.EyeFrame) blink.FrameResult {
	a.frameMu.Lock()
	if a.trace != nil {
		if err := a.trace.RecordFrame(captured, frame); err != nil {
			a.logger.Warn("trace write failed, recording stopped", zap.Error(err))
			a.trace.Close()
			a.trace = nil
		}
	}

	prev := a.blink.State()
	result := a.blink.Process(frame)
	result.Count += a.offset
	a.checkCalibration(result)
	a.frameMu.Unlock()

	if !result.Present || (!result.BlinkOccurred && result.State == prev) {
		return result
	}

	update := Update{
		Count:         result.Count,
		BlinkOccurred: result.BlinkOccurred,
		State:         result.State,
		Calibrated:    result.Calibrated,
		Timestamp:     captured,
	}

	a.mu.RLock()
	sinks := append([]Sink(nil), a.sinks...)
	a.mu.RUnlock()
	for _, s := range sinks {
		s.Publish(update)
	}

	if result.BlinkOccurred {
		a.runActions(result.Count)
	}
	return result
}

// checkCalibration warns once when faces keep arriving but the baseline never
// locks. Must be called with frameMu held.
func (a *App) checkCalibration(result blink.FrameResult) {
	if result.Calibrated || a.warned || !result.Present {
		return
	}
	snap := a.blink.Snapshot()
	if snap.UncalibratedFrames < a.config.UncalibratedWarnFrames {
		return
	}
	a.warned = true
	a.logger.Warn("baseline not calibrated, using initial baseline",
		zap.Uint64("frames", snap.UncalibratedFrames),
		zap.Float64("initial_baseline", a.blink.Config().InitialBaseline),
		zap.Float64("left", result.LeftSmoothed),
		zap.Float64("right", result.RightSmoothed),
	)
}

// runActions starts every enabled blink action in the background.
func (a *App) runActions(count uint64) {
	if a.config.Store == nil {
		return
	}

	actions, err := a.config.Store.Actions().ListEnabled(store.EventBlink)
	if err != nil {
		a.logger.Warn("failed to load blink actions", zap.Error(err))
		return
	}

	for _, act := range actions {
		p, err := a.pluginMgr.Get(act.PluginName)
		if err != nil {
			a.logger.Warn("blink action skipped",
				zap.String("action_id", act.ID),
				zap.String("plugin", act.PluginName),
				zap.Error(err),
			)
			continue
		}

		req := &plugin.Request{
			Action: act.ActionName,
			Event:  string(act.Event),
			Count:  count,
			Config: act.Config,
			Params: act.Params,
		}

		a.actions.Add(1)
		go func(id string) {
			defer a.actions.Done()
			resp, err := a.pluginExec.Execute(context.Background(), p, req)
			switch {
			case err != nil:
				a.logger.Warn("blink action failed",
					zap.String("action_id", id),
					zap.String("plugin", p.Manifest.Name),
					zap.Error(err),
				)
			case !resp.Success:
				a.logger.Warn("blink action rejected",
					zap.String("action_id", id),
					zap.String("plugin", p.Manifest.Name),
					zap.String("error", resp.Error),
				)
			}
		}(act.ID)
	}
}
