package app

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/palak/internal/capture"
	"github.com/ayusman/palak/internal/detector"
	"github.com/ayusman/palak/internal/trace"
)

func newBlankFrames(t *testing.T, n int) []*gocv.Mat {
	t.Helper()
	frames := make([]*gocv.Mat, n)
	for i := range frames {
		m := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
		frames[i] = &m
	}
	t.Cleanup(func() {
		for _, m := range frames {
			m.Close()
		}
	})
	return frames
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestApp_Pipeline_CountsBlinks(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	a := newTestApp(t, Config{Blink: unsmoothed(), FPS: 100})

	mockCamera := capture.NewMockCamera(newBlankFrames(t, 1), true)
	a.SetCamera(mockCamera)

	open, closed := detector.OpenEyesLandmarks(), detector.ClosedEyesLandmarks()
	mockDetector := detector.NewMockDetector()
	mockDetector.SetSequence([]*detector.FaceLandmarks{
		open, open, closed, closed, open, nil, closed, open,
	})
	a.SetDetector(mockDetector)

	sink := &recordingSink{}
	a.AddSink(sink)

	a.SetEnabled(true)
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return mockDetector.Calls() >= 10 }) {
		t.Fatalf("pipeline processed only %d frames", mockDetector.Calls())
	}
	a.Stop()

	if mockCamera.IsOpen() {
		t.Error("expected camera to be closed after Stop")
	}

	snap := a.Snapshot()
	if snap.Count != 2 {
		t.Errorf("expected 2 blinks, got %d", snap.Count)
	}
	if snap.AbsentFrames != 1 {
		t.Errorf("expected 1 absent frame, got %d", snap.AbsentFrames)
	}

	var blinks int
	for _, u := range sink.Updates() {
		if u.BlinkOccurred {
			blinks++
		}
	}
	if blinks != 2 {
		t.Errorf("expected 2 blink updates, got %d", blinks)
	}
}

func TestApp_Pipeline_Disabled(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	a := newTestApp(t, Config{FPS: 100})
	mockCamera := capture.NewMockCamera(newBlankFrames(t, 1), true)
	a.SetCamera(mockCamera)

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	a.Stop()

	if mockCamera.Reads() != 0 {
		t.Errorf("disabled pipeline read %d frames", mockCamera.Reads())
	}
}

func TestApp_ProcessFrame_DetectorError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	a := newTestApp(t, Config{Blink: unsmoothed()})
	mockDetector := detector.NewMockDetector()
	mockDetector.SetError(errors.New("service crashed"))
	a.SetDetector(mockDetector)

	frame := &capture.Frame{Mat: gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3), Seq: 1, Captured: time.Now()}
	defer frame.Close()

	result, err := a.ProcessFrame(frame)
	if err == nil {
		t.Fatal("expected detector error")
	}
	if result.Present {
		t.Error("failed detection must count as an absent frame")
	}
	if a.Snapshot().AbsentFrames != 1 {
		t.Errorf("expected 1 absent frame, got %d", a.Snapshot().AbsentFrames)
	}

	mockDetector.SetError(nil)
	mockDetector.SetFace(detector.EyeLandmarks(0.10, 0.10))
	result, err = a.ProcessFrame(frame)
	if err != nil {
		t.Fatalf("ProcessFrame() error = %v", err)
	}
	if !result.Present || !result.Calibrated {
		t.Errorf("expected calibrated present frame, got %+v", result)
	}
}

func TestApp_Pipeline_UsesCaptureTime(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	traceDir := t.TempDir()
	a := newTestApp(t, Config{Blink: unsmoothed(), FPS: 100, TraceDir: traceDir})

	// Capture times an hour in the past can only come from the camera.
	start := time.Now().Add(-time.Hour).Truncate(time.Second)
	mockCamera := capture.NewMockCamera(newBlankFrames(t, 1), true)
	mockCamera.SetStartTime(start)
	a.SetCamera(mockCamera)

	open, closed := detector.OpenEyesLandmarks(), detector.ClosedEyesLandmarks()
	mockDetector := detector.NewMockDetector()
	mockDetector.SetSequence([]*detector.FaceLandmarks{open, open, closed, open})
	a.SetDetector(mockDetector)

	sink := &recordingSink{}
	a.AddSink(sink)

	a.SetEnabled(true)
	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return mockCamera.Reads() >= 6 }) {
		t.Fatalf("pipeline read only %d frames", mockCamera.Reads())
	}
	a.Stop()

	interval := time.Second / time.Duration(mockCamera.FPS())
	for _, u := range sink.Updates() {
		if u.BlinkOccurred && !u.Timestamp.Equal(start.Add(2*interval)) {
			t.Errorf("blink stamped %v, want capture time %v", u.Timestamp, start.Add(2*interval))
		}
	}

	paths, err := filepath.Glob(filepath.Join(traceDir, "*.trace"))
	if err != nil || len(paths) != 1 {
		t.Fatalf("expected one trace file, got %v (%v)", paths, err)
	}
	f, err := os.Open(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	r, err := trace.NewReader(f)
	if err != nil {
		t.Fatalf("NewReader() error = %v", err)
	}
	for i := 0; ; i++ {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			if i < 6 {
				t.Errorf("expected at least 6 records, got %d", i)
			}
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		want := start.Add(time.Duration(i) * interval)
		if !rec.Time.Equal(want) {
			t.Errorf("record %d at %v, want capture time %v", i, rec.Time, want)
		}
	}
}
