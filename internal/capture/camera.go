// Package capture provides the video frame source for blink detection using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Default camera settings. A blink lasts roughly 100-400ms, so the capture
// rate must leave several frames per closure for the smoothing window.
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480

	// MinBlinkFPS is the lowest rate at which a 100ms blink still lands on a frame.
	MinBlinkFPS = 10
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrFrameRead is returned when the device fails to deliver a frame.
	ErrFrameRead = errors.New("failed to read frame from camera")
	// ErrEmptyFrame is returned when the device delivers an empty frame.
	ErrEmptyFrame = errors.New("captured frame is empty")
)

// Camera is a source of timestamped frames.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller must Close it.
	ReadFrame() (*Frame, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
	Stats() Stats
}

// deviceCamera reads from a local video device.
type deviceCamera struct {
	deviceID int
	fps      int
	now      func() time.Time

	mu      sync.Mutex
	capture *gocv.VideoCapture
	stats   Stats
}

// NewCamera creates a Camera for the given device ID at DefaultFPS.
func NewCamera(deviceID int) Camera {
	return &deviceCamera{
		deviceID: deviceID,
		fps:      DefaultFPS,
		now:      time.Now,
	}
}

// Open starts capture at 640x480. Stats restart on every Open.
func (c *deviceCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return fmt.Errorf("open device %d: %w", c.deviceID, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	vc.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	vc.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = vc
	c.stats = Stats{}
	return nil
}

func (c *deviceCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}

func (c *deviceCamera) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		c.stats.Failures++
		return nil, ErrFrameRead
	}
	captured := c.now()
	if mat.Empty() {
		mat.Close()
		c.stats.Failures++
		return nil, ErrEmptyFrame
	}

	c.stats.record(captured)
	return &Frame{Mat: mat, Seq: c.stats.Frames, Captured: captured}, nil
}

// SetFPS requests a capture rate. Values less than or equal to 0 are ignored.
func (c *deviceCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *deviceCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *deviceCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}

func (c *deviceCamera) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
