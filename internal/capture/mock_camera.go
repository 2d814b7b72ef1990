package capture

import (
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// ErrNoFrames is returned by MockCamera once playback is exhausted.
var ErrNoFrames = errors.New("no more frames")

// MockCamera plays back pre-recorded frames for testing. Frames are stamped on
// a synthetic clock that advances exactly 1/FPS per frame from the start time.
type MockCamera struct {
	frames []*gocv.Mat
	index  int
	loop   bool
	fps    int
	start  time.Time
	fixed  bool
	open   bool
	stats  Stats
	mu     sync.Mutex
}

func NewMockCamera(frames []*gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{
		frames: frames,
		loop:   loop,
		fps:    DefaultFPS,
	}
}

// SetStartTime pins the timestamp of the first frame. Without it the clock
// starts at Open.
func (c *MockCamera) SetStartTime(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = t
	c.fixed = true
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.index = 0
	c.stats = Stats{}
	if !c.fixed {
		c.start = time.Now()
	}
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *MockCamera) ReadFrame() (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, ErrCameraNotOpen
	}
	if len(c.frames) == 0 {
		c.stats.Failures++
		return nil, ErrNoFrames
	}
	if c.index >= len(c.frames) {
		if !c.loop {
			c.stats.Failures++
			return nil, ErrNoFrames
		}
		c.index = 0
	}

	// Clone the frame so the original isn't modified
	mat := c.frames[c.index].Clone()
	c.index++

	captured := c.start.Add(time.Duration(c.stats.Frames) * time.Second / time.Duration(c.fps))
	c.stats.record(captured)
	return &Frame{Mat: mat, Seq: c.stats.Frames, Captured: captured}, nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *MockCamera) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Reads returns the number of frames delivered since Open.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return int(c.stats.Frames)
}

// SetFrames replaces the frame sequence
func (c *MockCamera) SetFrames(frames []*gocv.Mat) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = frames
	c.index = 0
}
