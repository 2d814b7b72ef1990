package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Preview holds the most recent frame the pipeline processed, JPEG-encoded,
// so viewers never read from the camera themselves. Encoding only happens
// while at least one viewer is watching.
type Preview struct {
	mu       sync.Mutex
	watchers int
	jpeg     []byte
	seq      uint64
	captured time.Time
	changed  chan struct{}
}

// NewPreview creates an empty Preview.
func NewPreview() *Preview {
	return &Preview{changed: make(chan struct{})}
}

// Watch registers a viewer. Call the returned function when it leaves.
func (p *Preview) Watch() (stop func()) {
	p.mu.Lock()
	p.watchers++
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			p.watchers--
			if p.watchers == 0 {
				p.jpeg = nil
			}
			p.mu.Unlock()
		})
	}
}

// Watching reports whether any viewer is registered.
func (p *Preview) Watching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watchers > 0
}

// Update encodes frame when someone is watching. The frame stays owned by the caller.
func (p *Preview) Update(frame *Frame) error {
	if !p.Watching() {
		return nil
	}

	buf, err := gocv.IMEncode(".jpg", frame.Mat)
	if err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	p.set(data, frame.Seq, frame.Captured)
	return nil
}

func (p *Preview) set(data []byte, seq uint64, captured time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jpeg = data
	p.seq = seq
	p.captured = captured
	close(p.changed)
	p.changed = make(chan struct{})
}

// Next blocks until a frame newer than after is available and returns its
// JPEG bytes and sequence number.
func (p *Preview) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		p.mu.Lock()
		if p.jpeg != nil && p.seq != after {
			data, seq := p.jpeg, p.seq
			p.mu.Unlock()
			return data, seq, nil
		}
		changed := p.changed
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, after, ctx.Err()
		case <-changed:
		}
	}
}
