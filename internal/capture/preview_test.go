package capture

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestPreview_EncodesOnlyWhileWatched(t *testing.T) {
	mat := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	frame := &Frame{Mat: mat, Seq: 1, Captured: time.Now()}
	defer frame.Close()

	p := NewPreview()
	if err := p.Update(frame); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := p.Next(ctx, 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected no frame without viewers, got %v", err)
	}

	stop := p.Watch()
	if !p.Watching() {
		t.Fatal("expected Watching() after Watch")
	}
	if err := p.Update(frame); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	data, seq, err := p.Next(context.Background(), 0)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if seq != 1 {
		t.Errorf("expected seq 1, got %d", seq)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Error("expected JPEG data")
	}

	stop()
	stop()
	if p.Watching() {
		t.Error("expected no viewers after stop")
	}
}

func TestPreview_NextWaitsForNewFrame(t *testing.T) {
	p := NewPreview()
	defer p.Watch()()

	p.set([]byte("one"), 1, time.Now())

	got := make(chan uint64, 1)
	go func() {
		_, seq, err := p.Next(context.Background(), 1)
		if err == nil {
			got <- seq
		}
	}()

	select {
	case seq := <-got:
		t.Fatalf("Next returned stale frame %d", seq)
	case <-time.After(50 * time.Millisecond):
	}

	p.set([]byte("two"), 2, time.Now())
	select {
	case seq := <-got:
		if seq != 2 {
			t.Errorf("expected seq 2, got %d", seq)
		}
	case <-time.After(time.Second):
		t.Fatal("Next did not wake on a new frame")
	}
}
