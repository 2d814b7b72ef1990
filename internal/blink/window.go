package blink

import "fmt"

// Window is a fixed-capacity FIFO of recent raw heights for one eye.
type Window struct {
	values   []float64
	capacity int
}

// NewWindow creates an empty window. Capacities below 1 are raised to 1.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		values:   make([]float64, 0, capacity),
		capacity: capacity,
	}
}

// Push appends v, evicting the oldest sample when the window is full,
// and returns the mean of the samples now held.
func (w *Window) Push(v float64) float64 {
	if len(w.values) >= w.capacity {
		copy(w.values, w.values[1:])
		w.values = w.values[:w.capacity-1]
	}
	w.values = append(w.values, v)

	if len(w.values) > w.capacity {
		panic(fmt.Sprintf("blink: window holds %d samples, capacity %d", len(w.values), w.capacity))
	}

	return w.Mean()
}

// Mean returns the arithmetic mean of the held samples, or 0 when empty.
func (w *Window) Mean() float64 {
	if len(w.values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.values {
		sum += v
	}
	return sum / float64(len(w.values))
}

// Len returns the number of samples held.
func (w *Window) Len() int {
	return len(w.values)
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return w.capacity
}

// Values returns a copy of the held samples, oldest first.
func (w *Window) Values() []float64 {
	out := make([]float64, len(w.values))
	copy(out, w.values)
	return out
}
