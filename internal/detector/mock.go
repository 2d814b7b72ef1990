package detector

import (
	"sync"

	"github.com/ayusman/palak/internal/blink"
	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It returns a fixed face, or plays back a scripted sequence one frame per call.
type MockDetector struct {
	mu       sync.Mutex
	face     *FaceLandmarks
	sequence []*FaceLandmarks
	index    int
	err      error
	calls    int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFace sets the face returned by every Detect call. Nil means no face.
func (m *MockDetector) SetFace(face *FaceLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.face = face
	m.sequence = nil
}

// SetSequence scripts the faces returned by successive Detect calls.
// Nil entries report no face. Once exhausted the last entry repeats.
func (m *MockDetector) SetSequence(faces []*FaceLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = faces
	m.index = 0
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the number of Detect calls made.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured face or error.
func (m *MockDetector) Detect(frame *gocv.Mat) (*FaceLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}

	if len(m.sequence) > 0 {
		face := m.sequence[m.index]
		if m.index < len(m.sequence)-1 {
			m.index++
		}
		return face, nil
	}

	return m.face, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// EyeLandmarks returns a face whose eye contours span the given heights.
// Each contour is a six point ellipse around a fixed eye center.
func EyeLandmarks(leftHeight, rightHeight float64) *FaceLandmarks {
	return &FaceLandmarks{
		LeftEye:  eyeContour(0.62, 0.42, leftHeight),
		RightEye: eyeContour(0.38, 0.42, rightHeight),
		Score:    0.95,
	}
}

// OpenEyesLandmarks returns a preset face with both eyes open.
func OpenEyesLandmarks() *FaceLandmarks {
	return EyeLandmarks(0.10, 0.10)
}

// ClosedEyesLandmarks returns a preset face with both eyes closed.
func ClosedEyesLandmarks() *FaceLandmarks {
	return EyeLandmarks(0.02, 0.02)
}

func eyeContour(cx, cy, height float64) []blink.Point2D {
	half := height / 2
	return []blink.Point2D{
		{X: cx - 0.05, Y: cy},
		{X: cx - 0.02, Y: cy - half},
		{X: cx + 0.02, Y: cy - half},
		{X: cx + 0.05, Y: cy},
		{X: cx + 0.02, Y: cy + half},
		{X: cx - 0.02, Y: cy + half},
	}
}
