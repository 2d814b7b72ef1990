// Package detector provides face landmark detection interfaces and types for blink counting.
package detector

import (
	"math"

	"github.com/ayusman/palak/internal/blink"
)

// Eye contour indices into the 468-point MediaPipe face mesh.
// See: https://developers.google.com/mediapipe/solutions/vision/face_landmarker
// Left and right are from the subject's point of view.
var (
	LeftEyeIndices  = []int{362, 385, 387, 263, 373, 380}
	RightEyeIndices = []int{33, 160, 158, 133, 153, 144}
)

// MeshSize is the number of points in a full face mesh.
const MeshSize = 468

// FaceLandmarks holds the eye contours of one detected face, with coordinates
// relative to the face bounding box.
type FaceLandmarks struct {
	LeftEye  []blink.Point2D `json:"left_eye"`
	RightEye []blink.Point2D `json:"right_eye"`
	Score    float64         `json:"score"`
}

// FromMesh extracts the eye contours from a full face mesh.
// Mesh points are image-normalized; the contours are rescaled to the face's
// bounding box so eye heights do not depend on how far the face is from the
// camera. Returns nil if the mesh is too short or has no extent.
func FromMesh(mesh []blink.Point2D, score float64) *FaceLandmarks {
	if len(mesh) < MeshSize {
		return nil
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range mesh[:MeshSize] {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	width, height := maxX-minX, maxY-minY
	if !(width > 0) || !(height > 0) || math.IsInf(width, 0) || math.IsInf(height, 0) {
		return nil
	}

	pick := func(indices []int) []blink.Point2D {
		points := make([]blink.Point2D, len(indices))
		for i, idx := range indices {
			points[i] = blink.Point2D{
				X: (mesh[idx].X - minX) / width,
				Y: (mesh[idx].Y - minY) / height,
			}
		}
		return points
	}

	return &FaceLandmarks{
		LeftEye:  pick(LeftEyeIndices),
		RightEye: pick(RightEyeIndices),
		Score:    score,
	}
}

// EyeFrame converts the contours into the per-frame heights consumed by blink.Detector.
// A nil receiver means no face and yields a nil frame.
func (f *FaceLandmarks) EyeFrame() *blink.EyeFrame {
	if f == nil {
		return nil
	}
	return &blink.EyeFrame{
		Left:  sanitize(blink.Height(f.LeftEye)),
		Right: sanitize(blink.Height(f.RightEye)),
	}
}

// sanitize clamps heights that break the landmark contract to 0.
func sanitize(h float64) float64 {
	if math.IsNaN(h) || math.IsInf(h, 0) || h < 0 {
		return 0
	}
	return h
}
