package blink

// Point2D is a normalized landmark position.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Height returns the vertical extent max(y) - min(y) of an eye contour.
// Contours with fewer than 2 points have no extent and yield 0.
func Height(points []Point2D) float64 {
	if len(points) < 2 {
		return 0
	}

	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	return maxY - minY
}
