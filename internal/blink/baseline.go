package blink

// Baseline is the calibrated "eye fully open" height.
// The zero value is uncalibrated; once calibrated it never changes.
type Baseline struct {
	value      float64
	calibrated bool
}

// Calibrate locks the baseline to the mean of left and right when both
// exceed min. It returns true only on the call that commits the value.
func (b *Baseline) Calibrate(left, right, min float64) bool {
	if b.calibrated {
		return false
	}
	if left <= min || right <= min {
		return false
	}
	b.value = (left + right) / 2
	b.calibrated = true
	return true
}

// Calibrated reports whether the baseline has locked.
func (b Baseline) Calibrated() bool {
	return b.calibrated
}

// Value returns the calibrated height and whether calibration happened.
func (b Baseline) Value() (float64, bool) {
	return b.value, b.calibrated
}

// Or returns the calibrated value, or fallback while uncalibrated.
func (b Baseline) Or(fallback float64) float64 {
	if b.calibrated {
		return b.value
	}
	return fallback
}
