package blink

import "testing"

func TestBaseline_Calibrate(t *testing.T) {
	t.Run("zero value is uncalibrated", func(t *testing.T) {
		var b Baseline
		if b.Calibrated() {
			t.Error("expected zero baseline to be uncalibrated")
		}
		if got := b.Or(0.1); got != 0.1 {
			t.Errorf("Or(0.1) = %f, want fallback 0.1", got)
		}
	})

	t.Run("commits mean of both eyes", func(t *testing.T) {
		var b Baseline
		if !b.Calibrate(0.08, 0.12, 0.02) {
			t.Fatal("expected calibration to commit")
		}
		value, ok := b.Value()
		if !ok {
			t.Fatal("expected calibrated baseline")
		}
		if value < 0.1-epsilon || value > 0.1+epsilon {
			t.Errorf("baseline = %f, want 0.1", value)
		}
	})

	t.Run("is write once", func(t *testing.T) {
		var b Baseline
		b.Calibrate(0.1, 0.1, 0.02)

		if b.Calibrate(0.9, 0.9, 0.02) {
			t.Error("second calibration should not commit")
		}
		if got := b.Or(0.5); got != 0.1 {
			t.Errorf("baseline changed to %f after lock", got)
		}
	})

	t.Run("gated by minimum on either eye", func(t *testing.T) {
		cases := []struct {
			left, right float64
		}{
			{left: 0.02, right: 0.5},
			{left: 0.5, right: 0.02},
			{left: 0.01, right: 0.01},
			{left: 0, right: 0.3},
		}
		for _, c := range cases {
			var b Baseline
			if b.Calibrate(c.left, c.right, 0.02) {
				t.Errorf("Calibrate(%f, %f) committed, want gated", c.left, c.right)
			}
			if b.Calibrated() {
				t.Errorf("Calibrate(%f, %f) left baseline calibrated", c.left, c.right)
			}
		}
	})

	t.Run("calibrated value equal to sentinel is still calibrated", func(t *testing.T) {
		var b Baseline
		b.Calibrate(0.1, 0.1, 0.02)
		if !b.Calibrated() {
			t.Error("expected baseline of 0.1 to count as calibrated")
		}
	})
}
