package tray

import "testing"

func TestCountTitle(t *testing.T) {
	tests := []struct {
		count uint64
		want  string
	}{
		{0, "Blinks: 0"},
		{1, "Blinks: 1"},
		{1234, "Blinks: 1234"},
	}

	for _, tt := range tests {
		if got := CountTitle(tt.count); got != tt.want {
			t.Errorf("CountTitle(%d) = %q, want %q", tt.count, got, tt.want)
		}
	}
}

func TestStatusTitle(t *testing.T) {
	if got := StatusTitle(false); got != "Baseline: calibrating..." {
		t.Errorf("unexpected uncalibrated title %q", got)
	}
	if got := StatusTitle(true); got != "Baseline: calibrated" {
		t.Errorf("unexpected calibrated title %q", got)
	}
}

func TestTray_BeforeReady(t *testing.T) {
	tr := New()

	if !tr.IsEnabled() {
		t.Error("expected tray to start enabled")
	}

	// Updates before Run must not touch systray.
	tr.SetCount(5)
	tr.SetCalibrated(true)
	tr.Quit()

	if tr.Count() != 5 {
		t.Errorf("expected remembered count 5, got %d", tr.Count())
	}
}
