package chaser

import "testing"

func TestShouldLaunch(t *testing.T) {
	tests := []struct {
		suppressed bool
		auto       bool
		count      int
		want       bool
	}{
		{false, true, 1, true},
		{false, true, 5, true},
		{false, true, 0, false},
		{false, true, -2, false},
		{false, false, 5, false},
		{true, true, 5, false},
		{true, false, 0, false},
	}
	for _, tt := range tests {
		if got := ShouldLaunch(tt.suppressed, tt.auto, tt.count); got != tt.want {
			t.Errorf("ShouldLaunch(%v, %v, %d) = %v, expected %v", tt.suppressed, tt.auto, tt.count, got, tt.want)
		}
	}
}
