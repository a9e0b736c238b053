package common

import (
	"math"
	"testing"
)

func TestFloorDiv(t *testing.T) {
	cases := []struct {
		v, d float64
		want int
	}{
		{0, 256, 0},
		{255.9, 256, 0},
		{256, 256, 1},
		{-1, 256, -1},
		{-256, 256, -1},
		{-257, 256, -2},
	}
	for _, c := range cases {
		if got := FloorDiv(c.v, c.d); got != c.want {
			t.Errorf("FloorDiv(%v, %v) = %d, want %d", c.v, c.d, got, c.want)
		}
	}
}

func TestMod(t *testing.T) {
	if got := Mod(-1, 4); got != 3 {
		t.Errorf("Mod(-1, 4) = %d, want 3", got)
	}
	if got := Mod(9, 4); got != 1 {
		t.Errorf("Mod(9, 4) = %d, want 1", got)
	}
	if got := Mod(5, 0); got != 0 {
		t.Errorf("Mod(5, 0) = %d, want 0", got)
	}
}

func TestIsFinite(t *testing.T) {
	if IsFinite(math.NaN()) || IsFinite(math.Inf(1)) || IsFinite(math.Inf(-1)) {
		t.Error("expected non-finite values to be rejected")
	}
	if !IsFinite(0) || !IsFinite(-180) {
		t.Error("expected finite values to pass")
	}
}

func TestSlippyZoomLevel_Clamp(t *testing.T) {
	if SlippyZoomLevelT(-3).Clamp() != SlippyZoomLevelMin {
		t.Error("expected clamp to min")
	}
	if SlippyZoomLevelT(25).Clamp() != SlippyZoomLevelMax {
		t.Error("expected clamp to max")
	}
	if SlippyZoomLevelT(2).Tiles() != 4 {
		t.Error("expected 4 tiles at zoom 2")
	}
}
