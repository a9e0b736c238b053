package fix

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

var t0 = time.Date(2024, 12, 20, 22, 19, 53, 0, time.UTC)

func TestFix_Validate(t *testing.T) {
	cases := []struct {
		name    string
		fix     Fix
		wantErr bool
	}{
		{"ok", New(40.7128, -74.0060, t0, WithAccuracy(4)), false},
		{"nan lat", New(math.NaN(), 0, t0), true},
		{"inf lng", New(0, math.Inf(1), t0), true},
		{"lat range", New(91, 0, t0), true},
		{"lng range", New(0, -181, t0), true},
		{"negative accuracy", New(1, 1, t0, WithAccuracy(-1)), true},
		{"no time", Fix{}, true},
	}
	for _, c := range cases {
		err := c.fix.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("%s: err=%v wantErr=%v", c.name, err, c.wantErr)
		}
		if err != nil && !errors.Is(err, ErrInvalidFix) {
			t.Errorf("%s: want ErrInvalidFix, got %v", c.name, err)
		}
	}
}

func TestFix_ReportedSpeed(t *testing.T) {
	if _, ok := New(1, 1, t0).ReportedSpeed(); ok {
		t.Error("nil speed reported as available")
	}
	if _, ok := New(1, 1, t0, WithSpeed(-1)).ReportedSpeed(); ok {
		t.Error("negative speed reported as available")
	}
	if v, ok := New(1, 1, t0, WithSpeed(3.2)).ReportedSpeed(); !ok || v != 3.2 {
		t.Errorf("got %v %v", v, ok)
	}
}

func TestFix_JSON(t *testing.T) {
	f := New(44.98, -93.25, t0, WithAccuracy(3.8), WithSpeed(1.5))
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatal(err)
	}
	if got := gjson.GetBytes(b, "lat").Float(); got != 44.98 {
		t.Errorf("lat: %v", got)
	}
	if got := gjson.GetBytes(b, "timestamp").Int(); got != t0.UnixMilli() {
		t.Errorf("timestamp: %v", got)
	}
	if gjson.GetBytes(b, "heading").Exists() {
		t.Error("unset heading should be omitted")
	}
	back := Fix{}
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.Point != f.Point || *back.Accuracy != 3.8 || back.Heading != nil {
		t.Errorf("unexpected: %+v", back)
	}
}

func TestFix_Feature(t *testing.T) {
	f := New(44.98, -93.25, t0, WithAltitude(322.5), WithHeading(270))
	back, err := FromFeature(f.ToFeature())
	if err != nil {
		t.Fatal(err)
	}
	if back.Timestamp != f.Timestamp {
		t.Errorf("timestamp: %d != %d", back.Timestamp, f.Timestamp)
	}
	if back.Altitude == nil || *back.Altitude != 322.5 {
		t.Errorf("altitude: %v", back.Altitude)
	}
	if back.Speed != nil {
		t.Error("speed should be nil")
	}
}
