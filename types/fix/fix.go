// Package fix defines Fix, a single location sample reported by a device.
package fix

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fitzone/zoned/common"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var ErrInvalidFix = errors.New("invalid fix")

// Fix is a location sample. Point is [lng, lat] in degrees, as orb does it.
// Optional readings are nil when the device did not report them.
// A Fix is a value; treat it as immutable once produced.
type Fix struct {
	Point     orb.Point
	Accuracy  *float64 // meters
	Altitude  *float64 // meters
	Speed     *float64 // m/s, negative means the device has no speed
	Heading   *float64 // degrees
	Timestamp int64    // unix milliseconds
}

type Option func(*Fix)

func WithAccuracy(v float64) Option { return func(f *Fix) { f.Accuracy = &v } }
func WithAltitude(v float64) Option { return func(f *Fix) { f.Altitude = &v } }
func WithSpeed(v float64) Option    { return func(f *Fix) { f.Speed = &v } }
func WithHeading(v float64) Option  { return func(f *Fix) { f.Heading = &v } }

// New creates a fix at lat, lng captured at t.
func New(lat, lng float64, t time.Time, opts ...Option) Fix {
	f := Fix{
		Point:     orb.Point{lng, lat},
		Timestamp: t.UnixMilli(),
	}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

func (f Fix) Lat() float64 { return f.Point.Lat() }
func (f Fix) Lng() float64 { return f.Point.Lon() }

// Time returns the capture time.
func (f Fix) Time() time.Time {
	return time.UnixMilli(f.Timestamp)
}

// IsZero is true for the zero value, which is never a real fix.
func (f Fix) IsZero() bool {
	return f.Point == orb.Point{} && f.Timestamp == 0
}

// ReportedSpeed returns the device speed if it was reported and usable.
func (f Fix) ReportedSpeed() (float64, bool) {
	if f.Speed == nil || !common.IsFinite(*f.Speed) || *f.Speed < 0 {
		return 0, false
	}
	return *f.Speed, true
}

// WithPoint returns a copy of the fix at a different position.
// Readings and timestamp carry over unchanged.
func (f Fix) WithPoint(pt orb.Point) Fix {
	f.Point = pt
	return f
}

// Validate checks that a fix is safe to hand to the geodesy functions.
func (f Fix) Validate() error {
	lat, lng := f.Lat(), f.Lng()
	if !common.IsFinite(lat) || !common.IsFinite(lng) {
		return fmt.Errorf("%w: non-finite coordinate lat=%v lng=%v", ErrInvalidFix, lat, lng)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: lat=%.14f", ErrInvalidFix, lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: lng=%.14f", ErrInvalidFix, lng)
	}
	if f.Accuracy != nil && (!common.IsFinite(*f.Accuracy) || *f.Accuracy < 0) {
		return fmt.Errorf("%w: accuracy=%v", ErrInvalidFix, *f.Accuracy)
	}
	if f.Timestamp <= 0 {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidFix)
	}
	return nil
}

func (f Fix) String() string {
	return fmt.Sprintf("fix{lat=%.6f lng=%.6f t=%s}", f.Lat(), f.Lng(), f.Time().UTC().Format(time.RFC3339))
}

// flatFix is the wire shape devices push: a flat JSON object.
type flatFix struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// MarshalJSON implements the json.Marshaler interface.
func (f Fix) MarshalJSON() ([]byte, error) {
	return json.Marshal(flatFix{
		Lat:       f.Lat(),
		Lng:       f.Lng(),
		Accuracy:  f.Accuracy,
		Altitude:  f.Altitude,
		Speed:     f.Speed,
		Heading:   f.Heading,
		Timestamp: f.Timestamp,
	})
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (f *Fix) UnmarshalJSON(data []byte) error {
	ff := flatFix{}
	if err := json.Unmarshal(data, &ff); err != nil {
		return err
	}
	*f = Fix{
		Point:     orb.Point{ff.Lng, ff.Lat},
		Accuracy:  ff.Accuracy,
		Altitude:  ff.Altitude,
		Speed:     ff.Speed,
		Heading:   ff.Heading,
		Timestamp: ff.Timestamp,
	}
	return nil
}

// ToFeature returns the fix as a GeoJSON point feature.
func (f Fix) ToFeature() *geojson.Feature {
	ft := geojson.NewFeature(f.Point)
	ft.Properties["UnixTimeMs"] = f.Timestamp
	ft.Properties["Time"] = f.Time().UTC().Format(time.RFC3339Nano)
	if f.Accuracy != nil {
		ft.Properties["Accuracy"] = *f.Accuracy
	}
	if f.Altitude != nil {
		ft.Properties["Elevation"] = *f.Altitude
	}
	if f.Speed != nil {
		ft.Properties["Speed"] = *f.Speed
	}
	if f.Heading != nil {
		ft.Properties["Heading"] = *f.Heading
	}
	return ft
}

// FromFeature reads a point feature as a fix.
// Time comes from UnixTimeMs, UnixTime (seconds) or an RFC3339 Time property, in that order.
func FromFeature(ft *geojson.Feature) (Fix, error) {
	if ft == nil || ft.Geometry == nil {
		return Fix{}, fmt.Errorf("%w: nil geometry", ErrInvalidFix)
	}
	pt, ok := ft.Geometry.(orb.Point)
	if !ok {
		return Fix{}, fmt.Errorf("%w: not a point", ErrInvalidFix)
	}
	f := Fix{Point: pt}

	props := ft.Properties
	if v, ok := number(props, "UnixTimeMs"); ok {
		f.Timestamp = int64(v)
	} else if v, ok := number(props, "UnixTime"); ok {
		f.Timestamp = int64(v) * 1000
	} else if s, ok := props["Time"].(string); ok {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return Fix{}, fmt.Errorf("%w: %v", ErrInvalidFix, err)
		}
		f.Timestamp = t.UnixMilli()
	}

	optional := func(key string) *float64 {
		v, ok := number(props, key)
		if !ok {
			return nil
		}
		return &v
	}
	f.Accuracy = optional("Accuracy")
	f.Altitude = optional("Elevation")
	f.Speed = optional("Speed")
	f.Heading = optional("Heading")
	return f, nil
}

// number reads a numeric property whether it was decoded (float64) or set in-process.
func number(props geojson.Properties, key string) (float64, bool) {
	switch v := props[key].(type) {
	case float64:
		return v, common.IsFinite(v)
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Points returns the positions of fixes, in order.
func Points(fixes []Fix) orb.LineString {
	ls := make(orb.LineString, 0, len(fixes))
	for _, f := range fixes {
		ls = append(ls, f.Point)
	}
	return ls
}
