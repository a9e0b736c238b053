// Package testdata generates deterministic synthetic fixes for tests.
package testdata

import (
	"bytes"
	"encoding/json"
	"math"
	"math/rand"
	"time"

	"github.com/fitzone/zoned/common"
	"github.com/fitzone/zoned/types/fix"
	"github.com/paulmach/orb"
)

var (
	// NYC is the reference point most tests start from.
	NYC = orb.Point{-74.0060, 40.7128}

	T0 = time.Date(2024, 6, 1, 7, 30, 0, 0, time.UTC)
)

// Offset moves pt by north and east meters on the sphere zoned measures with.
// Accurate for the short hops tests need.
func Offset(pt orb.Point, northMeters, eastMeters float64) orb.Point {
	dLat := northMeters / common.EarthRadiusMeters
	dLng := eastMeters / (common.EarthRadiusMeters * math.Cos(pt.Lat()*math.Pi/180))
	return orb.Point{
		pt.Lon() + dLng*180/math.Pi,
		pt.Lat() + dLat*180/math.Pi,
	}
}

func at(pt orb.Point, t time.Time, opts ...fix.Option) fix.Fix {
	return fix.New(pt.Lat(), pt.Lon(), t, opts...)
}

// Line heads east from start in n steps of stepMeters, one fix per interval.
// The first fix is start itself.
func Line(start orb.Point, stepMeters float64, n int, interval time.Duration) []fix.Fix {
	out := make([]fix.Fix, 0, n)
	for i := 0; i < n; i++ {
		pt := Offset(start, 0, stepMeters*float64(i))
		out = append(out, at(pt, T0.Add(time.Duration(i)*interval), fix.WithAccuracy(5)))
	}
	return out
}

// Loop walks a circle of radiusMeters whose westernmost point is start,
// in n steps, returning to start with the final fix.
func Loop(start orb.Point, radiusMeters float64, n int, interval time.Duration) []fix.Fix {
	center := Offset(start, 0, radiusMeters)
	out := make([]fix.Fix, 0, n+1)
	for i := 0; i <= n; i++ {
		theta := math.Pi + 2*math.Pi*float64(i)/float64(n)
		pt := Offset(center, radiusMeters*math.Sin(theta), radiusMeters*math.Cos(theta))
		if i == 0 || i == n {
			pt = start
		}
		out = append(out, at(pt, T0.Add(time.Duration(i)*interval), fix.WithAccuracy(5)))
	}
	return out
}

// Jitter displaces every fix by up to meters in a random direction.
// The same seed yields the same output.
func Jitter(fixes []fix.Fix, meters float64, seed int64) []fix.Fix {
	r := rand.New(rand.NewSource(seed))
	out := make([]fix.Fix, len(fixes))
	for i, f := range fixes {
		d := r.Float64() * meters
		theta := r.Float64() * 2 * math.Pi
		out[i] = f.WithPoint(Offset(f.Point, d*math.Sin(theta), d*math.Cos(theta)))
	}
	return out
}

// NDJSON encodes fixes one flat object per line.
func NDJSON(fixes []fix.Fix) []byte {
	buf := bytes.Buffer{}
	enc := json.NewEncoder(&buf)
	for _, f := range fixes {
		_ = enc.Encode(f)
	}
	return buf.Bytes()
}
