package smooth

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/fitzone/zoned/common"
	"github.com/fitzone/zoned/types/fix"
	"github.com/paulmach/orb"
	rkalman "github.com/regnull/kalman"
)

const defaultHorizontalAccuracy = 10.0

func newGeoFilter(latitude, speed, acceleration float64) (*rkalman.GeoFilter, error) {
	processNoise := &rkalman.GeoProcessNoise{
		// Measurements are close together, so the earth's curvature is ignored.
		BaseLat: latitude,
		// How far we expect the athlete to move, meters per second.
		DistancePerSecond: speed,
		// How much we expect the athlete's speed to change, meters per second squared.
		SpeedPerSecond: acceleration,
	}
	return rkalman.NewGeoFilter(processNoise)
}

func observed(f fix.Fix) *rkalman.GeoObserved {
	ob := &rkalman.GeoObserved{
		Lat:                f.Lat(),
		Lng:                f.Lng(),
		SpeedAccuracy:      0.2,
		DirectionAccuracy:  0,
		HorizontalAccuracy: defaultHorizontalAccuracy,
		VerticalAccuracy:   2.0,
	}
	if f.Altitude != nil {
		ob.Altitude = *f.Altitude
	}
	if v, ok := f.ReportedSpeed(); ok {
		ob.Speed = v
	}
	if f.Heading != nil && common.IsFinite(*f.Heading) && *f.Heading >= 0 {
		ob.Direction = *f.Heading
	}
	if f.Accuracy != nil && *f.Accuracy > 0 {
		ob.HorizontalAccuracy = *f.Accuracy
	}
	return ob
}

// KalmanPath runs path through a geo Kalman filter, which weighs each fix
// by its reported accuracy and uses reported speed and heading.
// Like SmoothPath, output[0] is path[0] and readings carry over.
// Fixes that do not move forward in time keep the previous estimate.
func KalmanPath(path []fix.Fix, acceleration float64) ([]fix.Fix, error) {
	if len(path) <= 2 {
		return path, nil
	}
	speed := common.SpeedOfWalkingMean
	if v, ok := path[0].ReportedSpeed(); ok && v > 0 {
		speed = v
	}
	filter, err := newGeoFilter(path[0].Lat(), speed, acceleration)
	if err != nil {
		return nil, fmt.Errorf("kalman filter: %w", err)
	}

	out := make([]fix.Fix, len(path))
	out[0] = path[0]
	last := path[0]
	for i := 1; i < len(path); i++ {
		seconds := float64(path[i].Timestamp-last.Timestamp) / 1000
		if seconds <= 0 {
			out[i] = path[i].WithPoint(out[i-1].Point)
			continue
		}
		if err := filter.Observe(seconds, observed(path[i])); err != nil {
			slog.Warn("Kalman.Observe failed", "error", err)
			out[i] = path[i]
			last = path[i]
			continue
		}
		last = path[i]
		est := filter.Estimate()
		if est == nil || math.IsNaN(est.Lat) || math.IsNaN(est.Lng) {
			out[i] = path[i]
			continue
		}
		out[i] = path[i].WithPoint(orb.Point{est.Lng, est.Lat})
	}
	return out, nil
}
