// Package summary holds the immutable record of a finished activity and
// the lifetime stats it rolls into.
package summary

import (
	"math"
	"time"

	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/geo/geodesy"
	"github.com/fitzone/zoned/types/activity"
	"github.com/fitzone/zoned/types/fix"
	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/shopspring/decimal"
)

// Summary is a finalized activity. Nothing mutates it after it is built.
type Summary struct {
	ID      uuid.UUID            `json:"id"`
	Athlete conceptual.AthleteID `json:"athlete"`
	Kind    activity.Kind        `json:"kind"`

	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds int64   `json:"durationSeconds"`
	Calories        float64 `json:"calories"`
	LoopCount       int     `json:"loopCount"`
	XP              int64   `json:"xp"`

	Path  []fix.Fix `json:"path"`
	Start orb.Point `json:"start"`
	End   orb.Point `json:"end"`

	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`

	// ZonesVisited are the S2 cell tokens the path covered.
	ZonesVisited []string `json:"zonesVisited"`

	Speed     SpeedStats `json:"speed"`
	Elevation Elevation  `json:"elevation"`
	Place     *Place     `json:"place,omitempty"`
}

// Place is where an activity started, reverse geocoded.
type Place struct {
	Country  string `json:"country,omitempty"`
	Province string `json:"province,omitempty"`
	City     string `json:"city,omitempty"`
}

// SpeedStats describe speeds in m/s. Reported speeds come from the device;
// calculated speeds are segment distance over fix timestamp deltas.
type SpeedStats struct {
	ReportedMean     float64 `json:"reportedMean"`
	ReportedMax      float64 `json:"reportedMax"`
	CalculatedMean   float64 `json:"calculatedMean"`
	CalculatedMedian float64 `json:"calculatedMedian"`
	CalculatedMax    float64 `json:"calculatedMax"`
}

type Elevation struct {
	Gain float64 `json:"gain"`
	Loss float64 `json:"loss"`
}

// Input is what the tracker knows when it finalizes a session.
type Input struct {
	// ID is generated when zero.
	ID             uuid.UUID
	Athlete        conceptual.AthleteID
	Kind           activity.Kind
	Path           []fix.Fix
	DistanceMeters float64
	ElapsedSeconds int64
	Calories       float64
	LoopCount      int
	XP             int64
	StartTime      time.Time
	EndTime        time.Time
	ZonesVisited   []string
}

// New builds a Summary. The path is copied.
func New(in Input) *Summary {
	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	s := &Summary{
		ID:              id,
		Athlete:         in.Athlete,
		Kind:            in.Kind,
		DistanceMeters:  in.DistanceMeters,
		DurationSeconds: in.ElapsedSeconds,
		Calories:        in.Calories,
		LoopCount:       in.LoopCount,
		XP:              in.XP,
		Path:            append([]fix.Fix(nil), in.Path...),
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		ZonesVisited:    append([]string{}, in.ZonesVisited...),
	}
	if len(s.Path) > 0 {
		s.Start = s.Path[0].Point
		s.End = s.Path[len(s.Path)-1].Point
	}
	s.Speed = NewSpeedStats(s.Path)
	s.Elevation = NewElevation(s.Path)
	return s
}

// XP is the reward for an activity: 10 per whole 100 m plus 50 per loop,
// unless the caller's config says otherwise.
func XP(distanceMeters float64, loops int, perHundredMeters, perLoop int64) int64 {
	if distanceMeters < 0 || !(distanceMeters < math.Inf(1)) {
		distanceMeters = 0
	}
	return int64(math.Floor(distanceMeters/100))*perHundredMeters + int64(loops)*perLoop
}

func statsMustFloat(fn func() (float64, error), def float64) float64 {
	out, err := fn()
	if err != nil || math.IsNaN(out) {
		return def
	}
	return out
}

func NewSpeedStats(path []fix.Fix) SpeedStats {
	reported := make([]float64, 0, len(path))
	calculated := make([]float64, 0, len(path))
	for i, f := range path {
		if v, ok := f.ReportedSpeed(); ok {
			reported = append(reported, v)
		}
		if i == 0 {
			continue
		}
		seconds := float64(f.Timestamp-path[i-1].Timestamp) / 1000
		if seconds <= 0 {
			continue
		}
		calculated = append(calculated, geodesy.DistanceMeters(path[i-1].Point, f.Point)/seconds)
	}
	r, c := stats.Float64Data(reported), stats.Float64Data(calculated)
	return SpeedStats{
		ReportedMean:     round(statsMustFloat(r.Mean, 0), 2),
		ReportedMax:      round(statsMustFloat(r.Max, 0), 2),
		CalculatedMean:   round(statsMustFloat(c.Mean, 0), 2),
		CalculatedMedian: round(statsMustFloat(c.Median, 0), 2),
		CalculatedMax:    round(statsMustFloat(c.Max, 0), 2),
	}
}

func NewElevation(path []fix.Fix) Elevation {
	e := Elevation{}
	var last *float64
	for _, f := range path {
		if f.Altitude == nil {
			continue
		}
		if last != nil {
			if d := *f.Altitude - *last; d > 0 {
				e.Gain += d
			} else {
				e.Loss -= d
			}
		}
		last = f.Altitude
	}
	e.Gain, e.Loss = round(e.Gain, 1), round(e.Loss, 1)
	return e
}

func round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Duration is the active (unpaused) time.
func (s *Summary) Duration() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

// Delta is what this activity adds to lifetime stats.
func (s *Summary) Delta() StatsDelta {
	return StatsDelta{
		DistanceMeters: s.DistanceMeters,
		Calories:       s.Calories,
		Activities:     1,
		XP:             s.XP,
	}
}

// Display renders figures for people: kilometers to two places,
// calories to one.
func (s *Summary) Display() map[string]string {
	return map[string]string{
		"distance": decimal.NewFromFloat(s.DistanceMeters/1000).StringFixed(2) + " km",
		"duration": s.Duration().String(),
		"calories": decimal.NewFromFloat(s.Calories).StringFixed(1) + " kcal",
		"xp":       decimal.NewFromInt(s.XP).String(),
	}
}

// ToFeature renders the summary as a GeoJSON LineString feature.
// A single-fix activity renders as a Point.
func (s *Summary) ToFeature() *geojson.Feature {
	var ft *geojson.Feature
	if len(s.Path) > 1 {
		ft = geojson.NewFeature(fix.Points(s.Path))
	} else {
		ft = geojson.NewFeature(s.Start)
	}
	ft.ID = s.ID.String()
	ft.Properties["Athlete"] = s.Athlete.String()
	ft.Properties["Kind"] = s.Kind.String()
	ft.Properties["Distance"] = round(s.DistanceMeters, 1)
	ft.Properties["Duration"] = s.DurationSeconds
	ft.Properties["Calories"] = round(s.Calories, 1)
	ft.Properties["LoopCount"] = s.LoopCount
	ft.Properties["XP"] = s.XP
	ft.Properties["Time_Start_Unix"] = s.StartTime.Unix()
	ft.Properties["Time_Start_RFC3339"] = s.StartTime.Format(time.RFC3339)
	ft.Properties["Time_End_Unix"] = s.EndTime.Unix()
	ft.Properties["Time_End_RFC3339"] = s.EndTime.Format(time.RFC3339)
	ft.Properties["Speed_Calculated_Mean"] = s.Speed.CalculatedMean
	ft.Properties["Speed_Reported_Mean"] = s.Speed.ReportedMean
	ft.Properties["Elevation_Gain"] = s.Elevation.Gain
	ft.Properties["Elevation_Loss"] = s.Elevation.Loss
	ft.Properties["Zones"] = len(s.ZonesVisited)
	if s.Place != nil {
		ft.Properties["Country"] = s.Place.Country
		ft.Properties["Province"] = s.Place.Province
		ft.Properties["City"] = s.Place.City
	}
	return ft
}
