package params

import (
	"time"

	"github.com/fitzone/zoned/common"
)

type TrackingConfig struct {
	// NoiseThreshold is the minimum distance (meters) a fix must be from the
	// last accepted fix to count. Fixes at or under it are discarded as jitter.
	NoiseThreshold float64

	// LoopMinDistance is the distance (meters) that must be travelled since the
	// last loop closure (or the start) before a loop can close.
	LoopMinDistance float64

	// LoopCloseRadius is how near (meters) to the start fix a fix must be to close a loop.
	LoopCloseRadius float64

	// TickInterval drives the elapsed-time clock. Each tick is one elapsed second.
	TickInterval time.Duration

	// AssumedWeightKg is the body mass used for the calorie estimate.
	AssumedWeightKg float64

	// XPPerHundredMeters and XPPerLoop define the reward on stop.
	XPPerHundredMeters int
	XPPerLoop          int

	// ZoneCellLevel is the S2 cell level of a capturable zone.
	ZoneCellLevel int

	// PersistTimeout bounds the hand-off of a finished activity to the persistence collaborator.
	PersistTimeout time.Duration
}

func DefaultTrackingConfig() *TrackingConfig {
	return &TrackingConfig{
		NoiseThreshold:     5,
		LoopMinDistance:    100,
		LoopCloseRadius:    30,
		TickInterval:       time.Second,
		AssumedWeightKg:    70,
		XPPerHundredMeters: 10,
		XPPerLoop:          50,
		ZoneCellLevel:      16,
		PersistTimeout:     10 * time.Second,
	}
}

type PositionConfig struct {
	// HighAccuracy asks the provider for its best fixes.
	HighAccuracy bool

	// Timeout is how long the provider may go without producing a fix before
	// reporting a timeout error.
	Timeout time.Duration

	// MaximumAge is the oldest cached fix the provider may hand back.
	// Zero always requests a fresh fix.
	MaximumAge time.Duration

	// CurrentFixTimeout bounds the one-shot current fix request.
	CurrentFixTimeout time.Duration

	// FallbackMaxAge is how recent a streamed fix must be to stand in
	// for a failed one-shot request. Zero disables the fallback.
	FallbackMaxAge time.Duration

	// RecentFixes is the number of raw fixes kept for display.
	RecentFixes int
}

func DefaultPositionConfig() *PositionConfig {
	return &PositionConfig{
		HighAccuracy:      true,
		Timeout:           10 * time.Second,
		MaximumAge:        0,
		CurrentFixTimeout: 10 * time.Second,
		FallbackMaxAge:    30 * time.Second,
		RecentFixes:       500,
	}
}

type SmoothingConfig struct {
	// Alpha is the exponential moving average coefficient, in (0,1].
	Alpha float64

	// KalmanAcceleration is the expected change in speed (m/s^2) for the Kalman smoother.
	KalmanAcceleration float64
}

func DefaultSmoothingConfig() *SmoothingConfig {
	return &SmoothingConfig{
		Alpha:              0.35,
		KalmanAcceleration: 0.5,
	}
}

type RankConfig struct {
	Limit          int
	DistanceWeight float64
	RatingWeight   float64
	CategoryWeight float64
	DefaultRating  float64
}

func DefaultRankConfig() *RankConfig {
	return &RankConfig{
		Limit:          10,
		DistanceWeight: 0.6,
		RatingWeight:   0.25,
		CategoryWeight: 0.15,
		DefaultRating:  4,
	}
}

type TileConfig struct {
	// Layers maps a layer name to its tile base URL.
	// Tiles are fetched at {base}/{z}/{x}/{y}.png.
	Layers map[string]string

	DefaultLayer string
	DefaultZoom  common.SlippyZoomLevelT
	MinZoom      common.SlippyZoomLevelT
	MaxZoom      common.SlippyZoomLevelT
}

func DefaultTileConfig() *TileConfig {
	return &TileConfig{
		Layers: map[string]string{
			"osm":  "https://tile.openstreetmap.org",
			"topo": "https://tile.opentopomap.org",
		},
		DefaultLayer: "osm",
		DefaultZoom:  common.SlippyZoomLevelStreet,
		MinZoom:      common.SlippyZoomLevelMin,
		MaxZoom:      common.SlippyZoomLevelMax,
	}
}
