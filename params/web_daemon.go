package params

import (
	"io"
	"time"
)

type ListenerConfig struct {
	// Network is the network to listen on.
	// The network must be "tcp", "tcp4", "tcp6", "unix" or "unixpacket".
	Network string
	// Address is the address to listen on.
	Address string
}

type WebDaemonConfig struct {
	ListenerConfig

	// AthleteIdleTTL is how long an athlete's runtime (position source, tracker)
	// lives without fixes or requests before it is torn down.
	// A tracking athlete is stopped (and persisted) on eviction.
	AthleteIdleTTL time.Duration

	// AccessLog receives Common Log Format lines. Nil means stdout.
	AccessLog io.Writer `json:"-"`

	// DedupeCacheSize bounds the pushed-fix dedupe cache.
	DedupeCacheSize int

	// Reverse geocode activity start places.
	Rgeo bool

	Tracking  *TrackingConfig
	Position  *PositionConfig
	Smoothing *SmoothingConfig
	Rank      *RankConfig
	Tiles     *TileConfig
	Store     *StoreConfig
	Recommend *RecommendConfig
	Archive   *ArchiveConfig
	Influx    *InfluxConfig
}

func DefaultWebListenerConfig() ListenerConfig {
	return ListenerConfig{
		Network: "tcp",
		Address: "localhost:3000",
	}
}

func DefaultWebDaemonConfig() *WebDaemonConfig {
	// Devices push on their own schedule. A pushed fix stays usable as the
	// current fix for a while, and a quiet device is not an error right away.
	position := DefaultPositionConfig()
	position.MaximumAge = 30 * time.Second
	position.Timeout = 2 * time.Minute

	return &WebDaemonConfig{
		ListenerConfig:  DefaultWebListenerConfig(),
		AthleteIdleTTL:  30 * time.Minute,
		DedupeCacheSize: 10_000,
		Tracking:        DefaultTrackingConfig(),
		Position:        position,
		Smoothing:       DefaultSmoothingConfig(),
		Rank:            DefaultRankConfig(),
		Tiles:           DefaultTileConfig(),
		Store:           DefaultStoreConfig(),
		Recommend:       DefaultRecommendConfig(),
		Archive:         &ArchiveConfig{},
		Influx:          &InfluxConfig{},
	}
}

// DefaultTestWebDaemonConfig returns a config for tests, storing in dataDir.
func DefaultTestWebDaemonConfig(dataDir string) *WebDaemonConfig {
	c := DefaultWebDaemonConfig()
	c.Address = "localhost:3333"
	c.Store.DataDir = dataDir
	c.AccessLog = io.Discard
	return c
}
