package params

import "time"

type RecommendConfig struct {
	// Endpoint is the remote coach service. Empty means local ranking only.
	Endpoint string
	Timeout  time.Duration

	// CacheSize is the number of cached recommendation results.
	CacheSize int

	// CacheCellLevel is the S2 level used to bucket nearby requests for caching.
	CacheCellLevel int
}

func DefaultRecommendConfig() *RecommendConfig {
	return &RecommendConfig{
		Endpoint:       "",
		Timeout:        5 * time.Second,
		CacheSize:      1024,
		CacheCellLevel: 13,
	}
}
