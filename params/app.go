package params

import (
	"os"
	"path/filepath"
)

const (
	AthletesDir = "athletes"

	ActivitiesGZFileName = "activities.geojson.gz"
	StoreBoltDBName      = "zoned.db"
	StoreSqliteDBName    = "zoned.sqlite"
)

var DefaultDatadirRoot = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".zoned")
	}
	return filepath.Join(home, ".zoned")
}()

var (
	StoreBucketActivities = []byte("activities")
	StoreBucketStats      = []byte("stats")
)
