package params

import "path/filepath"

type StoreDriver string

const (
	StoreDriverBolt   StoreDriver = "bolt"
	StoreDriverSqlite StoreDriver = "sqlite"
)

type StoreConfig struct {
	Driver  StoreDriver
	DataDir string

	// LevelXP is the XP needed per level.
	LevelXP int
}

func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		Driver:  StoreDriverBolt,
		DataDir: DefaultDatadirRoot,
		LevelXP: 1000,
	}
}

func (c *StoreConfig) BoltPath() string {
	return filepath.Join(c.DataDir, StoreBoltDBName)
}

func (c *StoreConfig) SqlitePath() string {
	return filepath.Join(c.DataDir, StoreSqliteDBName)
}

type ArchiveConfig struct {
	// Bucket is the S3 bucket finished activities are archived to.
	// Empty disables archiving.
	Bucket string
	Region string
	Prefix string
}

type InfluxConfig struct {
	// URL empty disables export.
	URL    string
	Token  string
	Org    string
	Bucket string
}
