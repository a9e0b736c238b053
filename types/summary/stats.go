package summary

import (
	"time"

	"github.com/fitzone/zoned/conceptual"
)

// StatsDelta is what one activity adds to an athlete's lifetime stats.
type StatsDelta struct {
	DistanceMeters float64 `json:"distanceMeters"`
	Calories       float64 `json:"calories"`
	Activities     int     `json:"activities"`
	XP             int64   `json:"xp"`

	// Levels is filled in when the delta is applied to existing stats.
	Levels int `json:"levels"`
}

// Stats are an athlete's lifetime totals.
type Stats struct {
	Athlete             conceptual.AthleteID `json:"athlete"`
	TotalDistanceMeters float64              `json:"totalDistanceMeters"`
	TotalCalories       float64              `json:"totalCalories"`
	Activities          int                  `json:"activities"`
	TotalXP             int64                `json:"totalXP"`
	Level               int                  `json:"level"`
	UpdatedAt           time.Time            `json:"updatedAt"`
}

// LevelForXP is 1 + floor(xp / levelXP). Non-positive levelXP is treated as 1000.
func LevelForXP(xp, levelXP int64) int {
	if levelXP <= 0 {
		levelXP = 1000
	}
	if xp < 0 {
		xp = 0
	}
	return 1 + int(xp/levelXP)
}

// Apply returns the stats with delta added, and the delta with Levels set
// to the number of levels gained. s is not modified.
func (s Stats) Apply(delta StatsDelta, levelXP int64, now time.Time) (Stats, StatsDelta) {
	if s.Level < 1 {
		s.Level = LevelForXP(s.TotalXP, levelXP)
	}
	before := s.Level
	s.TotalDistanceMeters += delta.DistanceMeters
	s.TotalCalories += delta.Calories
	s.Activities += delta.Activities
	s.TotalXP += delta.XP
	s.Level = LevelForXP(s.TotalXP, levelXP)
	s.UpdatedAt = now
	delta.Levels = s.Level - before
	return s, delta
}
