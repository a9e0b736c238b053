package tracker

import (
	"time"

	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/types/activity"
	"github.com/fitzone/zoned/types/fix"
	"github.com/google/uuid"
)

// Snapshot is a read-only copy of the live session.
type Snapshot struct {
	Athlete   conceptual.AthleteID `json:"athlete"`
	SessionID uuid.UUID            `json:"sessionId"`
	State     State                `json:"state"`
	Kind      activity.Kind        `json:"kind"`

	IsTracking bool `json:"isTracking"`
	IsPaused   bool `json:"isPaused"`

	DistanceMeters        float64 `json:"distanceMeters"`
	ElapsedSeconds        int64   `json:"elapsedSeconds"`
	Calories              float64 `json:"calories"`
	LoopCount             int     `json:"loopCount"`
	LoopAccumulatorMeters float64 `json:"loopAccumulatorMeters"`
	CurrentSpeed          float64 `json:"currentSpeed"`
	PathLength            int     `json:"pathLength"`
	XP                    int64   `json:"xp"`

	StartFix        *fix.Fix  `json:"startFix,omitempty"`
	LastAcceptedFix *fix.Fix  `json:"lastAcceptedFix,omitempty"`
	StartedAt       time.Time `json:"startedAt,omitempty"`
	UpdatedAt       time.Time `json:"updatedAt"`
}
