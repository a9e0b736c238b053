package activity

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/fitzone/zoned/common"
)

// Kind is the kind of a tracked activity.
type Kind int

const (
	KindUnknown Kind = iota - 1
	KindWalk
	KindRun
	KindCycle
)

var AllKinds = []Kind{KindWalk, KindRun, KindCycle}

var (
	kindWalk  = regexp.MustCompile(`(?i)^walk`)
	kindRun   = regexp.MustCompile(`(?i)^run`)
	kindCycle = regexp.MustCompile(`(?i)^cycl|^bike|^biking`)
)

// metTable is the Metabolic Equivalent of Task per kind.
var metTable = map[Kind]float64{
	KindRun:   10,
	KindWalk:  3.5,
	KindCycle: 7,
}

// IsKnown returns true if the kind is one of AllKinds.
func (k Kind) IsKnown() bool {
	_, ok := metTable[k]
	return ok
}

// MET returns the metabolic equivalent for the kind, or 0 when unknown.
func (k Kind) MET() float64 {
	return metTable[k]
}

// Calories estimates energy burned over elapsedSeconds of active time.
// Distance plays no part; only time and kind do.
func (k Kind) Calories(weightKg float64, elapsedSeconds int64) float64 {
	return k.MET() * weightKg * (float64(elapsedSeconds) / 3600)
}

// String implements the Stringer interface.
func (k Kind) String() string {
	switch k {
	case KindWalk:
		return "walk"
	case KindRun:
		return "run"
	case KindCycle:
		return "cycle"
	}
	return "unknown"
}

// Emoji returns a single emoji representation of the kind.
func (k Kind) Emoji() string {
	switch k {
	case KindWalk:
		return "🚶"
	case KindRun:
		return "🏃"
	case KindCycle:
		return "🚴"
	}
	return "❓"
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// FromString is lenient: "Running", "run", "bike" all parse.
func FromString(str string) Kind {
	switch {
	case kindWalk.MatchString(str):
		return KindWalk
	case kindRun.MatchString(str):
		return KindRun
	case kindCycle.MatchString(str):
		return KindCycle
	}
	return KindUnknown
}

// Parse is FromString that errors on unknown kinds.
func Parse(str string) (Kind, error) {
	k := FromString(str)
	if !k.IsKnown() {
		return KindUnknown, fmt.Errorf("unknown activity kind %q", str)
	}
	return k, nil
}

// InferFromSpeed guesses a kind from a typical speed in m/s,
// using high -> low max speed breakpoints.
func InferFromSpeed(speed float64) Kind {
	if speed > (common.SpeedOfRunningMean+common.SpeedOfRunningMax)/2 {
		return KindCycle
	}
	if speed > common.SpeedOfWalkingMax {
		return KindRun
	}
	return KindWalk
}

// IsReasonableForSpeed reports whether speed is plausible for the kind.
func IsReasonableForSpeed(k Kind, speed float64) bool {
	switch k {
	case KindWalk:
		return speed < common.SpeedOfRunningMin
	case KindRun:
		return speed >= common.SpeedOfWalkingMean && speed < common.SpeedOfDrivingMin*1.5
	case KindCycle:
		return speed >= common.SpeedOfWalkingMean && speed < common.SpeedOfDrivingHighway
	}
	return false
}
