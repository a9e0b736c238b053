package conceptual

// AthleteID names the person a stream of fixes belongs to.
// It comes from a URL parameter, a CLI flag, or the pushed payload.
type AthleteID string

func (a AthleteID) String() string {
	return string(a)
}

func (a AthleteID) IsEmpty() bool {
	return a == ""
}
