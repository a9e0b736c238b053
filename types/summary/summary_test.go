package summary

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fitzone/zoned/testing/testdata"
	"github.com/fitzone/zoned/types/activity"
	"github.com/fitzone/zoned/types/fix"
	"github.com/paulmach/orb"
	"github.com/tidwall/gjson"
)

func TestXP(t *testing.T) {
	cases := []struct {
		distance float64
		loops    int
		want     int64
	}{
		{1250, 2, 220},
		{0, 0, 0},
		{99.9, 0, 0},
		{100, 0, 10},
		{0, 3, 150},
	}
	for _, c := range cases {
		if got := XP(c.distance, c.loops, 10, 50); got != c.want {
			t.Errorf("XP(%v, %d): have %d want %d", c.distance, c.loops, got, c.want)
		}
	}
}

func TestNew(t *testing.T) {
	path := testdata.Line(testdata.NYC, 10, 5, 2*time.Second)
	path[1] = fix.New(path[1].Lat(), path[1].Lng(), path[1].Time(), fix.WithSpeed(4), fix.WithAltitude(10))
	path[3] = fix.New(path[3].Lat(), path[3].Lng(), path[3].Time(), fix.WithSpeed(6), fix.WithAltitude(7))
	in := Input{
		Athlete:        "rye",
		Kind:           activity.KindRun,
		Path:           path,
		DistanceMeters: 40,
		ElapsedSeconds: 8,
		LoopCount:      0,
		XP:             XP(40, 0, 10, 50),
		StartTime:      path[0].Time(),
		EndTime:        path[4].Time(),
		ZonesVisited:   []string{"89c25a31"},
	}
	s := New(in)
	if s.Start != path[0].Point || s.End != path[4].Point {
		t.Error("start/end coordinates")
	}
	if s.Speed.ReportedMean != 5 || s.Speed.ReportedMax != 6 {
		t.Errorf("reported speeds: %+v", s.Speed)
	}
	if s.Speed.CalculatedMean < 4.9 || s.Speed.CalculatedMean > 5.1 {
		t.Errorf("calculated mean: %+v", s.Speed)
	}
	if s.Elevation.Loss != 3 || s.Elevation.Gain != 0 {
		t.Errorf("elevation: %+v", s.Elevation)
	}
	path[0] = fix.Fix{}
	if s.Path[0].IsZero() {
		t.Error("summary must own a copy of the path")
	}
	if s.ID.String() == "" || s.ID == New(in).ID {
		t.Error("summaries need unique ids")
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if gjson.GetBytes(b, "kind").String() != "run" || gjson.GetBytes(b, "path.#").Int() != 5 {
		t.Errorf("json: %s", b)
	}
	back := Summary{}
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.ID != s.ID || back.Kind != activity.KindRun || len(back.Path) != 5 {
		t.Errorf("round trip: %+v", back)
	}
}

func TestSummary_Feature(t *testing.T) {
	path := testdata.Line(testdata.NYC, 10, 3, time.Second)
	s := New(Input{Athlete: "ia", Kind: activity.KindWalk, Path: path, DistanceMeters: 20, Calories: 1.25})
	s.Place = &Place{Country: "United States", City: "New York"}
	ft := s.ToFeature()
	if _, ok := ft.Geometry.(orb.LineString); !ok {
		t.Fatalf("geometry %T", ft.Geometry)
	}
	if ft.Properties.MustString("Kind") != "walk" || ft.Properties.MustString("City") != "New York" {
		t.Errorf("props: %v", ft.Properties)
	}
	d := s.Display()
	if d["distance"] != "0.02 km" || d["calories"] != "1.3 kcal" {
		t.Errorf("display: %v", d)
	}

	one := New(Input{Kind: activity.KindWalk, Path: path[:1]})
	if _, ok := one.ToFeature().Geometry.(orb.Point); !ok {
		t.Error("single fix renders as a point")
	}
}

func TestStats_Apply(t *testing.T) {
	now := time.Now()
	s := Stats{Athlete: "rye"}
	s, d := s.Apply(StatsDelta{DistanceMeters: 1250, XP: 220, Activities: 1}, 1000, now)
	if s.Level != 1 || d.Levels != 0 || s.TotalXP != 220 {
		t.Errorf("first: %+v %+v", s, d)
	}
	s, d = s.Apply(StatsDelta{XP: 2000, Activities: 1}, 1000, now)
	if s.Level != 3 || d.Levels != 2 || s.Activities != 2 {
		t.Errorf("second: %+v %+v", s, d)
	}
	if LevelForXP(999, 0) != 1 || LevelForXP(1000, 0) != 2 {
		t.Error("default level size")
	}
}
