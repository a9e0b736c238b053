package flat

import (
	"testing"
	"time"

	"github.com/fitzone/zoned/testing/testdata"
	"github.com/fitzone/zoned/types/activity"
	"github.com/fitzone/zoned/types/summary"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

func TestFlat_AppendAndRead(t *testing.T) {
	f := NewFlatWithRoot(t.TempDir())
	for i := 0; i < 3; i++ {
		sum := summary.New(summary.Input{
			Athlete:        "rye",
			Kind:           activity.KindWalk,
			Path:           testdata.Line(testdata.NYC, 20, 4+i, time.Second),
			DistanceMeters: float64(20 * (3 + i)),
			StartTime:      testdata.T0.Add(time.Duration(i) * time.Hour),
		})
		if err := f.AppendActivity(sum); err != nil {
			t.Fatal(err)
		}
	}
	if !f.ForAthlete("rye").Exists() {
		t.Fatal("athlete dir")
	}

	got := []*geojson.Feature{}
	err := f.ReadActivities("rye", func(ft *geojson.Feature) error {
		got = append(got, ft)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 features across appends, have %d", len(got))
	}
	for i, ft := range got {
		ls, ok := ft.Geometry.(orb.LineString)
		if !ok || len(ls) != 4+i {
			t.Errorf("feature %d geometry %v", i, ft.Geometry)
		}
		if ft.Properties.MustString("Kind") != "walk" {
			t.Errorf("feature %d kind", i)
		}
	}

	if err := f.ReadActivities("nobody", func(*geojson.Feature) error {
		t.Error("no features for a missing archive")
		return nil
	}); err != nil {
		t.Errorf("missing archive: %v", err)
	}
}
