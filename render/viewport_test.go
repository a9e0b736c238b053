package render

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/fitzone/zoned/geo/geodesy"
	"github.com/fitzone/zoned/geo/rank"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/testing/testdata"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

func TestViewport_Zoom(t *testing.T) {
	config := params.DefaultTileConfig()
	config.MinZoom, config.MaxZoom = 3, 17
	v := NewViewport(config, testdata.NYC, 800, 600)
	if v.Zoom != maptile.Zoom(config.DefaultZoom) {
		t.Fatalf("default zoom %d", v.Zoom)
	}
	if z := v.SetZoom(40); z != 17 {
		t.Errorf("clamp high: %d", z)
	}
	if z := v.ZoomIn(); z != 17 {
		t.Errorf("zoom in at max: %d", z)
	}
	if z := v.SetZoom(-2); z != 3 {
		t.Errorf("clamp low: %d", z)
	}
	if z := v.ZoomOut(); z != 3 {
		t.Errorf("zoom out at min: %d", z)
	}
	if z := v.ZoomIn(); z != 4 {
		t.Errorf("zoom in: %d", z)
	}
}

func TestViewport_PanRoundTrip(t *testing.T) {
	v := NewViewport(nil, testdata.NYC, 800, 600)
	v.Pan(300, -120)
	if v.Center.Lon() <= testdata.NYC.Lon() || v.Center.Lat() <= testdata.NYC.Lat() {
		t.Errorf("pan east and north: %v", v.Center)
	}
	v.Pan(-300, 120)
	if math.Abs(v.Center.Lon()-testdata.NYC.Lon()) > 1e-9 || math.Abs(v.Center.Lat()-testdata.NYC.Lat()) > 1e-9 {
		t.Errorf("round trip: %v", v.Center)
	}

	v.SetZoom(2)
	v.Pan(0, -1e6)
	if math.Abs(v.Center.Lat()-geodesy.MaxMercatorLat) > 1e-6 {
		t.Errorf("pan past the pole stops at the edge: %v", v.Center)
	}
}

func TestViewport_Project(t *testing.T) {
	v := NewViewport(nil, testdata.NYC, 800, 600)
	c := v.Project(testdata.NYC)
	if math.Abs(c.X-400) > 1e-6 || math.Abs(c.Y-300) > 1e-6 {
		t.Errorf("center projects to screen center, have %v", c)
	}
	path := v.ProjectPath(testdata.Line(testdata.NYC, 50, 3, time.Second))
	if len(path) != 3 || !(path[2].X > path[1].X && path[1].X > path[0].X) {
		t.Errorf("eastward path moves right: %v", path)
	}

	ranked := rank.Rank(testdata.NYC, []rank.Place{
		{ID: "near", Category: rank.CategoryPark, Location: testdata.Offset(testdata.NYC, 100, 0)},
		{ID: "far", Category: rank.CategoryPark, Location: testdata.Offset(testdata.NYC, 50_000, 0)},
	}, 0)
	markers := v.ProjectPlaces(ranked)
	if !markers[0].Visible || markers[1].Visible {
		t.Errorf("visibility: %+v", markers)
	}
	if markers[0].Screen.Y >= 300 {
		t.Error("a place to the north is above center")
	}
}

func TestViewport_Tiles(t *testing.T) {
	config := params.DefaultTileConfig()
	v := NewViewport(config, orb.Point{0, 0}, 512, 512)
	v.SetZoom(2)
	// Centered on a tile corner: exactly 2x2 tiles.
	tiles := v.Tiles()
	if len(tiles) != 4 {
		t.Fatalf("want 4 tiles, have %d: %+v", len(tiles), tiles)
	}
	if tiles[0].X != 1 || tiles[0].Y != 1 || tiles[0].Offset != (geodesy.Pixel{}) {
		t.Errorf("first tile %+v", tiles[0])
	}
	if tiles[0].URL != "https://tile.openstreetmap.org/2/1/1.png" {
		t.Errorf("url %s", tiles[0].URL)
	}

	// Straddling the antimeridian wraps x.
	v.CenterOn(orb.Point{180, 0})
	cols := map[int]bool{}
	for _, tile := range v.Tiles() {
		cols[tile.X] = true
		if tile.X < 0 || tile.X >= 4 {
			t.Errorf("unwrapped x %d", tile.X)
		}
	}
	if !cols[3] || !cols[0] {
		t.Errorf("want columns 3 and 0, have %v", cols)
	}

	// Near the top edge the rows above the map are dropped.
	v.CenterOn(orb.Point{0, 85})
	for _, tile := range v.Tiles() {
		if tile.Y < 0 {
			t.Errorf("row %d is off the map", tile.Y)
		}
	}

	if err := v.SetLayer("topo"); err != nil {
		t.Fatal(err)
	}
	if tiles := v.Tiles(); !strings.HasPrefix(tiles[0].URL, "https://tile.opentopomap.org/2/") {
		t.Errorf("layer url %s", tiles[0].URL)
	}
	if err := v.SetLayer("lava"); !errors.Is(err, ErrUnknownLayer) {
		t.Errorf("have %v", err)
	}
	if got := v.Layers(); len(got) != 2 || got[0] != "osm" {
		t.Errorf("layers %v", got)
	}
}
