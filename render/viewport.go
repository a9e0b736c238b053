// Package render lays out a slippy map: which tiles a screen shows and
// where paths and places land on it.
package render

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/fitzone/zoned/common"
	"github.com/fitzone/zoned/geo/geodesy"
	"github.com/fitzone/zoned/geo/rank"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/types/fix"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

var ErrUnknownLayer = errors.New("unknown tile layer")

// Viewport is a screen of Width x Height pixels centered on Center.
// It is not safe for concurrent use.
type Viewport struct {
	Center orb.Point    `json:"-"`
	Zoom   maptile.Zoom `json:"zoom"`
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Layer  string       `json:"layer"`

	config *params.TileConfig
}

func NewViewport(config *params.TileConfig, center orb.Point, width, height int) *Viewport {
	if config == nil {
		config = params.DefaultTileConfig()
	}
	v := &Viewport{
		Center: center,
		Width:  max(width, 1),
		Height: max(height, 1),
		Layer:  config.DefaultLayer,
		config: config,
	}
	v.SetZoom(int(config.DefaultZoom))
	v.Center = v.normalize(center)
	return v
}

func (v *Viewport) minZoom() int { return int(v.config.MinZoom.Clamp()) }
func (v *Viewport) maxZoom() int { return int(v.config.MaxZoom.Clamp()) }

// SetZoom sets the zoom level, clamped to the configured range.
// It returns the level in effect.
func (v *Viewport) SetZoom(z int) maptile.Zoom {
	z = max(v.minZoom(), min(z, v.maxZoom()))
	v.Zoom = maptile.Zoom(z)
	return v.Zoom
}

func (v *Viewport) ZoomIn() maptile.Zoom  { return v.SetZoom(int(v.Zoom) + 1) }
func (v *Viewport) ZoomOut() maptile.Zoom { return v.SetZoom(int(v.Zoom) - 1) }

// normalize wraps longitude into [-180, 180) and clamps latitude to
// what Web Mercator can show.
func (v *Viewport) normalize(pt orb.Point) orb.Point {
	lng := math.Mod(pt.Lon()+180, 360)
	if lng < 0 {
		lng += 360
	}
	lat := common.Clamp(pt.Lat(), -geodesy.MaxMercatorLat, geodesy.MaxMercatorLat)
	return orb.Point{lng - 180, lat}
}

// Pan moves the view by dx, dy screen pixels; positive dx shows what is
// east, positive dy what is south.
func (v *Viewport) Pan(dx, dy float64) {
	c := geodesy.ProjectToWorldPixels(v.Center, v.Zoom).Add(dx, dy)
	c.Y = common.Clamp(c.Y, 0, geodesy.WorldSize(v.Zoom))
	v.Center = v.normalize(geodesy.WorldPixelsToPoint(c, v.Zoom))
}

// CenterOn moves the view without changing zoom.
func (v *Viewport) CenterOn(pt orb.Point) {
	v.Center = v.normalize(pt)
}

// Layers lists the configured layer names, sorted.
func (v *Viewport) Layers() []string {
	out := make([]string, 0, len(v.config.Layers))
	for name := range v.config.Layers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (v *Viewport) SetLayer(name string) error {
	if _, ok := v.config.Layers[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLayer, name)
	}
	v.Layer = name
	return nil
}

// TopLeft is the world pixel at the screen origin.
func (v *Viewport) TopLeft() geodesy.Pixel {
	c := geodesy.ProjectToWorldPixels(v.Center, v.Zoom)
	return c.Add(-float64(v.Width)/2, -float64(v.Height)/2)
}

// Project places pt on screen. The result may be off screen.
func (v *Viewport) Project(pt orb.Point) geodesy.Pixel {
	return geodesy.ProjectToWorldPixels(pt, v.Zoom).Sub(v.TopLeft())
}

// Visible reports whether a screen pixel is inside the viewport.
func (v *Viewport) Visible(px geodesy.Pixel) bool {
	return px.X >= 0 && px.Y >= 0 && px.X < float64(v.Width) && px.Y < float64(v.Height)
}

func (v *Viewport) ProjectPath(path []fix.Fix) []geodesy.Pixel {
	out := make([]geodesy.Pixel, len(path))
	for i, f := range path {
		out[i] = v.Project(f.Point)
	}
	return out
}

// Marker is a ranked place on screen.
type Marker struct {
	rank.Ranked
	Screen  geodesy.Pixel `json:"screen"`
	Visible bool          `json:"visible"`
}

func (v *Viewport) ProjectPlaces(places []rank.Ranked) []Marker {
	out := make([]Marker, len(places))
	for i, p := range places {
		px := v.Project(p.Location)
		out[i] = Marker{Ranked: p, Screen: px, Visible: v.Visible(px)}
	}
	return out
}

// Tile is one image to draw. X is wrapped; Offset is where its top left
// corner goes on screen.
type Tile struct {
	X      int           `json:"x"`
	Y      int           `json:"y"`
	Z      maptile.Zoom  `json:"z"`
	URL    string        `json:"url"`
	Offset geodesy.Pixel `json:"offset"`
}

// Tiles lists the tiles covering the screen, row by row. Columns past the
// antimeridian wrap around; rows off the top or bottom of the map are
// left out.
func (v *Viewport) Tiles() []Tile {
	tl := v.TopLeft()
	first := geodesy.WorldPixelsToTileIndex(tl)
	last := geodesy.WorldPixelsToTileIndex(tl.Add(float64(v.Width), float64(v.Height)))
	base := v.config.Layers[v.Layer]

	out := []Tile{}
	for y := first.Y; y <= last.Y; y++ {
		if !geodesy.ValidTileY(y, v.Zoom) {
			continue
		}
		for x := first.X; x <= last.X; x++ {
			offset := geodesy.Pixel{
				X: float64(x*geodesy.TileSize) - tl.X,
				Y: float64(y*geodesy.TileSize) - tl.Y,
			}
			if offset.X >= float64(v.Width) || offset.Y >= float64(v.Height) {
				continue
			}
			out = append(out, Tile{
				X:      common.Mod(x, 1<<v.Zoom),
				Y:      y,
				Z:      v.Zoom,
				URL:    geodesy.TileImageURL(x, y, v.Zoom, base),
				Offset: offset,
			})
		}
	}
	return out
}
