// Package geodesy holds the pure geometry zoned builds on:
// haversine distances, Web Mercator projection and slippy tile addressing.
// Nothing here panics or keeps state. Callers validate fixes before use.
package geodesy

import (
	"fmt"
	"math"
	"strings"

	"github.com/fitzone/zoned/common"
	"github.com/golang/geo/s1"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	TileSize = 256

	// MaxMercatorLat is where Web Mercator is cut off to avoid the pole singularity.
	MaxMercatorLat = 85.05112878
)

func ToRadians(deg float64) float64 {
	return (s1.Angle(deg) * s1.Degree).Radians()
}

func ToDegrees(rad float64) float64 {
	return s1.Angle(rad).Degrees()
}

// DistanceMeters is the haversine great-circle distance between a and b.
// It is symmetric, zero for identical points and never NaN for finite input.
func DistanceMeters(a, b orb.Point) float64 {
	lat1, lat2 := ToRadians(a.Lat()), ToRadians(b.Lat())
	dLat := lat2 - lat1
	dLng := ToRadians(b.Lon() - a.Lon())

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	// Rounding can push h a hair outside [0, 1], and sqrt/asin would return NaN.
	h = common.Clamp(h, 0, 1)
	return 2 * common.EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// PathDistanceMeters sums DistanceMeters over consecutive points.
func PathDistanceMeters(ls orb.LineString) float64 {
	d := 0.0
	for i := 1; i < len(ls); i++ {
		d += DistanceMeters(ls[i-1], ls[i])
	}
	return d
}

// Pixel is a position in world pixel space at some zoom.
// The world is TileSize * 2^zoom pixels wide, origin at the top left.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Pixel) Add(dx, dy float64) Pixel {
	return Pixel{X: p.X + dx, Y: p.Y + dy}
}

func (p Pixel) Sub(o Pixel) Pixel {
	return Pixel{X: p.X - o.X, Y: p.Y - o.Y}
}

// WorldSize is the width (and height) of the world in pixels at zoom.
func WorldSize(zoom maptile.Zoom) float64 {
	return TileSize * float64(uint64(1)<<zoom)
}

// ProjectToWorldPixels projects pt with Web Mercator.
// Latitude is clamped to ±MaxMercatorLat, so the result is finite
// for every latitude in [-90, 90].
func ProjectToWorldPixels(pt orb.Point, zoom maptile.Zoom) Pixel {
	scale := WorldSize(zoom)
	lat := common.Clamp(pt.Lat(), -MaxMercatorLat, MaxMercatorLat)
	siny := math.Sin(ToRadians(lat))
	return Pixel{
		X: scale * (0.5 + pt.Lon()/360),
		Y: scale * (0.5 - math.Log((1+siny)/(1-siny))/(4*math.Pi)),
	}
}

// WorldPixelsToPoint is the inverse of ProjectToWorldPixels.
// Longitude is not wrapped; a pixel off the right edge yields lng > 180.
func WorldPixelsToPoint(px Pixel, zoom maptile.Zoom) orb.Point {
	scale := WorldSize(zoom)
	lng := px.X/scale*360 - 180
	n := math.Pi - 2*math.Pi*px.Y/scale
	lat := ToDegrees(math.Atan(math.Sinh(n)))
	return orb.Point{lng, lat}
}

// TileIndex is an unwrapped tile address. X may fall outside [0, 2^zoom)
// when a viewport spans the antimeridian. Y outside that range has no tile.
type TileIndex struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// WorldPixelsToTileIndex floor-divides pixel coordinates by TileSize.
func WorldPixelsToTileIndex(px Pixel) TileIndex {
	return TileIndex{
		X: common.FloorDiv(px.X, TileSize),
		Y: common.FloorDiv(px.Y, TileSize),
	}
}

// ValidTileY reports whether y addresses a tile row at zoom.
func ValidTileY(y int, zoom maptile.Zoom) bool {
	return y >= 0 && y < 1<<zoom
}

// Tile returns the wrapped maptile.Tile for the index,
// or false if the row is off the map.
func (ti TileIndex) Tile(zoom maptile.Zoom) (maptile.Tile, bool) {
	if !ValidTileY(ti.Y, zoom) {
		return maptile.Tile{}, false
	}
	return maptile.New(uint32(common.Mod(ti.X, 1<<zoom)), uint32(ti.Y), zoom), true
}

// TileImageURL builds {baseURL}/{zoom}/{x mod 2^zoom}/{y}.png.
// y is used as given; reject rows with ValidTileY first.
func TileImageURL(x, y int, zoom maptile.Zoom, baseURL string) string {
	return fmt.Sprintf("%s/%d/%d/%d.png", strings.TrimSuffix(baseURL, "/"), zoom, common.Mod(x, 1<<zoom), y)
}
