package webd

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fitzone/zoned/geo/geodesy"
	"github.com/fitzone/zoned/geo/zones"
	"github.com/fitzone/zoned/render"
	"github.com/fitzone/zoned/types/fix"
	"github.com/gorilla/mux"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// pathFeature is a LineString feature of fixes, with their times alongside.
func pathFeature(path []fix.Fix) *geojson.Feature {
	ft := geojson.NewFeature(fix.Points(path))
	times := make([]int64, len(path))
	for i, f := range path {
		times[i] = f.Timestamp
	}
	ft.Properties["UnixTimesMs"] = times
	return ft
}

func zoneFeature(token string) (*geojson.Feature, error) {
	poly, err := zones.CellPolygon(token)
	if err != nil {
		return nil, err
	}
	ft := geojson.NewFeature(poly)
	ft.ID = token
	ft.Properties["token"] = token
	return ft, nil
}

// handleZoneCell returns the outline of one zone cell.
func handleZoneCell(w http.ResponseWriter, r *http.Request) {
	ft, err := zoneFeature(mux.Vars(r)["token"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_ = json.NewEncoder(w).Encode(ft)
}

// handleActivityZones returns the zones an activity captured, with its path.
func (d *WebDaemon) handleActivityZones(w http.ResponseWriter, r *http.Request) {
	s, ok := d.requestActivity(w, r)
	if !ok {
		return
	}
	fc := geojson.NewFeatureCollection()
	for _, token := range s.ZonesVisited {
		ft, err := zoneFeature(token)
		if err != nil {
			d.logger.Warn("Bad zone token in stored activity", "id", s.ID, "token", token)
			continue
		}
		fc.Append(ft)
	}
	if len(s.Path) > 1 {
		ft := pathFeature(s.Path)
		ft.ID = s.ID.String()
		fc.Append(ft)
	}
	d.writeJSON(w, fc)
}

type mapResponse struct {
	Center  orb.Point        `json:"center"` // [lng, lat]
	Zoom    int              `json:"zoom"`
	Width   int              `json:"width"`
	Height  int              `json:"height"`
	Layer   string           `json:"layer"`
	Layers  []string         `json:"layers"`
	Tiles   []render.Tile    `json:"tiles"`
	Path    []geodesy.Pixel  `json:"path"`
	Zone    *geojson.Feature `json:"zone,omitempty"`
	Markers []render.Marker  `json:"markers,omitempty"`
}

// handleMap lays out a map screen for the athlete: tiles, the live path in
// screen pixels, and the zone under the center.
//
// Query: lat, lng (default: latest position), zoom, width, height (default 512),
// layer, dx, dy (pan in pixels, applied after centering).
// A POST body {"places": [...]} ranks and places markers for those places.
func (d *WebDaemon) handleMap(w http.ResponseWriter, r *http.Request) {
	rt, ok := d.handleGetRuntimeForRequest(w, r)
	if !ok {
		return
	}
	width, err1 := queryInt(r, "width", 512)
	height, err2 := queryInt(r, "height", 512)
	zoom, err3 := queryInt(r, "zoom", int(d.Config.Tiles.DefaultZoom))
	lat, hasLat, err4 := queryFloat(r, "lat")
	lng, hasLng, err5 := queryFloat(r, "lng")
	dx, _, err6 := queryFloat(r, "dx")
	dy, _, err7 := queryFloat(r, "dy")
	if err := errors.Join(err1, err2, err3, err4, err5, err6, err7); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if width < 1 || height < 1 || width > 8192 || height > 8192 {
		http.Error(w, "Invalid viewport size", http.StatusBadRequest)
		return
	}

	var center orb.Point
	switch {
	case hasLat && hasLng:
		center = orb.Point{lng, lat}
	default:
		f, ok := rt.source.Latest()
		if !ok {
			http.Error(w, errNoReference.Error(), http.StatusBadRequest)
			return
		}
		center = f.Point
	}

	v := render.NewViewport(d.Config.Tiles, center, width, height)
	v.SetZoom(zoom)
	if layer := r.URL.Query().Get("layer"); layer != "" {
		if err := v.SetLayer(layer); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if dx != 0 || dy != 0 {
		v.Pan(dx, dy)
	}

	res := mapResponse{
		Center: v.Center,
		Zoom:   int(v.Zoom),
		Width:  v.Width,
		Height: v.Height,
		Layer:  v.Layer,
		Layers: v.Layers(),
		Tiles:  v.Tiles(),
		Path:   v.ProjectPath(rt.tracker.Path()),
	}
	if zone, err := zoneFeature(zones.Token(v.Center, zones.CellLevel(d.Config.Tracking.ZoneCellLevel))); err == nil {
		res.Zone = zone
	}

	if r.Method == http.MethodPost && r.Body != nil {
		req := placesRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid places: "+err.Error(), http.StatusBadRequest)
			return
		}
		ranked := d.ranker.Rank(v.Center, req.Places, len(req.Places))
		res.Markers = v.ProjectPlaces(ranked)
	}
	d.writeJSON(w, res)
}
