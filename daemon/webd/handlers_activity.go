package webd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fitzone/zoned/geo/smooth"
	"github.com/fitzone/zoned/tracker"
	"github.com/fitzone/zoned/types/activity"
	"github.com/fitzone/zoned/types/fix"
	"github.com/fitzone/zoned/types/summary"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
)

type transitionResponse struct {
	// Changed is false when the request was a no-op for the current state.
	Changed  bool             `json:"changed"`
	Snapshot tracker.Snapshot `json:"snapshot"`
}

type stopResponse struct {
	Changed bool             `json:"changed"`
	Summary *summary.Summary `json:"summary,omitempty"`
	Stats   *summary.Stats   `json:"stats,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// handleStart starts an activity of ?kind=walk|run|cycle.
// The body may carry the device's current fix, which is pushed first so
// the start does not wait on the next device push.
func (d *WebDaemon) handleStart(w http.ResponseWriter, r *http.Request) {
	rt, ok := d.handleGetRuntimeForRequest(w, r)
	if !ok {
		return
	}
	kind, err := activity.Parse(r.URL.Query().Get("kind"))
	if err != nil {
		d.writeError(w, fmt.Errorf("%w: %v", tracker.ErrUnknownKind, err))
		return
	}

	if r.Body != nil {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "Failed to read request body", http.StatusBadRequest)
			return
		}
		if len(bytes.TrimSpace(body)) > 0 {
			fixes, err := fix.DecodeShotgun(body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			current := fixes[len(fixes)-1]
			if current.Timestamp == 0 {
				current.Timestamp = time.Now().UnixMilli()
			}
			if err := current.Validate(); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			rt.push([]fix.Fix{current})
		}
	}

	started, err := rt.tracker.Start(r.Context(), kind)
	if err != nil {
		d.writeError(w, err)
		return
	}
	d.writeJSON(w, transitionResponse{Changed: started, Snapshot: rt.tracker.Snapshot()})
}

func (d *WebDaemon) handlePause(w http.ResponseWriter, r *http.Request) {
	rt, ok := d.handleGetRuntimeForRequest(w, r)
	if !ok {
		return
	}
	changed := rt.tracker.Pause()
	d.writeJSON(w, transitionResponse{Changed: changed, Snapshot: rt.tracker.Snapshot()})
}

func (d *WebDaemon) handleResume(w http.ResponseWriter, r *http.Request) {
	rt, ok := d.handleGetRuntimeForRequest(w, r)
	if !ok {
		return
	}
	changed := rt.tracker.Resume()
	d.writeJSON(w, transitionResponse{Changed: changed, Snapshot: rt.tracker.Snapshot()})
}

// handleStop finishes the activity. A failed persist still finishes it;
// the summary is returned along with the error.
func (d *WebDaemon) handleStop(w http.ResponseWriter, r *http.Request) {
	rt, ok := d.handleGetRuntimeForRequest(w, r)
	if !ok {
		return
	}
	s, err := rt.tracker.Stop(r.Context())
	if s == nil && err != nil {
		d.writeError(w, err)
		return
	}
	res := stopResponse{Changed: s != nil, Summary: s}
	if err != nil {
		d.logger.Warn("Activity finished but not persisted", "athlete", rt.athlete, "error", err)
		res.Error = err.Error()
		w.WriteHeader(http.StatusAccepted)
	} else if s != nil {
		if stats, err := d.store.Stats(r.Context(), rt.athlete); err == nil {
			res.Stats = &stats
		}
	}
	d.writeJSON(w, res)
}

func (d *WebDaemon) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	rt, ok := d.handleGetRuntimeForRequest(w, r)
	if !ok {
		return
	}
	snap := rt.tracker.Snapshot()
	d.writeJSON(w, map[string]any{
		"snapshot": snap,
		"display":  displaySnapshot(snap),
		"metrics":  rt.tracker.Metrics(),
	})
}

// displaySnapshot is the live view as the app shows it.
func displaySnapshot(snap tracker.Snapshot) map[string]string {
	return map[string]string{
		"distance": fmt.Sprintf("%.2f km", snap.DistanceMeters/1000),
		"time":     formatElapsed(snap.ElapsedSeconds),
		"calories": fmt.Sprintf("%.0f", snap.Calories),
		"loops":    fmt.Sprintf("%d", snap.LoopCount),
		"speed":    fmt.Sprintf("%.1f km/h", snap.CurrentSpeed*3.6),
		"kind":     snap.Kind.String(),
	}
}

func formatElapsed(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

type positionResponse struct {
	Latest   *fix.Fix  `json:"latest,omitempty"`
	Loading  bool      `json:"loading"`
	Watching bool      `json:"watching"`
	Error    any       `json:"error,omitempty"`
	Recent   []fix.Fix `json:"recent,omitempty"`
}

// handlePosition reports the athlete's streamed position.
// ?recent=n includes up to n of the latest fixes.
func (d *WebDaemon) handlePosition(w http.ResponseWriter, r *http.Request) {
	rt, ok := d.handleGetRuntimeForRequest(w, r)
	if !ok {
		return
	}
	n, err := queryInt(r, "recent", 0)
	if err != nil || n < 0 {
		http.Error(w, "Invalid recent", http.StatusBadRequest)
		return
	}
	res := positionResponse{
		Loading:  rt.source.Loading(),
		Watching: rt.source.Watching(),
	}
	if f, ok := rt.source.Latest(); ok {
		res.Latest = &f
	}
	if e := rt.source.Err(); e != nil {
		res.Error = map[string]any{"code": e.Code, "message": e.Message}
	}
	if n > 0 {
		res.Recent = rt.source.Recent(n)
	}
	d.writeJSON(w, res)
}

// handlePath returns the live path as a GeoJSON LineString feature.
// ?smooth=raw (default), ema or kalman.
func (d *WebDaemon) handlePath(w http.ResponseWriter, r *http.Request) {
	rt, ok := d.handleGetRuntimeForRequest(w, r)
	if !ok {
		return
	}
	path := rt.tracker.Path()
	mode := r.URL.Query().Get("smooth")
	switch mode {
	case "", "raw":
		mode = "raw"
	case "ema":
		path = smooth.SmoothPath(path, d.Config.Smoothing.Alpha)
	case "kalman":
		smoothed, err := smooth.KalmanPath(path, d.Config.Smoothing.KalmanAcceleration)
		if err != nil {
			d.logger.Warn("Kalman smoothing failed", "athlete", rt.athlete, "error", err)
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		path = smoothed
	default:
		http.Error(w, fmt.Sprintf("Unknown smooth mode %q", mode), http.StatusBadRequest)
		return
	}

	ft := pathFeature(path)
	ft.Properties["athlete"] = rt.athlete
	ft.Properties["smooth"] = mode
	ft.Properties["count"] = len(path)
	d.writeJSON(w, ft)
}

func (d *WebDaemon) handleStats(w http.ResponseWriter, r *http.Request) {
	id, ok := handleGetAthleteForRequest(w, r)
	if !ok {
		return
	}
	stats, err := d.store.Stats(r.Context(), id)
	if err != nil {
		d.writeError(w, err)
		return
	}
	d.writeJSON(w, stats)
}

// handleActivities lists stored activities newest first, ?limit=n.
// Paths are left out; fetch one activity for its path.
func (d *WebDaemon) handleActivities(w http.ResponseWriter, r *http.Request) {
	id, ok := handleGetAthleteForRequest(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 20)
	if err != nil || limit < 0 {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return
	}
	list, err := d.store.Activities(r.Context(), id, limit)
	if err != nil {
		d.writeError(w, err)
		return
	}
	out := make([]summary.Summary, 0, len(list))
	for _, s := range list {
		brief := *s
		brief.Path = nil
		out = append(out, brief)
	}
	d.writeJSON(w, out)
}

func (d *WebDaemon) requestActivity(w http.ResponseWriter, r *http.Request) (*summary.Summary, bool) {
	id, ok := handleGetAthleteForRequest(w, r)
	if !ok {
		return nil, false
	}
	activityID, err := uuid.Parse(muxVar(r, "id"))
	if err != nil {
		http.Error(w, "Invalid activity id", http.StatusBadRequest)
		return nil, false
	}
	s, err := d.store.Activity(r.Context(), id, activityID)
	if err != nil {
		d.writeError(w, err)
		return nil, false
	}
	return s, true
}

func (d *WebDaemon) handleActivity(w http.ResponseWriter, r *http.Request) {
	s, ok := d.requestActivity(w, r)
	if !ok {
		return
	}
	d.writeJSON(w, s)
}

// handleArchive streams the athlete's flat-file activity archive as NDJSON features.
func (d *WebDaemon) handleArchive(w http.ResponseWriter, r *http.Request) {
	id, ok := handleGetAthleteForRequest(w, r)
	if !ok {
		return
	}
	setContentTypeJSONStream(w)
	enc := json.NewEncoder(w)
	err := d.flat.ReadActivities(id, func(ft *geojson.Feature) error {
		return enc.Encode(ft)
	})
	if err != nil {
		d.logger.Error("Failed to read archive", "athlete", id, "error", err)
	}
}
