package webd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/metrics"
	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/position"
	"github.com/fitzone/zoned/store"
	"github.com/fitzone/zoned/tracker"
	"github.com/gorilla/mux"
)

// populateMeters count device pushes.
type populateMeters struct {
	requests   metrics.Counter
	fixes      metrics.Meter
	duplicates metrics.Meter
}

func newPopulateMeters() *populateMeters {
	// Won't count anything without this global setting.
	metrics.Enabled = true
	return &populateMeters{
		requests:   metrics.NewCounter(),
		fixes:      metrics.NewMeter(),
		duplicates: metrics.NewMeter(),
	}
}

func (m *populateMeters) report() map[string]any {
	return map[string]any{
		"requests":   m.requests.Snapshot().Count(),
		"fixes":      m.fixes.Snapshot().Count(),
		"duplicates": m.duplicates.Snapshot().Count(),
		"rate1":      m.fixes.Snapshot().Rate1(),
	}
}

func (m *populateMeters) stop() {
	m.fixes.Stop()
	m.duplicates.Stop()
}

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("pong"))
}

type webDaemonStatus struct {
	StartedAt time.Time               `json:"started_at"`
	Uptime    string                  `json:"uptime"`
	Config    *params.WebDaemonConfig `json:"config"`
	WSOpen    bool                    `json:"ws_open"`
	WSConns   int                     `json:"ws_conns"`
	Athletes  int                     `json:"athletes"`
	Dedupe    int                     `json:"dedupe"`
	Populate  map[string]any          `json:"populate"`
}

func (d *WebDaemon) statusReport(w http.ResponseWriter, r *http.Request) {
	st := webDaemonStatus{
		StartedAt: d.started,
		Uptime:    time.Since(d.started).Round(time.Second).String(),
		WSOpen:    !d.melodyInstance.IsClosed(),
		WSConns:   d.melodyInstance.Len(),
		Config:    d.Config,
		Athletes:  d.athletes.Len(),
		Dedupe:    d.dedupe.Len(),
		Populate:  d.meters.report(),
	}
	j, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		d.logger.Error("Failed to marshal status", "error", err)
		http.Error(w, "Failed to marshal status", http.StatusInternalServerError)
		return
	}
	if _, err = w.Write(j); err != nil {
		d.logger.Error("Failed to write response", "error", err)
	}
}

func getRequestAthleteID(r *http.Request) conceptual.AthleteID {
	vars := mux.Vars(r)
	id, ok := vars["athlete"]
	if ok {
		return conceptual.AthleteID(id)
	}
	return conceptual.AthleteID(r.URL.Query().Get("athlete"))
}

func handleGetAthleteForRequest(w http.ResponseWriter, r *http.Request) (conceptual.AthleteID, bool) {
	id := getRequestAthleteID(r)
	if id.IsEmpty() {
		http.Error(w, "Missing athlete", http.StatusBadRequest)
		return "", false
	}
	return id, true
}

// handleGetRuntimeForRequest resolves the athlete's runtime, creating it.
func (d *WebDaemon) handleGetRuntimeForRequest(w http.ResponseWriter, r *http.Request) (*athleteRuntime, bool) {
	id, ok := handleGetAthleteForRequest(w, r)
	if !ok {
		return nil, false
	}
	rt, err := d.athlete(id)
	if err != nil {
		d.logger.Error("Failed to get athlete runtime", "athlete", id, "error", err)
		http.Error(w, err.Error(), statusForError(err))
		return nil, false
	}
	return rt, true
}

func muxVar(r *http.Request, key string) string {
	return mux.Vars(r)[key]
}

func setContentTypeJSONStream(w http.ResponseWriter) {
	/*
		https://github.com/ipfs/kubo/issues/3737
		https://stackoverflow.com/questions/57301886/what-is-the-suitable-http-content-type-for-consuming-an-asynchronous-stream-of-d
	*/
	w.Header().Set("Content-Type", "application/x-ndjson")
}

func (d *WebDaemon) writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		d.logger.Warn("Failed to write response", "error", err)
	}
}

func (d *WebDaemon) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		d.logger.Error("Request failed", "error", err)
	} else {
		d.logger.Warn("Request refused", "error", err)
	}
	body := map[string]any{"error": err.Error()}
	var pe *position.Error
	if errors.As(err, &pe) {
		body["code"] = pe.Code
		body["message"] = pe.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	d.writeJSON(w, body)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, tracker.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, ErrShuttingDown), errors.Is(err, tracker.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, position.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, position.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, position.ErrPositionUnavailable),
		errors.Is(err, position.ErrUnsupported),
		errors.Is(err, position.ErrUnknown):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func queryFloat(r *http.Request, key string) (float64, bool, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil, err
}
