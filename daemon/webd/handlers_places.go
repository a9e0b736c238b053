package webd

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fitzone/zoned/geo/rank"
	"github.com/fitzone/zoned/recommend"
	"github.com/paulmach/orb"
)

var errNoReference = errors.New("no reference location: send lat and lng, or push a fix first")

// placesRequest is the body for ranking and recommending.
// Lat and Lng default to the athlete's latest position.
type placesRequest struct {
	Lat    *float64     `json:"lat,omitempty"`
	Lng    *float64     `json:"lng,omitempty"`
	Places []rank.Place `json:"places"`
	Limit  int          `json:"limit,omitempty"`

	FitnessLevel        int     `json:"fitnessLevel,omitempty"`
	RemainingGoalMeters float64 `json:"remainingGoalMeters,omitempty"`
}

func (d *WebDaemon) decodePlacesRequest(w http.ResponseWriter, r *http.Request) (placesRequest, orb.Point, *athleteRuntime, bool) {
	req := placesRequest{}
	rt, ok := d.handleGetRuntimeForRequest(w, r)
	if !ok {
		return req, orb.Point{}, nil, false
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid places request: "+err.Error(), http.StatusBadRequest)
		return req, orb.Point{}, nil, false
	}
	for _, p := range req.Places {
		if p.Category != "" && !p.Category.IsKnown() {
			http.Error(w, "Unknown place category "+string(p.Category), http.StatusBadRequest)
			return req, orb.Point{}, nil, false
		}
	}
	if req.Lat != nil && req.Lng != nil {
		return req, orb.Point{*req.Lng, *req.Lat}, rt, true
	}
	if f, ok := rt.source.Latest(); ok {
		return req, f.Point, rt, true
	}
	http.Error(w, errNoReference.Error(), http.StatusBadRequest)
	return req, orb.Point{}, nil, false
}

func (d *WebDaemon) handleRankPlaces(w http.ResponseWriter, r *http.Request) {
	req, ref, _, ok := d.decodePlacesRequest(w, r)
	if !ok {
		return
	}
	d.writeJSON(w, d.ranker.Rank(ref, req.Places, req.Limit))
}

// handleRecommendPlaces asks the coach service, falling back to local ranking.
// The response says which one answered.
func (d *WebDaemon) handleRecommendPlaces(w http.ResponseWriter, r *http.Request) {
	req, ref, rt, ok := d.decodePlacesRequest(w, r)
	if !ok {
		return
	}
	res := d.recommender.Recommend(r.Context(), recommend.Request{
		Athlete:             rt.athlete,
		Location:            ref,
		Time:                time.Now(),
		FitnessLevel:        req.FitnessLevel,
		RemainingGoalMeters: req.RemainingGoalMeters,
		Candidates:          req.Places,
		Limit:               req.Limit,
	})
	d.writeJSON(w, res)
}
