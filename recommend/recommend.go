// Package recommend asks a remote coach service which nearby places suit
// an athlete right now, and falls back to local ranking when it cannot.
package recommend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/geo/geodesy"
	"github.com/fitzone/zoned/geo/rank"
	"github.com/fitzone/zoned/geo/zones"
	"github.com/fitzone/zoned/params"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/paulmach/orb"
	"github.com/tidwall/gjson"
)

type TimeOfDay string

const (
	Morning   TimeOfDay = "morning"
	Afternoon TimeOfDay = "afternoon"
	Evening   TimeOfDay = "evening"
	Night     TimeOfDay = "night"
)

// TimeOfDayAt buckets the local hour of t: [5,12) morning, [12,17)
// afternoon, [17,21) evening, otherwise night.
func TimeOfDayAt(t time.Time) TimeOfDay {
	switch h := t.Hour(); {
	case h >= 5 && h < 12:
		return Morning
	case h >= 12 && h < 17:
		return Afternoon
	case h >= 17 && h < 21:
		return Evening
	}
	return Night
}

type Source string

const (
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
	SourceLocal  Source = "local"
)

type Request struct {
	Athlete             conceptual.AthleteID
	Location            orb.Point
	Time                time.Time
	FitnessLevel        int
	RemainingGoalMeters float64
	Candidates          []rank.Place
	Limit               int
}

type Result struct {
	Places []rank.Ranked `json:"places"`
	Source Source        `json:"source"`
}

// Pick is one remote recommendation, by candidate ID.
type Pick struct {
	ID        string
	Score     *float64
	Rationale string
}

// cacheKey holds everything the service is asked about. Candidates are
// keyed by their sorted IDs and the goal by whole meters.
type cacheKey struct {
	cell       string
	tod        TimeOfDay
	fitness    int
	limit      int
	goal       int64
	candidates uint64
}

type Recommender struct {
	config *params.RecommendConfig
	ranker *rank.Ranker
	client *http.Client
	cache  *lru.Cache[cacheKey, []Pick]
	logger *slog.Logger
}

func New(config *params.RecommendConfig, ranker *rank.Ranker) (*Recommender, error) {
	if config == nil {
		config = params.DefaultRecommendConfig()
	}
	if ranker == nil {
		ranker = rank.NewRanker(nil)
	}
	size := config.CacheSize
	if size < 1 {
		size = 1
	}
	cache, err := lru.New[cacheKey, []Pick](size)
	if err != nil {
		return nil, err
	}
	return &Recommender{
		config: config,
		ranker: ranker,
		client: &http.Client{Timeout: config.Timeout},
		cache:  cache,
		logger: slog.With("d", "recommend"),
	}, nil
}

func (r *Recommender) key(req Request, limit int) (cacheKey, error) {
	ids := make([]string, 0, len(req.Candidates))
	for _, p := range req.Candidates {
		ids = append(ids, p.ID)
	}
	slices.Sort(ids)
	hash, err := hashstructure.Hash(ids, hashstructure.FormatV2, nil)
	if err != nil {
		return cacheKey{}, err
	}
	return cacheKey{
		cell:       zones.Token(req.Location, zones.CellLevel(r.config.CacheCellLevel)),
		tod:        TimeOfDayAt(req.Time),
		fitness:    req.FitnessLevel,
		limit:      limit,
		goal:       int64(math.Round(req.RemainingGoalMeters)),
		candidates: hash,
	}, nil
}

// Recommend never fails: any trouble with the remote service yields the
// local ranking instead.
func (r *Recommender) Recommend(ctx context.Context, req Request) Result {
	limit := req.Limit
	if limit < 1 {
		limit = r.ranker.Config.Limit
	}
	local := func() Result {
		return Result{Places: r.ranker.Rank(req.Location, req.Candidates, limit), Source: SourceLocal}
	}
	if r.config.Endpoint == "" || len(req.Candidates) == 0 {
		return local()
	}

	key, keyErr := r.key(req, limit)
	if keyErr == nil {
		if picks, ok := r.cache.Get(key); ok {
			if out := r.resolve(req, picks, limit); len(out) > 0 {
				return Result{Places: out, Source: SourceCache}
			}
		}
	}

	picks, err := r.fetch(ctx, req, limit)
	if err != nil {
		r.logger.Warn("Remote recommendation failed, ranking locally", "athlete", req.Athlete, "error", err)
		return local()
	}
	out := r.resolve(req, picks, limit)
	if len(out) == 0 {
		r.logger.Warn("Remote recommendation matched no candidates, ranking locally", "athlete", req.Athlete)
		return local()
	}
	if keyErr == nil {
		r.cache.Add(key, picks)
	}
	return Result{Places: out, Source: SourceRemote}
}

// resolve matches picks to the request's candidates, in pick order.
// Unknown and repeated IDs are dropped.
func (r *Recommender) resolve(req Request, picks []Pick, limit int) []rank.Ranked {
	byID := make(map[string]rank.Place, len(req.Candidates))
	for _, p := range req.Candidates {
		byID[p.ID] = p
	}
	out := []rank.Ranked{}
	for _, pk := range picks {
		p, ok := byID[pk.ID]
		if !ok {
			continue
		}
		delete(byID, pk.ID)
		d := geodesy.DistanceMeters(req.Location, p.Location)
		score := r.ranker.Score(p, d)
		if pk.Score != nil {
			score = *pk.Score
		}
		out = append(out, rank.Ranked{Place: p, DistanceMeters: d, Score: score, Rationale: pk.Rationale})
		if len(out) == limit {
			break
		}
	}
	return out
}

type requestBody struct {
	Athlete             string       `json:"athlete"`
	Lat                 float64      `json:"lat"`
	Lng                 float64      `json:"lng"`
	TimeOfDay           TimeOfDay    `json:"timeOfDay"`
	FitnessLevel        int          `json:"fitnessLevel"`
	RemainingGoalMeters float64      `json:"remainingGoalMeters"`
	Limit               int          `json:"limit"`
	Candidates          []rank.Place `json:"candidates"`
}

func (r *Recommender) fetch(ctx context.Context, req Request, limit int) ([]Pick, error) {
	body, err := json.Marshal(requestBody{
		Athlete:             req.Athlete.String(),
		Lat:                 req.Location.Lat(),
		Lng:                 req.Location.Lon(),
		TimeOfDay:           TimeOfDayAt(req.Time),
		FitnessLevel:        req.FitnessLevel,
		RemainingGoalMeters: req.RemainingGoalMeters,
		Limit:               limit,
		Candidates:          req.Candidates,
	})
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	res, err := r.client.Do(hreq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("recommendation service: %s", res.Status)
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return ParsePicks(data)
}

// ParsePicks reads a service reply leniently. It accepts a bare array or
// an object holding one under "recommendations", "places" or "results".
// Items may be objects with an id (or placeId) and optional score and
// rationale (or reason), or bare id strings.
func ParsePicks(data []byte) ([]Pick, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("recommendation service: invalid json")
	}
	root := gjson.ParseBytes(data)
	list := root
	if !root.IsArray() {
		list = gjson.Result{}
		for _, path := range []string{"recommendations", "places", "results"} {
			if v := root.Get(path); v.IsArray() {
				list = v
				break
			}
		}
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("recommendation service: no recommendations in reply")
	}
	out := []Pick{}
	list.ForEach(func(_, item gjson.Result) bool {
		if item.Type == gjson.String {
			out = append(out, Pick{ID: item.String()})
			return true
		}
		id := item.Get("id")
		if !id.Exists() {
			id = item.Get("placeId")
		}
		if id.String() == "" {
			return true
		}
		pk := Pick{ID: id.String()}
		if s := item.Get("score"); s.Type == gjson.Number {
			v := s.Float()
			pk.Score = &v
		}
		pk.Rationale = item.Get("rationale").String()
		if pk.Rationale == "" {
			pk.Rationale = item.Get("reason").String()
		}
		out = append(out, pk)
		return true
	})
	return out, nil
}
