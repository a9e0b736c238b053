// Package rank orders nearby places by a blend of distance, rating and category.
package rank

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/fitzone/zoned/geo/geodesy"
	"github.com/fitzone/zoned/params"
	"github.com/paulmach/orb"
)

type Category string

const (
	CategoryGym   Category = "gym"
	CategoryPark  Category = "park"
	CategoryTrail Category = "trail"
)

var categoryWeights = map[Category]float64{
	CategoryPark:  1.0,
	CategoryTrail: 0.95,
	CategoryGym:   0.75,
}

// Weight is the category's fixed score weight; 0 for unknown categories.
func (c Category) Weight() float64 {
	return categoryWeights[c]
}

func (c Category) IsKnown() bool {
	_, ok := categoryWeights[c]
	return ok
}

func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsKnown() {
		return "", fmt.Errorf("unknown place category %q", s)
	}
	return c, nil
}

// Place is a point of interest an athlete might head to.
type Place struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Category Category  `json:"category"`
	Location orb.Point `json:"-"`
	Rating   *float64  `json:"rating,omitempty"` // [0, 5]
}

type placeJSON struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Lat      float64  `json:"lat"`
	Lng      float64  `json:"lng"`
	Rating   *float64 `json:"rating,omitempty"`
}

func (p Place) MarshalJSON() ([]byte, error) {
	return json.Marshal(placeJSON{p.ID, p.Name, p.Category, p.Location.Lat(), p.Location.Lon(), p.Rating})
}

func (p *Place) UnmarshalJSON(data []byte) error {
	pj := placeJSON{}
	if err := json.Unmarshal(data, &pj); err != nil {
		return err
	}
	*p = Place{ID: pj.ID, Name: pj.Name, Category: pj.Category, Location: orb.Point{pj.Lng, pj.Lat}, Rating: pj.Rating}
	return nil
}

// Ranked is a Place scored against a reference location.
type Ranked struct {
	Place
	DistanceMeters float64 `json:"distanceMeters"`
	Score          float64 `json:"score"`

	// Rationale is set when a remote recommender explained its pick.
	Rationale string `json:"rationale,omitempty"`
}

func (r Ranked) MarshalJSON() ([]byte, error) {
	type rankedJSON struct {
		placeJSON
		DistanceMeters float64 `json:"distanceMeters"`
		Score          float64 `json:"score"`
		Rationale      string  `json:"rationale,omitempty"`
	}
	p := r.Place
	return json.Marshal(rankedJSON{
		placeJSON:      placeJSON{p.ID, p.Name, p.Category, p.Location.Lat(), p.Location.Lon(), p.Rating},
		DistanceMeters: r.DistanceMeters,
		Score:          r.Score,
		Rationale:      r.Rationale,
	})
}

// Ranker scores places with configurable weights.
type Ranker struct {
	Config *params.RankConfig
}

func NewRanker(config *params.RankConfig) *Ranker {
	if config == nil {
		config = params.DefaultRankConfig()
	}
	return &Ranker{Config: config}
}

// Score is the composite score of a place d meters away.
func (r *Ranker) Score(p Place, d float64) float64 {
	distanceScore := 1 / (1 + d/1000)
	rating := r.Config.DefaultRating
	if p.Rating != nil {
		rating = *p.Rating
	}
	ratingScore := rating / 5
	return distanceScore*r.Config.DistanceWeight +
		ratingScore*r.Config.RatingWeight +
		p.Category.Weight()*r.Config.CategoryWeight
}

// Rank scores places relative to ref, sorts them by descending score
// (ties keep input order) and keeps at most limit. A limit < 1 uses the
// configured default. places is not modified.
func (r *Ranker) Rank(ref orb.Point, places []Place, limit int) []Ranked {
	if limit < 1 {
		limit = r.Config.Limit
	}
	out := make([]Ranked, 0, len(places))
	for _, p := range places {
		d := geodesy.DistanceMeters(ref, p.Location)
		out = append(out, Ranked{
			Place:          p,
			DistanceMeters: d,
			Score:          r.Score(p, d),
		})
	}
	slices.SortStableFunc(out, func(a, b Ranked) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Rank uses the default weights.
func Rank(ref orb.Point, places []Place, limit int) []Ranked {
	return NewRanker(nil).Rank(ref, places, limit)
}
