// Package rgeo reverse geocodes activity start points with offline
// Natural Earth datasets.
package rgeo

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fitzone/zoned/types/summary"
	"github.com/paulmach/orb"
	srgeo "github.com/sams96/rgeo"
)

type ReverseGeocoder interface {
	GetLocation(pt orb.Point) (srgeo.Location, error)
}

// rR is the type of our wrapped rgeo.Rgeo instance, which implements the ReverseGeocoder interface.
type rR srgeo.Rgeo

func (rr *rR) GetLocation(pt orb.Point) (srgeo.Location, error) {
	return (*srgeo.Rgeo)(rr).ReverseGeocode(pt)
}

var (
	Cities10    = srgeo.Cities10
	Countries10 = srgeo.Countries10
	Provinces10 = srgeo.Provinces10
)

// DefaultDatasets resolve a point to country, province and city.
var DefaultDatasets = []func() []byte{
	Cities10,
	Countries10,
	Provinces10,
}

var (
	r     *rR
	rErr  error
	rOnce sync.Once
)

// R returns the process-wide geocoder over DefaultDatasets,
// loading them on first use. Loading takes a few seconds.
func R() (ReverseGeocoder, error) {
	rOnce.Do(func() {
		var r1 *srgeo.Rgeo
		r1, rErr = New(DefaultDatasets...)
		if rErr == nil {
			r = (*rR)(r1)
		}
	})
	if rErr != nil {
		return nil, rErr
	}
	return r, nil
}

// New loads a private geocoder over the given datasets.
func New(datasets ...func() []byte) (*srgeo.Rgeo, error) {
	r1, err := srgeo.New(datasets...)
	if err != nil {
		return nil, fmt.Errorf("load rgeo datasets: %w", err)
	}
	return r1, nil
}

// Wrap adapts a loaded library instance.
func Wrap(r1 *srgeo.Rgeo) ReverseGeocoder {
	return (*rR)(r1)
}

// Annotator sets the start place on summaries.
type Annotator struct {
	rg     ReverseGeocoder
	logger *slog.Logger
}

func NewAnnotator(rg ReverseGeocoder) *Annotator {
	return &Annotator{rg: rg, logger: slog.With("d", "rgeo")}
}

// Place looks up pt. Open water and unmapped areas yield an empty place,
// not an error.
func (a *Annotator) Place(pt orb.Point) (*summary.Place, error) {
	loc, err := a.rg.GetLocation(pt)
	if err != nil && !errors.Is(err, srgeo.ErrLocationNotFound) {
		return nil, err
	}
	return &summary.Place{
		Country:  loc.Country,
		Province: loc.Province,
		City:     loc.City,
	}, nil
}

// Annotate implements tracker.Annotator. Lookup failures leave Place nil.
func (a *Annotator) Annotate(s *summary.Summary) {
	if len(s.Path) == 0 {
		return
	}
	place, err := a.Place(s.Start)
	if err != nil {
		a.logger.Warn("Reverse geocode failed", "id", s.ID, "error", err)
		return
	}
	if *place == (summary.Place{}) {
		return
	}
	s.Place = place
}
