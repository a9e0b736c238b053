package rgeo

import (
	"errors"
	"strings"
	"testing"

	"github.com/fitzone/zoned/testing/testdata"
	"github.com/fitzone/zoned/types/summary"
	"github.com/paulmach/orb"
	srgeo "github.com/sams96/rgeo"
)

type fakeGeocoder struct {
	loc srgeo.Location
	err error
}

func (f fakeGeocoder) GetLocation(orb.Point) (srgeo.Location, error) { return f.loc, f.err }

func TestAnnotator_Annotate(t *testing.T) {
	s := &summary.Summary{Path: testdata.Line(testdata.NYC, 10, 2, 0), Start: testdata.NYC}
	NewAnnotator(fakeGeocoder{loc: srgeo.Location{Country: "Narnia", City: "Cair Paravel"}}).Annotate(s)
	if s.Place == nil || s.Place.Country != "Narnia" || s.Place.City != "Cair Paravel" {
		t.Errorf("place: %+v", s.Place)
	}

	s.Place = nil
	NewAnnotator(fakeGeocoder{err: srgeo.ErrLocationNotFound}).Annotate(s)
	if s.Place != nil {
		t.Error("nowhere is no place")
	}
	NewAnnotator(fakeGeocoder{err: errors.New("boom")}).Annotate(s)
	if s.Place != nil {
		t.Error("failures leave the place unset")
	}
}

func TestAnnotator_Countries(t *testing.T) {
	r1, err := New(Countries10)
	if err != nil {
		t.Fatal(err)
	}
	place, err := NewAnnotator(Wrap(r1)).Place(testdata.NYC)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(place.Country, "United States") {
		t.Errorf("country: %q", place.Country)
	}
	// Mid Atlantic.
	place, err = NewAnnotator(Wrap(r1)).Place(orb.Point{-40, 30})
	if err == nil && place.Country != "" {
		t.Errorf("ocean: %+v %v", place, err)
	}
}
