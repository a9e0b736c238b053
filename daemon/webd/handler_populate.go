package webd

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/fitzone/zoned/events"
	"github.com/fitzone/zoned/types/fix"
)

// maxPopulateBytes bounds one push. Batches from devices that were
// offline for a day are still well under this.
const maxPopulateBytes = 32 << 20

type populateResponse struct {
	Received   int `json:"received"`
	Invalid    int `json:"invalid"`
	Duplicates int `json:"duplicates"`
	Pushed     int `json:"pushed"`
}

// handlePopulate is where devices push fixes for an athlete.
// It supports a variety of input formats; see fix.DecodeShotgun.
// Valid, unseen fixes are pushed to the athlete's position source in time
// order, and from there to the tracker if an activity is live.
func (d *WebDaemon) handlePopulate(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		http.Error(w, "Please send a request body", http.StatusBadRequest)
		return
	}
	rt, ok := d.handleGetRuntimeForRequest(w, r)
	if !ok {
		return
	}
	d.meters.requests.Inc(1)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPopulateBytes))
	if err != nil {
		d.logger.Error("Failed to read request body", "error", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	fixes, err := fix.DecodeShotgun(body)
	if err != nil {
		d.logger.Warn("Failed to decode fixes", "athlete", rt.athlete, "error", err,
			"peek", fmt.Sprintf("%.80s...", body))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res := populateResponse{Received: len(fixes)}
	valid := fixes[:0]
	for _, f := range fixes {
		if err := f.Validate(); err != nil {
			res.Invalid++
			continue
		}
		valid = append(valid, f)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Timestamp < valid[j].Timestamp
	})
	unseen := d.dedupe.Filter(rt.athlete, valid)
	res.Duplicates = len(valid) - len(unseen)
	res.Pushed = len(unseen)

	d.meters.fixes.Mark(int64(res.Received))
	d.meters.duplicates.Mark(int64(res.Duplicates))

	if res.Received > 0 && res.Invalid == res.Received {
		http.Error(w, errors.Join(fix.ErrInvalidFix, errors.New("no valid fixes")).Error(), http.StatusBadRequest)
		return
	}

	rt.push(unseen)
	if len(unseen) > 0 {
		d.feeds.HTTPPopulate.Send(events.PopulatedFixes{Athlete: rt.athlete, Fixes: unseen})
	}
	d.logger.Info("Populated", "athlete", rt.athlete, "received", res.Received,
		"invalid", res.Invalid, "duplicates", res.Duplicates, "pushed", res.Pushed)

	d.writeJSON(w, res)
}
