package webd

import (
	"encoding/json"
	"net/http"

	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/events"
	"github.com/fitzone/zoned/tracker"
	"github.com/fitzone/zoned/types/fix"
	"github.com/olahol/melody"
)

type websocketAction string

var (
	websocketActionPopulate websocketAction = "populate"
	websocketActionSnapshot websocketAction = "snapshot"
)

const sessionKeyAthlete = "athlete"

type liveSnapshot struct {
	Action   websocketAction  `json:"action"`
	Snapshot tracker.Snapshot `json:"snapshot"`
	Smoothed *fix.Fix         `json:"smoothed,omitempty"`
}

type livePopulate struct {
	Action  websocketAction      `json:"action"`
	Athlete conceptual.AthleteID `json:"athlete"`
	Fixes   []fix.Fix            `json:"fixes"`
}

func sessionAthlete(s *melody.Session) conceptual.AthleteID {
	v, ok := s.Get(sessionKeyAthlete)
	if !ok {
		return ""
	}
	id, _ := v.(conceptual.AthleteID)
	return id
}

// initMelody sets up the websocket handler.
// Clients connect per athlete and receive that athlete's pushes and snapshots.
func (d *WebDaemon) initMelody() {
	d.melodyInstance = melody.New()

	d.melodyInstance.HandleConnect(func(s *melody.Session) {
		athlete := sessionAthlete(s)
		d.logger.Info("Websocket connected", "remote", s.Request.RemoteAddr, "athlete", athlete)
		rt, ok := d.existingAthlete(athlete)
		if !ok {
			return
		}
		b, err := json.Marshal(liveSnapshot{Action: websocketActionSnapshot, Snapshot: rt.tracker.Snapshot()})
		if err != nil {
			return
		}
		_ = s.Write(b)
	})

	// Clients have nothing to say yet. Log and drop.
	d.melodyInstance.HandleMessage(func(s *melody.Session, msg []byte) {
		d.logger.Debug("Websocket message", "remote", s.Request.RemoteAddr, "message", string(msg))
	})

	d.melodyInstance.HandleDisconnect(func(s *melody.Session) {
		d.logger.Info("Websocket disconnected", "remote", s.Request.RemoteAddr)
	})

	d.melodyInstance.HandleError(func(s *melody.Session, e error) {
		d.logger.Warn("Websocket error", "error", e, "remote", s.Request.RemoteAddr)
	})

	// Broadcast fixes as pushed. These are what the device sent after
	// dedupe, not necessarily what a tracker accepted.
	pushes := make(chan events.PopulatedFixes)
	pushSub := d.feeds.HTTPPopulate.Subscribe(pushes)
	go func() {
		defer pushSub.Unsubscribe()
		for {
			select {
			case p := <-pushes:
				b, err := json.Marshal(livePopulate{
					Action:  websocketActionPopulate,
					Athlete: p.Athlete,
					Fixes:   p.Fixes,
				})
				if err != nil {
					d.logger.Error("Failed to marshal populate event", "error", err)
					continue
				}
				d.broadcastTo(p.Athlete, b)
			case err := <-pushSub.Err():
				if err != nil {
					d.logger.Error("Populate subscription failed", "error", err)
				}
				return
			case <-d.ctx.Done():
				return
			}
		}
	}()
}

func (d *WebDaemon) broadcastSnapshot(live liveSnapshot) {
	b, err := json.Marshal(live)
	if err != nil {
		d.logger.Error("Failed to marshal snapshot", "error", err)
		return
	}
	d.broadcastTo(live.Snapshot.Athlete, b)
}

func (d *WebDaemon) broadcastTo(athlete conceptual.AthleteID, b []byte) {
	if d.melodyInstance.IsClosed() || d.melodyInstance.Len() == 0 {
		return
	}
	err := d.melodyInstance.BroadcastFilter(b, func(s *melody.Session) bool {
		return sessionAthlete(s) == athlete
	})
	if err != nil {
		d.logger.Warn("Failed to broadcast", "athlete", athlete, "error", err)
	}
}

func (d *WebDaemon) handleLive(w http.ResponseWriter, r *http.Request) {
	athlete, ok := handleGetAthleteForRequest(w, r)
	if !ok {
		return
	}
	err := d.melodyInstance.HandleRequestWithKeys(w, r, map[string]any{sessionKeyAthlete: athlete})
	if err != nil {
		d.logger.Warn("Websocket upgrade failed", "error", err)
	}
}
