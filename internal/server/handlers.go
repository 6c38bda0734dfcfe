package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/venue-locator/internal/dirsync"
	"github.com/sells-group/venue-locator/internal/engine"
	"github.com/sells-group/venue-locator/internal/location"
	"github.com/sells-group/venue-locator/internal/venue"
)

type healthResponse struct {
	Status   string            `json:"status"`
	Sync     *dirsync.Status   `json:"sync,omitempty"`
	Breakers map[string]string `json:"breakers"`
}

// handleHealth reports "degraded" while the directory is configured but the
// last sync failed. Detection still works on local data, so it stays 200.
func handleHealth(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:   "ok",
			Sync:     svc.SyncStatus(),
			Breakers: svc.BreakerStates(),
		}
		if resp.Sync != nil && !resp.Sync.Ready {
			resp.Status = "degraded"
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleListVenues(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		region := strings.TrimSpace(r.URL.Query().Get("region"))

		var venues []venue.Venue
		switch {
		case q != "":
			venues = svc.SearchVenues(q)
			if region != "" {
				want := venue.ParseRegion(region)
				kept := venues[:0]
				for _, v := range venues {
					if v.Region == want {
						kept = append(kept, v)
					}
				}
				venues = kept
			}
		case region != "":
			venues = svc.VenuesByRegion(venue.ParseRegion(region))
		default:
			venues = svc.AllVenues()
		}
		if venues == nil {
			venues = []venue.Venue{}
		}
		writeJSON(w, http.StatusOK, venues)
	}
}

func handleGetVenue(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v := svc.VenueByID(chi.URLParam(r, "id"))
		if v == nil {
			writeError(w, http.StatusNotFound, "venue not found")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleGetCurrent(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.CurrentDetection())
	}
}

func handleSetCurrent(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			VenueID string `json:"venue_id"`
		}
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.VenueID) == "" {
			writeError(w, http.StatusBadRequest, "venue_id is required")
			return
		}
		if !svc.SetManualVenue(r.Context(), req.VenueID) {
			writeError(w, http.StatusNotFound, "venue not found")
			return
		}
		writeJSON(w, http.StatusOK, svc.CurrentDetection())
	}
}

func handleResolve(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Lat      *float64 `json:"lat"`
			Lng      *float64 `json:"lng"`
			Accuracy *float64 `json:"accuracy"`
		}
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Lat == nil || req.Lng == nil {
			writeError(w, http.StatusBadRequest, "lat and lng are required")
			return
		}
		if !validCoordinate(*req.Lat, *req.Lng) {
			writeError(w, http.StatusBadRequest, "lat or lng out of range")
			return
		}
		res := svc.Resolve(r.Context(), location.Fix{
			Lat:       *req.Lat,
			Lng:       *req.Lng,
			Accuracy:  req.Accuracy,
			Timestamp: time.Now(),
		})
		writeJSON(w, http.StatusOK, res)
	}
}

func validCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// eventBuffer is the number of updates queued per SSE client before new
// ones are dropped.
const eventBuffer = 16

func handleEvents(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		ch := make(chan []byte, eventBuffer)
		id := svc.AddLocationListener(func(u engine.Update) {
			data, err := json.Marshal(u)
			if err != nil {
				return
			}
			select {
			case ch <- data:
			default:
			}
		})
		defer svc.RemoveLocationListener(id)

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case data := <-ch:
				fmt.Fprintf(w, "event: location\ndata: %s\n\n", data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
