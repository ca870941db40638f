package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/MrSnakeDoc/warden/internal/httpserver/deps"
)

type endpointView struct {
	ID          string    `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	DisplayName string    `json:"display_name"`
	Kind        string    `json:"kind"`
	Addr        string    `json:"addr"`
	Status      string    `json:"status"`
	AutoRestart bool      `json:"auto_restart"`
	SessionUp   bool      `json:"session_up"`
	StartedAt   time.Time `json:"started_at,omitzero"`
}

type endpointsResponse struct {
	Count     int            `json:"count"`
	Endpoints []endpointView `json:"endpoints"`
}

// Endpoints lists all registered endpoints with their persisted status and
// whether a live session currently exists. Read-only ops view.
func Endpoints(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		eps, err := d.Store.Endpoints.List(nil)
		if err != nil {
			d.Logger.Errorf("failed to list endpoints: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		sort.Slice(eps, func(i, j int) bool { return eps[i].ID < eps[j].ID })

		views := make([]endpointView, 0, len(eps))
		for _, ep := range eps {
			view := endpointView{
				ID:          ep.ID,
				OwnerID:     ep.OwnerID,
				DisplayName: ep.DisplayName,
				Kind:        string(ep.Kind),
				Addr:        ep.Addr(),
				Status:      string(ep.Status),
				AutoRestart: ep.AutoRestart,
			}
			if s, up := d.Sessions.Get(ep.ID); up {
				view.SessionUp = true
				view.StartedAt = s.StartedAt
			}
			views = append(views, view)
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(endpointsResponse{
			Count:     len(views),
			Endpoints: views,
		})
	}
}
