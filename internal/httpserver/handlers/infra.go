package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/warden/internal/httpserver/deps"
)

type componentStatus struct {
	OK        bool   `json:"ok"`
	Endpoints *int   `json:"endpoints,omitempty"`
	Users     *int   `json:"users,omitempty"`
	Versions  *int   `json:"versions,omitempty"`
	Sessions  *int   `json:"sessions,omitempty"`
	Error     string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		storeStatus := checkStore(d)

		sessions := d.Sessions.Count()
		components := map[string]componentStatus{
			"store": storeStatus,
			"watchers": {
				OK:       true,
				Sessions: &sessions,
			},
		}

		mode := "operational"
		if !storeStatus.OK {
			mode = "degraded"
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(infraResponse{
			Mode:       mode,
			Components: components,
		})
	}
}

func checkStore(d deps.Deps) componentStatus {
	endpoints, err := d.Store.Endpoints.Count(nil)
	if err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	users, err := d.Store.Users.Count(nil)
	if err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	versions, err := d.Store.Versions.Count(nil)
	if err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}

	return componentStatus{
		OK:        true,
		Endpoints: &endpoints,
		Users:     &users,
		Versions:  &versions,
	}
}
