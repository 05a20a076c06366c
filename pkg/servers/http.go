package servers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const API_PREFIX = "/api/sessions"

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		log.Warn().Err(err).Msg("failed to write response")
	}
}

func (m *Manager) info(id string) (Info, error) {
	session, err := m.Get(id)
	if err != nil {
		return Info{}, err
	}

	for _, info := range m.List() {
		if info.ID == session.ID() {
			return info, nil
		}
	}
	return Info{}, ErrNoSession
}

// ServeHTTP serves the session table under API_PREFIX. A bare GET lists every
// session; GET API_PREFIX/{id} describes one.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, API_PREFIX), "/")
	if id == "" {
		writeJSON(w, http.StatusOK, m.List())
		return
	}

	info, err := m.info(id)
	if errors.Is(err, ErrNoSession) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, info)
}
