package session

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ErrorResponse is the JSON error body for the session HTTP surface.
type ErrorResponse struct {
	Error string `json:"error"`
}

// LogoutResponse is returned from DELETE on the session route.
type LogoutResponse struct {
	LoggedOut bool `json:"loggedOut"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// HandleGet serves the current session's public view. The secure payload
// and the internal identifier never appear in the response.
func (st *Store) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := st.Fetch(r)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.PublicView())
}

// HandleDelete clears the session and triggers revocation.
func (st *Store) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := st.Clear(w, r); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, LogoutResponse{LoggedOut: true})
}

// Routes returns a chi.Router with the session surface, meant to be
// mounted at /api/_auth/session.
func (st *Store) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", st.HandleGet)
	r.Delete("/", st.HandleDelete)
	return r
}
