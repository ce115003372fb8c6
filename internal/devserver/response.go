package devserver

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
)

func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondOK(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusOK, data)
}

func respondCreated(w http.ResponseWriter, data any) {
	respondJSON(w, http.StatusCreated, data)
}

func respondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// respondDetail writes a {"detail": msg} body.
func respondDetail(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"detail": msg})
}

// respondErrorMsg writes an {"error": msg} body.
func respondErrorMsg(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondFields writes a 400 with per-field message lists.
func respondFields(w http.ResponseWriter, fields map[string][]string) {
	respondJSON(w, http.StatusBadRequest, fields)
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
