package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/qdice/pkg/dice"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Error encoding response")
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeTableError maps engine errors to status codes. Illegal moves carry
// their reason back to the caller.
func writeTableError(w http.ResponseWriter, err error) {
	var illegal *dice.IllegalMoveError
	var cfgErr *dice.ConfigurationError
	switch {
	case errors.As(err, &illegal):
		writeError(w, http.StatusBadRequest, illegal.Reason)
	case errors.As(err, &cfgErr):
		writeError(w, http.StatusNotFound, cfgErr.Error())
	default:
		log.Error().Err(err).Msg("Table request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads and decodes JSON from a request body. An empty body
// leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
