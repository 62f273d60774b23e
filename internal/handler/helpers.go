package handler

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/gestio-app/order-composer/internal/order"
)

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithFieldErrors renders the open-ended field error map; clients
// must tolerate keys they do not know.
func respondWithFieldErrors(w http.ResponseWriter, fieldErrs order.FieldErrors) {
	respondWithJSON(w, http.StatusUnprocessableEntity, map[string]order.FieldErrors{"errors": fieldErrs})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("handler: failed to write JSON response")
	}
}
