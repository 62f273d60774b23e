package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gestio-app/order-composer/internal/order"
)

// OrderHandler serves created orders, e.g. for the confirmation view after a
// successful submission.
type OrderHandler struct {
	svc order.Service
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{svc: svc}
}

func (h *OrderHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.svc.GetOrderByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			respondWithError(w, http.StatusNotFound, "order not found")
			return
		}
		log.Error().Err(err).Stringer("order_id", id).Msg("handler: failed to get order by id")
		respondWithError(w, http.StatusInternalServerError, "failed to get order")
		return
	}

	respondWithJSON(w, http.StatusOK, o)
}
