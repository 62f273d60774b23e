package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/gestio-app/order-composer/internal/catalog"
)

// ProductHandler serves direct catalog lookups. The supplier flow's empty
// query returns the default product page instead of nothing.
type ProductHandler struct {
	products  catalog.Repository
	pageLimit int
}

func NewProductHandler(products catalog.Repository, pageLimit int) *ProductHandler {
	return &ProductHandler{products: products, pageLimit: pageLimit}
}

func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))

	limit := h.pageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	var (
		products []catalog.Product
		err      error
	)
	if query == "" {
		products, err = h.products.List(r.Context(), limit)
	} else {
		products, err = h.products.SearchByName(r.Context(), query, limit)
	}
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("handler: failed to list products")
		respondWithError(w, http.StatusInternalServerError, "failed to list products")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}
