package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gestio-app/order-composer/internal/handler"
)

func NewRouter(drafts *handler.DraftHandler, products *handler.ProductHandler, orders *handler.OrderHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/products", products.ListProducts)
	r.Get("/orders/{id}", orders.GetOrderByID)
	drafts.RegisterRoutes(r)

	return r
}
