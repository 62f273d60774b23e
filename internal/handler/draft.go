package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/gestio-app/order-composer/internal/catalog"
	"github.com/gestio-app/order-composer/internal/composer"
	"github.com/gestio-app/order-composer/internal/draft"
	"github.com/gestio-app/order-composer/internal/order"
)

const orderDateLayout = "2006-01-02"

type CreateDraftRequest struct {
	Kind string `json:"kind" validate:"required,oneof=CUSTOMER SUPPLIER"`
}

type AddLineRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
}

type UpdateLineRequest struct {
	Quantity  *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type SearchRequest struct {
	Query string `json:"query"`
}

type SubmitRequest struct {
	PartyID   string  `json:"party_id" validate:"required,uuid4"`
	OrderDate string  `json:"order_date" validate:"required"`
	VehicleID *string `json:"vehicle_id,omitempty" validate:"omitempty,uuid4"`
	DriverID  *string `json:"driver_id,omitempty" validate:"omitempty,uuid4"`
	Comment   string  `json:"comment,omitempty"`
}

type DraftResponse struct {
	ID     uuid.UUID           `json:"id"`
	Kind   order.Kind          `json:"kind"`
	Lines  []composer.Line     `json:"lines"`
	Total  decimal.Decimal     `json:"total"`
	Search catalog.SearchState `json:"search"`
}

type UpdateLineResponse struct {
	Applied decimal.Decimal `json:"applied"`
	Removed bool            `json:"removed"`
	Total   decimal.Decimal `json:"total"`
	Notice  string          `json:"notice,omitempty"`
}

// DraftHandler drives one editing session per draft id: composing lines,
// type-ahead search, and final submission.
type DraftHandler struct {
	drafts   *draft.Store
	products catalog.Repository
	orders   order.Service
	validate *validator.Validate
}

func NewDraftHandler(drafts *draft.Store, products catalog.Repository, orders order.Service) *DraftHandler {
	return &DraftHandler{
		drafts:   drafts,
		products: products,
		orders:   orders,
		validate: validator.New(),
	}
}

func (h *DraftHandler) RegisterRoutes(router chi.Router) {
	router.Post("/drafts", h.handleCreateDraft)
	router.Get("/drafts/{id}", h.handleGetDraft)
	router.Delete("/drafts/{id}", h.handleCancelDraft)
	router.Post("/drafts/{id}/lines", h.handleAddLine)
	router.Put("/drafts/{id}/lines/{productID}", h.handleUpdateLine)
	router.Delete("/drafts/{id}/lines/{productID}", h.handleRemoveLine)
	router.Post("/drafts/{id}/search", h.handleSearch)
	router.Get("/drafts/{id}/search", h.handleSearchState)
	router.Post("/drafts/{id}/submit", h.handleSubmit)
}

func (h *DraftHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fieldErrs := order.FieldErrors{}
			for _, fe := range validationErrors {
				fieldErrs[fe.Field()] = "failed validation on '" + fe.Tag() + "'"
			}
			respondWithFieldErrors(w, fieldErrs)
		} else {
			log.Error().Err(err).Msg("handler: unexpected validation error type")
			respondWithError(w, http.StatusInternalServerError, "internal validation error")
		}
		return false
	}
	return true
}

func (h *DraftHandler) draftFromRequest(w http.ResponseWriter, r *http.Request) *draft.Draft {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid draft id")
		return nil
	}

	d, err := h.drafts.Get(id)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "draft not found")
		return nil
	}
	return d
}

func draftResponse(d *draft.Draft) DraftResponse {
	return DraftResponse{
		ID:     d.ID,
		Kind:   d.Kind,
		Lines:  d.Composer.Lines(),
		Total:  d.Composer.Total(),
		Search: d.Searcher.State(),
	}
}

func (h *DraftHandler) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req CreateDraftRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	d, err := h.drafts.Create(order.Kind(req.Kind))
	if err != nil {
		log.Error().Err(err).Msg("handler: failed to create draft")
		respondWithError(w, http.StatusInternalServerError, "failed to create draft")
		return
	}

	respondWithJSON(w, http.StatusCreated, draftResponse(d))
}

func (h *DraftHandler) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	d := h.draftFromRequest(w, r)
	if d == nil {
		return
	}

	respondWithJSON(w, http.StatusOK, draftResponse(d))
}

func (h *DraftHandler) handleCancelDraft(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid draft id")
		return
	}

	h.drafts.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *DraftHandler) handleAddLine(w http.ResponseWriter, r *http.Request) {
	d := h.draftFromRequest(w, r)
	if d == nil {
		return
	}

	var req AddLineRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	productID, err := uuid.FromString(req.ProductID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	product, err := h.products.GetByID(r.Context(), productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondWithError(w, http.StatusNotFound, "product not found")
			return
		}
		log.Error().Err(err).Stringer("product_id", productID).Msg("handler: failed to load product")
		respondWithError(w, http.StatusInternalServerError, "failed to load product")
		return
	}

	ref := composer.ProductRef{
		ID:        product.ID,
		Name:      product.Name,
		Unit:      product.Unit,
		UnitPrice: product.UnitPrice,
	}
	if d.Kind == order.KindCustomer {
		stock := product.Stock
		ref.Stock = &stock
	}

	if err := d.Composer.AddProduct(ref); err != nil {
		switch {
		case errors.Is(err, composer.ErrDuplicateProduct):
			respondWithError(w, http.StatusConflict, "product already present in order")
		case errors.Is(err, composer.ErrOutOfStock):
			respondWithFieldErrors(w, order.FieldErrors{"products": "product is out of stock"})
		default:
			log.Error().Err(err).Msg("handler: failed to add order line")
			respondWithError(w, http.StatusInternalServerError, "failed to add order line")
		}
		return
	}

	d.Touch()
	respondWithJSON(w, http.StatusCreated, draftResponse(d))
}

func (h *DraftHandler) handleUpdateLine(w http.ResponseWriter, r *http.Request) {
	d := h.draftFromRequest(w, r)
	if d == nil {
		return
	}

	productID, err := uuid.FromString(chi.URLParam(r, "productID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req UpdateLineRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if req.UnitPrice != nil {
		unbounded, ok := d.Composer.(*composer.UnboundedComposer)
		if !ok {
			// Customer orders keep the catalog price fixed at add time.
			respondWithFieldErrors(w, order.FieldErrors{"unit_price": "unit price is not editable for customer orders"})
			return
		}
		if err := unbounded.SetUnitPrice(productID, *req.UnitPrice); err != nil {
			respondWithError(w, http.StatusNotFound, "order line not found")
			return
		}
	}

	var res composer.QuantityResult
	if req.Quantity != nil {
		res, err = d.Composer.SetQuantity(productID, *req.Quantity)
		if err != nil {
			respondWithError(w, http.StatusNotFound, "order line not found")
			return
		}
	} else {
		found := false
		for _, line := range d.Composer.Lines() {
			if line.Product.ID == productID {
				res.Applied = line.Quantity
				found = true
				break
			}
		}
		if !found {
			respondWithError(w, http.StatusNotFound, "order line not found")
			return
		}
	}

	d.Touch()

	resp := UpdateLineResponse{
		Applied: res.Applied,
		Removed: res.Removed,
		Total:   d.Composer.Total(),
	}
	if res.Clamped {
		resp.Notice = "requested quantity was adjusted to the available range"
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *DraftHandler) handleRemoveLine(w http.ResponseWriter, r *http.Request) {
	d := h.draftFromRequest(w, r)
	if d == nil {
		return
	}

	productID, err := uuid.FromString(chi.URLParam(r, "productID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	d.Composer.RemoveProduct(productID)
	d.Touch()
	w.WriteHeader(http.StatusNoContent)
}

func (h *DraftHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	d := h.draftFromRequest(w, r)
	if d == nil {
		return
	}

	var req SearchRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	d.Searcher.SetQuery(req.Query)
	d.Touch()
	w.WriteHeader(http.StatusAccepted)
}

func (h *DraftHandler) handleSearchState(w http.ResponseWriter, r *http.Request) {
	d := h.draftFromRequest(w, r)
	if d == nil {
		return
	}

	respondWithJSON(w, http.StatusOK, d.Searcher.State())
}

func (h *DraftHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	d := h.draftFromRequest(w, r)
	if d == nil {
		return
	}

	var req SubmitRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	sub, fieldErrs := h.buildSubmission(d, &req)
	if len(fieldErrs) > 0 {
		respondWithFieldErrors(w, fieldErrs)
		return
	}

	if err := d.BeginSubmit(); err != nil {
		respondWithError(w, http.StatusConflict, "submission already in flight")
		return
	}

	orderID, err := h.orders.Submit(r.Context(), sub)
	if err != nil {
		// The draft survives a failed submission untouched so the user can
		// correct and resubmit.
		d.EndSubmit()

		var svcFieldErrs order.FieldErrors
		if errors.As(err, &svcFieldErrs) {
			respondWithFieldErrors(w, svcFieldErrs)
			return
		}
		log.Error().Err(err).Stringer("draft_id", d.ID).Msg("handler: failed to submit order")
		respondWithError(w, http.StatusInternalServerError, "failed to submit order")
		return
	}

	h.drafts.Delete(d.ID)
	respondWithJSON(w, http.StatusCreated, map[string]uuid.UUID{"order_id": orderID})
}

func (h *DraftHandler) buildSubmission(d *draft.Draft, req *SubmitRequest) (*order.Submission, order.FieldErrors) {
	fieldErrs := order.FieldErrors{}

	lines, err := d.Composer.Payload()
	if err != nil {
		fieldErrs["products"] = "order must contain at least one line"
	}

	partyID, err := uuid.FromString(req.PartyID)
	if err != nil {
		fieldErrs["party_id"] = "invalid id"
	}

	orderDate, err := time.Parse(orderDateLayout, req.OrderDate)
	if err != nil {
		fieldErrs["order_date"] = "expected date in YYYY-MM-DD format"
	}

	var vehicleID, driverID *uuid.UUID
	if req.VehicleID != nil {
		id, err := uuid.FromString(*req.VehicleID)
		if err != nil {
			fieldErrs["vehicle_id"] = "invalid id"
		} else {
			vehicleID = &id
		}
	}
	if req.DriverID != nil {
		id, err := uuid.FromString(*req.DriverID)
		if err != nil {
			fieldErrs["driver_id"] = "invalid id"
		} else {
			driverID = &id
		}
	}

	if len(fieldErrs) > 0 {
		return nil, fieldErrs
	}

	return &order.Submission{
		Kind:      d.Kind,
		PartyID:   partyID,
		OrderDate: orderDate,
		VehicleID: vehicleID,
		DriverID:  driverID,
		Comment:   req.Comment,
		Lines:     lines,
	}, nil
}
