package exchange

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hourbank/hourbank-api/internal/domain/wallet"
	"github.com/hourbank/hourbank-api/internal/middleware"
	"github.com/hourbank/hourbank-api/internal/pkg/errorhandler"
	"github.com/hourbank/hourbank-api/internal/pkg/response"
	"github.com/hourbank/hourbank-api/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(auth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth)

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/history", h.History)
	r.Post("/{id}/accept", h.Accept)
	r.Post("/{id}/decline", h.Decline)
	r.Post("/{id}/start", h.Start)
	r.Post("/{id}/complete", h.MarkReady)
	r.Post("/{id}/confirm", h.Confirm)
	r.Post("/{id}/cancel", h.Cancel)

	return r
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	var input CreateRequestInput
	if err := response.DecodeJSON(r.Body, &input); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := validator.Validate(input); fieldErrors != nil {
		errorhandler.HandleValidationError(r.Context(), w, fieldErrors)
		return
	}

	e, err := h.service.CreateRequest(r.Context(), tenantID, userID, input)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.Created(w, ToResponse(e, h.service.ConfirmWindow(r.Context(), tenantID)))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	filter := ListFilter{
		Status: r.URL.Query().Get("status"),
		Role:   r.URL.Query().Get("role"),
	}
	if p := r.URL.Query().Get("page"); p != "" {
		filter.Page, _ = strconv.Atoi(p)
	}
	if pp := r.URL.Query().Get("per_page"); pp != "" {
		filter.Limit, _ = strconv.Atoi(pp)
	}
	if filter.Status != "" && filter.Status != "active" && !Status(filter.Status).IsValid() {
		response.BadRequest(w, "Unknown status filter")
		return
	}

	exchanges, total, err := h.service.List(r.Context(), tenantID, userID, filter)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list exchanges", err)
		return
	}

	window := h.service.ConfirmWindow(r.Context(), tenantID)
	out := make([]*Response, 0, len(exchanges))
	for i := range exchanges {
		out = append(out, ToResponse(&exchanges[i], window))
	}
	response.WithMeta(w, out, response.Meta{Total: total})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	h.withExchange(w, r, func(tenantID, userID, id uuid.UUID) (*Exchange, error) {
		return h.service.GetByID(r.Context(), tenantID, userID, id)
	})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid exchange ID")
		return
	}

	entries, err := h.service.History(r.Context(), tenantID, userID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.OK(w, ToHistoryResponse(entries))
}

func (h *Handler) Accept(w http.ResponseWriter, r *http.Request) {
	h.withExchange(w, r, func(tenantID, userID, id uuid.UUID) (*Exchange, error) {
		return h.service.Accept(r.Context(), tenantID, userID, id)
	})
}

func (h *Handler) Decline(w http.ResponseWriter, r *http.Request) {
	var input DeclineInput
	if r.ContentLength > 0 {
		if err := response.DecodeJSON(r.Body, &input); err != nil {
			response.BadRequest(w, "Invalid request body")
			return
		}
	}
	h.withExchange(w, r, func(tenantID, userID, id uuid.UUID) (*Exchange, error) {
		return h.service.Decline(r.Context(), tenantID, userID, id, input.Reason)
	})
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.withExchange(w, r, func(tenantID, userID, id uuid.UUID) (*Exchange, error) {
		return h.service.Start(r.Context(), tenantID, userID, id)
	})
}

func (h *Handler) MarkReady(w http.ResponseWriter, r *http.Request) {
	h.withExchange(w, r, func(tenantID, userID, id uuid.UUID) (*Exchange, error) {
		return h.service.MarkReady(r.Context(), tenantID, userID, id)
	})
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var input ConfirmInput
	if err := response.DecodeJSON(r.Body, &input); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := validator.Validate(input); fieldErrors != nil {
		errorhandler.HandleValidationError(r.Context(), w, fieldErrors)
		return
	}
	h.withExchange(w, r, func(tenantID, userID, id uuid.UUID) (*Exchange, error) {
		return h.service.Confirm(r.Context(), tenantID, userID, id, input.Hours)
	})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var input CancelInput
	if r.ContentLength > 0 {
		if err := response.DecodeJSON(r.Body, &input); err != nil {
			response.BadRequest(w, "Invalid request body")
			return
		}
	}
	h.withExchange(w, r, func(tenantID, userID, id uuid.UUID) (*Exchange, error) {
		return h.service.Cancel(r.Context(), tenantID, userID, id, input.Reason)
	})
}

func (h *Handler) withExchange(w http.ResponseWriter, r *http.Request, op func(tenantID, userID, id uuid.UUID) (*Exchange, error)) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid exchange ID")
		return
	}

	e, err := op(tenantID, userID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.OK(w, ToResponse(e, h.service.ConfirmWindow(r.Context(), tenantID)))
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "Exchange not found")
	case errors.Is(err, ErrListingNotFound):
		response.NotFound(w, "Listing not found")
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrNotProvider):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrInvalidState):
		response.InvalidState(w, "Action not allowed in the current exchange state")
	case errors.Is(err, ErrConflict):
		response.Conflict(w, "CONFLICT", "Exchange was modified concurrently, please retry")
	case errors.Is(err, ErrOwnListing), errors.Is(err, ErrInvalidHours), errors.Is(err, ErrAdjustmentOff):
		response.BadRequest(w, err.Error())
	case errors.Is(err, wallet.ErrInsufficientFunds):
		response.Conflict(w, "INSUFFICIENT_FUNDS", "Requester has insufficient funds to settle this exchange")
	default:
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Exchange operation failed", err)
	}
}
