package group

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hourbank/hourbank-api/internal/domain/user"
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
	r.Get("/{id}/split", h.Split)
	r.Post("/{id}/participants", h.AddParticipant)
	r.Delete("/{id}/participants/{userID}", h.RemoveParticipant)
	r.Post("/{id}/start", h.Start)
	r.Post("/{id}/request-confirmation", h.RequestConfirmation)
	r.Post("/{id}/confirm", h.Confirm)
	r.Post("/{id}/complete", h.Complete)
	r.Post("/{id}/cancel", h.Cancel)

	return r
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	var input CreateInput
	if err := response.DecodeJSON(r.Body, &input); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := validator.Validate(input); fieldErrors != nil {
		errorhandler.HandleValidationError(r.Context(), w, fieldErrors)
		return
	}

	e, participants, err := h.service.Create(r.Context(), tenantID, userID, input)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.Created(w, ToResponse(e, participants))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	exchanges, total, err := h.service.List(r.Context(), tenantID, userID, page, limit)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list group exchanges", err)
		return
	}
	response.WithMeta(w, exchanges, response.Meta{Total: total})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	e, participants, err := h.service.Get(r.Context(), tenantID, userID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.OK(w, ToResponse(e, participants))
}

func (h *Handler) Split(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	shares, err := h.service.Preview(r.Context(), tenantID, userID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.OK(w, shares)
}

func (h *Handler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	var input ParticipantInput
	if err := response.DecodeJSON(r.Body, &input); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := validator.Validate(input); fieldErrors != nil {
		errorhandler.HandleValidationError(r.Context(), w, fieldErrors)
		return
	}

	if err := h.service.AddParticipant(r.Context(), tenantID, userID, id, input); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondWithExchange(w, r, tenantID, userID, id, http.StatusCreated)
}

func (h *Handler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	callerID := middleware.GetUserID(r.Context())

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	memberID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	if err := h.service.RemoveParticipant(r.Context(), tenantID, callerID, id, memberID); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondWithExchange(w, r, tenantID, callerID, id, http.StatusOK)
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.statusAction(w, r, func(tenantID, userID, id uuid.UUID) (*Exchange, error) {
		return h.service.Activate(r.Context(), tenantID, userID, id)
	})
}

func (h *Handler) RequestConfirmation(w http.ResponseWriter, r *http.Request) {
	h.statusAction(w, r, func(tenantID, userID, id uuid.UUID) (*Exchange, error) {
		return h.service.RequestConfirmation(r.Context(), tenantID, userID, id)
	})
}

func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	if err := h.service.Confirm(r.Context(), tenantID, userID, id); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.respondWithExchange(w, r, tenantID, userID, id, http.StatusOK)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	transactionIDs, err := h.service.Complete(r.Context(), tenantID, userID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	e, participants, err := h.service.Get(r.Context(), tenantID, userID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	ids := make([]string, 0, len(transactionIDs))
	for _, txID := range transactionIDs {
		ids = append(ids, txID.String())
	}
	response.OK(w, SettlementResponse{Exchange: ToResponse(e, participants), Transactions: ids})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.statusAction(w, r, func(tenantID, userID, id uuid.UUID) (*Exchange, error) {
		return h.service.Cancel(r.Context(), tenantID, userID, id)
	})
}

func (h *Handler) statusAction(w http.ResponseWriter, r *http.Request, op func(tenantID, userID, id uuid.UUID) (*Exchange, error)) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	id, ok := h.parseID(w, r)
	if !ok {
		return
	}

	e, err := op(tenantID, userID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	participants, err := h.service.repo.ListParticipants(r.Context(), e.ID)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load participants", err)
		return
	}
	response.OK(w, ToResponse(e, participants))
}

func (h *Handler) respondWithExchange(w http.ResponseWriter, r *http.Request, tenantID, userID, id uuid.UUID, status int) {
	e, participants, err := h.service.Get(r.Context(), tenantID, userID, id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	response.JSON(w, status, ToResponse(e, participants))
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid group exchange ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var settlementErr *SettlementError

	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(w, "Group exchange not found")
	case errors.Is(err, user.ErrNotFound):
		response.NotFound(w, "User not found")
	case errors.Is(err, ErrParticipantNotFound):
		response.NotFound(w, "Participant not found")
	case errors.Is(err, ErrNotOrganizer), errors.Is(err, ErrNotParticipant):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrInvalidState):
		response.InvalidState(w, "Action not allowed in the current group exchange state")
	case errors.Is(err, ErrUnconfirmedParticipants):
		response.InvalidState(w, err.Error())
	case errors.As(err, &settlementErr):
		response.ErrorWithDetails(w, http.StatusConflict, "INSUFFICIENT_FUNDS",
			"A participant has insufficient funds, no transfers were made",
			map[string]string{"payer_id": settlementErr.PayerID.String()})
	case errors.Is(err, ErrAlreadyParticipant),
		errors.Is(err, ErrNoProviders),
		errors.Is(err, ErrNoReceivers),
		errors.Is(err, ErrCustomSplitSum),
		errors.Is(err, ErrZeroWeights),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, wallet.ErrAmountPrecision):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrConflict):
		response.Conflict(w, "CONFLICT", "Group exchange was modified concurrently, please retry")
	default:
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Group exchange operation failed", err)
	}
}
