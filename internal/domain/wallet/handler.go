package wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

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

	r.Get("/balance", h.Balance)
	r.Post("/transfer", h.Transfer)
	r.Get("/transactions", h.Transactions)
	r.Delete("/transactions/{id}", h.HideTransaction)
	r.Get("/recipients", h.Recipients)

	return r
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	balance, err := h.service.GetBalance(r.Context(), tenantID, userID)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get balance", err)
		return
	}
	response.OK(w, balance)
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	var req TransferRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if fieldErrors := validator.Validate(req); fieldErrors != nil {
		errorhandler.HandleValidationError(r.Context(), w, fieldErrors)
		return
	}

	txn, err := h.service.Transfer(r.Context(), tenantID, userID, req.Recipient, req.Amount, req.Description)
	if err != nil {
		h.handleTransferError(w, r, err)
		return
	}
	response.Created(w, txn)
}

func (h *Handler) handleTransferError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrAmountPrecision), errors.Is(err, ErrSelfTransfer):
		response.BadRequest(w, err.Error())
	case errors.Is(err, ErrRecipientNotFound):
		response.NotFound(w, "Recipient not found")
	case errors.Is(err, ErrInsufficientFunds):
		response.Conflict(w, "INSUFFICIENT_FUNDS", "Insufficient funds for this transfer")
	case errors.Is(err, ErrTransferConflict):
		response.Conflict(w, "CONFLICT", "Transfer conflicted with a concurrent operation, please retry")
	default:
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process transfer", err)
	}
}

func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	filter := TransactionFilter{Direction: DirectionAll}
	if t := r.URL.Query().Get("type"); t != "" {
		if err := validator.ValidateVar(t, "tx_direction"); err != nil {
			response.BadRequest(w, "type must be one of: sent, received, all")
			return
		}
		filter.Direction = Direction(t)
	}
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor, err := uuid.Parse(c)
		if err != nil {
			response.BadRequest(w, "Invalid cursor")
			return
		}
		filter.Cursor = cursor
	}
	if pp := r.URL.Query().Get("per_page"); pp != "" {
		if n, err := strconv.Atoi(pp); err == nil {
			filter.Limit = n
		}
	}

	transactions, nextCursor, err := h.service.ListTransactions(r.Context(), tenantID, userID, filter)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list transactions", err)
		return
	}

	meta := response.Meta{HasMore: nextCursor != uuid.Nil}
	if meta.HasMore {
		meta.NextCursor = nextCursor.String()
	}
	response.WithMeta(w, transactions, meta)
}

func (h *Handler) HideTransaction(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "Invalid transaction ID")
		return
	}

	if err := h.service.HideTransaction(r.Context(), tenantID, userID, id); err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			response.NotFound(w, "Transaction not found")
			return
		}
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to hide transaction", err)
		return
	}
	response.OK(w, map[string]bool{"hidden": true})
}

func (h *Handler) Recipients(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())
	userID := middleware.GetUserID(r.Context())

	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}

	users, err := h.service.SearchRecipients(r.Context(), tenantID, userID, r.URL.Query().Get("q"), limit)
	if err != nil {
		errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to search recipients", err)
		return
	}

	recipients := make([]RecipientResponse, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, RecipientResponse{
			ID:        u.ID.String(),
			Name:      u.Name,
			Handle:    u.Handle,
			Email:     u.Email,
			AvatarURL: u.AvatarURL,
		})
	}
	response.OK(w, recipients)
}
