package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreateRequestInput struct {
	ListingID     string          `json:"listing_id" validate:"required,uuid"`
	ProposedHours decimal.Decimal `json:"proposed_hours" validate:"required"`
	Message       string          `json:"message" validate:"omitempty,max=1000"`
}

type DeclineInput struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

type ConfirmInput struct {
	Hours decimal.Decimal `json:"hours" validate:"required"`
}

type CancelInput struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// Confirmation is the per-party confirmation block on the read model.
type Confirmation struct {
	ConfirmedAt time.Time       `json:"confirmed_at"`
	Hours       decimal.Decimal `json:"hours"`
}

// Response is the exchange read model. ConfirmBy is only set while the
// exchange awaits confirmations.
type Response struct {
	ID            string           `json:"id"`
	ListingID     string           `json:"listing_id"`
	ListingTitle  string           `json:"listing_title"`
	ListingType   string           `json:"listing_type"`
	RequesterID   string           `json:"requester_id"`
	RequesterName string           `json:"requester_name"`
	ProviderID    string           `json:"provider_id"`
	ProviderName  string           `json:"provider_name"`
	Status        Status           `json:"status"`
	ProposedHours decimal.Decimal  `json:"proposed_hours"`
	FinalHours    *decimal.Decimal `json:"final_hours,omitempty"`
	Message       string           `json:"message,omitempty"`
	RiskLevel     string           `json:"risk_level,omitempty"`
	Requester     *Confirmation    `json:"requester_confirmation,omitempty"`
	Provider      *Confirmation    `json:"provider_confirmation,omitempty"`
	TransactionID string           `json:"transaction_id,omitempty"`
	ConfirmBy     *time.Time       `json:"confirm_by,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// ToResponse converts an exchange to its read model. confirmWindow bounds
// how long both parties have to confirm once work is marked done.
func ToResponse(e *Exchange, confirmWindow time.Duration) *Response {
	resp := &Response{
		ID:            e.ID.String(),
		ListingID:     e.ListingID.String(),
		ListingTitle:  e.ListingTitle,
		ListingType:   e.ListingType,
		RequesterID:   e.RequesterID.String(),
		RequesterName: e.RequesterName,
		ProviderID:    e.ProviderID.String(),
		ProviderName:  e.ProviderName,
		Status:        e.Status,
		ProposedHours: e.ProposedHours,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	if e.FinalHours.Valid {
		resp.FinalHours = &e.FinalHours.Decimal
	}
	if e.Message.Valid {
		resp.Message = e.Message.String
	}
	if e.RiskLevel.Valid {
		resp.RiskLevel = e.RiskLevel.String
	}
	if e.RequesterConfirmedAt.Valid && e.RequesterConfirmedHours.Valid {
		resp.Requester = &Confirmation{
			ConfirmedAt: e.RequesterConfirmedAt.Time,
			Hours:       e.RequesterConfirmedHours.Decimal,
		}
	}
	if e.ProviderConfirmedAt.Valid && e.ProviderConfirmedHours.Valid {
		resp.Provider = &Confirmation{
			ConfirmedAt: e.ProviderConfirmedAt.Time,
			Hours:       e.ProviderConfirmedHours.Decimal,
		}
	}
	if e.TransactionID.Valid {
		resp.TransactionID = e.TransactionID.UUID.String()
	}
	if e.Status == StatusReadyForConfirmation && e.ReadyAt.Valid {
		deadline := e.ReadyAt.Time.Add(confirmWindow)
		resp.ConfirmBy = &deadline
	}
	return resp
}

type HistoryResponse struct {
	Action     string    `json:"action"`
	ActorID    string    `json:"actor_id,omitempty"`
	ActorRole  ActorRole `json:"actor_role"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func ToHistoryResponse(entries []HistoryEntry) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		hr := HistoryResponse{
			Action:    e.Action,
			ActorRole: e.ActorRole,
			CreatedAt: e.CreatedAt,
		}
		if e.ActorID.Valid {
			hr.ActorID = e.ActorID.UUID.String()
		}
		if e.FromStatus.Valid {
			hr.FromStatus = e.FromStatus.String
		}
		if e.ToStatus.Valid {
			hr.ToStatus = e.ToStatus.String
		}
		if e.Notes.Valid {
			hr.Notes = e.Notes.String
		}
		out = append(out, hr)
	}
	return out
}
