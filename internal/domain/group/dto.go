package group

import (
	"time"

	"github.com/shopspring/decimal"
)

type ParticipantInput struct {
	UserID string          `json:"user_id" validate:"required,uuid"`
	Role   string          `json:"role" validate:"required,participant_role"`
	Hours  decimal.Decimal `json:"hours"`
	Weight decimal.Decimal `json:"weight"`
}

type CreateInput struct {
	Title        string             `json:"title" validate:"required,min=3,max=200"`
	Description  string             `json:"description" validate:"omitempty,max=2000"`
	ListingID    string             `json:"listing_id" validate:"omitempty,uuid"`
	SplitType    string             `json:"split_type" validate:"required,split_type"`
	TotalHours   decimal.Decimal    `json:"total_hours" validate:"required"`
	Participants []ParticipantInput `json:"participants" validate:"omitempty,dive"`
}

type ParticipantResponse struct {
	UserID      string          `json:"user_id"`
	UserName    string          `json:"user_name"`
	Role        Role            `json:"role"`
	Hours       decimal.Decimal `json:"hours"`
	Weight      decimal.Decimal `json:"weight"`
	Confirmed   bool            `json:"confirmed"`
	ConfirmedAt *time.Time      `json:"confirmed_at,omitempty"`
}

type Response struct {
	ID            string                `json:"id"`
	OrganizerID   string                `json:"organizer_id"`
	OrganizerName string                `json:"organizer_name"`
	Title         string                `json:"title"`
	Description   string                `json:"description,omitempty"`
	ListingID     string                `json:"listing_id,omitempty"`
	SplitType     SplitType             `json:"split_type"`
	TotalHours    decimal.Decimal       `json:"total_hours"`
	Status        Status                `json:"status"`
	Participants  []ParticipantResponse `json:"participants"`
	CompletedAt   *time.Time            `json:"completed_at,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

func ToResponse(e *Exchange, participants []Participant) *Response {
	resp := &Response{
		ID:            e.ID.String(),
		OrganizerID:   e.OrganizerID.String(),
		OrganizerName: e.OrganizerName,
		Title:         e.Title,
		SplitType:     e.SplitType,
		TotalHours:    e.TotalHours,
		Status:        e.Status,
		Participants:  make([]ParticipantResponse, 0, len(participants)),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	if e.Description.Valid {
		resp.Description = e.Description.String
	}
	if e.ListingID.Valid {
		resp.ListingID = e.ListingID.UUID.String()
	}
	if e.CompletedAt.Valid {
		resp.CompletedAt = &e.CompletedAt.Time
	}
	for _, p := range participants {
		pr := ParticipantResponse{
			UserID:    p.UserID.String(),
			UserName:  p.UserName,
			Role:      p.Role,
			Hours:     p.Hours,
			Weight:    p.Weight,
			Confirmed: p.Confirmed(),
		}
		if p.ConfirmedAt.Valid {
			pr.ConfirmedAt = &p.ConfirmedAt.Time
		}
		resp.Participants = append(resp.Participants, pr)
	}
	return resp
}

// SettlementResponse reports the ledger rows written by a completed group
// exchange.
type SettlementResponse struct {
	Exchange     *Response `json:"exchange"`
	Transactions []string  `json:"transaction_ids"`
}
