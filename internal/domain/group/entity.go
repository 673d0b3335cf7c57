package group

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a group exchange.
type Status string

const (
	StatusDraft               Status = "draft"
	StatusActive              Status = "active"
	StatusPendingConfirmation Status = "pending_confirmation"
	StatusCompleted           Status = "completed"
	StatusCancelled           Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusDraft:               {StatusActive, StatusCancelled},
	StatusActive:              {StatusPendingConfirmation, StatusCancelled},
	StatusPendingConfirmation: {StatusCompleted, StatusCancelled},
	StatusCompleted:           {},
	StatusCancelled:           {},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// SplitType selects how the total hours are divided among participants.
type SplitType string

const (
	SplitEqual    SplitType = "equal"
	SplitWeighted SplitType = "weighted"
	SplitCustom   SplitType = "custom"
)

// Role marks which side of the settlement a participant is on. Providers
// are owed hours, receivers pay them.
type Role string

const (
	RoleProvider Role = "provider"
	RoleReceiver Role = "receiver"
)

// Exchange is a multi-party exchange coordinated by an organizer.
type Exchange struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	TenantID    uuid.UUID       `db:"tenant_id" json:"-"`
	OrganizerID uuid.UUID       `db:"organizer_id" json:"organizer_id"`
	Title       string          `db:"title" json:"title"`
	Description sql.NullString  `db:"description" json:"-"`
	ListingID   uuid.NullUUID   `db:"listing_id" json:"-"`
	SplitType   SplitType       `db:"split_type" json:"split_type"`
	TotalHours  decimal.Decimal `db:"total_hours" json:"total_hours"`
	Status      Status          `db:"status" json:"status"`
	CompletedAt sql.NullTime    `db:"completed_at" json:"-"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`

	OrganizerName string `db:"organizer_name" json:"organizer_name"`
}

// Participant is a member of a group exchange. Hours is only meaningful for
// custom splits, Weight only for weighted ones. Membership changes clear
// every confirmation on the exchange.
type Participant struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ExchangeID  uuid.UUID       `db:"exchange_id" json:"-"`
	UserID      uuid.UUID       `db:"user_id" json:"user_id"`
	Role        Role            `db:"role" json:"role"`
	Hours       decimal.Decimal `db:"hours" json:"hours"`
	Weight      decimal.Decimal `db:"weight" json:"weight"`
	ConfirmedAt sql.NullTime    `db:"confirmed_at" json:"-"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`

	UserName string `db:"user_name" json:"user_name"`
}

func (p *Participant) Confirmed() bool {
	return p.ConfirmedAt.Valid
}
