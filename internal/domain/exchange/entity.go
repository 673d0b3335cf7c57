package exchange

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a two-party exchange.
type Status string

const (
	StatusRequested            Status = "requested"
	StatusAccepted             Status = "accepted"
	StatusInProgress           Status = "in_progress"
	StatusReadyForConfirmation Status = "ready_for_confirmation"
	StatusCompleted            Status = "completed"
	StatusDisputed             Status = "disputed"
	StatusDeclined             Status = "declined"
	StatusCancelled            Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusRequested:            {StatusAccepted, StatusDeclined, StatusCancelled},
	StatusAccepted:             {StatusInProgress, StatusCancelled},
	StatusInProgress:           {StatusReadyForConfirmation, StatusCancelled},
	StatusReadyForConfirmation: {StatusCompleted, StatusDisputed, StatusCancelled},
	StatusCompleted:            {},
	StatusDisputed:             {},
	StatusDeclined:             {},
	StatusCancelled:            {},
}

// CanTransitionTo reports whether the state machine allows moving from s to
// next.
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

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// ActorRole identifies who acted on an exchange.
type ActorRole string

const (
	RoleRequester ActorRole = "requester"
	RoleProvider  ActorRole = "provider"
	RoleSystem    ActorRole = "system"
)

// Exchange is a two-party service exchange against a listing. The requester
// pays the provider on completion.
type Exchange struct {
	ID            uuid.UUID           `db:"id" json:"id"`
	TenantID      uuid.UUID           `db:"tenant_id" json:"-"`
	ListingID     uuid.UUID           `db:"listing_id" json:"listing_id"`
	RequesterID   uuid.UUID           `db:"requester_id" json:"requester_id"`
	ProviderID    uuid.UUID           `db:"provider_id" json:"provider_id"`
	Status        Status              `db:"status" json:"status"`
	ProposedHours decimal.Decimal     `db:"proposed_hours" json:"proposed_hours"`
	FinalHours    decimal.NullDecimal `db:"final_hours" json:"final_hours"`
	Message       sql.NullString      `db:"message" json:"-"`

	RequesterConfirmedAt    sql.NullTime        `db:"requester_confirmed_at" json:"-"`
	RequesterConfirmedHours decimal.NullDecimal `db:"requester_confirmed_hours" json:"-"`
	ProviderConfirmedAt     sql.NullTime        `db:"provider_confirmed_at" json:"-"`
	ProviderConfirmedHours  decimal.NullDecimal `db:"provider_confirmed_hours" json:"-"`

	TransactionID uuid.NullUUID `db:"transaction_id" json:"-"`
	ReadyAt       sql.NullTime  `db:"ready_at" json:"-"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`

	// Joined for read models.
	ListingTitle  string         `db:"listing_title" json:"listing_title"`
	ListingType   string         `db:"listing_type" json:"listing_type"`
	RequesterName string         `db:"requester_name" json:"requester_name"`
	ProviderName  string         `db:"provider_name" json:"provider_name"`
	RiskLevel     sql.NullString `db:"risk_level" json:"-"`
}

func (e *Exchange) IsParticipant(userID uuid.UUID) bool {
	return e.RequesterID == userID || e.ProviderID == userID
}

func (e *Exchange) RoleOf(userID uuid.UUID) ActorRole {
	switch userID {
	case e.RequesterID:
		return RoleRequester
	case e.ProviderID:
		return RoleProvider
	default:
		return ""
	}
}

func (e *Exchange) BothConfirmed() bool {
	return e.RequesterConfirmedHours.Valid && e.ProviderConfirmedHours.Valid
}

// History actions.
const (
	ActionRequestCreated     = "request_created"
	ActionStatusChanged      = "status_changed"
	ActionRequesterConfirmed = "requester_confirmed"
	ActionProviderConfirmed  = "provider_confirmed"
)

// HistoryEntry is an append-only audit row for an exchange.
type HistoryEntry struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	ExchangeID uuid.UUID      `db:"exchange_id" json:"exchange_id"`
	ActorID    uuid.NullUUID  `db:"actor_id" json:"actor_id"`
	ActorRole  ActorRole      `db:"actor_role" json:"actor_role"`
	Action     string         `db:"action" json:"action"`
	FromStatus sql.NullString `db:"from_status" json:"from_status"`
	ToStatus   sql.NullString `db:"to_status" json:"to_status"`
	Notes      sql.NullString `db:"notes" json:"notes"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
