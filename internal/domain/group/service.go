package group

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/hourbank/hourbank-api/internal/domain/activity"
	"github.com/hourbank/hourbank-api/internal/domain/user"
	"github.com/hourbank/hourbank-api/internal/domain/wallet"
	"github.com/hourbank/hourbank-api/internal/pkg/errorhandler"
)

type Service struct {
	repo     *Repository
	users    *user.Repository
	wallet   *wallet.Service
	activity *activity.Service
}

func NewService(repo *Repository, users *user.Repository, walletSvc *wallet.Service, activitySvc *activity.Service) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		wallet:   walletSvc,
		activity: activitySvc,
	}
}

// SettlementError identifies the payer whose balance blocked an
// all-or-nothing settlement.
type SettlementError struct {
	PayerID uuid.UUID
	Err     error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement blocked by payer %s: %v", e.PayerID, e.Err)
}

func (e *SettlementError) Unwrap() error {
	return e.Err
}

// Create opens a group exchange in draft. Initial participants are optional
// and can be added later while the exchange is not completed.
func (s *Service) Create(ctx context.Context, tenantID, organizerID uuid.UUID, input CreateInput) (*Exchange, []Participant, error) {
	if !wallet.ValidAmount(input.TotalHours) {
		return nil, nil, wallet.ErrInvalidAmount
	}

	e := &Exchange{
		ID:          uuid.New(),
		TenantID:    tenantID,
		OrganizerID: organizerID,
		Title:       input.Title,
		SplitType:   SplitType(input.SplitType),
		TotalHours:  input.TotalHours,
		Status:      StatusDraft,
	}
	if input.Description != "" {
		e.Description = sql.NullString{String: input.Description, Valid: true}
	}
	if input.ListingID != "" {
		listingID, err := uuid.Parse(input.ListingID)
		if err == nil {
			e.ListingID = uuid.NullUUID{UUID: listingID, Valid: true}
		}
	}

	participants, err := s.buildParticipants(ctx, tenantID, e.ID, input.Participants)
	if err != nil {
		return nil, nil, err
	}
	if err := s.repo.Create(ctx, e, participants); err != nil {
		return nil, nil, err
	}
	return e, participants, nil
}

func (s *Service) buildParticipants(ctx context.Context, tenantID, exchangeID uuid.UUID, inputs []ParticipantInput) ([]Participant, error) {
	seen := make(map[uuid.UUID]bool, len(inputs))
	participants := make([]Participant, 0, len(inputs))
	for _, in := range inputs {
		userID, err := uuid.Parse(in.UserID)
		if err != nil {
			return nil, user.ErrNotFound
		}
		if seen[userID] {
			return nil, ErrAlreadyParticipant
		}
		seen[userID] = true
		if _, err := s.users.GetByID(ctx, tenantID, userID); err != nil {
			return nil, err
		}
		participants = append(participants, Participant{
			ExchangeID: exchangeID,
			UserID:     userID,
			Role:       Role(in.Role),
			Hours:      in.Hours,
			Weight:     in.Weight,
		})
	}
	return participants, nil
}

func (s *Service) Get(ctx context.Context, tenantID, userID, id uuid.UUID) (*Exchange, []Participant, error) {
	e, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, nil, err
	}
	participants, err := s.repo.ListParticipants(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if e.OrganizerID != userID && !isMember(participants, userID) {
		return nil, nil, ErrNotParticipant
	}
	return e, participants, nil
}

func (s *Service) List(ctx context.Context, tenantID, userID uuid.UUID, page, limit int) ([]Exchange, int, error) {
	return s.repo.ListForUser(ctx, tenantID, userID, page, limit)
}

// Preview computes the settlement shares without moving funds.
func (s *Service) Preview(ctx context.Context, tenantID, userID, id uuid.UUID) ([]Share, error) {
	e, participants, err := s.Get(ctx, tenantID, userID, id)
	if err != nil {
		return nil, err
	}
	return CalculateSplit(e.SplitType, e.TotalHours, participants)
}

// AddParticipant adds a member. Organizer only, any state before completion.
// All confirmations are cleared.
func (s *Service) AddParticipant(ctx context.Context, tenantID, callerID, id uuid.UUID, input ParticipantInput) error {
	e, err := s.organizerExchange(ctx, tenantID, callerID, id)
	if err != nil {
		return err
	}
	if e.Status.IsTerminal() {
		return ErrInvalidState
	}
	userID, err := uuid.Parse(input.UserID)
	if err != nil {
		return user.ErrNotFound
	}
	if _, err := s.users.GetByID(ctx, tenantID, userID); err != nil {
		return err
	}
	return s.repo.AddParticipant(ctx, &Participant{
		ExchangeID: id,
		UserID:     userID,
		Role:       Role(input.Role),
		Hours:      input.Hours,
		Weight:     input.Weight,
	})
}

// RemoveParticipant removes a member. Organizer only, any state before
// completion. All confirmations are cleared.
func (s *Service) RemoveParticipant(ctx context.Context, tenantID, callerID, id, userID uuid.UUID) error {
	e, err := s.organizerExchange(ctx, tenantID, callerID, id)
	if err != nil {
		return err
	}
	if e.Status.IsTerminal() {
		return ErrInvalidState
	}
	return s.repo.RemoveParticipant(ctx, id, userID)
}

// Activate publishes a draft. The split must already be computable.
func (s *Service) Activate(ctx context.Context, tenantID, callerID, id uuid.UUID) (*Exchange, error) {
	e, err := s.organizerExchange(ctx, tenantID, callerID, id)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusDraft {
		return nil, ErrInvalidState
	}
	participants, err := s.repo.ListParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := CalculateSplit(e.SplitType, e.TotalHours, participants); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, tenantID, id, StatusDraft, StatusActive); err != nil {
		return nil, err
	}
	go s.notifyParticipants(e, participants, activity.KindGroupExchangeUpdated)
	return s.repo.GetByID(ctx, tenantID, id)
}

// RequestConfirmation asks every participant to confirm the exchange before
// settlement.
func (s *Service) RequestConfirmation(ctx context.Context, tenantID, callerID, id uuid.UUID) (*Exchange, error) {
	e, err := s.organizerExchange(ctx, tenantID, callerID, id)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusActive {
		return nil, ErrInvalidState
	}
	if err := s.repo.UpdateStatus(ctx, tenantID, id, StatusActive, StatusPendingConfirmation); err != nil {
		return nil, err
	}
	participants, err := s.repo.ListParticipants(ctx, id)
	if err == nil {
		go s.notifyParticipants(e, participants, activity.KindGroupExchangeUpdated)
	}
	return s.repo.GetByID(ctx, tenantID, id)
}

// Confirm records the caller's agreement with the settlement shape.
func (s *Service) Confirm(ctx context.Context, tenantID, userID, id uuid.UUID) error {
	e, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if e.Status != StatusPendingConfirmation {
		return ErrInvalidState
	}
	return s.repo.Confirm(ctx, id, userID)
}

// Complete settles the exchange: every pairwise share is transferred in one
// database transaction, all-or-nothing. Organizer only, and every
// participant must have confirmed.
func (s *Service) Complete(ctx context.Context, tenantID, callerID, id uuid.UUID) ([]uuid.UUID, error) {
	e, err := s.organizerExchange(ctx, tenantID, callerID, id)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusPendingConfirmation {
		return nil, ErrInvalidState
	}

	participants, err := s.repo.ListParticipants(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, p := range participants {
		if !p.Confirmed() {
			return nil, ErrUnconfirmedParticipants
		}
	}

	shares, err := CalculateSplit(e.SplitType, e.TotalHours, participants)
	if err != nil {
		return nil, err
	}

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin group settlement: %w", err)
	}
	defer tx.Rollback()

	memberIDs := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		memberIDs = append(memberIDs, p.UserID)
	}
	if err := s.repo.LockMembers(ctx, tx, tenantID, memberIDs); err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Group exchange: %s", e.Title)
	transactionIDs := make([]uuid.UUID, 0, len(shares))
	total := decimal.Zero
	for _, share := range shares {
		txn, err := s.wallet.TransferTx(ctx, tx, tenantID, share.PayerID, share.PayeeID, share.Amount, description)
		if err != nil {
			errorhandler.LogLedgerError(ctx, "group_settlement_transfer", err)
			if errors.Is(err, wallet.ErrInsufficientFunds) {
				return nil, &SettlementError{PayerID: share.PayerID, Err: err}
			}
			return nil, err
		}
		transactionIDs = append(transactionIDs, txn.ID)
		total = total.Add(share.Amount)
	}

	if err := s.repo.CompleteTx(ctx, tx, tenantID, id); err != nil {
		errorhandler.LogLedgerError(ctx, "group_settlement_complete", err)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		errorhandler.LogLedgerError(ctx, "group_settlement_commit", err)
		return nil, fmt.Errorf("commit group settlement: %w", err)
	}

	log.Info().
		Str("group_exchange_id", id.String()).
		Int("transfers", len(transactionIDs)).
		Str("total_hours", total.String()).
		Msg("group exchange settled")
	go s.notifyParticipants(e, participants, activity.KindGroupExchangeSettled)

	return transactionIDs, nil
}

// Cancel aborts a non-completed group exchange. Organizer only. No funds
// ever moved, so there is nothing to unwind.
func (s *Service) Cancel(ctx context.Context, tenantID, callerID, id uuid.UUID) (*Exchange, error) {
	e, err := s.organizerExchange(ctx, tenantID, callerID, id)
	if err != nil {
		return nil, err
	}
	if e.Status.IsTerminal() {
		return nil, ErrInvalidState
	}
	if err := s.repo.UpdateStatus(ctx, tenantID, id, e.Status, StatusCancelled); err != nil {
		return nil, err
	}
	participants, err := s.repo.ListParticipants(ctx, id)
	if err == nil {
		go s.notifyParticipants(e, participants, activity.KindGroupExchangeCancelled)
	}
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *Service) organizerExchange(ctx context.Context, tenantID, callerID, id uuid.UUID) (*Exchange, error) {
	e, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if e.OrganizerID != callerID {
		return nil, ErrNotOrganizer
	}
	return e, nil
}

func (s *Service) notifyParticipants(e *Exchange, participants []Participant, kind string) {
	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	s.activity.RecordAll(context.Background(), e.TenantID, ids, kind, map[string]interface{}{
		"group_exchange_id": e.ID,
		"title":             e.Title,
		"status":            e.Status,
	})
}

func isMember(participants []Participant, userID uuid.UUID) bool {
	for _, p := range participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
