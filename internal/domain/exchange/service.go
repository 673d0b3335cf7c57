package exchange

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/hourbank/hourbank-api/internal/domain/activity"
	"github.com/hourbank/hourbank-api/internal/domain/listing"
	"github.com/hourbank/hourbank-api/internal/domain/settings"
	"github.com/hourbank/hourbank-api/internal/domain/wallet"
	"github.com/hourbank/hourbank-api/internal/pkg/errorhandler"
)

type Service struct {
	repo     *Repository
	listings *listing.Repository
	wallet   *wallet.Service
	settings *settings.Repository
	activity *activity.Service
}

func NewService(repo *Repository, listings *listing.Repository, walletSvc *wallet.Service, settingsRepo *settings.Repository, activitySvc *activity.Service) *Service {
	return &Service{
		repo:     repo,
		listings: listings,
		wallet:   walletSvc,
		settings: settingsRepo,
		activity: activitySvc,
	}
}

// reconcile decides the outcome once both parties have confirmed hours. When
// the reported hours diverge within tolerance the provider's figure is
// authoritative; beyond tolerance the exchange is disputed and no funds move.
func reconcile(requesterHours, providerHours decimal.Decimal, maxVariancePercent float64) (Status, decimal.Decimal) {
	larger := decimal.Max(requesterHours, providerHours)
	if larger.IsZero() {
		return StatusDisputed, decimal.Zero
	}
	variance := requesterHours.Sub(providerHours).Abs().Div(larger)
	tolerance := decimal.NewFromFloat(maxVariancePercent).Div(decimal.NewFromInt(100))
	if variance.LessThanOrEqual(tolerance) {
		return StatusCompleted, providerHours
	}
	return StatusDisputed, decimal.Zero
}

// CreateRequest opens an exchange in requested state. Proposed hours are
// clamped to the tenant's configured bounds.
func (s *Service) CreateRequest(ctx context.Context, tenantID, requesterID uuid.UUID, input CreateRequestInput) (*Exchange, error) {
	listingID, err := uuid.Parse(input.ListingID)
	if err != nil {
		return nil, ErrListingNotFound
	}

	l, err := s.listings.GetByID(ctx, tenantID, listingID)
	if err != nil {
		if errors.Is(err, listing.ErrNotFound) {
			return nil, ErrListingNotFound
		}
		return nil, err
	}
	if l.OwnerID == requesterID {
		return nil, ErrOwnListing
	}

	if !wallet.ValidAmount(input.ProposedHours) {
		return nil, ErrInvalidHours
	}
	ws, err := s.settings.Workflow(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	hours := ws.ClampProposedHours(input.ProposedHours)

	e := &Exchange{
		ID:            uuid.New(),
		TenantID:      tenantID,
		ListingID:     listingID,
		RequesterID:   requesterID,
		ProviderID:    l.OwnerID,
		Status:        StatusRequested,
		ProposedHours: hours,
	}
	if input.Message != "" {
		e.Message = sql.NullString{String: input.Message, Valid: true}
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create exchange: %w", err)
	}

	s.appendHistory(ctx, &HistoryEntry{
		ExchangeID: e.ID,
		ActorID:    uuid.NullUUID{UUID: requesterID, Valid: true},
		ActorRole:  RoleRequester,
		Action:     ActionRequestCreated,
		ToStatus:   sql.NullString{String: string(StatusRequested), Valid: true},
	})
	go s.notify(e, l.OwnerID, activity.KindExchangeRequested)

	return s.repo.GetByID(ctx, tenantID, e.ID)
}

func (s *Service) GetByID(ctx context.Context, tenantID, userID, id uuid.UUID) (*Exchange, error) {
	e, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !e.IsParticipant(userID) {
		return nil, ErrForbidden
	}
	return e, nil
}

func (s *Service) List(ctx context.Context, tenantID, userID uuid.UUID, filter ListFilter) ([]Exchange, int, error) {
	return s.repo.ListForUser(ctx, tenantID, userID, filter)
}

func (s *Service) History(ctx context.Context, tenantID, userID, id uuid.UUID) ([]HistoryEntry, error) {
	if _, err := s.GetByID(ctx, tenantID, userID, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, tenantID, id)
}

// Accept moves a requested exchange to accepted. Provider only.
func (s *Service) Accept(ctx context.Context, tenantID, userID, id uuid.UUID) (*Exchange, error) {
	return s.transition(ctx, tenantID, userID, id, StatusAccepted, "", func(e *Exchange, role ActorRole) error {
		if role != RoleProvider {
			return ErrNotProvider
		}
		return nil
	})
}

// Decline rejects a requested exchange. Provider only.
func (s *Service) Decline(ctx context.Context, tenantID, userID, id uuid.UUID, reason string) (*Exchange, error) {
	return s.transition(ctx, tenantID, userID, id, StatusDeclined, reason, func(e *Exchange, role ActorRole) error {
		if role != RoleProvider {
			return ErrNotProvider
		}
		return nil
	})
}

// Start moves an accepted exchange to in_progress. Either participant.
func (s *Service) Start(ctx context.Context, tenantID, userID, id uuid.UUID) (*Exchange, error) {
	return s.transition(ctx, tenantID, userID, id, StatusInProgress, "", nil)
}

// MarkReady declares the work done and opens the confirmation window.
func (s *Service) MarkReady(ctx context.Context, tenantID, userID, id uuid.UUID) (*Exchange, error) {
	return s.transition(ctx, tenantID, userID, id, StatusReadyForConfirmation, "", nil)
}

// Cancel aborts a non-terminal exchange. Either participant, any state
// before completion.
func (s *Service) Cancel(ctx context.Context, tenantID, userID, id uuid.UUID, reason string) (*Exchange, error) {
	e, err := s.GetByID(ctx, tenantID, userID, id)
	if err != nil {
		return nil, err
	}
	if e.Status.IsTerminal() {
		return nil, ErrInvalidState
	}
	if err := s.repo.UpdateStatus(ctx, tenantID, id, e.Status, StatusCancelled); err != nil {
		return nil, err
	}
	s.appendStatusHistory(ctx, e, userID, e.RoleOf(userID), e.Status, StatusCancelled, reason)
	go s.notify(e, s.counterparty(e, userID), activity.KindExchangeCancelled)
	return s.repo.GetByID(ctx, tenantID, id)
}

// Confirm records the caller's worked hours and reconciles the exchange once
// both parties have confirmed. Confirming from in_progress implies the work
// is done and advances the exchange first.
func (s *Service) Confirm(ctx context.Context, tenantID, userID, id uuid.UUID, hours decimal.Decimal) (*Exchange, error) {
	e, err := s.GetByID(ctx, tenantID, userID, id)
	if err != nil {
		return nil, err
	}
	role := e.RoleOf(userID)

	if e.Status != StatusInProgress && e.Status != StatusReadyForConfirmation {
		return nil, ErrInvalidState
	}
	if !wallet.ValidAmount(hours) {
		return nil, ErrInvalidHours
	}

	ws, err := s.settings.Workflow(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !ws.AllowHourAdjustment && !hours.Equal(e.ProposedHours) {
		return nil, ErrAdjustmentOff
	}

	if e.Status == StatusInProgress {
		err := s.repo.UpdateStatus(ctx, tenantID, id, StatusInProgress, StatusReadyForConfirmation)
		switch {
		case err == nil:
			s.appendStatusHistory(ctx, e, userID, role, StatusInProgress, StatusReadyForConfirmation, "")
		case errors.Is(err, ErrConflict):
			// The other party advanced it first.
		default:
			return nil, err
		}
	}

	if err := s.repo.SetConfirmation(ctx, tenantID, id, role, hours); err != nil {
		return nil, err
	}
	action := ActionRequesterConfirmed
	if role == RoleProvider {
		action = ActionProviderConfirmed
	}
	s.appendHistory(ctx, &HistoryEntry{
		ExchangeID: id,
		ActorID:    uuid.NullUUID{UUID: userID, Valid: true},
		ActorRole:  role,
		Action:     action,
		Notes:      sql.NullString{String: fmt.Sprintf("Confirmed %s hours", hours.String()), Valid: true},
	})

	e, err = s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if e.Status != StatusReadyForConfirmation || !e.BothConfirmed() {
		return e, nil
	}

	outcome, finalHours := reconcile(e.RequesterConfirmedHours.Decimal, e.ProviderConfirmedHours.Decimal, ws.MaxHourVariancePercent)
	if outcome == StatusDisputed {
		return s.dispute(ctx, e)
	}
	return s.settle(ctx, e, finalHours)
}

// settle completes the exchange and pays the provider in one transaction.
// If funds cannot move, the exchange stays ready_for_confirmation.
func (s *Service) settle(ctx context.Context, e *Exchange, finalHours decimal.Decimal) (*Exchange, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin settlement: %w", err)
	}
	defer tx.Rollback()

	description := fmt.Sprintf("Exchange: %s", e.ListingTitle)
	txn, err := s.wallet.TransferTx(ctx, tx, e.TenantID, e.RequesterID, e.ProviderID, finalHours, description)
	if err != nil {
		errorhandler.LogLedgerError(ctx, "exchange_settlement_transfer", err)
		return nil, err
	}
	if err := s.repo.CompleteTx(ctx, tx, e.TenantID, e.ID, finalHours, txn.ID); err != nil {
		if errors.Is(err, ErrConflict) {
			// Already reconciled by the concurrent confirmation.
			return s.repo.GetByID(ctx, e.TenantID, e.ID)
		}
		errorhandler.LogLedgerError(ctx, "exchange_settlement_complete", err)
		return nil, err
	}
	if err := s.repo.InsertHistoryTx(ctx, tx, &HistoryEntry{
		ExchangeID: e.ID,
		ActorRole:  RoleSystem,
		Action:     ActionStatusChanged,
		FromStatus: sql.NullString{String: string(StatusReadyForConfirmation), Valid: true},
		ToStatus:   sql.NullString{String: string(StatusCompleted), Valid: true},
		Notes:      sql.NullString{String: fmt.Sprintf("Settled %s hours", finalHours.String()), Valid: true},
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		errorhandler.LogLedgerError(ctx, "exchange_settlement_commit", err)
		return nil, fmt.Errorf("commit settlement: %w", err)
	}

	log.Info().
		Str("exchange_id", e.ID.String()).
		Str("final_hours", finalHours.String()).
		Msg("exchange settled")
	go s.notifyBoth(e, activity.KindExchangeCompleted)

	return s.repo.GetByID(ctx, e.TenantID, e.ID)
}

func (s *Service) dispute(ctx context.Context, e *Exchange) (*Exchange, error) {
	err := s.repo.UpdateStatus(ctx, e.TenantID, e.ID, StatusReadyForConfirmation, StatusDisputed)
	if err != nil && !errors.Is(err, ErrConflict) {
		return nil, err
	}
	if err == nil {
		notes := fmt.Sprintf("Reported hours diverge: requester %s, provider %s",
			e.RequesterConfirmedHours.Decimal.String(), e.ProviderConfirmedHours.Decimal.String())
		s.appendStatusHistory(ctx, e, uuid.Nil, RoleSystem, StatusReadyForConfirmation, StatusDisputed, notes)
		go s.notifyBoth(e, activity.KindExchangeDisputed)
	}
	return s.repo.GetByID(ctx, e.TenantID, e.ID)
}

// ConfirmWindow returns the tenant's confirmation deadline duration.
func (s *Service) ConfirmWindow(ctx context.Context, tenantID uuid.UUID) time.Duration {
	ws, err := s.settings.Workflow(ctx, tenantID)
	if err != nil {
		return settings.DefaultWorkflow().ConfirmWindow()
	}
	return ws.ConfirmWindow()
}

func (s *Service) transition(ctx context.Context, tenantID, userID, id uuid.UUID, to Status, notes string, guard func(*Exchange, ActorRole) error) (*Exchange, error) {
	e, err := s.GetByID(ctx, tenantID, userID, id)
	if err != nil {
		return nil, err
	}
	role := e.RoleOf(userID)
	if guard != nil {
		if err := guard(e, role); err != nil {
			return nil, err
		}
	}
	if !e.Status.CanTransitionTo(to) {
		return nil, ErrInvalidState
	}
	if err := s.repo.UpdateStatus(ctx, tenantID, id, e.Status, to); err != nil {
		return nil, err
	}
	s.appendStatusHistory(ctx, e, userID, role, e.Status, to, notes)
	go s.notify(e, s.counterparty(e, userID), kindForStatus(to))
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *Service) appendStatusHistory(ctx context.Context, e *Exchange, actorID uuid.UUID, role ActorRole, from, to Status, notes string) {
	h := &HistoryEntry{
		ExchangeID: e.ID,
		ActorRole:  role,
		Action:     ActionStatusChanged,
		FromStatus: sql.NullString{String: string(from), Valid: true},
		ToStatus:   sql.NullString{String: string(to), Valid: true},
	}
	if actorID != uuid.Nil {
		h.ActorID = uuid.NullUUID{UUID: actorID, Valid: true}
	}
	if notes != "" {
		h.Notes = sql.NullString{String: notes, Valid: true}
	}
	s.appendHistory(ctx, h)
}

func (s *Service) appendHistory(ctx context.Context, h *HistoryEntry) {
	if err := s.repo.InsertHistory(ctx, h); err != nil {
		log.Error().Err(err).
			Str("exchange_id", h.ExchangeID.String()).
			Str("action", h.Action).
			Msg("failed to append exchange history")
	}
}

func (s *Service) counterparty(e *Exchange, userID uuid.UUID) uuid.UUID {
	if e.RequesterID == userID {
		return e.ProviderID
	}
	return e.RequesterID
}

func (s *Service) notify(e *Exchange, userID uuid.UUID, kind string) {
	s.activity.Record(context.Background(), e.TenantID, userID, kind, map[string]interface{}{
		"exchange_id":   e.ID,
		"listing_id":    e.ListingID,
		"listing_title": e.ListingTitle,
	})
}

func (s *Service) notifyBoth(e *Exchange, kind string) {
	payload := map[string]interface{}{
		"exchange_id":   e.ID,
		"listing_id":    e.ListingID,
		"listing_title": e.ListingTitle,
	}
	s.activity.RecordAll(context.Background(), e.TenantID, []uuid.UUID{e.RequesterID, e.ProviderID}, kind, payload)
}

func kindForStatus(to Status) string {
	switch to {
	case StatusAccepted:
		return activity.KindExchangeAccepted
	case StatusDeclined:
		return activity.KindExchangeDeclined
	case StatusInProgress:
		return activity.KindExchangeStarted
	case StatusReadyForConfirmation:
		return activity.KindExchangeReadyConfirm
	case StatusCancelled:
		return activity.KindExchangeCancelled
	default:
		return activity.KindExchangeCompleted
	}
}
