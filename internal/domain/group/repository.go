package group

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const queryTimeout = 3 * time.Second

const selectColumns = `
	g.id, g.tenant_id, g.organizer_id, g.title, g.description, g.listing_id,
	g.split_type, g.total_hours, g.status, g.completed_at, g.created_at, g.updated_at,
	u.name AS organizer_name`

const selectJoins = `
	FROM group_exchanges g
	JOIN users u ON u.id = g.organizer_id`

// Create inserts the exchange and its initial participants in one
// transaction.
func (r *Repository) Create(ctx context.Context, e *Exchange, participants []Participant) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO group_exchanges (id, tenant_id, organizer_id, title, description, listing_id, split_type, total_hours, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`
	err = tx.QueryRowxContext(ctx, query,
		e.ID, e.TenantID, e.OrganizerID, e.Title, e.Description, e.ListingID,
		e.SplitType, e.TotalHours, e.Status,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert group exchange: %w", err)
	}

	for i := range participants {
		if err := insertParticipant(ctx, tx, &participants[i]); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*Exchange, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var e Exchange
	query := `SELECT ` + selectColumns + selectJoins + ` WHERE g.tenant_id = $1 AND g.id = $2`
	if err := r.db.GetContext(ctx, &e, query, tenantID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get group exchange: %w", err)
	}
	return &e, nil
}

func (r *Repository) ListParticipants(ctx context.Context, exchangeID uuid.UUID) ([]Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	participants := []Participant{}
	query := `
		SELECT p.id, p.exchange_id, p.user_id, p.role, p.hours, p.weight,
		       p.confirmed_at, p.created_at, u.name AS user_name
		FROM group_exchange_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.exchange_id = $1
		ORDER BY p.created_at ASC, p.id ASC`
	if err := r.db.SelectContext(ctx, &participants, query, exchangeID); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}

func (r *Repository) ListForUser(ctx context.Context, tenantID, userID uuid.UUID, page, limit int) ([]Exchange, int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	where := ` WHERE g.tenant_id = $1 AND (g.organizer_id = $2 OR EXISTS (
		SELECT 1 FROM group_exchange_participants p
		WHERE p.exchange_id = g.id AND p.user_id = $2))`

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*)`+selectJoins+where, tenantID, userID); err != nil {
		return nil, 0, fmt.Errorf("count group exchanges: %w", err)
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}

	exchanges := []Exchange{}
	query := `SELECT ` + selectColumns + selectJoins + where + ` ORDER BY g.created_at DESC LIMIT $3 OFFSET $4`
	if err := r.db.SelectContext(ctx, &exchanges, query, tenantID, userID, limit, (page-1)*limit); err != nil {
		return nil, 0, fmt.Errorf("list group exchanges: %w", err)
	}
	return exchanges, total, nil
}

// AddParticipant inserts a member and clears all confirmations on the
// exchange, since the settlement shape changed.
func (r *Repository) AddParticipant(ctx context.Context, p *Participant) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add participant: %w", err)
	}
	defer tx.Rollback()

	if err := insertParticipant(ctx, tx, p); err != nil {
		return err
	}
	if err := clearConfirmations(ctx, tx, p.ExchangeID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit add participant: %w", err)
	}
	return nil
}

func insertParticipant(ctx context.Context, tx *sqlx.Tx, p *Participant) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO group_exchange_participants (id, exchange_id, user_id, role, hours, weight)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`
	err := tx.QueryRowxContext(ctx, query, p.ID, p.ExchangeID, p.UserID, p.Role, p.Hours, p.Weight).Scan(&p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyParticipant
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// RemoveParticipant deletes a member and clears all confirmations.
func (r *Repository) RemoveParticipant(ctx context.Context, exchangeID, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove participant: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM group_exchange_participants WHERE exchange_id = $1 AND user_id = $2`,
		exchangeID, userID)
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove participant rows: %w", err)
	}
	if rows == 0 {
		return ErrParticipantNotFound
	}
	if err := clearConfirmations(ctx, tx, exchangeID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit remove participant: %w", err)
	}
	return nil
}

func clearConfirmations(ctx context.Context, tx *sqlx.Tx, exchangeID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE group_exchange_participants SET confirmed_at = NULL WHERE exchange_id = $1`, exchangeID)
	if err != nil {
		return fmt.Errorf("clear confirmations: %w", err)
	}
	return nil
}

func (r *Repository) Confirm(ctx context.Context, exchangeID, userID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx,
		`UPDATE group_exchange_participants SET confirmed_at = now() WHERE exchange_id = $1 AND user_id = $2`,
		exchangeID, userID)
	if err != nil {
		return fmt.Errorf("confirm participation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("confirm participation rows: %w", err)
	}
	if rows == 0 {
		return ErrParticipantNotFound
	}
	return nil
}

// UpdateStatus is a compare-and-set status flip; losing the race returns
// ErrConflict.
func (r *Repository) UpdateStatus(ctx context.Context, tenantID, id uuid.UUID, from, to Status) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		UPDATE group_exchanges
		SET status = $1, updated_at = now()
		WHERE tenant_id = $2 AND id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, to, tenantID, id, from)
	if err != nil {
		return fmt.Errorf("update group status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update group status rows: %w", err)
	}
	if rows == 0 {
		return ErrConflict
	}
	return nil
}

func (r *Repository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

// LockMembers locks the balance rows of everyone involved in a settlement,
// in id order, before any funds move. Keeps concurrent settlements that
// share members deadlock-free.
func (r *Repository) LockMembers(ctx context.Context, tx *sqlx.Tx, tenantID uuid.UUID, userIDs []uuid.UUID) error {
	ids := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		ids = append(ids, id.String())
	}
	var locked []uuid.UUID
	query := `SELECT id FROM users WHERE tenant_id = $1 AND id = ANY($2) ORDER BY id FOR UPDATE`
	if err := tx.SelectContext(ctx, &locked, query, tenantID, pq.Array(ids)); err != nil {
		return fmt.Errorf("lock members: %w", err)
	}
	if len(locked) != len(userIDs) {
		return ErrParticipantNotFound
	}
	return nil
}

// CompleteTx finalizes the exchange inside the settlement transaction. The
// compare-and-set guarantees a group settles exactly once.
func (r *Repository) CompleteTx(ctx context.Context, tx *sqlx.Tx, tenantID, id uuid.UUID) error {
	query := `
		UPDATE group_exchanges
		SET status = 'completed', completed_at = now(), updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status = 'pending_confirmation'`
	result, err := tx.ExecContext(ctx, query, tenantID, id)
	if err != nil {
		return fmt.Errorf("complete group exchange: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete group exchange rows: %w", err)
	}
	if rows == 0 {
		return ErrConflict
	}
	return nil
}
