package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

const userColumns = `id, tenant_id, name, handle, email, avatar_url, balance, created_at`

// Repository provides read-only user lookups for the ledger core.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*User, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u User
	err := r.db.GetContext(ctx2, &u, `
		SELECT `+userColumns+` FROM users WHERE id = $1 AND tenant_id = $2
	`, id, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &u, nil
}

func (r *Repository) GetByHandle(ctx context.Context, tenantID uuid.UUID, handle string) (*User, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u User
	err := r.db.GetContext(ctx2, &u, `
		SELECT `+userColumns+` FROM users WHERE lower(handle) = lower($1) AND tenant_id = $2
	`, handle, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by handle: %w", err)
	}
	return &u, nil
}

func (r *Repository) GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*User, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u User
	err := r.db.GetContext(ctx2, &u, `
		SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1) AND tenant_id = $2
	`, email, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// Search returns users matching the query by name, handle or email prefix,
// excluding the caller. Used for transfer-recipient autocomplete.
func (r *Repository) Search(ctx context.Context, tenantID, excludeID uuid.UUID, query string, limit int) ([]User, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 || limit > 50 {
		limit = 10
	}

	users := make([]User, 0)
	err := r.db.SelectContext(ctx2, &users, `
		SELECT `+userColumns+`
		FROM users
		WHERE tenant_id = $1
		  AND id != $2
		  AND (name ILIKE '%' || $3 || '%' OR handle ILIKE $3 || '%' OR email ILIKE $3 || '%')
		ORDER BY name ASC
		LIMIT $4
	`, tenantID, excludeID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}
