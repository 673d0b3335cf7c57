package exchange

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/hourbank/hourbank-api/internal/domain/activity"
	"github.com/hourbank/hourbank-api/internal/domain/listing"
	"github.com/hourbank/hourbank-api/internal/domain/settings"
	"github.com/hourbank/hourbank-api/internal/domain/user"
	"github.com/hourbank/hourbank-api/internal/domain/wallet"
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("database not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, db *sqlx.DB, tenantID uuid.UUID, balance string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO users (id, tenant_id, name, handle, email, balance)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, tenantID, "Member "+id.String()[:8], "m_"+id.String()[:8],
		id.String()[:8]+"@example.com", balance)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(`DELETE FROM ledger_transactions WHERE sender_id = $1 OR receiver_id = $1`, id)
		db.Exec(`DELETE FROM users WHERE id = $1`, id)
	})
	return id
}

func seedListing(t *testing.T, db *sqlx.DB, tenantID, ownerID uuid.UUID) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO listings (id, tenant_id, owner_id, title, type, hours)
		VALUES ($1, $2, $3, 'Dog walking', 'offer', 2)`,
		id, tenantID, ownerID)
	if err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(`DELETE FROM listings WHERE id = $1`, id)
	})
	return id
}

// seedExchange inserts an exchange directly in the given state, skipping the
// request/accept ceremony.
func seedExchange(t *testing.T, db *sqlx.DB, tenantID, listingID, requesterID, providerID uuid.UUID, status Status, proposed string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(`
		INSERT INTO exchanges (id, tenant_id, listing_id, requester_id, provider_id, status, proposed_hours, ready_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7,
		        CASE WHEN $6 IN ('ready_for_confirmation', 'completed') THEN now() END)`,
		id, tenantID, listingID, requesterID, providerID, status, proposed)
	if err != nil {
		t.Fatalf("seed exchange: %v", err)
	}
	t.Cleanup(func() {
		db.Exec(`DELETE FROM exchanges WHERE id = $1`, id)
	})
	return id
}

func newService(db *sqlx.DB) *Service {
	users := user.NewRepository(db)
	resolver := user.NewResolver(users)
	activitySvc := activity.NewService(activity.NewRepository(db), nil)
	walletSvc := wallet.NewService(wallet.NewRepository(db), users, resolver, activitySvc)
	settingsRepo := settings.NewRepository(db, nil, settings.DefaultWorkflow())
	return NewService(NewRepository(db), listing.NewRepository(db), walletSvc, settingsRepo, activitySvc)
}

func balanceOf(t *testing.T, db *sqlx.DB, id uuid.UUID) decimal.Decimal {
	t.Helper()
	var b decimal.Decimal
	if err := db.Get(&b, `SELECT balance FROM users WHERE id = $1`, id); err != nil {
		t.Fatalf("get balance: %v", err)
	}
	return b
}

// A confirm racing a finished reconciliation must not touch a closed
// exchange.
func TestSetConfirmationClosedExchange(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	requester := seedUser(t, db, tenantID, "10.00")
	provider := seedUser(t, db, tenantID, "0")
	listingID := seedListing(t, db, tenantID, provider)
	id := seedExchange(t, db, tenantID, listingID, requester, provider, StatusCompleted, "2")

	err := repo.SetConfirmation(ctx, tenantID, id, RoleProvider, decimal.RequireFromString("3"))
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}

	e, err := repo.GetByID(ctx, tenantID, id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if e.ProviderConfirmedHours.Valid {
		t.Errorf("provider confirmed hours = %s, want unset", e.ProviderConfirmedHours.Decimal)
	}
}

func TestSetConfirmationOverwrites(t *testing.T) {
	db := testDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	tenantID := uuid.New()

	requester := seedUser(t, db, tenantID, "10.00")
	provider := seedUser(t, db, tenantID, "0")
	listingID := seedListing(t, db, tenantID, provider)
	id := seedExchange(t, db, tenantID, listingID, requester, provider, StatusReadyForConfirmation, "2")

	for _, hours := range []string{"2", "2.50"} {
		if err := repo.SetConfirmation(ctx, tenantID, id, RoleRequester, decimal.RequireFromString(hours)); err != nil {
			t.Fatalf("set confirmation %s: %v", hours, err)
		}
	}

	e, err := repo.GetByID(ctx, tenantID, id)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !e.RequesterConfirmedHours.Valid || !e.RequesterConfirmedHours.Decimal.Equal(decimal.RequireFromString("2.50")) {
		t.Errorf("requester confirmed hours = %v, want 2.50", e.RequesterConfirmedHours)
	}
}
