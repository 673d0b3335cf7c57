package user_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/hourbank/hourbank-api/internal/domain/user"
)

type fakeLookup struct {
	users []*user.User
}

func (f *fakeLookup) GetByID(_ context.Context, tenantID, id uuid.UUID) (*user.User, error) {
	for _, u := range f.users {
		if u.TenantID == tenantID && u.ID == id {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeLookup) GetByHandle(_ context.Context, tenantID uuid.UUID, handle string) (*user.User, error) {
	for _, u := range f.users {
		if u.TenantID == tenantID && u.Handle == handle {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func (f *fakeLookup) GetByEmail(_ context.Context, tenantID uuid.UUID, email string) (*user.User, error) {
	for _, u := range f.users {
		if u.TenantID == tenantID && u.Email == email {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

func TestResolverMatchesInOrder(t *testing.T) {
	tenantID := uuid.New()
	alice := &user.User{ID: uuid.New(), TenantID: tenantID, Name: "Alice", Handle: "alice", Email: "alice@example.org"}
	bob := &user.User{ID: uuid.New(), TenantID: tenantID, Name: "Bob", Handle: "bob", Email: "bob@example.org"}

	r := user.NewResolver(&fakeLookup{users: []*user.User{alice, bob}})
	ctx := context.Background()

	tests := []struct {
		name string
		ref  string
		want uuid.UUID
	}{
		{"by id", alice.ID.String(), alice.ID},
		{"by email", "bob@example.org", bob.ID},
		{"by handle", "alice", alice.ID},
		{"by handle with at prefix", "@bob", bob.ID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(ctx, tenantID, tt.ref)
			if err != nil {
				t.Fatalf("resolve %q failed: %v", tt.ref, err)
			}
			if got.ID != tt.want {
				t.Fatalf("resolve %q: got %s, want %s", tt.ref, got.ID, tt.want)
			}
		})
	}
}

func TestResolverNotFound(t *testing.T) {
	tenantID := uuid.New()
	r := user.NewResolver(&fakeLookup{})

	for _, ref := range []string{"", "nobody", "ghost@example.org", uuid.New().String()} {
		if _, err := r.Resolve(context.Background(), tenantID, ref); !errors.Is(err, user.ErrNotFound) {
			t.Fatalf("resolve %q: expected ErrNotFound, got %v", ref, err)
		}
	}
}

func TestResolverScopedToTenant(t *testing.T) {
	tenantID := uuid.New()
	alice := &user.User{ID: uuid.New(), TenantID: tenantID, Handle: "alice", Email: "alice@example.org"}

	r := user.NewResolver(&fakeLookup{users: []*user.User{alice}})

	if _, err := r.Resolve(context.Background(), uuid.New(), "alice"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong tenant, got %v", err)
	}
}
