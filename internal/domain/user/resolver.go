package user

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Lookup is the subset of Repository the resolver needs.
type Lookup interface {
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*User, error)
	GetByHandle(ctx context.Context, tenantID uuid.UUID, handle string) (*User, error)
	GetByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*User, error)
}

type matcher func(ctx context.Context, tenantID uuid.UUID, ref string) (*User, error)

// Resolver turns a free-form recipient reference (id, handle or email) into
// a user. Matchers are tried in order; the first hit wins.
type Resolver struct {
	matchers []matcher
}

func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{
		matchers: []matcher{
			matchByID(lookup),
			matchByEmail(lookup),
			matchByHandle(lookup),
		},
	}
}

// Resolve returns the user the reference points at, or ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, tenantID uuid.UUID, ref string) (*User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrNotFound
	}

	for _, m := range r.matchers {
		u, err := m(ctx, tenantID, ref)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if u != nil {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func matchByID(lookup Lookup) matcher {
	return func(ctx context.Context, tenantID uuid.UUID, ref string) (*User, error) {
		id, err := uuid.Parse(ref)
		if err != nil {
			return nil, ErrNotFound
		}
		return lookup.GetByID(ctx, tenantID, id)
	}
}

func matchByEmail(lookup Lookup) matcher {
	return func(ctx context.Context, tenantID uuid.UUID, ref string) (*User, error) {
		if !strings.Contains(ref, "@") {
			return nil, ErrNotFound
		}
		return lookup.GetByEmail(ctx, tenantID, ref)
	}
}

func matchByHandle(lookup Lookup) matcher {
	return func(ctx context.Context, tenantID uuid.UUID, ref string) (*User, error) {
		return lookup.GetByHandle(ctx, tenantID, strings.TrimPrefix(ref, "@"))
	}
}
