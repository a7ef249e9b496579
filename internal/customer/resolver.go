package customer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/vasiliy-maslov/storefront-orders/internal/effect"
)

// ResolveInput identifies the buyer of an order.
type ResolveInput struct {
	AuthID  string
	Email   string
	Address Address
}

// Resolution is the customer an order will belong to.
type Resolution struct {
	CustomerID uuid.UUID
	Created    bool
	// Merge reports the best-effort profile fill on an existing customer.
	Merge effect.Outcome
}

type Resolver interface {
	Resolve(ctx context.Context, in ResolveInput) (Resolution, error)
}

type resolver struct {
	repo Repository
}

func NewResolver(repo Repository) Resolver {
	return &resolver{repo: repo}
}

// Resolve finds the customer by auth identity, then by email, and creates one when neither matches.
// Only a failed create is fatal; a failed profile merge is logged and ignored.
func (r *resolver) Resolve(ctx context.Context, in ResolveInput) (Resolution, error) {
	in.AuthID = strings.TrimSpace(in.AuthID)
	if in.Email == "" {
		return Resolution{}, errors.New("resolver: email is required")
	}

	existing, err := r.lookup(ctx, in)
	if err != nil {
		return Resolution{}, err
	}

	if existing != nil {
		return Resolution{CustomerID: existing.ID, Merge: r.merge(ctx, existing, in)}, nil
	}

	created := newCustomer(in)
	err = r.repo.Create(ctx, created)
	if errors.Is(err, ErrCustomerExists) {
		// Another checkout created the same email between lookup and insert.
		log.Warn().Str("email", in.Email).Msg("resolver: customer created concurrently, retrying lookup")
		existing, lookupErr := r.repo.GetByEmail(ctx, in.Email)
		if lookupErr != nil {
			return Resolution{}, fmt.Errorf("resolver: failed to reload concurrently created customer: %w", lookupErr)
		}
		return Resolution{CustomerID: existing.ID, Merge: r.merge(ctx, existing, in)}, nil
	}
	if err != nil {
		log.Error().Err(err).Str("email", in.Email).Msg("resolver: failed to create customer")
		return Resolution{}, fmt.Errorf("resolver: failed to create customer: %w", err)
	}

	log.Info().Stringer("customer_id", created.ID).Msg("resolver: customer created")

	return Resolution{CustomerID: created.ID, Created: true, Merge: effect.Skipped("customer.merge")}, nil
}

func (r *resolver) lookup(ctx context.Context, in ResolveInput) (*Customer, error) {
	if in.AuthID != "" {
		c, err := r.repo.GetByAuthID(ctx, in.AuthID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrCustomerNotFound) {
			return nil, fmt.Errorf("resolver: failed to look up customer by auth id: %w", err)
		}
	}

	c, err := r.repo.GetByEmail(ctx, in.Email)
	if err == nil {
		return c, nil
	}
	if errors.Is(err, ErrCustomerNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("resolver: failed to look up customer by email: %w", err)
}

func (r *resolver) merge(ctx context.Context, existing *Customer, in ResolveInput) effect.Outcome {
	patch := gapsFilledBy(existing, in)
	if patch.IsEmpty() {
		return effect.Skipped("customer.merge")
	}

	return effect.Run(ctx, "customer.merge", func(ctx context.Context) error {
		return r.repo.FillMissing(ctx, existing.ID, patch)
	})
}

// gapsFilledBy returns the fields of in that would fill an empty field of existing.
func gapsFilledBy(existing *Customer, in ResolveInput) Patch {
	var p Patch
	fill := func(dst **string, stored *string, incoming string) {
		if blank(stored) {
			*dst = optional(incoming)
		}
	}

	a := in.Address
	fill(&p.AuthID, existing.AuthID, in.AuthID)
	fill(&p.Phone, existing.Phone, a.Phone)
	fill(&p.FirstName, existing.FirstName, a.FirstName)
	fill(&p.LastName, existing.LastName, a.LastName)
	fill(&p.Address1, existing.Address1, a.Address1)
	fill(&p.Address2, existing.Address2, a.Address2)
	fill(&p.City, existing.City, a.City)
	fill(&p.Province, existing.Province, a.Province)
	fill(&p.Zip, existing.Zip, a.Zip)
	fill(&p.CountryCode, existing.CountryCode, a.CountryCode)
	return p
}

func newCustomer(in ResolveInput) *Customer {
	a := in.Address
	c := &Customer{
		AuthID:      optional(in.AuthID),
		Email:       in.Email,
		Phone:       optional(a.Phone),
		FirstName:   optional(a.FirstName),
		LastName:    optional(a.LastName),
		Address1:    optional(a.Address1),
		Address2:    optional(a.Address2),
		City:        optional(a.City),
		Province:    optional(a.Province),
		Zip:         optional(a.Zip),
		CountryCode: optional(a.CountryCode),
		Type:        TypeShipping,
	}
	if c.CountryCode == nil {
		code := DefaultCountryCode
		c.CountryCode = &code
	}
	return c
}
