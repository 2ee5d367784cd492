// Package pricing resolves the price a provider charges for an event.
//
// Two policies exist. Providers with a per-guest price, and catering
// providers, scale with the guest count; every other provider charges its
// flat base price.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/iliyamo/event-reservation-engine/internal/database"
	"github.com/iliyamo/event-reservation-engine/internal/model"
)

// CateringCategory is the category label priced per guest from the base price.
const CateringCategory = "catering"

// ErrMissingCategory is returned for providers without a resolvable category.
var ErrMissingCategory = errors.New("provider has no category")

// ProviderLookup loads a provider row.
type ProviderLookup interface {
	FindProvider(ctx context.Context, q database.Querier, id uint64) (model.Provider, error)
}

// Quote is the resolved pricing of one provider line.
type Quote struct {
	ProviderID     uint64
	Price          float64
	Category       string
	CategoryTypeID *uint64
	PlanTier       *int
}

type Resolver struct {
	lookup ProviderLookup
}

func NewResolver(lookup ProviderLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve looks up providerID and prices it for guestCount guests. A non-nil
// override is used as the price verbatim.
func (r *Resolver) Resolve(ctx context.Context, q database.Querier, providerID uint64, guestCount int, override *float64) (Quote, error) {
	p, err := r.lookup.FindProvider(ctx, q, providerID)
	if err != nil {
		return Quote{}, err
	}
	category := ""
	if p.Category != nil {
		category = strings.TrimSpace(*p.Category)
	}
	if category == "" {
		return Quote{}, fmt.Errorf("provider %d: %w", providerID, ErrMissingCategory)
	}

	quote := Quote{
		ProviderID:     p.ID,
		Category:       category,
		CategoryTypeID: p.CategoryTypeID,
		PlanTier:       p.PlanTier,
	}
	if override != nil {
		quote.Price = *override
	} else {
		quote.Price = Price(p, guestCount)
	}
	return quote, nil
}

// Price applies the pricing policy to p.
func Price(p model.Provider, guestCount int) float64 {
	guests := float64(max(guestCount, 0))
	if p.PerGuestPrice != nil && !math.IsNaN(*p.PerGuestPrice) {
		return Round2(*p.PerGuestPrice * guests)
	}
	if p.Category != nil && IsCatering(*p.Category) {
		return Round2(p.BasePrice * guests)
	}
	return p.BasePrice
}

func IsCatering(category string) bool {
	return strings.EqualFold(strings.TrimSpace(category), CateringCategory)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
