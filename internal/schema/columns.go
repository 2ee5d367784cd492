// Package schema discovers which optional columns a deployment's tables carry
// so insert builders can adapt to schema drift instead of failing.
package schema

import "sort"

// ColumnSet is the set of column names of one table.
type ColumnSet map[string]struct{}

func NewColumnSet(cols ...string) ColumnSet {
	s := make(ColumnSet, len(cols))
	for _, c := range cols {
		s[c] = struct{}{}
	}
	return s
}

func (s ColumnSet) Has(col string) bool {
	_, ok := s[col]
	return ok
}

// Names returns the columns in sorted order.
func (s ColumnSet) Names() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// EventColumns flags the optional columns of the event table.
type EventColumns struct {
	CategoryID         bool
	MusicProviderID    bool
	CateringProviderID bool
	DecorProviderID    bool
	VenueProviderID    bool
}

func EventColumnsFrom(s ColumnSet) EventColumns {
	return EventColumns{
		CategoryID:         s.Has("category_id"),
		MusicProviderID:    s.Has("music_provider_id"),
		CateringProviderID: s.Has("catering_provider_id"),
		DecorProviderID:    s.Has("decor_provider_id"),
		VenueProviderID:    s.Has("venue_provider_id"),
	}
}

// Any reports whether at least one optional column is present.
func (c EventColumns) Any() bool {
	return c.CategoryID || c.MusicProviderID || c.CateringProviderID || c.DecorProviderID || c.VenueProviderID
}

// ReservationColumns flags the optional columns of the reservation table.
type ReservationColumns struct {
	IdentityRef bool
	GuestCount  bool
}

func ReservationColumnsFrom(s ColumnSet) ReservationColumns {
	return ReservationColumns{
		IdentityRef: s.Has("identity_ref"),
		GuestCount:  s.Has("guest_count"),
	}
}

func (c ReservationColumns) Any() bool { return c.IdentityRef || c.GuestCount }

// ProviderColumns flags the optional columns of the provider table.
type ProviderColumns struct {
	PerGuestPrice  bool
	Category       bool
	CategoryTypeID bool
	PlanTier       bool
}

func ProviderColumnsFrom(s ColumnSet) ProviderColumns {
	return ProviderColumns{
		PerGuestPrice:  s.Has("per_guest_price"),
		Category:       s.Has("category"),
		CategoryTypeID: s.Has("category_type_id"),
		PlanTier:       s.Has("plan_tier"),
	}
}
