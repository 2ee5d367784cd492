package model

import "time"

// Provider is a catalogue entry for a service vendor. The engine only reads
// providers; PerGuestPrice, Category, CategoryTypeID and PlanTier are nil when
// the deployment's schema lacks the column or the row leaves it empty.
type Provider struct {
	ID             uint64   // provider.id
	Name           string   // provider.name
	BasePrice      float64  // provider.base_price
	PerGuestPrice  *float64 // provider.per_guest_price
	Category       *string  // provider.category or provider_category.name
	CategoryTypeID *uint64  // provider.category_type_id
	PlanTier       *int     // provider.plan_tier
}

// ProviderBooking attaches one provider to an event for a time window at a
// price frozen when the booking is made. Windows of the same provider never
// overlap.
type ProviderBooking struct {
	ID             uint64    // provider_booking.id
	EventID        uint64    // provider_booking.event_id
	ProviderID     uint64    // provider_booking.provider_id
	CategoryTypeID *uint64   // provider_booking.category_type_id
	Price          float64   // provider_booking.price
	StartsAt       time.Time // provider_booking.starts_at
	EndsAt         time.Time // provider_booking.ends_at
}
