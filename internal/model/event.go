package model

import "time"

// Event is the booked occasion that every other record of a reservation
// hangs off. It is created once per booking transaction.
//
// Fields:
//  ID                 – primary key identifier.
//  Name, Description  – free text supplied by the customer.
//  StartsAt, EndsAt   – event window; StartsAt must precede EndsAt.
//  TotalPrice         – reservation total copied onto the event.
//  PlanTier           – service level; the mixed tier when the selected
//                       providers disagree.
//  CreatedBy          – user that placed the booking.
//  CategoryID         – optional provider category of the event.
//  *ProviderID slots  – optional denormalised pointers per category.
type Event struct {
	ID                 uint64    // event.id
	Name               string    // event.name
	Description        string    // event.description
	StartsAt           time.Time // event.starts_at
	EndsAt             time.Time // event.ends_at
	TotalPrice         float64   // event.total_price
	PlanTier           int       // event.plan_tier
	CreatedBy          uint64    // event.created_by
	CategoryID         *uint64   // event.category_id (optional column)
	MusicProviderID    *uint64   // event.music_provider_id (optional column)
	CateringProviderID *uint64   // event.catering_provider_id (optional column)
	DecorProviderID    *uint64   // event.decor_provider_id (optional column)
	VenueProviderID    *uint64   // event.venue_provider_id (optional column)
}
