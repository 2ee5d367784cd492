package model

// Guest is a named invitee of an event.
type Guest struct {
	ID         uint64  // guest.id
	EventID    uint64  // guest.event_id
	Name       string  // guest.name
	Email      *string // guest.email
	Phone      *string // guest.phone
	Companions int     // guest.companions
	Notes      *string // guest.notes
}
