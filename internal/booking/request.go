package booking

import (
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/event-reservation-engine/internal/invoice"
)

// Request is everything needed to book an event in one transaction.
type Request struct {
	UserID            uint64          `json:"userId" validate:"required"`
	Event             EventInput      `json:"event"`
	Providers         []ProviderLine  `json:"providers" validate:"dive"`
	GuestCount        *int            `json:"guestCount" validate:"omitempty,min=0"`
	Guests            []GuestInput    `json:"guests"`
	IdentityReference string          `json:"identityReference" validate:"max=40"`
	CategoryID        *uint64         `json:"categoryId"`
	PlanTier          *int            `json:"planTier" validate:"omitempty,min=0"`
	Subtotal          *float64        `json:"subtotal" validate:"omitempty,min=0"`
	Tax               *float64        `json:"tax" validate:"omitempty,min=0"`
	Total             *float64        `json:"total" validate:"omitempty,min=0"`
	Payment           invoice.Payment `json:"-"`
}

type EventInput struct {
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description"`
	Start       time.Time `json:"start" validate:"required"`
	End         time.Time `json:"end" validate:"required"`
}

// ProviderLine selects a provider. The window defaults to the event window
// and Price, when sent, is used instead of the catalogue price.
type ProviderLine struct {
	ProviderID uint64     `json:"providerId" validate:"required"`
	StartTime  *time.Time `json:"startTime"`
	EndTime    *time.Time `json:"endTime"`
	Price      *float64   `json:"price" validate:"omitempty,min=0"`
}

type GuestInput struct {
	Name       string  `json:"name" validate:"max=160"`
	Email      *string `json:"email" validate:"omitempty,max=160"`
	Phone      *string `json:"phone" validate:"omitempty,max=40"`
	Companions int     `json:"companions" validate:"min=0"`
	Notes      *string `json:"notes"`
}

// Window returns the booking window of the line inside ev.
func (l ProviderLine) Window(ev EventInput) (time.Time, time.Time) {
	start, end := ev.Start, ev.End
	if l.StartTime != nil {
		start = *l.StartTime
	}
	if l.EndTime != nil {
		end = *l.EndTime
	}
	return start, end
}

// NamedGuests drops guests whose name is blank.
func (r Request) NamedGuests() []GuestInput {
	out := make([]GuestInput, 0, len(r.Guests))
	for _, g := range r.Guests {
		if strings.TrimSpace(g.Name) == "" {
			continue
		}
		out = append(out, g)
	}
	return out
}

// Headcount is GuestCount when sent, otherwise the named guests plus their
// companions.
func (r Request) Headcount() int {
	if r.GuestCount != nil {
		return *r.GuestCount
	}
	n := 0
	for _, g := range r.NamedGuests() {
		n += 1 + g.Companions
	}
	return n
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the request shape. trustTotals tells whether a caller
// subtotal alone is enough to price the booking.
func (r Request) Validate(trustTotals bool) error {
	var problems []string
	if err := validate.Struct(r); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, fieldProblem("", fe))
		}
	}
	// blank-name guests are dropped before insert, so only named ones count
	for i, g := range r.Guests {
		if strings.TrimSpace(g.Name) == "" {
			continue
		}
		if err := validate.Struct(g); err != nil {
			verrs, ok := err.(validator.ValidationErrors)
			if !ok {
				return err
			}
			for _, fe := range verrs {
				problems = append(problems, fieldProblem("guests["+strconv.Itoa(i)+"].", fe))
			}
		}
	}
	problems = append(problems, r.Payment.Problems()...)

	if r.Event.Name != "" && strings.TrimSpace(r.Event.Name) == "" {
		problems = append(problems, "event.name must not be blank")
	}
	if !r.Event.Start.IsZero() && !r.Event.End.IsZero() && !r.Event.Start.Before(r.Event.End) {
		problems = append(problems, "event.end must be after event.start")
	}
	for i, l := range r.Providers {
		if start, end := l.Window(r.Event); !start.Before(end) {
			problems = append(problems, "providers["+strconv.Itoa(i)+"] window must end after it starts")
		}
	}
	if len(r.Providers) == 0 && (r.Subtotal == nil || !trustTotals) {
		problems = append(problems, "providers or subtotal are required to compute totals")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// fieldProblem names the failing field by its JSON path under prefix.
func fieldProblem(prefix string, fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:] // drop the Go type name
	}
	field = prefix + field
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fe.Param()
	case "max":
		return field + " must be at most " + fe.Param()
	}
	return field + " failed " + fe.Tag()
}
