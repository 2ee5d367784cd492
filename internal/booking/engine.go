// Package booking turns a booking request into an event, its reservation,
// invoice, provider bookings and guests, written in one transaction.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-reservation-engine/internal/database"
	"github.com/iliyamo/event-reservation-engine/internal/invoice"
	"github.com/iliyamo/event-reservation-engine/internal/model"
	"github.com/iliyamo/event-reservation-engine/internal/pricing"
	"github.com/iliyamo/event-reservation-engine/internal/queue"
	"github.com/iliyamo/event-reservation-engine/internal/repository"
	"github.com/iliyamo/event-reservation-engine/internal/schema"
	"github.com/iliyamo/event-reservation-engine/internal/sequence"
)

// ColumnInspector reports the columns of a table and forgets them on demand.
// Columns must read through q: the engine holds one pooled connection for
// the whole transaction and never asks the pool for a second.
type ColumnInspector interface {
	Columns(ctx context.Context, q database.Querier, table string) (schema.ColumnSet, error)
	Invalidate(ctx context.Context, table string) error
}

// SequenceSyncer advances identity generators past the stored ids.
type SequenceSyncer interface {
	Transactional() bool
	SyncAll(ctx context.Context, q database.Querier, targets []sequence.Target) error
}

// Publisher announces committed reservations.
type Publisher interface {
	PublishReservationCreated(ctx context.Context, ev queue.ReservationCreatedEvent) error
}

// Options tune the engine.
type Options struct {
	Isolation         sql.IsolationLevel
	TaxRate           float64
	PlanTierDefault   int
	PlanTierMixed     int
	TrustClientTotals bool
	SequenceTargets   []sequence.Target
	Now               func() time.Time
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		Isolation:         sql.LevelReadCommitted,
		TaxRate:           0.15,
		PlanTierDefault:   1,
		PlanTierMixed:     4,
		TrustClientTotals: true,
		SequenceTargets:   []sequence.Target{{Table: "event", Column: "id"}, {Table: "reservation", Column: "id"}},
		Now:               time.Now,
	}
}

// Result is returned for a committed reservation.
type Result struct {
	ReservationID uint64  `json:"reservationId"`
	EventID       uint64  `json:"eventId"`
	InvoiceID     uint64  `json:"invoiceId"`
	Total         float64 `json:"total"`
	PaymentState  string  `json:"paymentState"`
}

// Engine coordinates the reservation transaction.
type Engine struct {
	db        *sql.DB
	columns   ColumnInspector
	sequences SequenceSyncer
	publisher Publisher
	log       *logrus.Logger
	opts      Options

	resolver     *pricing.Resolver
	events       *repository.EventRepo
	reservations *repository.ReservationRepo
	providers    *repository.ProviderRepo
	bookings     *repository.ProviderBookingRepo
	guests       *repository.GuestRepo
	invoices     *repository.InvoiceRepo
}

// NewEngine wires the repositories of dialect around db. publisher may be
// nil.
func NewEngine(db *sql.DB, dialect database.Dialect, columns ColumnInspector, sequences SequenceSyncer,
	publisher Publisher, log *logrus.Logger, opts Options) *Engine {
	if db == nil || dialect == nil || columns == nil || sequences == nil {
		panic("nil dependency passed to NewEngine")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	providers := repository.NewProviderRepo(dialect, columns)
	return &Engine{
		db:           db,
		columns:      columns,
		sequences:    sequences,
		publisher:    publisher,
		log:          log,
		opts:         opts,
		resolver:     pricing.NewResolver(providers),
		events:       repository.NewEventRepo(dialect),
		reservations: repository.NewReservationRepo(dialect),
		providers:    providers,
		bookings:     repository.NewProviderBookingRepo(dialect),
		guests:       repository.NewGuestRepo(dialect),
		invoices:     repository.NewInvoiceRepo(dialect),
	}
}

// CreateReservation books req. Either every row is committed or none is;
// errors are *ValidationError, *ConflictError, *SchemaError or
// *PersistenceError.
func (e *Engine) CreateReservation(ctx context.Context, req Request) (Result, error) {
	log := e.log.WithFields(logrus.Fields{"user_id": req.UserID, "event_name": req.Event.Name})

	// Reject malformed input before touching the database.
	if err := req.Validate(e.opts.TrustClientTotals); err != nil {
		log.WithError(err).Info("[booking] request rejected")
		return Result{}, err
	}

	// Sequence adjustments that commit implicitly run before BEGIN.
	if !e.sequences.Transactional() {
		if err := e.sequences.SyncAll(ctx, e.db, e.opts.SequenceTargets); err != nil {
			return Result{}, e.fail(log, "sync sequences", err)
		}
	}

	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{Isolation: e.opts.Isolation})
	if err != nil {
		return Result{}, e.fail(log, "begin transaction", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Sequences, atomically with the inserts below.
	if e.sequences.Transactional() {
		if err := e.sequences.SyncAll(ctx, tx, e.opts.SequenceTargets); err != nil {
			return Result{}, e.fail(log, "sync sequences", err)
		}
	}

	// Provider rows are locked in id order before anything references them.
	// Writes below (event slot columns, provider_booking) take foreign key
	// share locks on the same rows; taking FOR UPDATE after those would let
	// two bookings of one provider deadlock.
	if len(req.Providers) > 0 {
		if err := e.providers.LockTx(ctx, tx, providerIDs(req.Providers)); err != nil {
			return Result{}, e.fail(log, "lock providers", err)
		}
	}

	// Price every line, then totals.
	headcount := req.Headcount()
	quotes := make([]pricing.Quote, len(req.Providers))
	prices := make([]float64, len(req.Providers))
	for i, line := range req.Providers {
		q, err := e.resolver.Resolve(ctx, tx, line.ProviderID, headcount, line.Price)
		if err != nil {
			return Result{}, e.fail(log, "resolve provider price", err)
		}
		quotes[i] = q
		prices[i] = q.Price
	}
	totals, err := e.totals(req, prices, log)
	if err != nil {
		return Result{}, e.fail(log, "compute totals", err)
	}

	var tiers []int
	for _, q := range quotes {
		if q.PlanTier != nil {
			tiers = append(tiers, *q.PlanTier)
		}
	}
	fallback := e.opts.PlanTierDefault
	if req.PlanTier != nil {
		fallback = *req.PlanTier
	}
	plan := PlanTier(tiers, fallback, e.opts.PlanTierMixed)

	ev := model.Event{
		Name:        strings.TrimSpace(req.Event.Name),
		Description: req.Event.Description,
		StartsAt:    req.Event.Start,
		EndsAt:      req.Event.End,
		TotalPrice:  totals.Total,
		PlanTier:    plan,
		CreatedBy:   req.UserID,
		CategoryID:  req.CategoryID,
	}
	fillProviderSlots(&ev, quotes)
	if err := e.insertEvent(ctx, tx, &ev, log); err != nil {
		return Result{}, e.fail(log, "insert event", err)
	}
	log = log.WithField("event_id", ev.ID)

	res := model.Reservation{
		EventID:     ev.ID,
		UserID:      req.UserID,
		IdentityRef: strings.TrimSpace(req.IdentityReference),
		GuestCount:  headcount,
		Subtotal:    totals.Subtotal,
		Tax:         totals.Tax,
		Total:       totals.Total,
		CreatedAt:   e.opts.Now().UTC(),
	}
	if err := e.insertReservation(ctx, tx, &res, log); err != nil {
		return Result{}, e.fail(log, "insert reservation", err)
	}
	log = log.WithField("reservation_id", res.ID)

	inv := invoice.Build(res.ID, req.Payment, totals.Subtotal, totals.Tax, totals.Total, e.opts.Now())
	if err := e.invoices.UpsertTx(ctx, tx, &inv); err != nil {
		return Result{}, e.fail(log, "upsert invoice", err)
	}

	// Provider bookings; the locks taken above serialise concurrent
	// bookings of the same provider through the check and the insert.
	for i, line := range req.Providers {
		start, end := line.Window(req.Event)
		busy, err := e.bookings.HasOverlapTx(ctx, tx, line.ProviderID, start, end)
		if err != nil {
			return Result{}, e.fail(log, "check provider availability", err)
		}
		if busy {
			return Result{}, e.fail(log, "check provider availability",
				&ConflictError{ProviderID: line.ProviderID, Start: start, End: end})
		}
		pb := model.ProviderBooking{
			EventID:        ev.ID,
			ProviderID:     line.ProviderID,
			CategoryTypeID: quotes[i].CategoryTypeID,
			Price:          quotes[i].Price,
			StartsAt:       start,
			EndsAt:         end,
		}
		if err := e.bookings.CreateTx(ctx, tx, &pb); err != nil {
			if errors.Is(err, database.ErrExclusionViolation) {
				err = &ConflictError{ProviderID: line.ProviderID, Start: start, End: end}
			}
			return Result{}, e.fail(log, "insert provider booking", err)
		}
	}

	// Guests; blank names are skipped, any failure aborts.
	named := req.NamedGuests()
	for _, g := range named {
		guest := model.Guest{
			EventID:    ev.ID,
			Name:       strings.TrimSpace(g.Name),
			Email:      g.Email,
			Phone:      g.Phone,
			Companions: g.Companions,
			Notes:      g.Notes,
		}
		if err := e.guests.CreateTx(ctx, tx, &guest); err != nil {
			return Result{}, e.fail(log, "insert guest", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Result{}, e.fail(log, "commit", err)
	}
	committed = true

	log.WithFields(logrus.Fields{
		"total":         totals.Total,
		"providers":     len(req.Providers),
		"guests":        len(named),
		"payment_state": inv.PaymentState,
	}).Info("[booking] reservation committed")

	e.publish(ctx, log, queue.ReservationCreatedEvent{
		ReservationID: res.ID,
		EventID:       ev.ID,
		InvoiceID:     inv.ID,
		UserID:        req.UserID,
		EventName:     ev.Name,
		StartsAt:      ev.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:        ev.EndsAt.UTC().Format(time.RFC3339),
		ProviderIDs:   providerIDs(req.Providers),
		GuestCount:    headcount,
		Subtotal:      totals.Subtotal,
		Tax:           totals.Tax,
		Total:         totals.Total,
		PaymentState:  inv.PaymentState,
		PaymentMethod: inv.PaymentMethod,
		CreatedAt:     res.CreatedAt.Format(time.RFC3339),
	})

	return Result{
		ReservationID: res.ID,
		EventID:       ev.ID,
		InvoiceID:     inv.ID,
		Total:         totals.Total,
		PaymentState:  inv.PaymentState,
	}, nil
}

func (e *Engine) totals(req Request, prices []float64, log *logrus.Entry) (Totals, error) {
	if req.Subtotal != nil {
		if e.opts.TrustClientTotals {
			return TrustedTotals(*req.Subtotal, req.Tax, req.Total, e.opts.TaxRate)
		}
		log.Warn("[booking] ignoring client supplied totals")
	}
	return ComputeTotals(prices, e.opts.TaxRate), nil
}

func (e *Engine) insertEvent(ctx context.Context, tx *sql.Tx, ev *model.Event, log *logrus.Entry) error {
	set, err := e.columns.Columns(ctx, tx, "event")
	if err != nil {
		return &SchemaError{Table: "event", Err: err}
	}
	cols := schema.EventColumnsFrom(set)
	return e.withColumnFallback(ctx, tx, "event", cols.Any(), log,
		func() error { return e.events.CreateTx(ctx, tx, ev, cols) },
		func() error { return e.events.CreateTx(ctx, tx, ev, schema.EventColumns{}) },
	)
}

func (e *Engine) insertReservation(ctx context.Context, tx *sql.Tx, res *model.Reservation, log *logrus.Entry) error {
	set, err := e.columns.Columns(ctx, tx, "reservation")
	if err != nil {
		return &SchemaError{Table: "reservation", Err: err}
	}
	cols := schema.ReservationColumnsFrom(set)
	return e.withColumnFallback(ctx, tx, "reservation", cols.Any(), log,
		func() error { return e.reservations.CreateTx(ctx, tx, res, cols) },
		func() error { return e.reservations.CreateTx(ctx, tx, res, schema.ReservationColumns{}) },
	)
}

// withColumnFallback runs full inside a savepoint. If it fails on a missing
// column the table's cached columns are dropped and reduced, which writes
// required columns only, runs once. A second failure is returned as is.
func (e *Engine) withColumnFallback(ctx context.Context, tx *sql.Tx, table string, optional bool,
	log *logrus.Entry, full, reduced func() error) error {
	if !optional {
		return full()
	}
	err := database.WithSavepoint(ctx, tx, "sp_"+table, full)
	if !errors.Is(err, database.ErrUndefinedColumn) {
		return err
	}

	log.WithError(err).WithField("table", table).Warn("[booking] optional column missing, retrying with required columns")
	if invErr := e.columns.Invalidate(ctx, table); invErr != nil {
		log.WithError(invErr).WithField("table", table).Warn("[booking] column cache invalidation failed")
	}
	if err := reduced(); err != nil {
		if errors.Is(err, database.ErrUndefinedColumn) {
			return &SchemaError{Table: table, Err: err}
		}
		return err
	}
	return nil
}

// fail logs err and converts it into one of the package error types.
func (e *Engine) fail(log *logrus.Entry, op string, err error) error {
	var (
		ve *ValidationError
		ce *ConflictError
		se *SchemaError
		pe *PersistenceError
	)
	switch {
	case errors.As(err, &ve):
		log.WithError(err).Info("[booking] " + op + ": invalid input")
		return ve
	case errors.Is(err, repository.ErrProviderNotFound), errors.Is(err, pricing.ErrMissingCategory):
		log.WithError(err).Info("[booking] " + op + ": invalid provider")
		return &ValidationError{Problems: []string{err.Error()}}
	case errors.As(err, &ce):
		log.WithField("provider_id", ce.ProviderID).Warn("[booking] provider time conflict")
		return ce
	case errors.As(err, &se):
		log.WithError(err).Error("[booking] " + op + ": schema mismatch")
		return se
	case errors.Is(err, database.ErrUndefinedColumn):
		log.WithError(err).Error("[booking] " + op + ": schema mismatch")
		return &SchemaError{Table: op, Err: err}
	case errors.As(err, &pe):
		log.WithError(err).Error("[booking] " + op + " failed")
		return pe
	}
	log.WithError(err).Error("[booking] " + op + " failed")
	return &PersistenceError{Op: op, Err: err}
}

func (e *Engine) publish(ctx context.Context, log *logrus.Entry, ev queue.ReservationCreatedEvent) {
	if e.publisher == nil {
		return
	}
	// the booking is committed; a request cancelled now must not drop the event
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.publisher.PublishReservationCreated(pctx, ev); err != nil {
		log.WithError(err).Warn("[booking] publish reservation.created failed")
	}
}

// fillProviderSlots points the event's per-category slots at the first
// provider of each category.
func fillProviderSlots(ev *model.Event, quotes []pricing.Quote) {
	for _, q := range quotes {
		id := q.ProviderID
		var slot **uint64
		switch strings.ToLower(q.Category) {
		case "music", "musica", "música", "dj":
			slot = &ev.MusicProviderID
		case "catering":
			slot = &ev.CateringProviderID
		case "decor", "decoracion", "decoración", "decoration":
			slot = &ev.DecorProviderID
		case "venue", "local", "salon", "salón":
			slot = &ev.VenueProviderID
		default:
			continue
		}
		if *slot == nil {
			*slot = &id
		}
	}
}

func providerIDs(lines []ProviderLine) []uint64 {
	out := make([]uint64, len(lines))
	for i, l := range lines {
		out[i] = l.ProviderID
	}
	return out
}
