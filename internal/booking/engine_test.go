package booking

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-reservation-engine/internal/database"
	"github.com/iliyamo/event-reservation-engine/internal/invoice"
	"github.com/iliyamo/event-reservation-engine/internal/model"
	"github.com/iliyamo/event-reservation-engine/internal/queue"
	"github.com/iliyamo/event-reservation-engine/internal/schema"
	"github.com/iliyamo/event-reservation-engine/internal/sequence"
)

var (
	evStart = time.Date(2024, 12, 20, 19, 0, 0, 0, time.UTC)
	evEnd   = time.Date(2024, 12, 21, 1, 0, 0, 0, time.UTC)
	now     = time.Date(2024, 11, 2, 14, 0, 0, 0, time.UTC)
)

func ptr[T any](v T) *T { return &v }

type fakeColumns struct {
	sets        map[string]schema.ColumnSet
	invalidated []string
}

func (f *fakeColumns) Columns(_ context.Context, _ database.Querier, table string) (schema.ColumnSet, error) {
	set, ok := f.sets[table]
	if !ok {
		return nil, errors.New("unknown table " + table)
	}
	return set, nil
}

func (f *fakeColumns) Invalidate(_ context.Context, table string) error {
	f.invalidated = append(f.invalidated, table)
	return nil
}

type fakeSequences struct {
	transactional bool
	calls         []database.Querier
}

func (f *fakeSequences) Transactional() bool { return f.transactional }

func (f *fakeSequences) SyncAll(_ context.Context, q database.Querier, _ []sequence.Target) error {
	f.calls = append(f.calls, q)
	return nil
}

type fakePublisher struct {
	events []queue.ReservationCreatedEvent
}

func (f *fakePublisher) PublishReservationCreated(_ context.Context, ev queue.ReservationCreatedEvent) error {
	f.events = append(f.events, ev)
	return nil
}

type fixture struct {
	db      *sql.DB
	mock    sqlmock.Sqlmock
	columns *fakeColumns
	seq     *fakeSequences
	pub     *fakePublisher
	engine  *Engine
}

func newFixture(t *testing.T, dialect database.Dialect) *fixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:   db,
		mock: mock,
		columns: &fakeColumns{sets: map[string]schema.ColumnSet{
			"event":       schema.NewColumnSet("id", "name", "description", "starts_at", "ends_at", "total_price", "plan_tier", "created_by"),
			"reservation": schema.NewColumnSet("id", "event_id", "user_id", "subtotal", "tax", "total", "created_at", "guest_count", "identity_ref"),
			"provider":    schema.NewColumnSet("id", "name", "base_price", "per_guest_price", "category", "plan_tier"),
		}},
		seq: &fakeSequences{transactional: dialect.TransactionalSequences()},
		pub: &fakePublisher{},
	}
	log, _ := test.NewNullLogger()
	opts := DefaultOptions()
	opts.Now = func() time.Time { return now }
	f.engine = NewEngine(db, dialect, f.columns, f.seq, f.pub, log, opts)
	return f
}

func providerRow(id uint64, base float64, perGuest any, category string, tier any) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "base_price", "per_guest_price", "category", "category_type_id", "plan_tier"}).
		AddRow(id, "provider", base, perGuest, category, nil, tier)
}

func (f *fixture) expectProviderLookup(row *sqlmock.Rows) {
	f.mock.ExpectExec("SAVEPOINT provider_lookup").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectQuery("FROM provider p WHERE p.id").WillReturnRows(row)
	f.mock.ExpectExec("RELEASE SAVEPOINT provider_lookup").WillReturnResult(sqlmock.NewResult(0, 0))
}

func (f *fixture) expectEventReservationInvoice(eventArgs, reservationArgs, invoiceArgs []driver.Value) {
	f.mock.ExpectQuery("INSERT INTO event").WithArgs(eventArgs...).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	f.mock.ExpectExec("SAVEPOINT sp_reservation").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectQuery("INSERT INTO reservation").WithArgs(reservationArgs...).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(20))
	f.mock.ExpectExec("RELEASE SAVEPOINT sp_reservation").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec("INSERT INTO invoice").WithArgs(invoiceArgs...).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM invoice WHERE reservation_id")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30))
}

func baseRequest() Request {
	return Request{
		UserID: 9,
		Event:  EventInput{Name: "Gala", Start: evStart, End: evEnd},
		Providers: []ProviderLine{
			{ProviderID: 5},
		},
		Guests: []GuestInput{
			{Name: "Ana"},
			{Name: "  "},
			{Name: "Luis", Companions: 2},
		},
	}
}

func TestCreateReservationCommitsEverything(t *testing.T) {
	f := newFixture(t, database.Postgres{})
	anyArg := sqlmock.AnyArg()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM provider WHERE id = $1 FOR UPDATE")).
		WithArgs(uint64(5)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	f.expectProviderLookup(providerRow(5, 999, 10.0, "music", 2))
	// 4 heads (Ana, Luis and two companions) at 10 each
	f.expectEventReservationInvoice(
		[]driver.Value{"Gala", "", evStart, evEnd, 46.0, 2, uint64(9)},
		[]driver.Value{uint64(10), uint64(9), 40.0, 6.0, 46.0, anyArg, 4},
		[]driver.Value{uint64(20), "AUTO-20-1730556000000", invoice.MethodPending, 40.0, 6.0, 46.0, model.PaymentPending, anyArg, nil},
	)
	f.mock.ExpectQuery("FROM provider_booking").WithArgs(uint64(5), evEnd, evStart).
		WillReturnRows(sqlmock.NewRows([]string{"one"}))
	f.mock.ExpectQuery("INSERT INTO provider_booking").
		WithArgs(uint64(10), uint64(5), nil, 40.0, evStart, evEnd).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(50))
	f.mock.ExpectQuery("INSERT INTO guest").WithArgs(uint64(10), "Ana", nil, nil, 0, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(60))
	f.mock.ExpectQuery("INSERT INTO guest").WithArgs(uint64(10), "Luis", nil, nil, 2, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(61))
	f.mock.ExpectCommit()

	res, err := f.engine.CreateReservation(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, Result{ReservationID: 20, EventID: 10, InvoiceID: 30, Total: 46, PaymentState: model.PaymentPending}, res)
	assert.NoError(t, f.mock.ExpectationsWereMet())

	require.Len(t, f.seq.calls, 1)
	require.Len(t, f.pub.events, 1)
	assert.Equal(t, []uint64{5}, f.pub.events[0].ProviderIDs)
	assert.Equal(t, 4, f.pub.events[0].GuestCount)
}

func TestCreateReservationConflictRollsBack(t *testing.T) {
	f := newFixture(t, database.Postgres{})
	anyArg := sqlmock.AnyArg()
	req := baseRequest()
	req.GuestCount = ptr(10)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	f.expectProviderLookup(providerRow(5, 150, nil, "venue", nil))
	f.expectEventReservationInvoice(
		[]driver.Value{"Gala", "", evStart, evEnd, 172.5, 1, uint64(9)},
		[]driver.Value{uint64(10), uint64(9), 150.0, 22.5, 172.5, anyArg, 10},
		[]driver.Value{uint64(20), anyArg, invoice.MethodPending, 150.0, 22.5, 172.5, model.PaymentPending, anyArg, nil},
	)
	f.mock.ExpectQuery("FROM provider_booking").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	f.mock.ExpectRollback()

	_, err := f.engine.CreateReservation(context.Background(), req)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, uint64(5), ce.ProviderID)
	assert.Equal(t, CategoryConflict, Category(err))
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Empty(t, f.pub.events)
}

func TestCreateReservationExclusionViolationIsConflict(t *testing.T) {
	f := newFixture(t, database.Postgres{})
	anyArg := sqlmock.AnyArg()
	req := baseRequest()
	req.Guests = nil
	req.GuestCount = ptr(0)

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	f.expectProviderLookup(providerRow(5, 150, nil, "decor", nil))
	f.expectEventReservationInvoice(
		[]driver.Value{"Gala", "", evStart, evEnd, 172.5, 1, uint64(9)},
		[]driver.Value{uint64(10), uint64(9), 150.0, 22.5, 172.5, anyArg, 0},
		[]driver.Value{uint64(20), anyArg, anyArg, 150.0, 22.5, 172.5, anyArg, anyArg, nil},
	)
	f.mock.ExpectQuery("FROM provider_booking").WillReturnRows(sqlmock.NewRows([]string{"one"}))
	f.mock.ExpectQuery("INSERT INTO provider_booking").WillReturnError(&pgconn.PgError{Code: "23P01"})
	f.mock.ExpectRollback()

	_, err := f.engine.CreateReservation(context.Background(), req)
	assert.Equal(t, CategoryConflict, Category(err))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateReservationGuestFailureRollsBackEverything(t *testing.T) {
	f := newFixture(t, database.Postgres{})
	anyArg := sqlmock.AnyArg()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	f.expectProviderLookup(providerRow(5, 200, nil, "CATERING", 1))
	// catering: 200 per head, 4 heads
	f.expectEventReservationInvoice(
		[]driver.Value{"Gala", "", evStart, evEnd, 920.0, 1, uint64(9)},
		[]driver.Value{uint64(10), uint64(9), 800.0, 120.0, 920.0, anyArg, 4},
		[]driver.Value{uint64(20), anyArg, anyArg, 800.0, 120.0, 920.0, anyArg, anyArg, nil},
	)
	f.mock.ExpectQuery("FROM provider_booking").WillReturnRows(sqlmock.NewRows([]string{"one"}))
	f.mock.ExpectQuery("INSERT INTO provider_booking").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(50))
	f.mock.ExpectQuery("INSERT INTO guest").WithArgs(uint64(10), "Ana", nil, nil, 0, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(60))
	f.mock.ExpectQuery("INSERT INTO guest").WithArgs(uint64(10), "Luis", nil, nil, 2, nil).
		WillReturnError(errors.New("connection reset"))
	f.mock.ExpectRollback()

	_, err := f.engine.CreateReservation(context.Background(), baseRequest())
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "insert guest", pe.Op)
	assert.Equal(t, CategoryServer, Category(err))
	assert.NoError(t, f.mock.ExpectationsWereMet())
	assert.Empty(t, f.pub.events)
}

func TestCreateReservationTrustedTotalsWithoutProviders(t *testing.T) {
	f := newFixture(t, database.Postgres{})
	anyArg := sqlmock.AnyArg()
	req := Request{
		UserID:            9,
		Event:             EventInput{Name: "Bautizo", Description: "familia", Start: evStart, End: evEnd},
		Subtotal:          ptr(100.0),
		IdentityReference: " 0912345678 ",
		Payment:           invoice.ParsePayment([]byte(`{"success":true,"metodo_pago":"Tarjeta"}`)),
	}

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("INSERT INTO event").WithArgs("Bautizo", "familia", evStart, evEnd, 115.0, 1, uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	f.mock.ExpectExec("SAVEPOINT sp_reservation").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectQuery(regexp.QuoteMeta("identity_ref, guest_count")).
		WithArgs(uint64(10), uint64(9), 100.0, 15.0, 115.0, anyArg, "0912345678", 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(20))
	f.mock.ExpectExec("RELEASE SAVEPOINT sp_reservation").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectExec("INSERT INTO invoice").
		WithArgs(uint64(20), anyArg, "Tarjeta", 100.0, 15.0, 115.0, model.PaymentPaid, anyArg, anyArg).
		WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("SELECT id FROM invoice").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30))
	f.mock.ExpectCommit()

	res, err := f.engine.CreateReservation(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 115.0, res.Total)
	assert.Equal(t, model.PaymentPaid, res.PaymentState)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateReservationFallsBackToRequiredEventColumns(t *testing.T) {
	f := newFixture(t, database.Postgres{})
	f.columns.sets["event"] = schema.NewColumnSet("id", "name", "category_id")
	f.columns.sets["reservation"] = schema.NewColumnSet("id")
	req := Request{UserID: 9, Event: EventInput{Name: "Gala", Start: evStart, End: evEnd},
		Subtotal: ptr(10.0), CategoryID: ptr(uint64(3))}

	f.mock.ExpectBegin()
	f.mock.ExpectExec("SAVEPOINT sp_event").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectQuery(regexp.QuoteMeta("created_by, category_id)")).WillReturnError(&pgconn.PgError{Code: "42703"})
	f.mock.ExpectExec("ROLLBACK TO SAVEPOINT sp_event").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectQuery(regexp.QuoteMeta("created_by) VALUES")).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	f.mock.ExpectQuery("INSERT INTO reservation").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(20))
	f.mock.ExpectExec("INSERT INTO invoice").WillReturnResult(sqlmock.NewResult(0, 1))
	f.mock.ExpectQuery("SELECT id FROM invoice").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30))
	f.mock.ExpectCommit()

	_, err := f.engine.CreateReservation(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"event"}, f.columns.invalidated)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateReservationSecondSchemaFailureIsFatal(t *testing.T) {
	f := newFixture(t, database.Postgres{})
	f.columns.sets["event"] = schema.NewColumnSet("id", "venue_provider_id")
	req := baseRequest()

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	f.expectProviderLookup(providerRow(5, 100, nil, "venue", nil))
	f.mock.ExpectExec("SAVEPOINT sp_event").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectQuery("venue_provider_id").WillReturnError(&pgconn.PgError{Code: "42703"})
	f.mock.ExpectExec("ROLLBACK TO SAVEPOINT sp_event").WillReturnResult(sqlmock.NewResult(0, 0))
	f.mock.ExpectQuery("INSERT INTO event").WillReturnError(&pgconn.PgError{Code: "42703"})
	f.mock.ExpectRollback()

	_, err := f.engine.CreateReservation(context.Background(), req)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "event", se.Table)
	assert.Equal(t, CategoryServer, Category(err))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateReservationUnknownProviderIsValidation(t *testing.T) {
	f := newFixture(t, database.Postgres{})

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE").WithArgs(uint64(5)).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	f.mock.ExpectRollback()

	_, err := f.engine.CreateReservation(context.Background(), baseRequest())
	assert.Equal(t, CategoryValidation, Category(err))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateReservationProviderWithoutCategoryIsValidation(t *testing.T) {
	f := newFixture(t, database.Postgres{})

	f.mock.ExpectBegin()
	f.mock.ExpectQuery("FOR UPDATE").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	f.expectProviderLookup(providerRow(5, 100, nil, "", nil))
	f.mock.ExpectRollback()

	_, err := f.engine.CreateReservation(context.Background(), baseRequest())
	assert.Equal(t, CategoryValidation, Category(err))
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateReservationValidationTouchesNoDatabase(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"no user", func(r *Request) { r.UserID = 0 }},
		{"no event name", func(r *Request) { r.Event.Name = "" }},
		{"blank event name", func(r *Request) { r.Event.Name = "   " }},
		{"missing start", func(r *Request) { r.Event.Start = time.Time{} }},
		{"end before start", func(r *Request) { r.Event.End = evStart.Add(-time.Hour) }},
		{"nothing to price", func(r *Request) { r.Providers = nil }},
		{"negative companions", func(r *Request) { r.Guests[2].Companions = -1 }},
		{"oversize payment method", func(r *Request) { r.Payment.Method = strings.Repeat("x", 41) }},
		{"empty line window", func(r *Request) { r.Providers[0].EndTime = ptr(evStart) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, database.Postgres{})
			req := baseRequest()
			tt.mutate(&req)

			_, err := f.engine.CreateReservation(context.Background(), req)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.NotEmpty(t, ve.Problems)
			assert.Empty(t, f.seq.calls)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestCreateReservationMySQLSyncsSequencesBeforeBegin(t *testing.T) {
	f := newFixture(t, database.MySQL{})
	f.columns.sets["reservation"] = schema.NewColumnSet("id")
	req := Request{UserID: 9, Event: EventInput{Name: "Gala", Start: evStart, End: evEnd}, Subtotal: ptr(10.0)}

	f.mock.ExpectBegin()
	f.mock.ExpectExec("INSERT INTO event").WillReturnResult(sqlmock.NewResult(10, 1))
	f.mock.ExpectExec("INSERT INTO reservation").WillReturnResult(sqlmock.NewResult(20, 1))
	f.mock.ExpectExec(regexp.QuoteMeta("ON DUPLICATE KEY UPDATE")).WillReturnResult(sqlmock.NewResult(30, 1))
	f.mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM invoice WHERE reservation_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30))
	f.mock.ExpectCommit()

	res, err := f.engine.CreateReservation(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), res.ReservationID)
	require.Len(t, f.seq.calls, 1)
	assert.Equal(t, f.db, f.seq.calls[0])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestCreateReservationLoadsColumnsInsideTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	// one connection, held by the booking transaction
	db.SetMaxOpenConns(1)

	log, _ := test.NewNullLogger()
	opts := DefaultOptions()
	opts.Now = func() time.Time { return now }
	columns := schema.NewIntrospector(db, database.Postgres{}, nil, 0, log)
	engine := NewEngine(db, database.Postgres{}, columns, &fakeSequences{transactional: true}, &fakePublisher{}, log, opts)

	catalog := func(names ...string) *sqlmock.Rows {
		rows := sqlmock.NewRows([]string{"column_name"})
		for _, n := range names {
			rows.AddRow(n)
		}
		return rows
	}
	anyArg := sqlmock.AnyArg()
	req := baseRequest()
	req.Guests = nil
	req.GuestCount = ptr(0)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs(uint64(5)).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectQuery("information_schema.columns").WithArgs("provider").
		WillReturnRows(catalog("id", "name", "base_price", "per_guest_price", "category", "plan_tier"))
	mock.ExpectExec("SAVEPOINT provider_lookup").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM provider p WHERE p.id").WillReturnRows(providerRow(5, 150, nil, "venue", nil))
	mock.ExpectExec("RELEASE SAVEPOINT provider_lookup").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("information_schema.columns").WithArgs("event").
		WillReturnRows(catalog("id", "name", "description", "starts_at", "ends_at", "total_price", "plan_tier", "created_by"))
	mock.ExpectQuery("INSERT INTO event").WithArgs("Gala", "", evStart, evEnd, 172.5, 1, uint64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mock.ExpectQuery("information_schema.columns").WithArgs("reservation").
		WillReturnRows(catalog("id", "event_id", "user_id", "subtotal", "tax", "total", "created_at", "guest_count"))
	mock.ExpectExec("SAVEPOINT sp_reservation").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("INSERT INTO reservation").WithArgs(uint64(10), uint64(9), 150.0, 22.5, 172.5, anyArg, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(20))
	mock.ExpectExec("RELEASE SAVEPOINT sp_reservation").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO invoice").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT id FROM invoice").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(30))
	mock.ExpectQuery("FROM provider_booking").WillReturnRows(sqlmock.NewRows([]string{"one"}))
	mock.ExpectQuery("INSERT INTO provider_booking").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(50))
	mock.ExpectCommit()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := engine.CreateReservation(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), res.ReservationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
