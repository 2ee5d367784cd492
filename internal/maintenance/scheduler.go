// Package maintenance runs periodic upkeep outside the request path: it keeps
// identity sequences ahead of the stored ids and refreshes cached column
// sets.
package maintenance

import (
	"context"
	"errors"
	"time"

	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-reservation-engine/internal/database"
	"github.com/iliyamo/event-reservation-engine/internal/sequence"
)

// Syncer is implemented by *sequence.Synchronizer.
type Syncer interface {
	SyncAll(ctx context.Context, q database.Querier, targets []sequence.Target) error
}

// Warmer is implemented by *schema.Introspector.
type Warmer interface {
	Invalidate(ctx context.Context, table string) error
	Warm(ctx context.Context, tables ...string) error
}

// Tables whose columns the engine inspects on every booking.
var Tables = []string{"event", "reservation", "provider"}

type Scheduler struct {
	cron    *cron.Cron
	db      database.Querier
	seq     Syncer
	cols    Warmer
	targets []sequence.Target
	timeout time.Duration
	log     *logrus.Logger
}

// New registers the upkeep job on spec, a robfig cron expression such as
// "@every 15m" or "0 */6 * * *".
func New(spec string, db database.Querier, seq Syncer, cols Warmer, targets []sequence.Target, log *logrus.Logger) (*Scheduler, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Scheduler{
		cron:    cron.New(),
		db:      db,
		seq:     seq,
		cols:    cols,
		targets: targets,
		timeout: time.Minute,
		log:     log,
	}
	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			s.log.WithError(err).Warn("[maintenance] run failed")
		}
	}); err != nil {
		return nil, err
	}
	return s, nil
}

// RunOnce syncs every sequence target and reloads the cached columns. Both
// steps run even if the first fails.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()
	var errs []error
	if s.seq != nil && len(s.targets) > 0 {
		if err := s.seq.SyncAll(ctx, s.db, s.targets); err != nil {
			errs = append(errs, err)
		}
	}
	if s.cols != nil {
		for _, t := range Tables {
			if err := s.cols.Invalidate(ctx, t); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.cols.Warm(ctx, Tables...); err != nil {
			errs = append(errs, err)
		}
	}
	s.log.WithField("took", time.Since(start)).Debug("[maintenance] run finished")
	return errors.Join(errs...)
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running job to return or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
