// Package daemon wires the configured database, entity sources, plugins and
// the reconciliation engine together and runs the periodic jobs: the
// integrity sweep, due-event execution, the ended-seat sweep and cycle
// expiry.
package daemon

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/claudia-sync/claudia/internal/config"
	"github.com/claudia-sync/claudia/internal/db/dsn"
	"github.com/claudia-sync/claudia/internal/db/models"
	"github.com/claudia-sync/claudia/internal/engine"
	"github.com/claudia-sync/claudia/internal/engine/cycle"
	"github.com/claudia-sync/claudia/internal/engine/queue"
	"github.com/claudia-sync/claudia/internal/ledger"
	"github.com/claudia-sync/claudia/internal/mappable"
	"github.com/claudia-sync/claudia/internal/members"
)

const (
	eventPollInterval    = time.Minute
	seatSweepInterval    = time.Hour
	cycleJanitorInterval = time.Hour
	// seatSweepWindow bounds how far back the first ended-seat sweep looks.
	seatSweepWindow = 7 * 24 * time.Hour
)

// Daemon is the assembled engine with its database and configuration.
type Daemon struct {
	cfg    *config.Config
	db     *gorm.DB
	engine *engine.Engine

	lastSeatSweep time.Time
}

// New assembles a Daemon from the configuration: it opens the database,
// migrates the ledger's own tables, registers the entity sources and
// builds the plugin chain.
func New(ctx context.Context, cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	dialector, err := dsn.Dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	// The member administration owns and migrates its own tables; only the
	// ledger's tables are migrated here.
	if err = db.AutoMigrate(models.All()...); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	registry := mappable.NewRegistry()
	if err = members.RegisterAll(registry, db, db); err != nil {
		return nil, errors.Wrap(err, "failed to register entity sources")
	}

	plugins, err := buildPlugins(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build plugins")
	}

	l := ledger.New(db, registry, cfg.Engine)
	q := queue.New(db, cycle.NewStore(db, cfg.Engine.CycleTTL), cfg.Engine.RetryCeiling)

	return &Daemon{
		cfg:    cfg,
		db:     db,
		engine: engine.New(l, q, plugins, cfg.Engine),
	}, nil
}

// Engine exposes the assembled engine for one-shot commands.
func (d *Daemon) Engine() *engine.Engine { return d.engine }

// DB exposes the database connection for one-shot commands.
func (d *Daemon) DB() *gorm.DB { return d.db }

// Start runs the workers and periodic jobs until the context is cancelled.
func (d *Daemon) Start(ctx context.Context) error {
	log.Info().Int("workers", d.cfg.Engine.Workers).
		Strs("plugins", d.cfg.Engine.Plugins).
		Msg("starting reconciliation engine")

	if d.cfg.Engine.MetricsListen != "" {
		go d.serveMetrics(ctx)
	}

	go d.runJobs(ctx)

	// One full sweep on startup so a freshly configured backend converges
	// without waiting for the first interval.
	if _, err := d.engine.CheckIntegrity(true); err != nil {
		log.Error().Err(err).Msg("startup integrity sweep failed")
	}

	d.engine.RunWorkers(ctx, d.cfg.Engine.Workers)

	log.Info().Msg("reconciliation engine stopped")

	return nil
}

func (d *Daemon) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              d.cfg.Engine.MetricsListen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("metrics listener failed")
	}
}

func (d *Daemon) runJobs(ctx context.Context) {
	integrity := time.NewTicker(d.cfg.Engine.IntegrityInterval)
	events := time.NewTicker(eventPollInterval)
	seats := time.NewTicker(seatSweepInterval)
	janitor := time.NewTicker(cycleJanitorInterval)
	defer integrity.Stop()
	defer events.Stop()
	defer seats.Stop()
	defer janitor.Stop()

	d.lastSeatSweep = time.Now().Add(-seatSweepWindow)

	for {
		select {
		case <-ctx.Done():
			return
		case <-integrity.C:
			if _, err := d.engine.CheckIntegrity(true); err != nil {
				log.Error().Err(err).Msg("integrity sweep failed")
			}
		case <-events.C:
			if err := d.engine.ExecuteDueEvents(time.Now()); err != nil {
				log.Error().Err(err).Msg("event execution failed")
			}
		case <-seats.C:
			if err := d.sweepEndedSeats(); err != nil {
				log.Error().Err(err).Msg("ended seat sweep failed")
			}
		case <-janitor.C:
			if n, err := d.engine.Queue().Cycles().Expire(time.Now()); err != nil {
				log.Error().Err(err).Msg("cycle expiry failed")
			} else if n > 0 {
				log.Info().Int64("cycles", n).Msg("expired stale cycles")
			}
		}
	}
}

// sweepEndedSeats re-verifies committees whose seats ended since the last
// sweep, so ex-members are deactivated without waiting for the daily
// integrity sweep.
func (d *Daemon) sweepEndedSeats() error {
	now := time.Now()

	var seats []members.CommitteeMember
	err := d.db.Where("end_date IS NOT NULL AND end_date > ? AND end_date <= ?",
		d.lastSeatSweep, now).Find(&seats).Error
	if err != nil {
		return err
	}
	d.lastSeatSweep = now

	triggered := map[uint]bool{}
	for _, seat := range seats {
		if triggered[seat.CommitteeID] {
			continue
		}
		triggered[seat.CommitteeID] = true

		ent, err := d.engine.Ledger().Registry().Resolve(models.MappingTypeCommittee, seat.CommitteeID)
		if err != nil {
			log.Warn().Err(err).Uint("committee", seat.CommitteeID).
				Msg("cannot resolve committee with ended seat")
			continue
		}
		if _, err := d.engine.TriggerEntity(ent, true); err != nil {
			log.Error().Err(err).Uint("committee", seat.CommitteeID).
				Msg("failed to trigger committee verification")
		}
	}

	return nil
}
