package daemon

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// maintenance runs the daemon's periodic housekeeping: idle-session
// eviction, delivery-history pruning and queue stat logging.
type maintenance struct {
	daemon *Daemon
	cron   *cron.Cron
	logger zerolog.Logger
}

func newMaintenance(d *Daemon) *maintenance {
	return &maintenance{
		daemon: d,
		cron:   cron.New(),
		logger: d.logger.With().Str("component", "maintenance").Logger(),
	}
}

func (m *maintenance) start() {
	if _, err := m.cron.AddFunc("@every 1m", m.evictSessions); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to schedule session eviction")
	}
	if _, err := m.cron.AddFunc("@every 30s", m.logQueueStats); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to schedule queue stats")
	}
	if m.daemon.history != nil {
		if _, err := m.cron.AddFunc("@daily", m.pruneHistory); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to schedule history pruning")
		}
	}

	m.cron.Start()
	m.logger.Info().Msg("Maintenance scheduler started")
}

func (m *maintenance) stop() {
	ctx := m.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		m.logger.Warn().Msg("Timed out waiting for maintenance jobs")
	}
}

func (m *maintenance) evictSessions() {
	d := m.daemon
	ttl := time.Duration(d.config.Session.TTLMinutes) * time.Minute

	evicted := d.sessions.EvictIdle(ttl, d.config.Session.MaxSessions)
	if evicted > 0 && d.metrics != nil {
		d.metrics.SessionsEvicted.Add(float64(evicted))
	}
}

func (m *maintenance) logQueueStats() {
	for lane, stats := range m.daemon.queue.Stats() {
		if stats["queued"] > 0 || stats["running"] > 0 {
			m.logger.Debug().
				Str("lane", lane).
				Int("queued", stats["queued"]).
				Int("running", stats["running"]).
				Msg("Queue stats")
		}
	}
}

func (m *maintenance) pruneHistory() {
	d := m.daemon
	retention := time.Duration(d.config.History.RetentionDays) * 24 * time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := d.history.PruneOlderThan(ctx, retention); err != nil {
		m.logger.Warn().Err(err).Msg("History pruning failed")
	}
}
