// Package daemon wires the bot together and runs it: the update dispatch
// loop, per-chat serialization, scheduled maintenance and the process
// lifecycle.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/farid/maktaba/internal/catalog"
	"github.com/farid/maktaba/internal/config"
	"github.com/farid/maktaba/internal/delivery"
	"github.com/farid/maktaba/internal/history"
	"github.com/farid/maktaba/internal/logger"
	"github.com/farid/maktaba/internal/metrics"
	"github.com/farid/maktaba/internal/navigator"
	"github.com/farid/maktaba/internal/session"
	"github.com/farid/maktaba/internal/telegram"
	"github.com/farid/maktaba/internal/ui"
	"github.com/farid/maktaba/pkg/commandqueue"
)

// Daemon is the assembled bot service
type Daemon struct {
	config  *config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics

	index    *catalog.Index
	watcher  *catalog.Watcher
	sessions *session.Store
	queue    *commandqueue.Queue
	dedup    *commandqueue.Dedup
	history  *history.Store
	nav      *navigator.Navigator
	bot      *telegram.Bot
	commands *telegram.Commands

	maintenance *maintenance
	lifecycle   *LifecycleManager

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	running   bool
	startTime time.Time
}

// Status describes the running daemon
type Status struct {
	Running  bool
	Uptime   time.Duration
	Sessions int
	Lanes    map[string]map[string]int
}

// New assembles a daemon from configuration, initializing components in
// dependency order.
func New(cfg *config.Config, log *logger.Logger) (*Daemon, error) {
	ctx, cancel := context.WithCancel(context.Background())

	d := &Daemon{
		config: cfg,
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := d.initialize(); err != nil {
		cancel()
		return nil, err
	}

	d.lifecycle = NewLifecycleManager(cfg.DataDir, log.GetZerolog())
	d.maintenance = newMaintenance(d)
	return d, nil
}

func (d *Daemon) initialize() error {
	zl := d.logger.GetZerolog()

	if d.config.Metrics.Enabled {
		d.metrics = metrics.New()
	}

	d.index = catalog.New(d.config.Catalog.BasePath, zl)
	d.sessions = session.NewStore(d.config.Session.HistoryCap, zl)
	if d.metrics != nil {
		d.sessions.SetCountHook(func(n int) {
			d.metrics.SessionsActive.Set(float64(n))
		})
	}

	d.queue = commandqueue.New(zl)
	d.dedup = commandqueue.NewDedup(5 * time.Minute)

	bot, err := telegram.New(d.config.Telegram, d.metrics, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram gateway: %w", err)
	}
	d.bot = bot
	d.commands = telegram.NewCommands(bot)

	if d.config.History.Enabled {
		store, err := history.New(d.config.History.Path, zl)
		if err != nil {
			return fmt.Errorf("failed to initialize delivery history: %w", err)
		}
		d.history = store
	}

	renderer := ui.NewRenderer(
		bot,
		d.config.UI.Animate,
		time.Duration(d.config.UI.AnimateDelayMs)*time.Millisecond,
		zl,
	)

	var recorder delivery.Recorder
	if d.history != nil {
		recorder = d.history
	}
	pipeline := delivery.New(d.index, bot, recorder, d.metrics, delivery.Config{
		InterFileDelay:   time.Duration(d.config.Delivery.InterFileDelayMs) * time.Millisecond,
		FileTimeout:      time.Duration(d.config.Delivery.FileTimeoutSeconds) * time.Second,
		ProgressInterval: time.Duration(d.config.Delivery.ProgressIntervalMs) * time.Millisecond,
	}, zl)

	d.nav = navigator.New(d.sessions, d.index, renderer, pipeline, bot, d.metrics, zl)

	if d.config.Catalog.Watch {
		watcher, err := catalog.NewWatcher(d.config.Catalog.BasePath, d.onCatalogChange, zl)
		if err != nil {
			// The bot works without live change tracking.
			d.logger.Warn().Err(err).Msg("Catalog watcher unavailable")
		} else {
			d.watcher = watcher
		}
	}

	d.registerCommands()
	return nil
}

// Start brings the daemon up and begins consuming updates
func (d *Daemon) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is already running")
	}
	d.running = true
	d.startTime = time.Now()
	d.mu.Unlock()

	if err := d.lifecycle.Start(); err != nil {
		return err
	}

	if d.metrics != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.metrics.ServeContext(d.ctx, d.config.Metrics.Host, d.config.Metrics.Port); err != nil {
				d.logger.Warn().Err(err).Msg("Metrics endpoint stopped")
			}
		}()
	}

	if d.watcher != nil {
		d.watcher.Start()
	}

	d.maintenance.start()

	if err := d.commands.Publish(d.ctx); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to publish command menu")
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.dispatchLoop()
	}()

	d.logger.Info().Msg("Daemon started")
	return nil
}

// Stop shuts the daemon down, draining in-flight work
func (d *Daemon) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not running")
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info().Msg("Daemon stopping")

	d.bot.StopReceiving()
	d.queue.Drain(10 * time.Second)

	d.cancel()
	d.queue.Close()
	d.dedup.Stop()
	d.maintenance.stop()

	if d.watcher != nil {
		d.watcher.Stop()
	}
	if d.history != nil {
		if err := d.history.Close(); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to close delivery history")
		}
	}

	d.wg.Wait()

	if err := d.lifecycle.Stop(); err != nil {
		d.logger.Warn().Err(err).Msg("Failed to clean up lifecycle state")
	}

	d.logger.Info().Msg("Daemon stopped")
	return nil
}

// Status reports the daemon's runtime state
func (d *Daemon) Status() Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	status := Status{
		Running:  d.running,
		Sessions: d.sessions.Count(),
		Lanes:    d.queue.Stats(),
	}
	if d.running {
		status.Uptime = time.Since(d.startTime)
	}
	return status
}

func (d *Daemon) onCatalogChange(path, op string) {
	if d.metrics != nil {
		d.metrics.CatalogChangesTotal.Inc()
	}
	d.logger.Debug().Str("path", path).Str("op", op).Msg("Catalog changed")
}
