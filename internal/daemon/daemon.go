package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"byline/internal/config"
	"byline/internal/credentials"
	"byline/internal/cycle"
	"byline/internal/ledger"
	"byline/internal/logging"
	"byline/internal/notifications"
)

// HealthCheck probes one upstream dependency at startup.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthResult is the recorded outcome of one startup probe.
type HealthResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Daemon schedules enrichment cycles and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *ledger.Store
	runner   *cycle.Runner
	pool     *credentials.Pool
	notifier notifications.Service
	checks   []HealthCheck

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running     atomic.Bool
	cycleActive atomic.Bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup

	mu          sync.Mutex
	startedAt   time.Time
	lastResult  *cycle.Result
	lastCycleAt time.Time
	health      []HealthResult
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                 `json:"running"`
	StartedAt    time.Time            `json:"started_at,omitzero"`
	CycleActive  bool                 `json:"cycle_active"`
	LastCycle    *cycle.Result        `json:"last_cycle,omitempty"`
	LastCycleAt  time.Time            `json:"last_cycle_at,omitzero"`
	Credentials  []credentials.Status `json:"credentials"`
	Ledger       map[string]int       `json:"ledger"`
	Health       []HealthResult       `json:"health,omitempty"`
	LedgerDBPath string               `json:"ledger_db_path"`
	LockFilePath string               `json:"lock_file_path"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *ledger.Store, runner *cycle.Runner, pool *credentials.Pool, notifier notifications.Service, logger *slog.Logger, checks ...HealthCheck) (*Daemon, error) {
	if cfg == nil || store == nil || runner == nil || pool == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, runner, pool, and logger")
	}
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		runner:   runner,
		pool:     pool,
		notifier: notifier,
		checks:   checks,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the instance lock, probes dependencies, starts the API
// server, and launches the cycle scheduler. The first cycle runs immediately.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another byline daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.runHealthChecks(runCtx)

	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			_ = d.lock.Unlock()
			cancel()
			d.cancel = nil
			return err
		}
	}

	d.mu.Lock()
	d.startedAt = time.Now().UTC()
	d.mu.Unlock()
	d.running.Store(true)

	d.wg.Add(1)
	go d.schedule(runCtx)

	d.logger.Info("byline daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("interval_minutes", d.cfg.Enrichment.CycleIntervalMinutes))
	return nil
}

// Stop halts scheduling, shuts the API server down, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	if d.api != nil {
		d.api.stop()
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("byline daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Daemon) schedule(ctx context.Context) {
	defer d.wg.Done()

	interval := time.Duration(d.cfg.Enrichment.CycleIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	d.runCycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runCycle(ctx)
		}
	}
}

func (d *Daemon) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !d.cycleActive.CompareAndSwap(false, true) {
		// A slow cycle is still going; this tick is skipped, not queued.
		d.logger.Warn("previous cycle still running, skipping this tick",
			logging.String(logging.FieldEventType, "cycle_overlap"))
		return
	}
	defer d.cycleActive.Store(false)

	result, err := d.runner.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Error("cycle failed", logging.Error(err))
		if notifyErr := d.notifier.NotifyError(ctx, err, "enrichment cycle"); notifyErr != nil {
			d.logger.Warn("notification delivery failed", logging.Error(notifyErr))
		}
	}
	if result != nil {
		d.mu.Lock()
		d.lastResult = result
		d.lastCycleAt = time.Now().UTC()
		d.mu.Unlock()
	}
}

// ErrCycleInFlight is returned when a manual trigger overlaps the schedule.
var ErrCycleInFlight = errors.New("a cycle is already running")

// RunCycleNow triggers one cycle outside the schedule. Returns
// ErrCycleInFlight when a cycle is already running.
func (d *Daemon) RunCycleNow(ctx context.Context) (*cycle.Result, error) {
	if !d.cycleActive.CompareAndSwap(false, true) {
		return nil, ErrCycleInFlight
	}
	defer d.cycleActive.Store(false)

	result, err := d.runner.Run(ctx)
	if result != nil {
		d.mu.Lock()
		d.lastResult = result
		d.lastCycleAt = time.Now().UTC()
		d.mu.Unlock()
	}
	return result, err
}

// EnrichPost enriches a single post on demand.
func (d *Daemon) EnrichPost(ctx context.Context, postID int64, force bool) error {
	return d.runner.EnrichOne(ctx, postID, force)
}

// Pending lists eligible posts awaiting enrichment.
func (d *Daemon) Pending(ctx context.Context) ([]cycle.PendingPost, error) {
	return d.runner.Pending(ctx)
}

// History returns recent enrichment records.
func (d *Daemon) History(ctx context.Context, limit int) ([]*ledger.Record, error) {
	return d.store.History(ctx, limit)
}

// RecentCycles returns recent cycle summaries.
func (d *Daemon) RecentCycles(ctx context.Context, limit int) ([]ledger.CycleSummary, error) {
	return d.store.RecentCycles(ctx, limit)
}

// Metrics returns per-day enrichment rollups.
func (d *Daemon) Metrics(ctx context.Context, days int) ([]ledger.DailyMetrics, error) {
	return d.store.MetricsByDay(ctx, days)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) error {
	return d.notifier.TestNotification(ctx)
}

// APIAddr returns the bound API listen address, or "" when the API is
// disabled or not started.
func (d *Daemon) APIAddr() string {
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	startedAt := d.startedAt
	lastResult := d.lastResult
	lastCycleAt := d.lastCycleAt
	health := append([]HealthResult(nil), d.health...)
	d.mu.Unlock()

	counts := map[string]int{}
	if stats, err := d.store.Stats(ctx); err == nil {
		for status, count := range stats {
			counts[string(status)] = count
		}
	}

	return Status{
		Running:      d.running.Load(),
		StartedAt:    startedAt,
		CycleActive:  d.cycleActive.Load(),
		LastCycle:    lastResult,
		LastCycleAt:  lastCycleAt,
		Credentials:  d.pool.Snapshot(),
		Ledger:       counts,
		Health:       health,
		LedgerDBPath: d.cfg.LedgerPath(),
		LockFilePath: d.lockPath,
	}
}

// runHealthChecks probes upstream dependencies. Failures are recorded and
// logged but never block startup; the first cycle surfaces real errors.
func (d *Daemon) runHealthChecks(ctx context.Context) {
	results := make([]HealthResult, 0, len(d.checks))
	for _, check := range d.checks {
		if check.Check == nil {
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err := check.Check(checkCtx)
		cancel()

		result := HealthResult{Name: check.Name, Healthy: err == nil}
		if err != nil {
			result.Detail = err.Error()
			d.logger.Warn("dependency check failed",
				logging.String("dependency", check.Name),
				logging.Error(err))
		} else {
			d.logger.Debug("dependency check passed", logging.String("dependency", check.Name))
		}
		results = append(results, result)
	}
	d.mu.Lock()
	d.health = results
	d.mu.Unlock()
}
