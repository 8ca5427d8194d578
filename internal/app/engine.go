package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/lucasew/offlinepages/internal/db"
	"github.com/lucasew/offlinepages/internal/errutil"
	"github.com/lucasew/offlinepages/internal/eviction"
	"github.com/lucasew/offlinepages/internal/eviction/policy"
	"github.com/lucasew/offlinepages/internal/metrics"
	"github.com/lucasew/offlinepages/internal/pagestore"
	"github.com/lucasew/offlinepages/internal/repository"
	"github.com/lucasew/offlinepages/internal/storagestats"
)

type Config struct {
	DataDir    string
	DBPath     string
	ArchiveDir string
	Eviction   eviction.Config
	// Schedule is a cron expression for periodic clearing. Empty disables it.
	Schedule         string
	MetricsNamespace string
	// DefaultPolicy applies to namespaces without a policy. Nil uses
	// policy.DefaultPolicy.
	DefaultPolicy *eviction.LifetimePolicy
	// Policies overrides the built-in namespace policies. Nil keeps them.
	Policies map[string]eviction.LifetimePolicy
}

func (c Config) dbPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "pages.db")
}

func (c Config) archiveDir() string {
	if c.ArchiveDir != "" {
		return c.ArchiveDir
	}
	return filepath.Join(c.DataDir, "archives")
}

// MergePolicies returns the built-in policies overridden by overrides.
func MergePolicies(overrides map[string]eviction.LifetimePolicy) map[string]eviction.LifetimePolicy {
	merged := policy.DefaultPolicies()
	for ns, p := range overrides {
		merged[ns] = p
	}
	return merged
}

// Engine bundles the wired eviction components.
type Engine struct {
	DB        *db.DB
	Archives  *repository.ArchiveRepository
	Store     *pagestore.Store
	Policies  *policy.Provider
	Manager   *eviction.Manager
	Scheduler *eviction.Scheduler
	Registry  *prometheus.Registry
}

// NewEngine opens the metadata database and wires the eviction manager. The
// returned cleanup func stops the scheduler and closes the database.
func NewEngine(cfg Config) (*Engine, func(), error) {
	if err := cfg.Eviction.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid eviction config: %w", err)
	}

	archiveDir := cfg.archiveDir()
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create archive dir %s: %w", archiveDir, err)
	}
	dbPath := cfg.dbPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create database dir: %w", err)
	}

	database, err := db.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}

	lastClear, err := database.LastClearTime(context.Background())
	if err != nil {
		errutil.ReportError(database.Close(), "Failed to close database")
		return nil, nil, err
	}

	archives := repository.NewArchiveRepository(archiveDir)
	store := pagestore.New(database, archives)
	stats := storagestats.New(archiveDir, archives)

	fallback := policy.DefaultPolicy
	if cfg.DefaultPolicy != nil {
		fallback = *cfg.DefaultPolicy
	}
	policies := policy.New(fallback, MergePolicies(cfg.Policies))

	namespace := cfg.MetricsNamespace
	if namespace == "" {
		namespace = "offlinepages"
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	manager := eviction.NewManager(store, policies, stats, cfg.Eviction,
		eviction.WithObserver(observers{
			metrics.New(namespace, registry),
			&stateRecorder{db: database},
		}),
		eviction.WithLastClearTime(lastClear),
	)
	scheduler := eviction.NewScheduler(manager, cfg.Schedule, slog.Default())

	slog.Info("Eviction engine ready",
		"db_path", dbPath,
		"archive_dir", archiveDir,
		"schedule", cfg.Schedule,
		"last_clear_time", lastClear,
	)

	engine := &Engine{
		DB:        database,
		Archives:  archives,
		Store:     store,
		Policies:  policies,
		Manager:   manager,
		Scheduler: scheduler,
		Registry:  registry,
	}
	cleanup := func() {
		scheduler.Stop()
		errutil.ReportError(database.Close(), "Failed to close database")
	}
	return engine, cleanup, nil
}

// observers fans notifications out to several observers.
type observers []eviction.Observer

func (o observers) ObserveStats(stats eviction.StorageStats) {
	for _, obs := range o {
		obs.ObserveStats(stats)
	}
}

func (o observers) ObserveCycle(report eviction.CycleReport) {
	for _, obs := range o {
		obs.ObserveCycle(report)
	}
}

// stateRecorder persists the completion time of finished cycles so a
// restarted process keeps honouring the clear interval.
type stateRecorder struct {
	db *db.DB
}

func (r *stateRecorder) ObserveStats(eviction.StorageStats) {}

func (r *stateRecorder) ObserveCycle(report eviction.CycleReport) {
	if !report.Completed {
		return
	}
	err := r.db.SetLastClearTime(context.Background(), report.ClearTime)
	errutil.ReportError(err, "Failed to persist last clear time")
}
