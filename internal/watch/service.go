package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"repack/internal/config"
	"repack/internal/fileutil"
	"repack/internal/logging"
	"repack/internal/notifications"
	"repack/internal/queue"
	"repack/internal/services"
	"repack/internal/staging"
)

// JobRunner executes one queued job end to end.
type JobRunner interface {
	Run(ctx context.Context, job *queue.Job) error
}

// Service owns the drop-folder loop and enforces single-instance
// execution through a lock file.
type Service struct {
	cfg      *config.Config
	store    *queue.Store
	runner   JobRunner
	notifier notifications.Service
	logger   *slog.Logger

	pollInterval   time.Duration
	settleWait     time.Duration
	settleInterval time.Duration

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu             sync.Mutex
	batchActive    bool
	batchStart     time.Time
	batchProcessed int
	batchFailed    int
}

// Option overrides a service dependency, primarily for tests.
type Option func(*Service)

// WithNotifier substitutes the notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(s *Service) { s.notifier = notifier }
}

// New constructs the watch service. The watch directory must be
// configured; poll and settle timings come from the [watch] config
// section.
func New(cfg *config.Config, store *queue.Store, runner JobRunner, logger *slog.Logger, opts ...Option) (*Service, error) {
	if cfg == nil || store == nil || runner == nil {
		return nil, errors.New("watch requires config, store, and a job runner")
	}
	if strings.TrimSpace(cfg.Watch.Dir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "watch", "configure", "watch directory is not configured", nil)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	svc := &Service{
		cfg:            cfg,
		store:          store,
		runner:         runner,
		logger:         logging.NewComponentLogger(logger, "watch"),
		pollInterval:   time.Duration(cfg.Watch.PollInterval) * time.Second,
		settleWait:     time.Duration(cfg.Watch.SettleTimeout) * time.Second,
		settleInterval: 2 * time.Second,
		lockPath:       filepath.Join(cfg.Paths.LogDir, "repack-watch.lock"),
	}
	if svc.pollInterval <= 0 {
		svc.pollInterval = 5 * time.Second
	}
	if svc.settleWait <= 0 {
		svc.settleWait = time.Minute
	}
	svc.lock = flock.New(svc.lockPath)

	for _, opt := range opts {
		opt(svc)
	}
	if svc.notifier == nil {
		svc.notifier = notifications.NewService(cfg)
	}
	return svc, nil
}

// Start acquires the instance lock, recovers state left behind by a
// previous run, and launches the polling loop.
func (s *Service) Start(ctx context.Context) error {
	if s.running.Load() {
		return errors.New("watch service already running")
	}

	ok, err := s.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire watch lock: %w", err)
	}
	if !ok {
		return errors.New("another repack watch instance is already running")
	}

	if count, err := s.store.ResetStuckProcessing(ctx); err != nil {
		s.logger.Warn("stuck job reset failed", logging.Error(err))
	} else if count > 0 {
		s.logger.Info("stuck jobs reset to pending", logging.Int64("count", count))
	}
	if result := staging.CleanStale(s.cfg.Paths.TempDir, staging.DefaultStaleAge, s.logger); len(result.Removed) > 0 {
		s.logger.Info("stale staging directories removed", logging.Int("count", len(result.Removed)))
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running.Store(true)
	s.wg.Add(1)
	go s.loop(runCtx)

	s.logger.Info("watch service started",
		logging.String("dir", s.cfg.Watch.Dir),
		logging.String("lock", s.lockPath),
	)
	return nil
}

// Stop terminates the polling loop, waits for the in-flight job to wind
// down, and releases the instance lock.
func (s *Service) Stop() {
	if !s.running.Load() {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wg.Wait()
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("failed to release watch lock", logging.Error(err))
	}
	s.running.Store(false)
	s.logger.Info("watch service stopped")
}

// Running reports whether the polling loop is active.
func (s *Service) Running() bool {
	return s.running.Load()
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		queued := s.sweep(ctx)
		worked := s.drain(ctx)
		if queued == 0 && !worked {
			s.finishBatch(ctx)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.pollInterval):
		}
	}
}

// sweep scans the watch directory and queues every settled entry that
// has no job yet. Hidden files are ignored. Returns how many entries
// were queued.
func (s *Service) sweep(ctx context.Context) int {
	entries, err := os.ReadDir(s.cfg.Watch.Dir)
	if err != nil {
		s.logger.Warn("watch directory unreadable",
			logging.String("dir", s.cfg.Watch.Dir),
			logging.Error(err),
		)
		return 0
	}

	queued := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return queued
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(s.cfg.Watch.Dir, name)

		known, err := s.store.HasJobForSource(ctx, path)
		if err != nil {
			s.logger.Warn("job lookup failed", logging.String("source", name), logging.Error(err))
			continue
		}
		if known {
			continue
		}

		if err := fileutil.WaitForStable(ctx, path, s.settleWait, s.settleInterval); err != nil {
			if ctx.Err() != nil {
				return queued
			}
			// Still growing or vanished; the next poll tries again.
			s.logger.Debug("drop not settled", logging.String("source", name), logging.Error(err))
			continue
		}

		kind := queue.KindArchive
		if entry.IsDir() {
			kind = queue.KindFolder
		}
		job, err := s.store.NewJob(ctx, path, kind)
		if err != nil {
			s.logger.Error("failed to queue drop", logging.String("source", name), logging.Error(err))
			continue
		}
		queued++
		s.logger.Info("drop queued",
			logging.Int64("job_id", job.ID),
			logging.String("source", name),
			logging.String("kind", string(kind)),
		)
	}
	return queued
}

// drain runs pending jobs until the queue is empty or the context is
// cancelled. Returns whether any job ran.
func (s *Service) drain(ctx context.Context) bool {
	worked := false
	for {
		if ctx.Err() != nil {
			return worked
		}
		job, err := s.store.NextPending(ctx)
		if err != nil {
			s.logger.Error("failed to fetch next pending job", logging.Error(err))
			return worked
		}
		if job == nil {
			return worked
		}

		worked = true
		s.beginBatch()
		if err := s.runner.Run(ctx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return worked
			}
			s.tally(true)
			continue
		}
		s.tally(false)
	}
}

func (s *Service) beginBatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.batchActive {
		s.batchActive = true
		s.batchStart = time.Now()
	}
}

func (s *Service) tally(failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if failed {
		s.batchFailed++
	} else {
		s.batchProcessed++
	}
}

// finishBatch closes out a burst of activity once a poll finds nothing
// to do, emitting the drained notification with the batch totals.
func (s *Service) finishBatch(ctx context.Context) {
	s.mu.Lock()
	if !s.batchActive {
		s.mu.Unlock()
		return
	}
	start := s.batchStart
	processed := s.batchProcessed
	failed := s.batchFailed
	s.batchActive = false
	s.batchStart = time.Time{}
	s.batchProcessed = 0
	s.batchFailed = 0
	s.mu.Unlock()

	duration := time.Duration(0)
	if !start.IsZero() {
		duration = time.Since(start)
	}
	s.logger.Info("watch folder drained",
		logging.Int("processed", processed),
		logging.Int("failed", failed),
		logging.Duration("batch_duration", duration),
	)
	if err := s.notifier.NotifyWatchDrained(ctx, processed, failed, duration); err != nil {
		if errors.Is(err, context.Canceled) {
			s.logger.Debug("shutting down, drained notification skipped")
		} else {
			s.logger.Debug("drained notification failed", logging.Error(err))
		}
	}
}
