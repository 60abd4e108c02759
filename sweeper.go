package auth

import (
	"context"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// DefaultSweepInterval is how often expired rows are purged
const DefaultSweepInterval = time.Hour

// sweepTimeout bounds a single sweep once it has started
const sweepTimeout = 30 * time.Second

// SweepTask deletes one kind of expired row and reports how many went
type SweepTask struct {
	Name string
	Run  func(ctx context.Context) (int64, error)
}

// RepositorySweepTasks returns the purge tasks for revoked tokens and stale
// passkey challenges.
func RepositorySweepTasks(repo RepositoryManager, challengeTTL time.Duration) []SweepTask {
	return []SweepTask{
		{
			Name: "revoked_tokens",
			Run:  repo.Revocations().Sweep,
		},
		{
			Name: "passkey_challenges",
			Run: func(ctx context.Context) (int64, error) {
				return repo.PasskeyChallenges().Sweep(ctx, challengeTTL)
			},
		},
	}
}

// Sweeper runs the purge tasks on a fixed interval until stopped. It is
// owned by the process and must be stopped on shutdown.
type Sweeper struct {
	tasks    []SweepTask
	interval time.Duration
	logger   Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(interval time.Duration, tasks ...SweepTask) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		tasks:    tasks,
		interval: interval,
		logger:   defLogger{},
	}
}

// WithLogger overrides the logger used by the sweeper.
func (s *Sweeper) WithLogger(logger Logger) *Sweeper {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Start launches the background loop. It returns an error if the sweeper is
// already running.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return goerrors.New("sweeper already running", goerrors.CategoryConflict)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, s.done)

	s.logger.Info("sweeper started, interval %s", s.interval)
	return nil
}

// Stop halts the timer and waits for an in-flight sweep to return. Calling
// Stop on a stopped sweeper is a no-op.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// a sweep that started finishes even if Stop is called meanwhile
			runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sweepTimeout)
			if _, err := s.RunOnce(runCtx); err != nil {
				s.logger.Error("sweep failed: %v", err)
			}
			cancel()
		}
	}
}

// RunOnce runs every task and returns the removed row count per task. A
// failing task does not prevent the others from running.
func (s *Sweeper) RunOnce(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(s.tasks))
	var firstErr error

	for _, task := range s.tasks {
		n, err := task.Run(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = goerrors.Wrap(err, goerrors.CategoryInternal, "sweep task failed").
					WithMetadata(map[string]any{"task": task.Name})
			}
			continue
		}
		counts[task.Name] = n
		if n > 0 {
			s.logger.Debug("sweep %s removed %d rows", task.Name, n)
		}
	}

	return counts, firstErr
}
