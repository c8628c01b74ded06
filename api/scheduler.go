/*
scheduler.go - Automated expiration scheduler

PURPOSE:
  Periodically walks every active employee's anniversary boundaries and
  records any forfeiture that has come due. The walk itself is idempotent
  (one record per boundary ever), so the scheduler can fire as often as it
  likes; anniversaries that passed while the server was down are picked up
  on the first sweep.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each sweep processes the full roster; per-employee failures are
    logged and never stop the sweep
  - The sweep writes expiration records only; balance snapshots are
    cached by the projector on its own read path

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 hour)
  - Enabled: Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewExpirationScheduler(directory, engine, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - leave/expiration.go: the boundary walk
  - handlers.go: ListExpirations (on-demand walk)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/leave-ledger/calendar"
	"github.com/warp/leave-ledger/leave"
)

// ExpirationScheduler sweeps anniversary boundaries in the background.
type ExpirationScheduler struct {
	Directory     leave.Directory
	Engine        *leave.ExpirationEngine
	Log           *logrus.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewExpirationScheduler creates a scheduler with the default interval.
func NewExpirationScheduler(directory leave.Directory, engine *leave.ExpirationEngine, log *logrus.Logger) *ExpirationScheduler {
	return &ExpirationScheduler{
		Directory:     directory,
		Engine:        engine,
		Log:           log,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (s *ExpirationScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.Log.Info("expiration scheduler disabled, not starting")
		return
	}

	s.ticker = time.NewTicker(s.CheckInterval)
	s.wg.Add(1)

	go s.run()

	s.Log.WithField("interval", s.CheckInterval.String()).Info("expiration scheduler started")
}

// Stop stops the scheduler and waits for an in-flight sweep.
func (s *ExpirationScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.wg.Wait()
		s.Log.Info("expiration scheduler stopped")
	}
}

func (s *ExpirationScheduler) run() {
	defer s.wg.Done()

	// Sweep immediately on start to catch up after downtime.
	s.Sweep(context.Background())

	for {
		select {
		case <-s.ticker.C:
			s.Sweep(context.Background())
		case <-s.stop:
			return
		}
	}
}

// Sweep runs the boundary walk for every active employee. Exposed so the
// CLI can trigger the same pass on demand.
func (s *ExpirationScheduler) Sweep(ctx context.Context) {
	today := calendar.Today()

	employees, err := s.Directory.Employees(ctx)
	if err != nil {
		s.Log.WithError(err).Error("expiration sweep: listing employees failed")
		return
	}

	processed := 0
	for _, emp := range employees {
		if !emp.Active && emp.ResignationDate == nil {
			continue
		}
		if _, err := s.Engine.Run(ctx, emp, emp.Horizon(today)); err != nil {
			s.Log.WithField("employee", string(emp.ID)).WithError(err).Error("expiration sweep failed for employee")
			continue
		}
		processed++
	}

	s.Log.WithFields(logrus.Fields{
		"employees": processed,
		"as_of":     today.String(),
	}).Debug("expiration sweep completed")
}
