package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mixelka/massmailer/pkg/models"
)

// DispatchFunc runs one deferred job when it comes due
type DispatchFunc func(ctx context.Context, job *models.SendJob)

// Scheduler is a process-wide one-shot job store. Jobs live in memory only:
// scheduling is best-effort and does not survive a restart. There is no
// cancellation; a registered job always fires unless the process exits first.
type Scheduler struct {
	mu       sync.Mutex
	jobs     map[string]*entry
	dispatch DispatchFunc
	now      func() time.Time
	tick     time.Duration
	stop     chan struct{}
	done     chan struct{}
	logger   *slog.Logger
}

type entry struct {
	fireAt time.Time
	job    *models.SendJob
}

// New creates a scheduler that drains due jobs every tick
func New(dispatch DispatchFunc, tick time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		jobs:     make(map[string]*entry),
		dispatch: dispatch,
		now:      time.Now,
		tick:     tick,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.With("component", "scheduler"),
	}
}

// SetClock overrides the time source, for deterministic tests
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Schedule registers a deferred dispatch and returns its job id
func (s *Scheduler) Schedule(fireAt time.Time, job *models.SendJob) string {
	id := fmt.Sprintf("email_%s_%d", job.SenderEmail, s.now().UnixNano())

	s.mu.Lock()
	s.jobs[id] = &entry{fireAt: fireAt, job: job}
	s.mu.Unlock()

	s.logger.Info("job scheduled", "id", id, "fire_at", fireAt, "recipients", len(job.Recipients))
	return id
}

// Pending returns the number of jobs waiting to fire
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Start launches the background drain loop
func (s *Scheduler) Start() {
	go s.run()
}

// Stop terminates the drain loop. Jobs still pending are dropped.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.fireDue()
		case <-s.stop:
			return
		}
	}
}

// fireDue removes every due job and dispatches each in its own goroutine.
// Fired jobs may interleave with each other and with immediate sends; each
// one still processes its own recipients sequentially.
func (s *Scheduler) fireDue() {
	now := s.now()

	s.mu.Lock()
	var due []*entry
	for id, e := range s.jobs {
		if !e.fireAt.After(now) {
			due = append(due, e)
			delete(s.jobs, id)
			s.logger.Info("job firing", "id", id, "fire_at", e.fireAt)
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		go s.dispatch(context.Background(), e.job)
	}
}
