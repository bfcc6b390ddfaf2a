package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/domain"
	"github.com/spec-kit/complaint-service/internal/events"
	"github.com/spec-kit/complaint-service/internal/observability"
	"github.com/spec-kit/complaint-service/internal/repository"
	"github.com/spec-kit/complaint-service/internal/service"
	apperrors "github.com/spec-kit/complaint-service/pkg/util/errorutil"
)

var (
	// ErrCycleInProgress is returned when a cycle is already running here.
	ErrCycleInProgress = errors.New("escalation cycle already running")
	// ErrCycleLocked is returned when another instance holds the cycle lock.
	ErrCycleLocked = errors.New("escalation cycle held by another instance")
)

// Escalator is the lifecycle path the scheduler drives.
type Escalator interface {
	EscalateOverdue(ctx context.Context, complaintID string, overdue time.Duration) (*domain.Complaint, domain.EscalationEvent, error)
}

// CycleStats summarizes one scheduler pass.
type CycleStats struct {
	StartedAt  time.Time     `json:"startedAt"`
	Duration   time.Duration `json:"durationNs"`
	Candidates int           `json:"candidates"`
	Escalated  int           `json:"escalated"`
	Reminded   int           `json:"reminded"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
}

// SchedulerStatus is the externally visible scheduler state.
type SchedulerStatus struct {
	Active    bool        `json:"active"`
	Running   bool        `json:"running"`
	Interval  string      `json:"interval"`
	NextRun   *time.Time  `json:"nextRun,omitempty"`
	LastCycle *CycleStats `json:"lastCycle,omitempty"`
}

// EscalationScheduler periodically escalates overdue complaints and reminds
// assignees of approaching deadlines.
type EscalationScheduler struct {
	complaints repository.ComplaintRepository
	escalator  Escalator
	dispatcher events.Dispatcher
	reminders  ReminderLedger
	locker     CycleLocker
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.SchedulerConfig
	now        func() time.Time

	running atomic.Bool

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	nextRun   time.Time
	lastCycle *CycleStats
}

// SchedulerDependencies bundles collaborators for the scheduler.
type SchedulerDependencies struct {
	ComplaintRepo repository.ComplaintRepository
	Escalator     Escalator
	Dispatcher    events.Dispatcher
	Reminders     ReminderLedger
	Locker        CycleLocker
	Metrics       *observability.Metrics
	Logger        *zap.Logger
	Config        config.SchedulerConfig
	Clock         func() time.Time
}

// NewEscalationScheduler constructs the scheduler without starting it.
func NewEscalationScheduler(deps SchedulerDependencies) *EscalationScheduler {
	s := &EscalationScheduler{
		complaints: deps.ComplaintRepo,
		escalator:  deps.Escalator,
		dispatcher: deps.Dispatcher,
		reminders:  deps.Reminders,
		locker:     deps.Locker,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		cfg:        deps.Config,
		now:        deps.Clock,
	}
	if s.reminders == nil {
		s.reminders = NewMemoryReminderLedger()
	}
	if s.locker == nil {
		s.locker = LocalCycleLocker{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Start launches the polling loop. A second Start is a no-op.
func (s *EscalationScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.nextRun = s.now().Add(s.cfg.Interval())
	go s.loop(loopCtx, s.done)
	s.logger.Info("escalation scheduler started",
		zap.Duration("interval", s.cfg.Interval()),
		zap.Duration("lookahead", s.cfg.Lookahead()))
}

// Stop halts the loop after any in-flight cycle finishes, or when ctx ends.
func (s *EscalationScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		s.logger.Info("escalation scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for escalation cycle: %w", ctx.Err())
	}
}

// Status reports whether the loop is active and what it did last.
func (s *EscalationScheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := SchedulerStatus{
		Active:   s.cancel != nil,
		Running:  s.running.Load(),
		Interval: s.cfg.Interval().String(),
	}
	if status.Active {
		next := s.nextRun
		status.NextRun = &next
	}
	if s.lastCycle != nil {
		last := *s.lastCycle
		status.LastCycle = &last
	}
	return status
}

func (s *EscalationScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.cfg.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		// Cancellation is only observed between cycles.
		if _, err := s.RunCycle(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, ErrCycleInProgress) && !errors.Is(err, ErrCycleLocked) {
			s.logger.Error("escalation cycle failed", zap.Error(err))
		}
		s.mu.Lock()
		s.nextRun = s.now().Add(s.cfg.Interval())
		s.mu.Unlock()
	}
}

// RunCycle performs one pass over overdue and at-risk complaints.
func (s *EscalationScheduler) RunCycle(ctx context.Context) (CycleStats, error) {
	if !s.running.CompareAndSwap(false, true) {
		return CycleStats{}, ErrCycleInProgress
	}
	defer s.running.Store(false)

	release, ok, err := s.locker.TryAcquire(ctx, s.cfg.LockTTL())
	if err != nil {
		return CycleStats{}, fmt.Errorf("acquire cycle lock: %w", err)
	}
	if !ok {
		s.metrics.RecordSkippedCycle()
		s.logger.Debug("escalation cycle skipped; lock held elsewhere")
		return CycleStats{}, ErrCycleLocked
	}
	defer release()

	now := s.now()
	stats := CycleStats{StartedAt: now}
	due, err := s.complaints.ListDue(ctx, now, s.cfg.Lookahead())
	if err != nil {
		return stats, fmt.Errorf("list due complaints: %w", err)
	}
	stats.Candidates = len(due)

	var escalated, reminded, skipped, failed atomic.Int64
	var g errgroup.Group
	limit := s.cfg.Concurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for i := range due {
		complaint := &due[i]
		g.Go(func() error {
			switch s.processItem(ctx, complaint, now) {
			case outcomeEscalated:
				escalated.Add(1)
			case outcomeReminded:
				reminded.Add(1)
			case outcomeSkipped:
				skipped.Add(1)
			case outcomeFailed:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	stats.Escalated = int(escalated.Load())
	stats.Reminded = int(reminded.Load())
	stats.Skipped = int(skipped.Load())
	stats.Failed = int(failed.Load())
	stats.Duration = s.now().Sub(now)

	s.mu.Lock()
	last := stats
	s.lastCycle = &last
	s.mu.Unlock()

	s.metrics.RecordCycle(stats.Escalated, stats.Reminded, stats.Failed, stats.Duration, now.Add(stats.Duration))
	s.logger.Info("escalation cycle finished",
		zap.Int("candidates", stats.Candidates),
		zap.Int("escalated", stats.Escalated),
		zap.Int("reminded", stats.Reminded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed))
	return stats, nil
}

type itemOutcome int

const (
	outcomeSkipped itemOutcome = iota
	outcomeEscalated
	outcomeReminded
	outcomeFailed
)

// processItem handles one complaint under its own timeout. Failures are
// logged and reported as an outcome, never propagated.
func (s *EscalationScheduler) processItem(ctx context.Context, c *domain.Complaint, now time.Time) (outcome itemOutcome) {
	itemCtx, cancel := context.WithTimeout(ctx, s.cfg.ItemTimeout())
	defer cancel()
	log := s.logger.With(zap.String("complaint_id", c.ID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("escalation item panicked", zap.Any("panic", r))
			outcome = outcomeFailed
		}
	}()

	risk := domain.AssessRisk(c, now)
	if risk.Overdue {
		if c.Escalation.IsEscalated {
			return outcomeSkipped
		}
		if _, _, err := s.escalator.EscalateOverdue(itemCtx, c.ID, risk.OverdueBy); err != nil {
			// The complaint moved on after the snapshot was taken.
			if apperrors.HasCode(err, apperrors.CodeConflict) || apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
				log.Info("overdue complaint changed before escalation", zap.Error(err))
				return outcomeSkipped
			}
			log.Error("automatic escalation failed", zap.Error(err))
			return outcomeFailed
		}
		return outcomeEscalated
	}

	fresh, err := s.reminders.MarkReminded(itemCtx, c.ID, now, s.cfg.Interval())
	if err != nil {
		log.Error("reminder ledger unavailable", zap.Error(err))
		return outcomeFailed
	}
	if !fresh {
		return outcomeSkipped
	}
	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(itemCtx, service.DeadlineReminderEvent(c, risk, now))
	}
	return outcomeReminded
}
