package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yangirov/stock-background/internal/infra/log"

	"go.uber.org/zap"
)

// Period between firings once aligned to the minute.
const Period = time.Minute

var ErrAlreadyStarted = errors.New("scheduler already started")

type State int

const (
	Idle State = iota
	WaitingForBoundary
	Repeating
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WaitingForBoundary:
		return "waiting_for_boundary"
	case Repeating:
		return "repeating"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// CycleFunc is one fetch-render-write run. It owns its error handling.
type CycleFunc func(ctx context.Context)

type Options struct {
	Clock Clock
	// SkipOverlapping drops a firing while the previous cycle still runs.
	SkipOverlapping bool
	// OnSkip is called for every dropped firing.
	OnSkip func()
}

// Scheduler fires a cycle at the top of the next wall-clock minute and then
// every Period. Firings never wait for the previous cycle to finish, so
// cycles may overlap unless SkipOverlapping is set. The ticker is not drift
// corrected beyond the initial alignment.
type Scheduler struct {
	clock           Clock
	cycle           CycleFunc
	skipOverlapping bool
	onSkip          func()

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	busy atomic.Bool
}

func New(cycle CycleFunc, opts Options) *Scheduler {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		clock:           clock,
		cycle:           cycle,
		skipOverlapping: opts.SkipOverlapping,
		onSkip:          opts.OnSkip,
		state:           Idle,
	}
}

// InitialDelay is the time from now to the next minute boundary. Exactly on a
// boundary it is a full minute.
func InitialDelay(now time.Time) time.Duration {
	ms := (60-now.Second())*1000 - now.Nanosecond()/int(time.Millisecond)
	return time.Duration(ms) * time.Millisecond
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Start arms the boundary timer and returns. Cancelling ctx has the same
// effect as Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return ErrAlreadyStarted
	}

	now := s.clock.Now()
	delay := InitialDelay(now)
	timer := s.clock.NewTimer(delay)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = WaitingForBoundary

	log.LogInfo("Scheduler armed",
		zap.Time("first_fire", now.Add(delay)),
		zap.Duration("delay", delay))

	go s.loop(runCtx, timer)
	return nil
}

func (s *Scheduler) loop(ctx context.Context, timer Timer) {
	defer close(s.done)
	defer s.setState(Stopped)

	select {
	case <-ctx.Done():
		timer.Stop()
		return
	case <-timer.C():
	}

	s.fire(ctx)
	ticker := s.clock.NewTicker(Period)
	defer ticker.Stop()
	s.setState(Repeating)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.fire(ctx)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	if !s.skipOverlapping {
		go s.cycle(ctx)
		return
	}

	if !s.busy.CompareAndSwap(false, true) {
		log.LogWarn("Previous cycle still running, skipping firing")
		if s.onSkip != nil {
			s.onSkip()
		}
		return
	}
	go func() {
		defer s.busy.Store(false)
		s.cycle(ctx)
	}()
}

// Stop disarms all timers and waits for the timer goroutine to exit. In-flight
// cycles see their context cancelled and are not waited for.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	switch s.state {
	case Idle:
		s.state = Stopped
		s.mu.Unlock()
		return
	case Stopped:
		done := s.done
		s.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	log.LogInfo("Scheduler stopped")
}

// Done is closed once the scheduler has stopped. Nil before Start.
func (s *Scheduler) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
