package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Copycord/console/internal/metrics"
	"github.com/Copycord/console/internal/status"
)

// Interval defaults. Steady state is deliberately slow; the push and event
// channels carry most updates and polling is the safety net.
const (
	DefaultSteady     = 4 * time.Second
	DefaultRelaxed    = 12 * time.Second
	DefaultHidden     = 15 * time.Second
	DefaultDegraded   = 8 * time.Second
	DefaultBurstFast  = 800 * time.Millisecond
	DefaultBurstFor   = 12 * time.Second
	DefaultMaxBackoff = 15 * time.Second
)

// FetchFunc requests a point-in-time status snapshot.
type FetchFunc func(ctx context.Context) (status.Snapshot, error)

// Intervals bundles the scheduler's cadence settings.
type Intervals struct {
	Steady     time.Duration
	Relaxed    time.Duration
	Hidden     time.Duration
	Degraded   time.Duration
	MaxBackoff time.Duration
}

func (iv *Intervals) applyDefaults() {
	if iv.Steady <= 0 {
		iv.Steady = DefaultSteady
	}
	if iv.Relaxed <= 0 {
		iv.Relaxed = DefaultRelaxed
	}
	if iv.Hidden <= 0 {
		iv.Hidden = DefaultHidden
	}
	if iv.Degraded <= 0 {
		iv.Degraded = DefaultDegraded
	}
	if iv.MaxBackoff <= 0 {
		iv.MaxBackoff = DefaultMaxBackoff
	}
}

// Scheduler is the adaptive-interval requester of status snapshots.
// Exactly one scheduled callback is active at a time; changing the interval
// cancels and reschedules. All cadence decisions live here: steady state,
// exponential failure backoff (capped), degraded-upstream escalation,
// post-action bursts, visibility transitions and push-connected relaxation.
type Scheduler struct {
	mu sync.Mutex

	fetch      FetchFunc
	onSnapshot func(status.Snapshot)
	iv         Intervals
	logger     *slog.Logger

	timer    *time.Timer
	current  time.Duration
	failures int

	visible       bool
	pushConnected bool
	degraded      bool

	burstUntil time.Time
	burstFast  time.Duration
	burstSlow  time.Duration

	started bool
	stopped bool

	now func() time.Time
}

// New creates a scheduler. onSnapshot receives every successful snapshot and
// is expected to merge it into the status model.
func New(fetch FetchFunc, onSnapshot func(status.Snapshot), iv Intervals, logger *slog.Logger) *Scheduler {
	iv.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		fetch:      fetch,
		onSnapshot: onSnapshot,
		iv:         iv,
		logger:     logger,
		visible:    true,
		now:        time.Now,
	}
}

// Start installs the polling schedule at interval and fires one poll
// immediately. Requesting the interval already active is a no-op.
func (s *Scheduler) Start(interval time.Duration) {
	if interval <= 0 {
		interval = s.iv.Steady
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.started && s.current == interval {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.scheduleLocked(interval)
	s.mu.Unlock()

	go s.Poll(context.Background())
}

// Stop cancels the schedule permanently.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Poll performs one snapshot request and reschedules according to the
// outcome. On transport failure the interval doubles up to the backoff cap;
// it never terminates. On success the schedule returns to whatever cadence
// the current conditions call for.
func (s *Scheduler) Poll(ctx context.Context) {
	snap, err := s.fetch(ctx)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.failures++
		next := backoffInterval(s.current, s.iv.MaxBackoff)
		s.logger.Debug("status poll failed", "error", err, "failures", s.failures, "next_interval", next)
		s.scheduleLocked(next)
		s.mu.Unlock()
		metrics.IncPoll("error")
		return
	}

	s.failures = 0
	s.degraded = snap.Degraded()
	s.scheduleLocked(s.chooseIntervalLocked())
	s.mu.Unlock()

	metrics.IncPoll("ok")
	if s.onSnapshot != nil {
		s.onSnapshot(snap)
	}
}

// Burst switches to a fast cadence for a fixed duration, then reverts to
// slow. Used after a user-initiated start/stop so the displayed state
// converges quickly.
func (s *Scheduler) Burst(fast, duration, slow time.Duration) {
	if fast <= 0 {
		fast = DefaultBurstFast
	}
	if duration <= 0 {
		duration = DefaultBurstFor
	}
	if slow <= 0 {
		slow = s.iv.Steady
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.burstUntil = s.now().Add(duration)
	s.burstFast = fast
	s.burstSlow = slow
	s.scheduleLocked(fast)
	s.mu.Unlock()

	go s.Poll(context.Background())
}

// SetVisible tells the scheduler whether the presenting surface is visible.
// Hidden slows to the hidden interval to save resources; regaining
// visibility polls immediately and restores the steady cadence.
func (s *Scheduler) SetVisible(visible bool) {
	s.mu.Lock()
	if s.stopped || s.visible == visible {
		s.mu.Unlock()
		return
	}
	s.visible = visible
	s.scheduleLocked(s.chooseIntervalLocked())
	s.mu.Unlock()

	if visible {
		go s.Poll(context.Background())
	}
}

// SetPushConnected relaxes polling to a slow safety net while the push
// channel is live, and reverts to steady polling immediately when it drops.
func (s *Scheduler) SetPushConnected(connected bool) {
	s.mu.Lock()
	if s.stopped || s.pushConnected == connected {
		s.mu.Unlock()
		return
	}
	s.pushConnected = connected
	s.scheduleLocked(s.chooseIntervalLocked())
	s.mu.Unlock()
}

// Interval returns the currently scheduled interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Failures returns the consecutive failure count.
func (s *Scheduler) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

// chooseIntervalLocked picks the cadence for current conditions, most urgent
// first: an active burst, a degraded upstream, a hidden surface, a live push
// channel, then steady state.
func (s *Scheduler) chooseIntervalLocked() time.Duration {
	if !s.burstUntil.IsZero() {
		if s.now().Before(s.burstUntil) {
			return s.burstFast
		}
		s.burstUntil = time.Time{}
		if !s.degraded && s.visible && !s.pushConnected {
			return s.burstSlow
		}
	}
	if s.degraded {
		return s.iv.Degraded
	}
	if !s.visible {
		return s.iv.Hidden
	}
	if s.pushConnected {
		return s.iv.Relaxed
	}
	return s.iv.Steady
}

// scheduleLocked installs the single active timer at interval, replacing any
// existing one. Before Start it only records the interval, so a one-shot
// Poll does not leave a recurring timer behind. Caller holds s.mu.
func (s *Scheduler) scheduleLocked(interval time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.current = interval
	metrics.SetPollInterval(interval.Seconds())
	if !s.started {
		return
	}
	s.timer = time.AfterFunc(interval, func() {
		s.mu.Lock()
		stopped := s.stopped
		s.mu.Unlock()
		if stopped {
			return
		}
		s.Poll(context.Background())
	})
}

// backoffInterval doubles current, capped. After N consecutive failures the
// interval equals min(base*2^N, limit).
func backoffInterval(current, limit time.Duration) time.Duration {
	next := current * 2
	if next > limit {
		return limit
	}
	if next <= 0 {
		return limit
	}
	return next
}
