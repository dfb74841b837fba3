package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Copycord/console/internal/history"
	"github.com/Copycord/console/internal/lock"
	"github.com/Copycord/console/internal/metrics"
	"github.com/Copycord/console/internal/status"
	"github.com/Copycord/console/internal/uptime"
)

// tickInterval is the cadence of the local uptime extrapolation.
const tickInterval = time.Second

// historySendTimeout bounds the best-effort transition export so it can
// never hold up a merge.
const historySendTimeout = 3 * time.Second

// ToggleRenderer is an optional renderer capability: surfaces that present a
// start/stop control implement it to have the control disabled while a
// toggle is in flight.
type ToggleRenderer interface {
	OnToggleEnabled(enabled bool)
}

// Coordinator owns the status model and is the single merge path for every
// update channel. Polling, push and bus callbacks all land in Apply; the
// mutex serializes them, so each merge is last-write-wins per role with no
// cross-channel ordering guarantee. States converge within one polling
// interval regardless of interleaving.
type Coordinator struct {
	mu sync.Mutex

	model    *status.Model
	renderer status.Renderer
	uptime   *uptime.Cache
	lock     *lock.Coordinator
	sink     history.Sink
	logger   *slog.Logger

	tickStop chan struct{}
	tickOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a coordinator with both roles in the unknown/stopped state.
// sink may be nil (no transition history).
func New(renderer status.Renderer, up *uptime.Cache, sink history.Sink, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		model:    status.NewModel(),
		renderer: renderer,
		uptime:   up,
		sink:     sink,
		logger:   logger,
		tickStop: make(chan struct{}),
	}
	var onToggle func(bool)
	if tr, ok := renderer.(ToggleRenderer); ok {
		onToggle = tr.OnToggleEnabled
	}
	c.lock = lock.New(renderer.OnLockChange, onToggle, logger)
	return c
}

// Apply is the merge function: it overwrites the role's record wholesale,
// persists uptime, drives the lock coordinator and notifies the renderer in
// one synchronous step, so a running role is never rendered behind an
// unlocked surface. The renderer callbacks fire while the coordinator mutex
// is held; see the status.Renderer contract for what they may not do.
func (c *Coordinator) Apply(st status.ProcessStatus, source status.Source) {
	ctx := context.Background()

	c.mu.Lock()
	prev := c.model.Get(st.Role)
	c.model.Set(st)
	aggregate := c.model.AggregateRunning()

	if c.uptime != nil {
		if st.Running && st.UptimeSec != nil {
			if err := c.uptime.Save(ctx, st.Role, *st.UptimeSec); err != nil {
				c.logger.Debug("uptime save failed", "role", st.Role, "error", err)
			}
		} else if prev.Running && !st.Running {
			// Transition to stopped clears the displayed uptime.
			if err := c.uptime.Save(ctx, st.Role, 0); err != nil {
				c.logger.Debug("uptime clear failed", "role", st.Role, "error", err)
			}
		}
	}

	c.lock.Observe(aggregate)
	c.renderer.OnStatusChange(st.Role, st)
	c.mu.Unlock()

	metrics.IncMerge(string(source))
	c.logger.Debug("status merged",
		"role", st.Role, "source", source, "running", st.Running, "status", st.StatusText)

	if prev.Running != st.Running && c.sink != nil {
		c.recordTransition(st)
	}
}

// ApplySnapshot merges both roles of a poll snapshot.
func (c *Coordinator) ApplySnapshot(snap status.Snapshot) {
	for _, st := range snap.Statuses() {
		c.Apply(st, status.SourcePoll)
	}
}

// BeginToggle records a user-initiated start/stop against the current
// aggregate state and disables the control until a status update confirms
// the change.
func (c *Coordinator) BeginToggle() {
	c.mu.Lock()
	aggregate := c.model.AggregateRunning()
	c.mu.Unlock()
	c.lock.BeginToggle(aggregate)
}

// Snapshot returns a copy of the model plus the derived flags.
func (c *Coordinator) Snapshot() (map[status.Role]status.ProcessStatus, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.Snapshot(), c.model.AggregateRunning(), c.lock.Locked()
}

// AggregateRunning returns the OR of all roles' running flags.
func (c *Coordinator) AggregateRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model.AggregateRunning()
}

// LockState exposes the lock coordinator's state for presentation.
func (c *Coordinator) LockState() lock.State { return c.lock.State() }

// StartTicker runs the 1-second local uptime extrapolation until Close.
// It re-renders running roles with the cached base plus elapsed wall time.
// Display only: the next real status message always overwrites it.
func (c *Coordinator) StartTicker() {
	if c.uptime == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.tickStop:
				return
			case now := <-ticker.C:
				c.extrapolate(now)
			}
		}
	}()
}

func (c *Coordinator) extrapolate(now time.Time) {
	ctx := context.Background()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, role := range status.Roles() {
		st := c.model.Get(role)
		if !st.Running {
			continue
		}
		rec, ok := c.uptime.Load(ctx, role)
		if !ok {
			continue
		}
		sec := rec.ExtrapolatedSec(now)
		display := st
		display.UptimeSec = &sec
		c.renderer.OnStatusChange(role, display)
	}
}

// Close stops the ticker and waits for it. Channel teardown is the owner's
// job; the coordinator only ever reacts to callbacks.
func (c *Coordinator) Close() {
	c.tickOnce.Do(func() { close(c.tickStop) })
	c.wg.Wait()
}

func (c *Coordinator) recordTransition(st status.ProcessStatus) {
	ev := history.Event{
		Type:       history.EventStopped,
		OccurredAt: time.Now().UTC(),
		Role:       st.Role,
		StatusText: st.StatusText,
		Error:      st.ErrorText,
	}
	if st.Running {
		ev.Type = history.EventStarted
	}
	if st.UptimeSec != nil {
		ev.UptimeSec = *st.UptimeSec
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), historySendTimeout)
		defer cancel()
		if err := c.sink.Send(ctx, ev); err != nil {
			c.logger.Warn("history export failed", "role", ev.Role, "type", ev.Type, "error", err)
		}
	}()
}
