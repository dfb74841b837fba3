package lock

import (
	"log/slog"
	"sync"

	"github.com/Copycord/console/internal/metrics"
)

// State of the editing-lock coordinator.
type State int

const (
	// Unlocked: no role is running; the editing surface accepts input.
	Unlocked State = iota
	// Locked: at least one role runs; the editing surface is disabled.
	Locked
	// TogglePending: a start/stop action is in flight. The start/stop
	// control is disabled until a status update confirms the state changed.
	TogglePending
)

func (s State) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case Locked:
		return "locked"
	case TogglePending:
		return "toggle_pending"
	default:
		return "unknown"
	}
}

// Coordinator derives the lock state for dependent editing surfaces from the
// aggregate running flag, and tracks the in-flight start/stop toggle.
//
// Transitions are triggered only by status model updates (Observe) and
// explicit user actions (BeginToggle). Lock callbacks fire synchronously
// inside Observe, in the same step as the model update: there is never an
// intermediate unlocked render while a role is running.
type Coordinator struct {
	mu sync.Mutex

	state           State
	locked          bool
	runningAtToggle bool

	onLockChange    func(locked bool)
	onToggleEnabled func(enabled bool)
	logger          *slog.Logger
}

// New creates a coordinator in the Unlocked state. onLockChange is invoked on
// every locked/unlocked transition; onToggleEnabled on every enable/disable
// of the start/stop control. Either callback may be nil.
func New(onLockChange func(bool), onToggleEnabled func(bool), logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		state:           Unlocked,
		onLockChange:    onLockChange,
		onToggleEnabled: onToggleEnabled,
		logger:          logger,
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Locked reports whether the editing surface is currently locked.
func (c *Coordinator) Locked() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locked
}

// BeginToggle records a user-initiated start/stop while currentRunning was
// the last known aggregate state. The start/stop control is disabled
// immediately to prevent double submission.
func (c *Coordinator) BeginToggle(currentRunning bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == TogglePending {
		return
	}
	c.state = TogglePending
	c.runningAtToggle = currentRunning
	metrics.IncLockTransition(TogglePending.String())
	c.logger.Debug("toggle pending", "running_at_toggle", currentRunning)
	if c.onToggleEnabled != nil {
		c.onToggleEnabled(false)
	}
}

// Observe feeds the aggregate running flag from a status merge. It resolves
// a pending toggle once the observed state differs from the state at the
// time of the action; if confirmation never arrives, the next poll reporting
// a different state self-heals the control. The lock output always follows
// aggregateRunning, pending toggle or not.
func (c *Coordinator) Observe(aggregateRunning bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == TogglePending && aggregateRunning != c.runningAtToggle {
		c.logger.Debug("toggle confirmed", "running", aggregateRunning)
		if c.onToggleEnabled != nil {
			c.onToggleEnabled(true)
		}
		c.state = Unlocked // resolved below
	}

	if c.state != TogglePending {
		if aggregateRunning {
			c.state = Locked
		} else {
			c.state = Unlocked
		}
	}

	if aggregateRunning != c.locked {
		c.locked = aggregateRunning
		to := Unlocked
		if c.locked {
			to = Locked
		}
		metrics.IncLockTransition(to.String())
		if c.onLockChange != nil {
			c.onLockChange(c.locked)
		}
	}
}
