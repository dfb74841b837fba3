package status

import "fmt"

// Role identifies one of the two monitored Copycord processes.
type Role string

const (
	RoleServer Role = "server"
	RoleClient Role = "client"
)

// Roles returns all monitored roles in stable order.
func Roles() []Role { return []Role{RoleServer, RoleClient} }

// ParseRole validates a role string coming from flags or wire payloads.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleServer:
		return RoleServer, nil
	case RoleClient:
		return RoleClient, nil
	default:
		return "", fmt.Errorf("unknown role %q (want %q or %q)", s, RoleServer, RoleClient)
	}
}

// ProcessStatus is the per-role status record. It is overwritten wholesale on
// every merge; nothing outside the coordinator's merge path may mutate it.
type ProcessStatus struct {
	Role       Role     `json:"role"`
	Running    bool     `json:"running"`
	UptimeSec  *float64 `json:"uptime_sec,omitempty"`
	StatusText string   `json:"status"`
	OK         bool     `json:"ok"`
	ErrorText  string   `json:"error,omitempty"`
}

// Degraded reports whether the upstream says this role is unhealthy even
// though the transport delivering the report worked fine.
func (p ProcessStatus) Degraded() bool {
	return !p.OK || p.ErrorText != ""
}

// Unknown returns the placeholder status used before any channel has
// reported for the role.
func Unknown(role Role) ProcessStatus {
	return ProcessStatus{Role: role, Running: false, StatusText: "unknown", OK: true}
}

// Model maps each role to its current status and derives the aggregate
// running flag. It is not safe for concurrent use on its own; the
// coordinator serializes all access.
type Model struct {
	byRole map[Role]ProcessStatus
}

// NewModel creates a model with both roles in the unknown/stopped state.
func NewModel() *Model {
	m := &Model{byRole: make(map[Role]ProcessStatus, 2)}
	for _, r := range Roles() {
		m.byRole[r] = Unknown(r)
	}
	return m
}

// Get returns the current status for role.
func (m *Model) Get(role Role) ProcessStatus { return m.byRole[role] }

// Set overwrites the status record for st.Role. Last write wins; there is no
// cross-channel ordering guarantee and none is needed because the caller
// serializes merges.
func (m *Model) Set(st ProcessStatus) { m.byRole[st.Role] = st }

// AggregateRunning is the logical OR of every role's running flag. It drives
// the lock state for dependent editing surfaces.
func (m *Model) AggregateRunning() bool {
	for _, st := range m.byRole {
		if st.Running {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of all role statuses.
func (m *Model) Snapshot() map[Role]ProcessStatus {
	out := make(map[Role]ProcessStatus, len(m.byRole))
	for r, st := range m.byRole {
		out[r] = st
	}
	return out
}

// Renderer is the side-effecting callback contract between the sync core and
// whatever presents it. The core never touches presentation directly, which
// keeps merge/backoff/gating logic testable headless.
//
// Callbacks run synchronously inside the coordinator's merge step, so the
// rendered lock state always matches the model that produced it. A Renderer
// must therefore return promptly and must not call back into the coordinator
// or Console (Snapshot, Apply, StartRole and friends); doing so deadlocks.
type Renderer interface {
	OnStatusChange(role Role, st ProcessStatus)
	OnLockChange(locked bool)
}

// Source tags which channel produced a merge, for logging and metrics.
type Source string

const (
	SourcePoll Source = "poll"
	SourcePush Source = "push"
	SourceBus  Source = "bus"
)
