package status

import (
	"encoding/json"
	"errors"
)

// Wire shapes for the three update channels. All of them normalize to
// ProcessStatus through the helpers below; malformed payloads are reported
// as errors and dropped by the caller without closing the channel.

// WireStatus is one role's entry in the poll snapshot, and also the payload
// shape shared by the push and bus channels.
type WireStatus struct {
	Running   bool     `json:"running"`
	UptimeSec *float64 `json:"uptime_sec"`
	Status    string   `json:"status"`
	// OK is a pointer because older servers omit it; absence means healthy.
	OK    *bool  `json:"ok"`
	Error string `json:"error"`
	// Note is the field name used by the generic push envelope.
	Note string `json:"note"`
}

// ToProcessStatus normalizes a wire status for the given role.
func (w WireStatus) ToProcessStatus(role Role) ProcessStatus {
	ok := true
	if w.OK != nil {
		ok = *w.OK
	}
	text := w.Status
	if text == "" {
		text = w.Note
	}
	if text == "" {
		if w.Running {
			text = "running"
		} else {
			text = "stopped"
		}
	}
	return ProcessStatus{
		Role:       role,
		Running:    w.Running,
		UptimeSec:  w.UptimeSec,
		StatusText: text,
		OK:         ok,
		ErrorText:  w.Error,
	}
}

// Snapshot is the body of GET /api/status: a point-in-time view of both
// roles.
type Snapshot struct {
	Server WireStatus `json:"server"`
	Client WireStatus `json:"client"`
}

// Statuses normalizes both roles of a snapshot.
func (s Snapshot) Statuses() []ProcessStatus {
	return []ProcessStatus{
		s.Server.ToProcessStatus(RoleServer),
		s.Client.ToProcessStatus(RoleClient),
	}
}

// Degraded reports whether any role in the snapshot is unhealthy.
func (s Snapshot) Degraded() bool {
	for _, st := range s.Statuses() {
		if st.Degraded() {
			return true
		}
	}
	return false
}

// pushEnvelope accepts both inbound push message shapes:
//
//	{"type":"status","source":"server","data":{...}}          (generic)
//	{"kind":"agent","type":"status","role":"server","data":{...}} (agent)
type pushEnvelope struct {
	Kind   string          `json:"kind"`
	Type   string          `json:"type"`
	Source string          `json:"source"`
	Role   string          `json:"role"`
	Data   json.RawMessage `json:"data"`
}

// ErrNotStatus marks a well-formed push message that is not a status update.
// The caller ignores it without logging noise.
var ErrNotStatus = errors.New("not a status message")

// DecodePush parses a raw push socket message into a ProcessStatus.
// Malformed payloads return an error; the channel stays open regardless.
func DecodePush(raw []byte) (ProcessStatus, error) {
	var env pushEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ProcessStatus{}, err
	}
	if env.Type != "status" {
		return ProcessStatus{}, ErrNotStatus
	}
	roleStr := env.Source
	if env.Kind == "agent" {
		roleStr = env.Role
	}
	role, err := ParseRole(roleStr)
	if err != nil {
		return ProcessStatus{}, err
	}
	if len(env.Data) == 0 {
		return ProcessStatus{}, errors.New("status message without data")
	}
	var w WireStatus
	if err := json.Unmarshal(env.Data, &w); err != nil {
		return ProcessStatus{}, err
	}
	return w.ToProcessStatus(role), nil
}

// BusEvent is one message on the server-sent event bus.
// Kind is "status" or "filters".
type BusEvent struct {
	Kind    string          `json:"kind"`
	Role    string          `json:"role"`
	Payload json.RawMessage `json:"payload"`
}

const (
	BusKindStatus  = "status"
	BusKindFilters = "filters"
)

// StatusPayload decodes the payload of a kind=="status" bus event.
func (e BusEvent) StatusPayload() (ProcessStatus, error) {
	if e.Kind != BusKindStatus {
		return ProcessStatus{}, ErrNotStatus
	}
	role, err := ParseRole(e.Role)
	if err != nil {
		return ProcessStatus{}, err
	}
	var w WireStatus
	if err := json.Unmarshal(e.Payload, &w); err != nil {
		return ProcessStatus{}, err
	}
	return w.ToProcessStatus(role), nil
}

// LogMessage is the body of one log stream event: either a batch of lines or
// a single line.
type LogMessage struct {
	Lines []string `json:"lines"`
	Line  string   `json:"line"`
}

// All flattens the message into its lines.
func (m LogMessage) All() []string {
	if len(m.Lines) > 0 {
		return m.Lines
	}
	if m.Line != "" {
		return []string{m.Line}
	}
	return nil
}
