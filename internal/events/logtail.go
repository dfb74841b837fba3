package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Copycord/console/internal/metrics"
	"github.com/Copycord/console/internal/status"
)

// LogTail tails one role's log stream into a bounded ring. It exists only
// while its view is open; Close cancels the stream and all pending
// reconnects.
type LogTail struct {
	role     status.Role
	ring     *Ring
	follower *Follower
	stream   *Stream
	logger   *slog.Logger

	// onLines receives each appended batch plus whether the view should
	// scroll to the bottom.
	onLines func(lines []string, follow bool)
}

// NewLogTail creates a tail for role reading from url. onError fires once
// per dropped connection (gate it before the user sees it).
func NewLogTail(role status.Role, url string, client *http.Client, capacity int, onLines func([]string, bool), onError func(error), delay time.Duration, logger *slog.Logger) *LogTail {
	if logger == nil {
		logger = slog.Default()
	}
	t := &LogTail{
		role:     role,
		ring:     NewRing(capacity),
		follower: NewFollower(0),
		logger:   logger,
		onLines:  onLines,
	}
	t.stream = NewStream(url, "log-"+string(role), client, t.dispatch, onError, delay, logger)
	return t
}

func (t *LogTail) Open()  { t.stream.Open() }
func (t *LogTail) Close() { t.stream.Close() }

// Lines returns the buffered tail, oldest first.
func (t *LogTail) Lines() []string { return t.ring.Snapshot() }

// UpdateScroll feeds the viewer's distance from the bottom; new content only
// forces scroll-to-bottom while the viewer is near it.
func (t *LogTail) UpdateScroll(distanceFromBottom int) {
	t.follower.UpdateScroll(distanceFromBottom)
}

func (t *LogTail) dispatch(ev Event) {
	var msg status.LogMessage
	if err := json.Unmarshal(ev.Data, &msg); err != nil {
		t.logger.Debug("dropping malformed log message", "role", t.role, "error", err)
		return
	}
	lines := msg.All()
	if len(lines) == 0 {
		return
	}
	evicted := t.ring.Append(lines...)
	metrics.AddLogLinesDropped(string(t.role), evicted)
	if t.onLines != nil {
		t.onLines(lines, t.follower.ShouldFollow())
	}
}
