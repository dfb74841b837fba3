package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Copycord/console/internal/status"
)

// BusHandlers receive decoded domain bus events.
type BusHandlers struct {
	// OnStatus gets status events, merged into the model identically to
	// push messages.
	OnStatus func(st status.ProcessStatus)
	// OnFiltersInvalidated tells the filters CRUD collaborator to drop its
	// cache. The semantics of the filters themselves are out of scope here.
	OnFiltersInvalidated func()
	// OnError fires once per dropped connection, before the reconnect
	// delay. Rate limiting toward the user is the caller's concern.
	OnError func(err error)
}

// Bus consumes the domain event bus: status changes and filter-invalidation
// notices.
type Bus struct {
	stream *Stream
	logger *slog.Logger
}

// NewBus creates the bus consumer for the given SSE endpoint.
func NewBus(url string, client *http.Client, h BusHandlers, delay time.Duration, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{logger: logger}
	b.stream = NewStream(url, "bus", client, func(ev Event) { b.dispatch(ev, h) }, h.OnError, delay, logger)
	return b
}

func (b *Bus) Open()  { b.stream.Open() }
func (b *Bus) Close() { b.stream.Close() }

func (b *Bus) dispatch(ev Event, h BusHandlers) {
	var be status.BusEvent
	if err := json.Unmarshal(ev.Data, &be); err != nil {
		b.logger.Debug("dropping malformed bus event", "error", err)
		return
	}
	switch be.Kind {
	case status.BusKindStatus:
		st, err := be.StatusPayload()
		if err != nil {
			b.logger.Debug("dropping malformed bus status", "error", err)
			return
		}
		if h.OnStatus != nil {
			h.OnStatus(st)
		}
	case status.BusKindFilters:
		if h.OnFiltersInvalidated != nil {
			h.OnFiltersInvalidated()
		}
	default:
		b.logger.Debug("ignoring bus event", "kind", be.Kind)
	}
}
