package events

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Copycord/console/internal/metrics"
)

// DefaultReconnectDelay is the fixed delay before reopening a dropped
// stream. Retry continues only while the stream is open; Close cancels all
// pending reconnects.
const DefaultReconnectDelay = 1500 * time.Millisecond

// Event is one server-sent event. Name is empty for unnamed events.
type Event struct {
	Name string
	Data []byte
}

// Stream is a one-way server-push event stream (text/event-stream) with
// automatic reconnection. Two independent instances share this pattern: the
// domain bus and per-role log tailing.
type Stream struct {
	url     string
	client  *http.Client
	onEvent func(Event)
	// onError fires once per failed cycle; rate limiting toward the user
	// is the caller's concern (ToastGate).
	onError func(err error)
	delay   time.Duration
	channel string
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStream creates a stream client. channel names the stream for logs and
// metrics ("bus", "log-server", ...).
func NewStream(url, channel string, client *http.Client, onEvent func(Event), onError func(error), delay time.Duration, logger *slog.Logger) *Stream {
	if client == nil {
		client = http.DefaultClient
	}
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		url:     url,
		client:  client,
		onEvent: onEvent,
		onError: onError,
		delay:   delay,
		channel: channel,
		logger:  logger,
	}
}

// Open starts reading the stream. No-op when already open.
func (s *Stream) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)
}

// Close stops reading and cancels any pending reconnect synchronously.
func (s *Stream) Close() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

func (s *Stream) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		if ctx.Err() != nil {
			return
		}
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Debug("event stream dropped", "channel", s.channel, "error", err)
		if s.onError != nil {
			s.onError(err)
		}
		t := time.NewTimer(s.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		metrics.IncReconnect(s.channel)
	}
}

// consume opens one connection and dispatches events until it fails.
func (s *Stream) consume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var name string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 {
				s.onEvent(Event{Name: name, Data: []byte(strings.Join(data, "\n"))})
			}
			name = ""
			data = data[:0]
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	return fmt.Errorf("stream closed by server")
}
