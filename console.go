// Package console implements the live status synchronization core of the
// Copycord operator console: it merges updates from polling, the push socket
// and the server-sent event bus into one authoritative status model, adapts
// its polling cadence to network health, derives the editing-lock state, and
// gates notification noise during connection churn.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/Copycord/console/internal/config"
	"github.com/Copycord/console/internal/coordinator"
	"github.com/Copycord/console/internal/events"
	"github.com/Copycord/console/internal/history"
	"github.com/Copycord/console/internal/history/factory"
	"github.com/Copycord/console/internal/metrics"
	"github.com/Copycord/console/internal/poller"
	"github.com/Copycord/console/internal/push"
	iapi "github.com/Copycord/console/internal/server"
	"github.com/Copycord/console/internal/status"
	"github.com/Copycord/console/internal/store"
	"github.com/Copycord/console/internal/toast"
	"github.com/Copycord/console/internal/uptime"
	"github.com/Copycord/console/pkg/client"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Role = status.Role

const (
	RoleServer = status.RoleServer
	RoleClient = status.RoleClient
)

type ProcessStatus = status.ProcessStatus

type Renderer = status.Renderer

type Notifier = toast.Notifier

type Config = cfg.Config

// LoadConfig reads a TOML config file, falling back to defaults.
func LoadConfig(path string) (Config, error) { return cfg.Load(path) }

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config { return cfg.Default() }

// Toast keys used for channel health. Exposed so embedders can mark them
// launched around their own user actions.
const (
	ToastPushConnected = "push-connected"
	ToastPushLost      = "push-lost"
	ToastBusLost       = "bus-lost"
)

// Console wires the sync core together for one page session: status model,
// poll scheduler, push channel, event bus, toast gate and lock coordinator.
// Construct with New, then Open. Close tears everything down.
type Console struct {
	cfg      Config
	logger   *slog.Logger
	client   *client.Client
	store    store.ExpiringStore
	sink     history.Sink
	coord    *coordinator.Coordinator
	sched    *poller.Scheduler
	pushCh   *push.Channel
	bus      *events.Bus
	toasts   *toast.Gate
	httpSrv  *http.Server
	logClose io.Closer

	mu     sync.Mutex
	opened bool
}

// Options carries the injectable collaborators.
type Options struct {
	Renderer status.Renderer
	Notifier toast.Notifier
	// OnFiltersInvalidated is called when the bus announces that cached
	// guild filter data is stale. May be nil.
	OnFiltersInvalidated func()
	Logger               *slog.Logger
	// LogCloser is closed on Close when the logger owns a file.
	LogCloser io.Closer
}

// New builds a Console from configuration. It registers metrics with the
// default Prometheus registry.
func New(c Config, opts Options) (*Console, error) {
	if opts.Renderer == nil {
		return nil, fmt.Errorf("console: a Renderer is required")
	}
	if opts.Notifier == nil {
		return nil, fmt.Errorf("console: a Notifier is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("console: register metrics: %w", err)
	}

	sessionStore, err := store.NewFromDSN(c.Store.DSN, sessionID(c))
	if err != nil {
		return nil, fmt.Errorf("console: open session store: %w", err)
	}

	var sink history.Sink
	if c.History.DSN != "" {
		sink, err = factory.NewSinkFromDSN(c.History.DSN)
		if err != nil {
			_ = sessionStore.Close()
			return nil, fmt.Errorf("console: open history sink: %w", err)
		}
	}

	api := client.New(client.Config{
		BaseURL:  c.API.BaseURL,
		Timeout:  c.API.Timeout,
		Logger:   logger,
		Insecure: c.API.Insecure,
		TLS: &client.TLSClientConfig{
			Enabled:    c.API.TLS.Enabled,
			CACert:     c.API.TLS.CACert,
			ClientCert: c.API.TLS.ClientCert,
			ClientKey:  c.API.TLS.ClientKey,
			ServerName: c.API.TLS.ServerName,
			SkipVerify: c.API.TLS.SkipVerify,
		},
	})

	up := uptime.New(sessionStore, c.Uptime.MaxAge, logger)
	coord := coordinator.New(opts.Renderer, up, sink, logger)
	toasts := toast.New(sessionStore, opts.Notifier, c.Toast.TTL, c.Toast.Quiet, logger)

	con := &Console{
		cfg:      c,
		logger:   logger,
		client:   api,
		store:    sessionStore,
		sink:     sink,
		coord:    coord,
		toasts:   toasts,
		logClose: opts.LogCloser,
	}

	con.sched = poller.New(api.Status, coord.ApplySnapshot, poller.Intervals{
		Steady:     c.Poll.Steady,
		Relaxed:    c.Poll.Relaxed,
		Hidden:     c.Poll.Hidden,
		Degraded:   c.Poll.Degraded,
		MaxBackoff: c.Poll.MaxBackoff,
	}, logger)

	con.pushCh = push.New(c.Push.URL, push.Handlers{
		OnStatus: func(st status.ProcessStatus) { coord.Apply(st, status.SourcePush) },
		OnOpen: func() {
			con.sched.SetPushConnected(true)
			toasts.WSGate(context.Background(), ToastPushConnected,
				"Live connection established", toast.LevelSuccess, false, 0)
		},
		OnClose: func(err error) {
			con.sched.SetPushConnected(false)
			toasts.WSGate(context.Background(), ToastPushLost,
				"Live connection lost, retrying", toast.LevelWarning, false, 0)
		},
	}, c.Push.ReconnectDelay, logger)

	con.bus = events.NewBus(c.Events.BusURL, nil, events.BusHandlers{
		OnStatus:             func(st status.ProcessStatus) { coord.Apply(st, status.SourceBus) },
		OnFiltersInvalidated: opts.OnFiltersInvalidated,
		OnError: func(err error) {
			toasts.WSGate(context.Background(), ToastBusLost,
				"Event stream lost, retrying", toast.LevelWarning, false, 0)
		},
	}, c.Events.ReconnectDelay, logger)

	return con, nil
}

// Open starts all channels: polling at the steady interval, the push socket
// and the event bus, plus the 1-second uptime extrapolation ticker and the
// optional read-model HTTP server.
func (c *Console) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		return nil
	}
	c.opened = true

	c.coord.StartTicker()
	c.sched.Start(c.cfg.Poll.Steady)
	c.pushCh.Open()
	c.bus.Open()

	if c.cfg.Server.Enabled {
		srv, err := iapi.NewServer(c.cfg.Server.Listen, c.cfg.Server.BasePath, c.coord)
		if err != nil {
			return fmt.Errorf("console: start read-model server: %w", err)
		}
		c.httpSrv = srv
	}
	c.logger.Info("console opened",
		"api", c.cfg.API.BaseURL, "push", c.cfg.Push.URL, "bus", c.cfg.Events.BusURL)
	return nil
}

// Close tears the session down: channels, timers, store and history sink.
func (c *Console) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opened {
		return
	}
	c.opened = false

	c.pushCh.Close()
	c.bus.Close()
	c.sched.Stop()
	c.coord.Close()
	if c.sink != nil {
		// after coord.Close so in-flight transition records have drained
		_ = c.sink.Close()
		c.sink = nil
	}
	if c.httpSrv != nil {
		_ = c.httpSrv.Close()
		c.httpSrv = nil
	}
	_ = c.store.Close()
	if c.logClose != nil {
		_ = c.logClose.Close()
	}
	c.logger.Info("console closed")
}

// StartRole performs the user-initiated start action for role: disables the
// toggle control, calls the API, and bursts polling so the displayed state
// converges quickly. A rejection surfaces once with the server's message.
func (c *Console) StartRole(ctx context.Context, role Role) error {
	return c.toggleRole(ctx, role, c.client.Start)
}

// StopRole performs the user-initiated stop action for role.
func (c *Console) StopRole(ctx context.Context, role Role) error {
	return c.toggleRole(ctx, role, c.client.Stop)
}

func (c *Console) toggleRole(ctx context.Context, role Role, action func(context.Context, Role) error) error {
	c.coord.BeginToggle()
	c.toasts.MarkLaunched(ctx, ToastPushConnected)
	if err := action(ctx, role); err != nil {
		c.toasts.Once(ctx, "action-"+string(role), err.Error(), toast.LevelError, 0)
		return err
	}
	c.sched.Burst(c.cfg.Poll.BurstFast, c.cfg.Poll.BurstDuration, c.cfg.Poll.Steady)
	return nil
}

// PollOnce performs a single status poll, merging the snapshot into the
// model. Useful for one-shot inspection without opening the channels.
func (c *Console) PollOnce(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.sched.Poll(ctx)
}

// SetVisible forwards visibility of the presenting surface to the poll
// scheduler.
func (c *Console) SetVisible(visible bool) { c.sched.SetVisible(visible) }

// Restore handles a resume from history cache: stale toasts are cleared
// along with their dedup keys, and an immediate poll converges the display.
func (c *Console) Restore(ctx context.Context) {
	c.toasts.ClearAll(ctx)
	go c.sched.Poll(context.Background())
}

// Snapshot returns a copy of the current model plus derived flags.
func (c *Console) Snapshot() (map[Role]ProcessStatus, bool, bool) {
	return c.coord.Snapshot()
}

// TailLogs opens the log stream for role. The returned tail is owned by the
// caller; closing it cancels the stream and its reconnects. Stream errors
// are rate-limited to one toast per TTL window.
func (c *Console) TailLogs(role Role, onLines func(lines []string, follow bool)) *events.LogTail {
	url := fmt.Sprintf(c.cfg.Events.LogURLTemplate, role)
	key := "log-" + string(role) + "-lost"
	tail := events.NewLogTail(role, url, nil, c.cfg.Events.LogCapacity, onLines,
		func(err error) {
			c.toasts.Once(context.Background(), key,
				fmt.Sprintf("Log stream for %s lost, retrying", role), toast.LevelWarning, 0)
		}, c.cfg.Events.ReconnectDelay, c.logger)
	tail.Open()
	return tail
}

func sessionID(c Config) string {
	if c.SessionID != "" {
		return c.SessionID
	}
	return fmt.Sprintf("session-%d", time.Now().UnixNano())
}
