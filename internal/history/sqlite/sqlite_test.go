package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Copycord/console/internal/history"
	"github.com/Copycord/console/internal/status"
)

func TestSinkSendAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	sink, err := New(path)
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	require.NoError(t, sink.Send(ctx, history.Event{
		Type:       history.EventStarted,
		OccurredAt: time.Now().UTC(),
		Role:       status.RoleServer,
		UptimeSec:  0,
		StatusText: "running",
	}))
	require.NoError(t, sink.Send(ctx, history.Event{
		Type:       history.EventStopped,
		OccurredAt: time.Now().UTC(),
		Role:       status.RoleServer,
		UptimeSec:  42,
		StatusText: "stopped",
		Error:      "exit status 1",
	}))

	var count int
	require.NoError(t, sink.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM status_history`).Scan(&count))
	assert.Equal(t, 2, count)

	var typ, errText string
	require.NoError(t, sink.db.QueryRowContext(ctx,
		`SELECT type, error FROM status_history WHERE uptime_sec = 42`).Scan(&typ, &errText))
	assert.Equal(t, "stopped", typ)
	assert.Equal(t, "exit status 1", errText)
}

func TestNewDSNVariants(t *testing.T) {
	dir := t.TempDir()

	sink, err := New("sqlite://" + filepath.Join(dir, "a.db"))
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	sink, err = New(":memory:")
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	_, err = New("")
	assert.Error(t, err)
}
