package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/Copycord/console/internal/history"
)

// Sink sends status transition events to ClickHouse using the official
// ClickHouse Go client.
type Sink struct {
	conn  driver.Conn
	table string
}

// New connects to addr ("host:port") and writes into table in the default
// database.
func New(addr, table string) (*Sink, error) {
	if table == "" {
		table = "status_history"
	}
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: "default",
			Password: "",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping ClickHouse: %w", err)
	}
	return &Sink{conn: conn, table: table}, nil
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	query := fmt.Sprintf(`INSERT INTO %s (occurred_at, role, type, uptime_sec, status, error) VALUES (?, ?, ?, ?, ?, ?)`, s.table)
	err := s.conn.Exec(ctx, query,
		e.OccurredAt,
		string(e.Role),
		string(e.Type),
		e.UptimeSec,
		e.StatusText,
		e.Error,
	)
	if err != nil {
		return fmt.Errorf("insert event into ClickHouse: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
