package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/ansup-io/ansup/internal/history"
)

// Sink writes lifecycle events to ClickHouse using the official Go client.
type Sink struct {
	conn  driver.Conn
	table string
}

// Options carries connection parameters; zero values fall back to the
// client defaults (database "default", user "default").
type Options struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
}

func New(opts Options) (*Sink, error) {
	db := opts.Database
	if db == "" {
		db = "default"
	}
	user := opts.Username
	if user == "" {
		user = "default"
	}
	table := opts.Table
	if table == "" {
		table = "analysis_events"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: db,
			Username: user,
			Password: opts.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return &Sink{conn: conn, table: table}, nil
}

// EnsureSchema creates the events table if missing.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		type String,
		analysis_id String,
		name String,
		kind String,
		occurred_at DateTime64(3),
		exit_code Int32,
		detail String
	) ENGINE = MergeTree() ORDER BY (analysis_id, occurred_at)`, s.table)
	return s.conn.Exec(ctx, q)
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	q := fmt.Sprintf(`INSERT INTO %s (type, analysis_id, name, kind, occurred_at, exit_code, detail) VALUES (?, ?, ?, ?, ?, ?, ?)`, s.table)
	if err := s.conn.Exec(ctx, q,
		string(e.Type),
		e.AnalysisID,
		e.Name,
		e.Kind,
		e.OccurredAt,
		int32(e.ExitCode),
		e.Detail,
	); err != nil {
		return fmt.Errorf("insert event into clickhouse: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
