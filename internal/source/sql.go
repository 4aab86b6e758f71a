package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/opsdesk/vigia/internal/db"
	"github.com/opsdesk/vigia/internal/report"
)

// SQL runs a fixed aggregate query against a relational database. The
// connection is opened for the duration of one fetch and closed on every
// exit path; nothing is pooled across runs because the link to the database
// comes and goes with the VPN.
type SQL struct {
	cfg   db.Config
	query string
	open  openFunc
}

type openFunc func(db.Config) (*sql.DB, error)

// NewSQL creates a source for the given connection config and query text.
func NewSQL(cfg db.Config, query string) *SQL {
	return &SQL{
		cfg:   cfg,
		query: query,
		open:  defaultOpen,
	}
}

// NewSQLWithOpener creates a source with a custom connection opener (tests).
func NewSQLWithOpener(cfg db.Config, query string, open openFunc) *SQL {
	return &SQL{
		cfg:   cfg,
		query: query,
		open:  open,
	}
}

func defaultOpen(cfg db.Config) (*sql.DB, error) {
	conn, err := db.OpenWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	return conn.DB, nil
}

// Fetch opens a connection, runs the query and scans every row into a
// generic table keyed by column name.
func (s *SQL) Fetch(ctx context.Context) (report.Table, error) {
	conn, err := s.open(s.cfg)
	if err != nil {
		return report.Table{}, fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, s.query)
	if err != nil {
		return report.Table{}, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return report.Table{}, fmt.Errorf("failed to read columns: %w", err)
	}

	table := report.Table{Columns: columns}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return report.Table{}, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(report.Row, len(columns))
		for i, col := range columns {
			row[col] = normalize(values[i])
		}
		table.Rows = append(table.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return report.Table{}, fmt.Errorf("row iteration failed: %w", err)
	}

	return table, nil
}

// normalize converts driver byte slices to strings so transforms can compare
// and parse them without caring which driver produced the row.
func normalize(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
