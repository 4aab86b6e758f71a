package history

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk/vigia/internal/db"
	"github.com/opsdesk/vigia/internal/job"
)

// Record is one persisted run outcome.
type Record struct {
	RunID   string
	Job     string
	RanAt   time.Time
	Outcome string
	Detail  string
}

// Store keeps a local log of job outcomes for operators to inspect after the
// fact. Writes go through a buffered channel and a background writer so a
// slow disk can never stall a tick; when the buffer is full the record is
// dropped with a warning, since history is observability, not state.
type Store struct {
	db     *db.DB
	logger *slog.Logger

	ch       chan Record
	wg       sync.WaitGroup
	closed   sync.Once
	writeErr func(err error) // test hook, nil in production
}

const schema = `
CREATE TABLE IF NOT EXISTS job_runs (
	run_id  TEXT PRIMARY KEY,
	job     TEXT NOT NULL,
	ran_at  TIMESTAMP NOT NULL,
	outcome TEXT NOT NULL,
	detail  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_job_runs_ran_at ON job_runs(ran_at);
`

// Open opens (or creates) the history database and starts the writer.
func Open(cfg db.Config, bufferSize int, logger *slog.Logger) (*Store, error) {
	conn, err := db.OpenWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	if bufferSize <= 0 {
		bufferSize = 64
	}

	s := &Store{
		db:     conn,
		logger: logger,
		ch:     make(chan Record, bufferSize),
	}

	s.wg.Add(1)
	go s.runWriter()

	return s, nil
}

// Record buffers one outcome for persistence. Matches schedule.RecordFunc.
func (s *Store) Record(jobName string, at time.Time, outcome job.Outcome) {
	rec := Record{
		RunID:   uuid.NewString(),
		Job:     jobName,
		RanAt:   at,
		Outcome: outcome.Status.String(),
	}

	switch {
	case outcome.Err != nil:
		rec.Detail = outcome.Err.Error()
	case outcome.Reason != "":
		rec.Detail = outcome.Reason
	}

	select {
	case s.ch <- rec:
	default:
		s.logger.Warn("history buffer full, dropping record",
			"job", jobName,
			"outcome", rec.Outcome)
	}
}

// Recent returns the most recent records, newest first.
func (s *Store) Recent(limit int) ([]Record, error) {
	query := `
		SELECT run_id, job, ran_at, outcome, detail
		FROM job_runs
		ORDER BY ran_at DESC, run_id
		LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.RunID, &rec.Job, &rec.RanAt, &rec.Outcome, &rec.Detail); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Close drains pending records and closes the database.
func (s *Store) Close() error {
	s.closed.Do(func() {
		close(s.ch)
	})
	s.wg.Wait()
	return s.db.Close()
}

// runWriter drains the channel until Close.
func (s *Store) runWriter() {
	defer s.wg.Done()

	for rec := range s.ch {
		if err := s.insert(rec); err != nil {
			s.logger.Error("failed to write history record",
				"job", rec.Job,
				"error", err)
			if s.writeErr != nil {
				s.writeErr(err)
			}
		}
	}
}

func (s *Store) insert(rec Record) error {
	_, err := s.db.Exec(`
		INSERT INTO job_runs (run_id, job, ran_at, outcome, detail)
		VALUES (?, ?, ?, ?, ?)`,
		rec.RunID, rec.Job, rec.RanAt, rec.Outcome, rec.Detail)
	return err
}
