// Package sqlite persists conversation notifications to a SQLite journal.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/flowtalk/internal/logging"
	"github.com/aretw0/flowtalk/pkg/domain"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var journalSchema string

// Event is one journaled notification.
type Event struct {
	SessionID string
	Seq       int64
	Action    string
	StepID    string
	Time      time.Time
}

// Journal appends every notification of observed conversations to SQLite.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time

	// mu serializes appends so per-session sequence numbers stay dense.
	mu sync.Mutex
}

type Option func(*Journal)

// WithLogger sets the logger used to report failed appends.
func WithLogger(logger *slog.Logger) Option {
	return func(j *Journal) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) {
		j.now = now
	}
}

// Open opens (or creates) a journal at dsn.
func Open(dsn string, opts ...Option) (*Journal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	if _, err := db.Exec(journalSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: create schema: %w", err)
	}

	j := &Journal{
		db:     db,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Observer returns an observer journaling under sessionID. Observers must
// not fail, so append errors are logged and dropped.
func (j *Journal) Observer(sessionID string) domain.Observer {
	return &sessionObserver{journal: j, session: sessionID}
}

type sessionObserver struct {
	journal *Journal
	session string
}

func (o *sessionObserver) Notify(action string, step *domain.Step) {
	if err := o.journal.Append(context.Background(), o.session, action, domain.StepID(step)); err != nil {
		o.journal.logger.Warn("journal append failed", "session", o.session, "action", action, "err", err)
	}
}

// Append records one notification.
func (j *Journal) Append(ctx context.Context, sessionID, action, stepID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (session_id, seq, action, step_id, time)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE session_id = ?), ?, ?, ?)`,
		sessionID, sessionID, action, stepID, j.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("journal: append: %w", err)
	}
	return nil
}

// Events returns the journal of a session in order.
func (j *Journal) Events(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT session_id, seq, action, step_id, time FROM events
		 WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e  Event
			ts string
		)
		if err := rows.Scan(&e.SessionID, &e.Seq, &e.Action, &e.StepID, &ts); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		if e.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("journal: parse time: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Sessions returns the distinct journaled session ids.
func (j *Journal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT DISTINCT session_id FROM events ORDER BY session_id`)
	if err != nil {
		return nil, fmt.Errorf("journal: sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("journal: scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
