// Package mysql persists swap attempts to MySQL.
package mysql

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"tradeagent/internal/logger"
	"tradeagent/internal/swap"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	recordTimeout = 5 * time.Second
	queueSize     = 256
)

// Config describes the journal database
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Journal records every swap attempt, one row per attempt, updated as the
// attempt moves through its states. It implements swap.Recorder.
// Writes happen on a single background goroutine in arrival order, so a
// slow database never holds up a swap.
type Journal struct {
	db    *sql.DB
	log   *logger.Logger
	write func(ctx context.Context, e entry) error

	mu     sync.RWMutex
	closed bool
	queue  chan entry
	done   chan struct{}
}

// entry is one queued transition; flushed marks a Sync barrier instead
type entry struct {
	requestID string
	req       swap.Request
	attempt   swap.Attempt
	flushed   chan struct{}
}

var _ swap.Recorder = (*Journal)(nil)

// Open connects to MySQL and creates the swap_attempts table if needed
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*Journal, error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open mysql")
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping mysql")
	}

	j := NewJournal(db, log)
	if err := j.initSchema(ctx); err != nil {
		_ = j.Close()
		return nil, err
	}
	return j, nil
}

// NewJournal wraps an open database without touching the schema
func NewJournal(db *sql.DB, log *logger.Logger) *Journal {
	return newJournal(db, log, nil)
}

func newJournal(db *sql.DB, log *logger.Logger, write func(ctx context.Context, e entry) error) *Journal {
	if log == nil {
		log = logger.Nop()
	}
	j := &Journal{
		db:    db,
		log:   log,
		write: write,
		queue: make(chan entry, queueSize),
		done:  make(chan struct{}),
	}
	if j.write == nil {
		j.write = j.upsert
	}
	go j.run()
	return j
}

func (j *Journal) run() {
	defer close(j.done)
	for e := range j.queue {
		if e.flushed != nil {
			close(e.flushed)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		if err := j.write(ctx, e); err != nil {
			j.log.Error("swap journal: request %s attempt %d: %v", e.requestID, e.attempt.Number, err)
		}
		cancel()
	}
}

// normalizeDSN validates the DSN and enables time parsing
func normalizeDSN(dsn string) (string, error) {
	if strings.TrimSpace(dsn) == "" {
		return "", errors.New("mysql dsn cannot be empty")
	}
	parsed, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return "", errors.Wrap(err, "parse mysql dsn")
	}
	parsed.ParseTime = true
	return parsed.FormatDSN(), nil
}

func (j *Journal) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS swap_attempts (
        id CHAR(36) PRIMARY KEY,
        request_id CHAR(36) NOT NULL,
        attempt INT NOT NULL,
        state VARCHAR(16) NOT NULL,
        outcome VARCHAR(16) NOT NULL,
        from_mint VARCHAR(64) NOT NULL,
        to_mint VARCHAR(64) NOT NULL,
        amount BIGINT UNSIGNED NOT NULL,
        slippage_bps INT NOT NULL,
        out_amount BIGINT UNSIGNED NOT NULL DEFAULT 0,
        tx_id VARCHAR(128) NOT NULL DEFAULT '',
        reason TEXT,
        started_at DATETIME(3) NOT NULL,
        finished_at DATETIME(3) NULL,
        updated_at DATETIME(3) NOT NULL,
        UNIQUE KEY uniq_request_attempt (request_id, attempt),
        INDEX idx_swap_outcome (outcome),
        INDEX idx_swap_updated (updated_at)
)`
	if _, err := j.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "create swap_attempts table")
	}
	return nil
}

const upsertAttempt = `INSERT INTO swap_attempts
        (id, request_id, attempt, state, outcome, from_mint, to_mint, amount, slippage_bps,
         out_amount, tx_id, reason, started_at, finished_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON DUPLICATE KEY UPDATE
         state = VALUES(state), outcome = VALUES(outcome), out_amount = VALUES(out_amount),
         tx_id = VALUES(tx_id), reason = VALUES(reason), finished_at = VALUES(finished_at),
         updated_at = VALUES(updated_at)`

// RecordAttempt queues the attempt row for upsert and returns at once.
// When the queue is full the transition is dropped and logged.
func (j *Journal) RecordAttempt(ctx context.Context, requestID string, req swap.Request, a swap.Attempt) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		j.log.Warn("swap journal closed, dropping request %s attempt %d", requestID, a.Number)
		return
	}
	select {
	case j.queue <- entry{requestID: requestID, req: req, attempt: a}:
	default:
		j.log.Error("swap journal queue full, dropping request %s attempt %d (%s)", requestID, a.Number, a.State)
	}
}

// Sync waits until every transition queued before the call is written
func (j *Journal) Sync(ctx context.Context) error {
	flushed := make(chan struct{})

	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return nil
	}
	select {
	case j.queue <- entry{flushed: flushed}:
		j.mu.RUnlock()
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Journal) upsert(ctx context.Context, e entry) error {
	a := e.attempt
	var finished sql.NullTime
	if !a.FinishedAt.IsZero() {
		finished = sql.NullTime{Time: a.FinishedAt.UTC(), Valid: true}
	}

	_, err := j.db.ExecContext(ctx, upsertAttempt,
		uuid.NewString(),
		e.requestID,
		a.Number,
		string(a.State),
		string(a.Outcome),
		e.req.FromMint,
		e.req.ToMint,
		e.req.Amount,
		e.req.SlippageBps,
		a.OutAmount,
		a.TxID,
		a.Reason,
		a.StartedAt.UTC(),
		finished,
		time.Now().UTC(),
	)
	return err
}

// Attempts returns the recorded attempts of one request in order
func (j *Journal) Attempts(ctx context.Context, requestID string) ([]swap.Attempt, error) {
	const stmt = `SELECT attempt, state, outcome, reason, tx_id, out_amount, started_at, finished_at
        FROM swap_attempts WHERE request_id = ? ORDER BY attempt`

	rows, err := j.db.QueryContext(ctx, stmt, requestID)
	if err != nil {
		return nil, errors.Wrap(err, "query swap attempts")
	}
	defer rows.Close()

	var out []swap.Attempt
	for rows.Next() {
		var (
			a        swap.Attempt
			state    string
			outcome  string
			reason   sql.NullString
			finished sql.NullTime
		)
		if err := rows.Scan(&a.Number, &state, &outcome, &reason, &a.TxID, &a.OutAmount, &a.StartedAt, &finished); err != nil {
			return nil, errors.Wrap(err, "scan swap attempt")
		}
		a.State = swap.State(state)
		a.Outcome = swap.AttemptOutcome(outcome)
		a.Reason = reason.String
		if finished.Valid {
			a.FinishedAt = finished.Time
		}
		out = append(out, a)
	}
	return out, errors.Wrap(rows.Err(), "iterate swap attempts")
}

// Close writes what is queued, then closes the database
func (j *Journal) Close() error {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.queue)
	}
	j.mu.Unlock()

	<-j.done
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}
