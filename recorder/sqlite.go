package recorder

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	// SQLite driver, registered as "sqlite3".
	_ "github.com/mattn/go-sqlite3"

	stress "github.com/indexity-io/orientdb-stress"
	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS phases (
	run_id TEXT NOT NULL,
	phase  TEXT NOT NULL,
	at     TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS errors (
	run_id  TEXT NOT NULL,
	at      TIMESTAMP NOT NULL,
	phase   TEXT NOT NULL,
	source  TEXT NOT NULL,
	line    INTEGER NOT NULL,
	class   TEXT NOT NULL,
	label   TEXT NOT NULL,
	message TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS results (
	run_id            TEXT PRIMARY KEY,
	scenario          TEXT NOT NULL,
	outcome           TEXT NOT NULL,
	failure_phase     TEXT NOT NULL,
	disturbances      INTEGER NOT NULL,
	seed              INTEGER NOT NULL,
	unknown_errors    INTEGER NOT NULL,
	known_errors      INTEGER NOT NULL,
	suppressed_errors INTEGER NOT NULL,
	started_at        TIMESTAMP NOT NULL,
	ended_at          TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_errors_run ON errors (run_id, class);
`

// SQLiteRecorder archives the scenario transcript in a SQLite database
// for offline analysis across runs.
type SQLiteRecorder struct {
	db     *sql.DB
	logger types.Logger

	mu     sync.Mutex
	closed bool
}

// Compile-time assertion that SQLiteRecorder implements stress.Recorder.
var _ stress.Recorder = (*SQLiteRecorder)(nil)

// SQLiteRecorderOption configures a SQLiteRecorder.
type SQLiteRecorderOption func(*SQLiteRecorder)

// WithSQLiteLogger sets the recorder's logger.
//
// Parameters:
//   - logger: Logger instance (default: no-op logger)
//
// Returns:
//   - SQLiteRecorderOption: Configuration option
func WithSQLiteLogger(logger types.Logger) SQLiteRecorderOption {
	return func(r *SQLiteRecorder) {
		r.logger = logger
	}
}

// NewSQLiteRecorder opens or creates the archive database at path.
//
// Parameters:
//   - path: Database file path, or ":memory:" for an ephemeral archive
//   - opts: Optional configuration options
//
// Returns:
//   - *SQLiteRecorder: The recorder
//   - error: Error if the database could not be opened or migrated
func NewSQLiteRecorder(path string, opts ...SQLiteRecorderOption) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("stress: opening result archive %s: %w", path, err)
	}
	// SQLite serialises writers; one connection avoids lock contention.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("stress: migrating result archive: %w", err)
	}

	r := &SQLiteRecorder{
		db:     db,
		logger: logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RecordPhase archives a phase transition.
func (r *SQLiteRecorder) RecordPhase(runID string, phase types.Phase, at time.Time) {
	r.exec("INSERT INTO phases (run_id, phase, at) VALUES (?, ?, ?)",
		runID, phase.String(), at)
}

// RecordError archives one classified error.
func (r *SQLiteRecorder) RecordError(runID string, rec types.ErrorRecord) {
	r.exec("INSERT INTO errors (run_id, at, phase, source, line, class, label, message) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		runID, rec.Time, rec.Phase.String(), rec.Source, rec.Line, rec.Class.String(), rec.Label, rec.Message)
}

// RecordResult archives the run's terminal result.
func (r *SQLiteRecorder) RecordResult(res types.ScenarioResult) {
	r.exec("INSERT OR REPLACE INTO results (run_id, scenario, outcome, failure_phase, disturbances, seed, unknown_errors, known_errors, suppressed_errors, started_at, ended_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		res.RunID, res.Scenario, res.Outcome.String(), res.FailurePhase.String(),
		res.Disturbances, res.Seed,
		res.ErrorCounts[types.ClassUnknown],
		res.ErrorCounts[types.ClassKnown],
		res.ErrorCounts[types.ClassSuppressed],
		res.StartedAt, res.EndedAt)
}

// exec runs one archive statement. Archive failures never fail the run;
// they are logged and dropped.
func (r *SQLiteRecorder) exec(query string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if _, err := r.db.Exec(query, args...); err != nil {
		r.logger.Warn("result archive write failed", "error", err)
	}
}

// Close releases the database handle.
func (r *SQLiteRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.db.Close()
}
