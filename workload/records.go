// Package workload implements the background traffic the harness drives
// through the cluster while it is being disturbed.
//
// RecordManager owns the test data set and the SQL for record CRUD.
// Generator runs a pool of workers sharing one aggregate rate limiter,
// each performing read-update-reread cycles with lost-update detection.
// Validator performs the same cycle on a dedicated record between
// disturbances.
package workload

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/types"
)

// SQLClient executes SQL against the workload database.
//
// orient.Database implements this interface.
type SQLClient interface {
	// Command executes a SQL command.
	Command(ctx context.Context, query string) (map[string]any, error)

	// Query executes a read-only SQL query.
	Query(ctx context.Context, query string) (map[string]any, error)

	// Update executes a SQL update and returns the affected row count.
	Update(ctx context.Context, query string) (int, error)
}

// RecordManager owns the workload's test data set.
//
// Generator traffic uses logical ids in [1, Count); the validator uses a
// dedicated id of Count+10000 so validation never collides with generator
// writes.
type RecordManager struct {
	db     SQLClient
	count  int
	logger types.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// RecordManagerOption configures a RecordManager.
type RecordManagerOption func(*RecordManager)

// WithRecordLogger sets the manager's logger.
//
// Parameters:
//   - logger: Logger instance (default: no-op logger)
//
// Returns:
//   - RecordManagerOption: Configuration option
func WithRecordLogger(logger types.Logger) RecordManagerOption {
	return func(m *RecordManager) {
		m.logger = logger
	}
}

// WithRecordSeed seeds random record selection for reproducible runs.
//
// Parameters:
//   - seed: Random seed
//
// Returns:
//   - RecordManagerOption: Configuration option
func WithRecordSeed(seed int64) RecordManagerOption {
	return func(m *RecordManager) {
		m.rng = rand.New(rand.NewSource(seed))
	}
}

// NewRecordManager creates a RecordManager.
//
// Parameters:
//   - db: SQL client for the workload database
//   - count: Number of test records
//   - opts: Optional configuration options
//
// Returns:
//   - *RecordManager: The manager
func NewRecordManager(db SQLClient, count int, opts ...RecordManagerOption) *RecordManager {
	m := &RecordManager{
		db:     db,
		count:  count,
		logger: logging.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return m
}

// Count returns the size of the test data set.
func (m *RecordManager) Count() int {
	return m.count
}

// ValidationRecordID returns the dedicated validation record's logical id.
func (m *RecordManager) ValidationRecordID() int {
	return m.count + 10000
}

// RandomID returns a random generator record id in [1, Count).
func (m *RecordManager) RandomID() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.count <= 1 {
		return 1
	}
	return 1 + m.rng.Intn(m.count-1)
}

// Setup clears old test data and creates the record set, retrying failed
// steps until the shared deadline passes. The cluster may still be
// settling when a scenario begins, so transient REST failures here are
// expected.
//
// Parameters:
//   - ctx: Context for cancellation
//   - timeout: Shared deadline for clearing and creation
//
// Returns:
//   - error: Error if setup did not complete before the deadline
func (m *RecordManager) Setup(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	if err := m.retryUntil(ctx, deadline, "clearing test records", func(ctx context.Context) error {
		return m.Clear(ctx)
	}); err != nil {
		return fmt.Errorf("stress: record test data setup failed: %w", err)
	}

	if err := m.retryUntil(ctx, deadline, "creating test records", func(ctx context.Context) error {
		return m.CreateAll(ctx)
	}); err != nil {
		return fmt.Errorf("stress: record test data setup failed: %w", err)
	}

	return nil
}

func (m *RecordManager) retryUntil(ctx context.Context, deadline time.Time, what string, op func(context.Context) error) error {
	for {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return err
		}
		m.logger.Warn(what+" failed, will retry", "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// Clear deletes all generator and validation records.
func (m *RecordManager) Clear(ctx context.Context) error {
	_, err := m.db.Command(ctx, "DELETE FROM Record")
	return err
}

// CreateAll ensures records 1..Count exist.
func (m *RecordManager) CreateAll(ctx context.Context) error {
	m.logger.Info("creating test data records", "count", m.count)
	for id := 1; id <= m.count; id++ {
		if _, err := m.SelectOrCreate(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// SelectOrCreate fetches a record by logical id, creating it if absent.
func (m *RecordManager) SelectOrCreate(ctx context.Context, id int) (types.WorkloadRecord, error) {
	rec, err := m.Select(ctx, id)
	if err == nil {
		return rec, nil
	}
	if err != types.ErrRecordNotFound {
		return types.WorkloadRecord{}, err
	}
	return m.Create(ctx, id)
}

// Create inserts a record with all properties zeroed.
func (m *RecordManager) Create(ctx context.Context, id int) (types.WorkloadRecord, error) {
	resp, err := m.db.Command(ctx,
		fmt.Sprintf("INSERT INTO Record SET id = %d, prop_uq = 0, prop_nuq = 0, prop_ftx = 0", id))
	if err != nil {
		return types.WorkloadRecord{}, err
	}
	result, _ := resp["result"].([]any)
	if len(result) == 0 {
		return types.WorkloadRecord{}, fmt.Errorf("stress: no result for created record %d", id)
	}
	row, _ := result[0].(map[string]any)
	return mapRecord(row)
}

// Select fetches a record by logical id.
//
// Returns:
//   - types.WorkloadRecord: The record
//   - error: types.ErrRecordNotFound if no row matched
func (m *RecordManager) Select(ctx context.Context, id int) (types.WorkloadRecord, error) {
	resp, err := m.db.Query(ctx, fmt.Sprintf("SELECT from Record where id = %d", id))
	if err != nil {
		return types.WorkloadRecord{}, err
	}
	result, _ := resp["result"].([]any)
	if len(result) == 0 {
		return types.WorkloadRecord{}, types.ErrRecordNotFound
	}
	row, _ := result[0].(map[string]any)
	return mapRecord(row)
}

// UpdateProp writes the record's value for one index kind by record
// identity.
//
// Returns:
//   - error: Error if the update did not touch exactly one record
func (m *RecordManager) UpdateProp(ctx context.Context, rec types.WorkloadRecord, kind types.IndexKind) error {
	prop := propName(kind)
	count, err := m.db.Update(ctx, fmt.Sprintf("UPDATE %s SET %s = %d", rec.RID, prop, rec.Value(kind)))
	if err != nil {
		return err
	}
	if count != 1 {
		return fmt.Errorf("stress: update of record %d touched %d records", rec.ID, count)
	}
	return nil
}

func propName(kind types.IndexKind) string {
	switch kind {
	case types.IndexUnique:
		return "prop_uq"
	case types.IndexFullText:
		return "prop_ftx"
	default:
		return "prop_nuq"
	}
}

func mapRecord(row map[string]any) (types.WorkloadRecord, error) {
	rid, _ := row["@rid"].(string)
	if rid == "" {
		return types.WorkloadRecord{}, fmt.Errorf("stress: record row has no @rid")
	}
	id, err := asInt64(row["id"])
	if err != nil {
		return types.WorkloadRecord{}, fmt.Errorf("stress: record row has bad id: %w", err)
	}
	uq, _ := asInt64(row["prop_uq"])
	nuq, _ := asInt64(row["prop_nuq"])
	ftx, _ := asInt64(row["prop_ftx"])
	return types.WorkloadRecord{
		RID:       rid,
		ID:        int(id),
		Unique:    uq,
		NotUnique: nuq,
		FullText:  ftx,
	}, nil
}

// asInt64 tolerates the numeric and string encodings OrientDB mixes in
// its JSON responses.
func asInt64(v any) (int64, error) {
	switch val := v.(type) {
	case float64:
		return int64(val), nil
	case int64:
		return val, nil
	case string:
		return strconv.ParseInt(val, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported value %v", v)
	}
}
