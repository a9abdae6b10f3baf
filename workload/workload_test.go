package workload

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/indexity-io/orientdb-stress/orient"
	"github.com/indexity-io/orientdb-stress/test/testutil"
	"github.com/indexity-io/orientdb-stress/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	insertRe = regexp.MustCompile(`^INSERT INTO Record SET id = (\d+)`)
	selectRe = regexp.MustCompile(`where id = (\d+)$`)
	updateRe = regexp.MustCompile(`^UPDATE (#\d+:\d+) SET (\w+) = (\d+)$`)
)

type storedRecord struct {
	rid  string
	id   int
	prop map[string]int64
}

// fakeDB is an in-memory SQLClient understanding only the statements the
// workload issues.
type fakeDB struct {
	mu       sync.Mutex
	records  map[int]*storedRecord
	nextRID  int
	updates  []string
	failNext int
	failWith error
	dropNext bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{records: make(map[int]*storedRecord)}
}

// failCalls makes the next n statements fail with err.
func (f *fakeDB) failCalls(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = n
	f.failWith = err
}

// dropNextUpdate acknowledges the next update without applying it.
func (f *fakeDB) dropNextUpdate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dropNext = true
}

func (f *fakeDB) checkFail() error {
	if f.failNext > 0 {
		f.failNext--
		return f.failWith
	}
	return nil
}

func (f *fakeDB) row(rec *storedRecord) map[string]any {
	return map[string]any{
		"@rid":     rec.rid,
		"id":       float64(rec.id),
		"prop_uq":  float64(rec.prop["prop_uq"]),
		"prop_nuq": float64(rec.prop["prop_nuq"]),
		"prop_ftx": float64(rec.prop["prop_ftx"]),
	}
}

func (f *fakeDB) Command(_ context.Context, query string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFail(); err != nil {
		return nil, err
	}
	if query == "DELETE FROM Record" {
		f.records = make(map[int]*storedRecord)
		return map[string]any{"result": []any{}}, nil
	}
	if m := insertRe.FindStringSubmatch(query); m != nil {
		id, _ := strconv.Atoi(m[1])
		f.nextRID++
		rec := &storedRecord{
			rid:  fmt.Sprintf("#12:%d", f.nextRID),
			id:   id,
			prop: map[string]int64{"prop_uq": 0, "prop_nuq": 0, "prop_ftx": 0},
		}
		f.records[id] = rec
		return map[string]any{"result": []any{f.row(rec)}}, nil
	}
	return nil, fmt.Errorf("fakeDB: unsupported command %q", query)
}

func (f *fakeDB) Query(_ context.Context, query string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFail(); err != nil {
		return nil, err
	}
	m := selectRe.FindStringSubmatch(query)
	if m == nil {
		return nil, fmt.Errorf("fakeDB: unsupported query %q", query)
	}
	id, _ := strconv.Atoi(m[1])
	rec, ok := f.records[id]
	if !ok {
		return map[string]any{"result": []any{}}, nil
	}
	return map[string]any{"result": []any{f.row(rec)}}, nil
}

func (f *fakeDB) Update(_ context.Context, query string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkFail(); err != nil {
		return 0, err
	}
	m := updateRe.FindStringSubmatch(query)
	if m == nil {
		return 0, fmt.Errorf("fakeDB: unsupported update %q", query)
	}
	f.updates = append(f.updates, query)
	if f.dropNext {
		f.dropNext = false
		return 1, nil
	}
	value, _ := strconv.ParseInt(m[3], 10, 64)
	for _, rec := range f.records {
		if rec.rid == m[1] {
			rec.prop[m[2]] = value
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeDB) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakeReporter struct {
	mu       sync.Mutex
	messages []string
}

func (r *fakeReporter) ReportError(_ int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

func (r *fakeReporter) ErrorCount(types.Classification) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func TestRecordManagerSetupCreatesRecords(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 5)

	require.NoError(t, mgr.Setup(context.Background(), time.Second))

	for id := 1; id <= 5; id++ {
		rec, err := mgr.Select(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, rec.ID)
		assert.NotEmpty(t, rec.RID)
	}
	// The validation record is created lazily, not during setup.
	_, err := mgr.Select(context.Background(), mgr.ValidationRecordID())
	assert.ErrorIs(t, err, types.ErrRecordNotFound)
}

func TestRecordManagerSetupRetriesTransientFailures(t *testing.T) {
	db := newFakeDB()
	db.failCalls(2, &orient.RESTError{Server: "odb1", Code: 503, Message: "Connection Error"})
	mgr := NewRecordManager(db, 3)

	require.NoError(t, mgr.Setup(context.Background(), 5*time.Second))
	rec, err := mgr.Select(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.ID)
}

func TestRecordManagerSetupGivesUpAtDeadline(t *testing.T) {
	db := newFakeDB()
	db.failCalls(1000, &orient.RESTError{Server: "odb1", Code: 503, Message: "Connection Error"})
	mgr := NewRecordManager(db, 3)

	err := mgr.Setup(context.Background(), 700*time.Millisecond)
	require.Error(t, err)
	var restErr *orient.RESTError
	assert.ErrorAs(t, err, &restErr)
}

func TestRecordManagerUpdatePropByIdentity(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 3)
	require.NoError(t, mgr.Setup(context.Background(), time.Second))

	rec, err := mgr.Select(context.Background(), 2)
	require.NoError(t, err)
	rec.NotUnique = 7
	require.NoError(t, mgr.UpdateProp(context.Background(), rec, types.IndexNotUnique))

	got, err := mgr.Select(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.NotUnique)
	assert.Equal(t, fmt.Sprintf("UPDATE %s SET prop_nuq = 7", rec.RID), db.updates[0])
}

func TestRecordManagerUpdateUnknownRecord(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 3)
	require.NoError(t, mgr.Setup(context.Background(), time.Second))

	ghost := types.WorkloadRecord{RID: "#99:99", ID: 42, NotUnique: 1}
	err := mgr.UpdateProp(context.Background(), ghost, types.IndexNotUnique)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "touched 0 records")
}

func TestRecordManagerRandomIDStaysInRange(t *testing.T) {
	mgr := NewRecordManager(newFakeDB(), 10, WithRecordSeed(1))
	for i := 0; i < 200; i++ {
		id := mgr.RandomID()
		assert.GreaterOrEqual(t, id, 1)
		assert.Less(t, id, 10)
	}
}

func TestRecordManagerRandomIDIsReproducible(t *testing.T) {
	a := NewRecordManager(newFakeDB(), 100, WithRecordSeed(42))
	b := NewRecordManager(newFakeDB(), 100, WithRecordSeed(42))
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.RandomID(), b.RandomID())
	}
}

func TestGeneratorRunsAndStops(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 10, WithRecordSeed(7))
	g := NewGenerator(mgr, WithWorkers(2), WithRate(500))

	require.NoError(t, g.Start(context.Background()))
	time.Sleep(200 * time.Millisecond)
	g.Stop()

	assert.Greater(t, g.Ops(), int64(0))
	assert.False(t, g.Failed())
	assert.Zero(t, g.LostUpdates())
}

func TestGeneratorCountsMetrics(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 10, WithRecordSeed(7))
	collector := testutil.NewTestMetricsCollector()
	g := NewGenerator(mgr, WithWorkers(1), WithRate(500), WithGeneratorMetrics(collector))

	require.NoError(t, g.Start(context.Background()))
	time.Sleep(200 * time.Millisecond)
	g.Stop()

	assert.Equal(t, g.Ops(), collector.TotalWorkloadOps())
	assert.Empty(t, collector.WorkloadErrors)
}

func TestGeneratorRateLimitsAggregateThroughput(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 10, WithRecordSeed(7))
	g := NewGenerator(mgr, WithWorkers(2), WithRate(25))

	start := time.Now()
	require.NoError(t, g.Start(context.Background()))
	time.Sleep(600 * time.Millisecond)
	g.Stop()
	elapsed := time.Since(start).Seconds()

	// The budget is shared across workers: total ops never exceeds
	// rate x elapsed plus the burst allowance.
	ops := float64(g.Ops())
	assert.LessOrEqual(t, ops, 25*elapsed+1)

	// Workers are fast against the in-memory store, so the limiter is the
	// bottleneck and throughput lands near the budget.
	assert.GreaterOrEqual(t, ops, 4.0)
}

func TestGeneratorFractionalRate(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 10, WithRecordSeed(7))
	g := NewGenerator(mgr, WithWorkers(2), WithRate(2))

	start := time.Now()
	require.NoError(t, g.Start(context.Background()))
	time.Sleep(600 * time.Millisecond)
	g.Stop()
	elapsed := time.Since(start).Seconds()

	// At 2 ops/sec the window only affords a couple of operations, no
	// matter how many workers are waiting on the limiter.
	assert.GreaterOrEqual(t, g.Ops(), int64(1))
	assert.LessOrEqual(t, float64(g.Ops()), 2*elapsed+1)
}

func TestGeneratorPauseAndResume(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 10, WithRecordSeed(7))
	g := NewGenerator(mgr, WithWorkers(1), WithRate(500))

	require.NoError(t, g.Start(context.Background()))
	defer g.Stop()

	time.Sleep(100 * time.Millisecond)
	g.Pause()
	time.Sleep(50 * time.Millisecond)
	paused := g.Ops()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, paused, g.Ops())

	g.Resume()
	time.Sleep(150 * time.Millisecond)
	assert.Greater(t, g.Ops(), paused)
}

func TestGeneratorReadOnlyNeverWrites(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 10, WithRecordSeed(7))
	g := NewGenerator(mgr, WithWorkers(1), WithRate(500), WithReadOnly(true))

	require.NoError(t, g.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	g.Stop()

	assert.Greater(t, g.Ops(), int64(0))
	assert.Zero(t, db.updateCount())
}

func TestGeneratorDetectsLostUpdate(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 5)
	require.NoError(t, mgr.Setup(context.Background(), time.Second))
	g := NewGenerator(mgr, WithRetryWindow(0))
	db.dropNextUpdate()

	err := g.cycleWithRetry(context.Background(), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lost update")
	assert.Equal(t, int64(1), g.LostUpdates())
}

func TestGeneratorReportsRESTErrors(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 5)
	require.NoError(t, mgr.Setup(context.Background(), time.Second))

	reporter := &fakeReporter{}
	g := NewGenerator(mgr, WithRetryWindow(0), WithErrorReporter(reporter))
	db.failCalls(5, &orient.RESTError{Server: "odb2", Code: 503, Message: "Connection Error"})

	err := g.cycleWithRetry(context.Background(), 2)
	require.Error(t, err)
	require.NotEmpty(t, reporter.messages)
	assert.Equal(t, "HTTP odb2 503 Connection Error", reporter.messages[0])
}

func TestGeneratorMarksWorkloadFailed(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 5)
	g := NewGenerator(mgr, WithWorkers(1), WithRate(500), WithRetryWindow(100*time.Millisecond))

	require.NoError(t, g.Start(context.Background()))
	db.failCalls(100000, &orient.RESTError{Server: "odb1", Code: 503, Message: "Connection Error"})
	time.Sleep(900 * time.Millisecond)
	g.Stop()

	assert.True(t, g.Failed())
}

func TestValidatorWriteCycle(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 5)
	v := NewValidator(mgr)

	require.NoError(t, v.Validate(context.Background()))
	rec, err := mgr.Select(context.Background(), mgr.ValidationRecordID())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.NotUnique)

	// Subsequent validations keep counting up on the same record.
	require.NoError(t, v.Validate(context.Background()))
	rec, err = mgr.Select(context.Background(), mgr.ValidationRecordID())
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.NotUnique)
}

func TestValidatorReadOnlyDoesNotWrite(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 5)
	v := NewValidator(mgr, WithValidatorReadOnly(true))

	require.NoError(t, v.Validate(context.Background()))
	assert.Zero(t, db.updateCount())
}

func TestValidatorDetectsLostUpdate(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 5)
	v := NewValidator(mgr)

	require.NoError(t, v.Validate(context.Background()))
	db.dropNextUpdate()
	err := v.Validate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lost update")
}

func TestValidatorFailsWhenWorkloadFailed(t *testing.T) {
	db := newFakeDB()
	mgr := NewRecordManager(db, 5)
	g := NewGenerator(mgr)
	g.failed.Store(true)
	v := NewValidator(mgr, WithValidatorWorkload(g))

	err := v.Validate(context.Background())
	require.ErrorIs(t, err, types.ErrWorkloadFailed)
}
