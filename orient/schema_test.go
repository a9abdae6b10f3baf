package orient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOrient is a minimal in-memory stand-in for the REST surface the
// schema manager touches.
type fakeOrient struct {
	mu         sync.Mutex
	databases  map[string]bool
	classes    map[string][]string // class -> property names
	indexStmts []string
}

func newFakeOrient() *fakeOrient {
	return &fakeOrient{
		databases: map[string]bool{},
		classes:   map[string][]string{},
	}
}

func (f *fakeOrient) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		path := r.URL.Path
		switch {
		case path == "/listDatabases":
			names := make([]string, 0, len(f.databases))
			for name := range f.databases {
				names = append(names, name)
			}
			writeJSON(t, w, map[string]any{"databases": names})
		case strings.HasPrefix(path, "/database/") && r.Method == http.MethodPost:
			name := strings.Split(strings.TrimPrefix(path, "/database/"), "/")[0]
			f.databases[name] = true
			writeJSON(t, w, map[string]any{"ok": true})
		case strings.HasPrefix(path, "/database/") && r.Method == http.MethodGet:
			classes := make([]any, 0, len(f.classes))
			for name := range f.classes {
				classes = append(classes, map[string]any{"name": name})
			}
			writeJSON(t, w, map[string]any{"classes": classes})
		case strings.HasPrefix(path, "/class/") && r.Method == http.MethodPost:
			parts := strings.Split(strings.TrimPrefix(path, "/class/"), "/")
			f.classes[parts[1]] = nil
			writeJSON(t, w, map[string]any{"ok": true})
		case strings.HasPrefix(path, "/class/") && r.Method == http.MethodGet:
			parts := strings.Split(strings.TrimPrefix(path, "/class/"), "/")
			props := make([]any, 0)
			for _, p := range f.classes[parts[1]] {
				props = append(props, map[string]any{"name": p})
			}
			writeJSON(t, w, map[string]any{"name": parts[1], "properties": props})
		case strings.HasPrefix(path, "/property/") && r.Method == http.MethodPost:
			parts := strings.Split(strings.TrimPrefix(path, "/property/"), "/")
			class, prop := parts[1], parts[2]
			f.classes[class] = append(f.classes[class], prop)
			writeJSON(t, w, map[string]any{"ok": true})
		case strings.HasPrefix(path, "/command/") && r.Method == http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			f.indexStmts = append(f.indexStmts, string(body))
			writeJSON(t, w, map[string]any{"result": []any{map[string]any{"count": 0}}})
		default:
			t.Errorf("unexpected request %s %s", r.Method, path)
		}
	}
}

func (f *fakeOrient) snapshot() (map[string][]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	classes := make(map[string][]string, len(f.classes))
	for k, v := range f.classes {
		classes[k] = append([]string(nil), v...)
	}
	return classes, append([]string(nil), f.indexStmts...)
}

func newSchemaTestDatabase(t *testing.T, fake *fakeOrient) *Database {
	t.Helper()
	ts := httptest.NewServer(fake.handler(t))
	t.Cleanup(ts.Close)
	srv := NewServer("odb1", ts.URL, "root", "root")
	srv.SetRunning(true)
	pool := NewServerPool([]*Server{srv}, WithPoolSeed(1))
	return NewDatabase(pool, "stress")
}

func TestSchemaManagerInstallsRecordClass(t *testing.T) {
	fake := newFakeOrient()
	db := newSchemaTestDatabase(t, fake)

	mgr := NewSchemaManager(db, nil)
	require.NoError(t, mgr.Ensure(context.Background(), RecordClass()))

	classes, indexStmts := fake.snapshot()
	require.Contains(t, classes, "Record")
	assert.ElementsMatch(t, []string{"id", "prop_uq", "prop_nuq", "prop_ftx"}, classes["Record"])

	require.Len(t, indexStmts, 4)
	assert.Contains(t, indexStmts[0], "CREATE INDEX Record.id IF NOT EXISTS ON Record (id) UNIQUE")
	assert.Contains(t, indexStmts[2], "NOTUNIQUE")
	assert.Contains(t, indexStmts[3], "FULLTEXT ENGINE LUCENE")

	assert.True(t, fake.databases["stress"])
}

func TestSchemaManagerIsIdempotent(t *testing.T) {
	fake := newFakeOrient()
	db := newSchemaTestDatabase(t, fake)
	mgr := NewSchemaManager(db, nil)

	require.NoError(t, mgr.Ensure(context.Background(), RecordClass()))
	require.NoError(t, mgr.Ensure(context.Background(), RecordClass()))

	classes, indexStmts := fake.snapshot()
	// Properties are not re-created on the second pass.
	assert.Len(t, classes["Record"], 4)
	// Index statements are repeated but guarded by IF NOT EXISTS.
	assert.Len(t, indexStmts, 8)
}
