package orient

import (
	"context"
	"net/http"

	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/types"
)

// Database binds a server pool to one database. Each call is dispatched to
// a randomly chosen running server, spreading load across the cluster the
// same way real clients would.
type Database struct {
	pool   *ServerPool
	name   string
	logger types.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*Database)

// WithDatabaseLogger sets the database's logger.
//
// Parameters:
//   - logger: Logger instance (default: no-op logger)
//
// Returns:
//   - DatabaseOption: Configuration option
func WithDatabaseLogger(logger types.Logger) DatabaseOption {
	return func(d *Database) {
		d.logger = logger
	}
}

// NewDatabase creates a Database over the pool.
//
// Parameters:
//   - pool: Server pool to dispatch calls to
//   - name: Database name
//   - opts: Optional configuration options
//
// Returns:
//   - *Database: The database handle
func NewDatabase(pool *ServerPool, name string, opts ...DatabaseOption) *Database {
	d := &Database{
		pool:   pool,
		name:   name,
		logger: logging.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Name returns the database name.
func (d *Database) Name() string {
	return d.name
}

// Pool returns the underlying server pool.
func (d *Database) Pool() *ServerPool {
	return d.pool
}

// EnsureExists creates the database on a running server unless present.
//
// Returns:
//   - bool: true if the database was created
//   - error: Error if no server is running or creation failed
func (d *Database) EnsureExists(ctx context.Context) (bool, error) {
	srv, err := d.pool.Random()
	if err != nil {
		return false, err
	}
	return srv.EnsureDatabase(ctx, d.name)
}

// Command executes a SQL command on a random running server.
func (d *Database) Command(ctx context.Context, query string) (map[string]any, error) {
	srv, err := d.pool.Random()
	if err != nil {
		return nil, err
	}
	return srv.Command(ctx, d.name, query)
}

// Query executes a read-only SQL query on a random running server.
func (d *Database) Query(ctx context.Context, query string) (map[string]any, error) {
	srv, err := d.pool.Random()
	if err != nil {
		return nil, err
	}
	return srv.Query(ctx, d.name, query)
}

// Update executes a SQL update and returns the affected row count.
func (d *Database) Update(ctx context.Context, query string) (int, error) {
	srv, err := d.pool.Random()
	if err != nil {
		return 0, err
	}
	return srv.Update(ctx, d.name, query)
}

// Classes returns the class names defined in the database schema.
func (d *Database) Classes(ctx context.Context) ([]string, error) {
	srv, err := d.pool.Random()
	if err != nil {
		return nil, err
	}
	resp, err := srv.GetDatabase(ctx, d.name)
	if err != nil {
		return nil, err
	}
	raw, _ := resp["classes"].([]any)
	names := make([]string, 0, len(raw))
	for _, c := range raw {
		if cls, ok := c.(map[string]any); ok {
			if name, ok := cls["name"].(string); ok {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

// Class fetches one class's metadata.
func (d *Database) Class(ctx context.Context, name string) (map[string]any, error) {
	srv, err := d.pool.Random()
	if err != nil {
		return nil, err
	}
	return srv.invoke(ctx, http.MethodGet, "/class/"+d.name+"/"+name, "")
}

// CreateClass creates a class.
func (d *Database) CreateClass(ctx context.Context, name string) error {
	srv, err := d.pool.Random()
	if err != nil {
		return err
	}
	_, err = srv.invoke(ctx, http.MethodPost, "/class/"+d.name+"/"+name, "")
	return err
}

// CreateProperty creates a typed property on a class.
func (d *Database) CreateProperty(ctx context.Context, class, property, datatype string) error {
	srv, err := d.pool.Random()
	if err != nil {
		return err
	}
	_, err = srv.invoke(ctx, http.MethodPost, "/property/"+d.name+"/"+class+"/"+property+"/"+datatype, "")
	return err
}
