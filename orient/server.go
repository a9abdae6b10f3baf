package orient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/types"
)

const defaultRequestTimeout = 30 * time.Second

// Server is a REST client for one OrientDB node.
//
// The running flag tracks whether the harness believes the node's process
// is up; it is maintained by the TrackingController, not inferred from
// request outcomes. All methods are safe for concurrent use.
type Server struct {
	name    string
	baseURL string
	user    string
	pass    string
	httpc   *http.Client
	logger  types.Logger
	running atomic.Bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithHTTPClient sets the HTTP client used for REST calls.
//
// Parameters:
//   - c: HTTP client (default: client with 30s timeout)
//
// Returns:
//   - ServerOption: Configuration option
func WithHTTPClient(c *http.Client) ServerOption {
	return func(s *Server) {
		s.httpc = c
	}
}

// WithServerLogger sets the logger for REST call tracing.
//
// Parameters:
//   - logger: Logger instance (default: no-op logger)
//
// Returns:
//   - ServerOption: Configuration option
func WithServerLogger(logger types.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a REST client for one node.
//
// Parameters:
//   - name: Node name as it appears in the distributed configuration
//   - baseURL: REST base URL, e.g. "http://localhost:2480"
//   - user: REST user
//   - pass: REST password
//   - opts: Optional configuration options
//
// Returns:
//   - *Server: The server client
func NewServer(name, baseURL, user, pass string, opts ...ServerOption) *Server {
	s := &Server{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
		pass:    pass,
		logger:  logging.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.httpc == nil {
		s.httpc = &http.Client{Timeout: defaultRequestTimeout}
	}

	return s
}

// Name returns the node name.
func (s *Server) Name() string {
	return s.name
}

// BaseURL returns the REST base URL.
func (s *Server) BaseURL() string {
	return s.baseURL
}

// Running reports whether the harness believes the node process is up.
func (s *Server) Running() bool {
	return s.running.Load()
}

// SetRunning records whether the node process is up. Called by the
// TrackingController around lifecycle actions.
func (s *Server) SetRunning(up bool) {
	s.running.Store(up)
}

// invoke performs one REST call and decodes the JSON response.
//
// Error payloads embedded in a 200 response body are surfaced as *RESTError,
// matching how OrientDB reports command failures.
func (s *Server) invoke(ctx context.Context, method, path, body string) (map[string]any, error) {
	s.logger.Debug("rest request", "server", s.name, "method", method, "path", path)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("stress: building rest request: %w", err)
	}
	req.SetBasicAuth(s.user, s.pass)

	resp, err := s.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &RESTError{Server: s.baseURL, Code: 503, Message: "Connection Error", Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RESTError{Server: s.baseURL, Code: 503, Message: "Read Error", Cause: err}
	}
	if len(data) == 0 {
		if resp.StatusCode >= 400 {
			return nil, &RESTError{Server: s.baseURL, Code: resp.StatusCode, Message: resp.Status}
		}
		return nil, &RESTError{Server: s.baseURL, Code: 503, Message: "No response"}
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		if resp.StatusCode >= 400 {
			return nil, &RESTError{Server: s.baseURL, Code: resp.StatusCode, Message: string(data)}
		}
		return nil, fmt.Errorf("stress: decoding rest response: %w", err)
	}

	obj, _ := decoded.(map[string]any)
	if obj != nil {
		if errs, ok := obj["errors"].([]any); ok && len(errs) > 0 {
			first, _ := errs[0].(map[string]any)
			code := 0
			if c, ok := first["code"].(float64); ok {
				code = int(c)
			}
			msg, _ := first["content"].(string)
			return nil, &RESTError{Server: s.baseURL, Code: code, Message: msg}
		}
	}

	return obj, nil
}

// Command executes a SQL command against a database.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - database: Target database name
//   - query: SQL command text
//
// Returns:
//   - map[string]any: Decoded command response
//   - error: *RESTError on REST failure
func (s *Server) Command(ctx context.Context, database, query string) (map[string]any, error) {
	return s.invoke(ctx, http.MethodPost, "/command/"+database+"/sql/", query)
}

// Query executes a read-only SQL query against a database.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - database: Target database name
//   - query: SQL query text
//
// Returns:
//   - map[string]any: Decoded query response
//   - error: *RESTError on REST failure
func (s *Server) Query(ctx context.Context, database, query string) (map[string]any, error) {
	return s.invoke(ctx, http.MethodGet, "/query/"+database+"/sql/"+strings.ReplaceAll(query, " ", "%20"), "")
}

// Update executes a SQL update command and returns the affected row count.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - database: Target database name
//   - query: SQL update text
//
// Returns:
//   - int: Number of affected records
//   - error: Error if the response carries no result count
func (s *Server) Update(ctx context.Context, database, query string) (int, error) {
	resp, err := s.Command(ctx, database, query)
	if err != nil {
		return 0, err
	}
	result, _ := resp["result"].([]any)
	if len(result) > 0 {
		if row, ok := result[0].(map[string]any); ok {
			if count, ok := row["count"].(float64); ok {
				return int(count), nil
			}
		}
	}
	return 0, fmt.Errorf("stress: no result count in command response from %s", s.name)
}

// CreateDatabase creates a plocal database on this node.
func (s *Server) CreateDatabase(ctx context.Context, name string) error {
	s.logger.Debug("creating database", "server", s.name, "database", name)
	_, err := s.invoke(ctx, http.MethodPost, "/database/"+name+"/plocal", "")
	return err
}

// EnsureDatabase creates the database unless it already exists.
//
// Returns:
//   - bool: true if the database was created
//   - error: *RESTError on REST failure
func (s *Server) EnsureDatabase(ctx context.Context, name string) (bool, error) {
	dbs, err := s.ListDatabases(ctx)
	if err != nil {
		return false, err
	}
	for _, db := range dbs {
		if db == name {
			return false, nil
		}
	}
	if err := s.CreateDatabase(ctx, name); err != nil {
		return false, err
	}
	return true, nil
}

// GetDatabase fetches database metadata, including its classes.
func (s *Server) GetDatabase(ctx context.Context, name string) (map[string]any, error) {
	return s.invoke(ctx, http.MethodGet, "/database/"+name, "")
}

// ListDatabases returns the database names present on this node.
func (s *Server) ListDatabases(ctx context.Context) ([]string, error) {
	resp, err := s.invoke(ctx, http.MethodGet, "/listDatabases", "")
	if err != nil {
		return nil, err
	}
	raw, _ := resp["databases"].([]any)
	names := make([]string, 0, len(raw))
	for _, db := range raw {
		if name, ok := db.(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// Available reports whether the node answers REST calls at all.
func (s *Server) Available(ctx context.Context) bool {
	_, err := s.ListDatabases(ctx)
	return err == nil
}

// HAStatus captures this node's view of the distributed configuration.
//
// A member counts as online only when its status is ONLINE and every
// database on this node is ONLINE for it. The snapshot is Healthy when the
// node reports at least one member and all of them are fully online.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//
// Returns:
//   - types.HAStatusSnapshot: The node's cluster view
//   - error: Error if the node is unreachable or has no databases yet
func (s *Server) HAStatus(ctx context.Context) (types.HAStatusSnapshot, error) {
	snap := types.HAStatusSnapshot{Node: s.name, Taken: time.Now()}

	dbs, err := s.ListDatabases(ctx)
	if err != nil {
		return snap, err
	}
	if len(dbs) == 0 {
		// A cold-started node may still be synchronising databases from
		// the cluster; without a database the HA command cannot run.
		return snap, fmt.Errorf("stress: no databases on %s to query HA status", s.name)
	}

	resp, err := s.Command(ctx, dbs[0], "HA STATUS -servers")
	if err != nil {
		return snap, err
	}
	result, _ := resp["result"].([]any)
	if len(result) == 0 {
		return snap, fmt.Errorf("stress: empty HA status result from %s", s.name)
	}
	row, _ := result[0].(map[string]any)
	servers, _ := row["servers"].(map[string]any)
	members, _ := servers["members"].([]any)

	total := 0
	for _, m := range members {
		member, ok := m.(map[string]any)
		if !ok {
			continue
		}
		name, _ := member["name"].(string)
		if name == "" {
			continue
		}
		total++
		if status, _ := member["status"].(string); status != "ONLINE" {
			continue
		}
		dbStatus, _ := member["databasesStatus"].(map[string]any)
		if dbStatus == nil {
			continue
		}
		allOnline := true
		for _, db := range dbs {
			if st, _ := dbStatus[db].(string); st != "ONLINE" {
				allOnline = false
				break
			}
		}
		if allOnline {
			snap.Online = append(snap.Online, name)
		}
	}

	sort.Strings(snap.Online)
	snap.Healthy = total > 0 && len(snap.Online) == total
	return snap, nil
}
