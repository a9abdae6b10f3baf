package stress

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/indexity-io/orientdb-stress/internal/logging"
	"github.com/indexity-io/orientdb-stress/internal/metrics"
	"github.com/indexity-io/orientdb-stress/types"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("stress: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ClusterConfig describes the cluster under test.
type ClusterConfig struct {
	// Servers is the number of nodes.
	Servers int `yaml:"servers"`

	// NamePrefix is the node name prefix; nodes are named prefix1..prefixN.
	NamePrefix string `yaml:"name_prefix"`

	// Host is the hostname the REST ports are published on.
	Host string `yaml:"host"`

	// BaseHTTPPort is node 1's REST port; node N listens on BaseHTTPPort+N-1.
	BaseHTTPPort int `yaml:"base_http_port"`

	// User and Password are the REST credentials.
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// Database is the workload database name.
	Database string `yaml:"database"`

	// ComposeFile is the docker compose file describing the cluster.
	ComposeFile string `yaml:"compose_file"`

	// DataDir is the host directory holding per-node data volumes,
	// one subdirectory per node name.
	DataDir string `yaml:"data_dir"`
}

// NodeNames returns the node names in cluster order.
func (c ClusterConfig) NodeNames() []string {
	names := make([]string, c.Servers)
	for i := range names {
		names[i] = fmt.Sprintf("%s%d", c.NamePrefix, i+1)
	}
	return names
}

// ServerURL returns the REST base URL of the i-th node (zero-based).
func (c ClusterConfig) ServerURL(i int) string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.BaseHTTPPort+i)
}

// ScenarioConfig holds the per-run scenario parameters.
type ScenarioConfig struct {
	// Name selects the disturbance policy.
	Name string `yaml:"name"`

	// Count is how many times the scenario is repeated.
	Count int `yaml:"count"`

	// Length bounds the RUNNING phase of one repetition.
	Length Duration `yaml:"length"`

	// RestartInterval is the pause between disturbances.
	RestartInterval Duration `yaml:"restart_interval"`

	// DeadTime holds a disturbed node down before restarting it.
	DeadTime Duration `yaml:"dead_time"`

	// Kill switches graceful stops to unclean kills.
	Kill bool `yaml:"kill"`

	// Reset wipes the disturbed node's data before restart.
	Reset bool `yaml:"reset"`

	// FailThreshold fails a run once this many UNKNOWN errors have been
	// recorded. 0 keeps errors advisory.
	FailThreshold int `yaml:"fail_threshold"`
}

// WorkloadConfig holds the background workload parameters.
type WorkloadConfig struct {
	// Enabled turns the background workload on.
	Enabled bool `yaml:"enabled"`

	// Threads is the number of concurrent workers.
	Threads int `yaml:"threads"`

	// Rate is the aggregate operations-per-second budget shared by all
	// workers.
	Rate float64 `yaml:"rate"`

	// Type selects which indexed property the workload exercises:
	// UNIQUE, NOT_UNIQUE or FULL_TEXT.
	Type string `yaml:"type"`

	// Records is the number of test records created at workload start.
	Records int `yaml:"records"`

	// ReadOnly restricts workers to reads.
	ReadOnly bool `yaml:"readonly"`

	// ValidationReadOnly restricts the validator to reads.
	ValidationReadOnly bool `yaml:"validation_readonly"`
}

// IndexKind parses the workload type.
func (c WorkloadConfig) IndexKind() (types.IndexKind, error) {
	if c.Type == "" {
		return types.IndexNotUnique, nil
	}
	return types.ParseIndexKind(c.Type)
}

// TimingConfig holds the harness timing knobs.
type TimingConfig struct {
	// StabilizeTimeout bounds each wait for a stable HA state.
	StabilizeTimeout Duration `yaml:"stabilize_timeout"`

	// AvailableTimeout bounds the initial wait for REST availability.
	AvailableTimeout Duration `yaml:"available_timeout"`

	// PollInterval is the stability poll tick.
	PollInterval Duration `yaml:"poll_interval"`
}

// RecorderConfig selects optional transcript sinks beyond the log recorder.
type RecorderConfig struct {
	// SQLitePath, when set, archives the transcript to a SQLite database.
	SQLitePath string `yaml:"sqlite_path"`

	// NATSURL, when set, publishes transcript events to a JetStream
	// stream for live observation.
	NATSURL string `yaml:"nats_url"`

	// NATSStream is the JetStream stream name (default "STRESS").
	NATSStream string `yaml:"nats_stream"`
}

// FileConfig is the top-level YAML configuration for the CLI.
type FileConfig struct {
	Cluster   ClusterConfig  `yaml:"cluster"`
	Scenario  ScenarioConfig `yaml:"scenario"`
	Workload  WorkloadConfig `yaml:"workload"`
	Timing    TimingConfig   `yaml:"timing"`
	Recorders RecorderConfig `yaml:"recorders"`

	// Seed seeds the run's random source; 0 derives a seed from the clock.
	Seed int64 `yaml:"seed"`
}

// DefaultFileConfig returns a FileConfig with the harness defaults: a
// three node local cluster, one workload worker at 10 ops/sec and the
// standard stabilization timings.
//
// Returns:
//   - *FileConfig: Configuration with default settings
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		Cluster: ClusterConfig{
			Servers:      3,
			NamePrefix:   "odb",
			Host:         "localhost",
			BaseHTTPPort: 2480,
			User:         "root",
			Password:     "root",
			Database:     "stress",
			ComposeFile:  "docker-compose.yml",
			DataDir:      "./data",
		},
		Scenario: ScenarioConfig{
			Count:           1,
			Length:          Duration(30 * time.Second),
			RestartInterval: Duration(10 * time.Second),
		},
		Workload: WorkloadConfig{
			Threads: 1,
			Rate:    10,
			Type:    types.IndexNotUnique.String(),
			Records: 100,
		},
		Timing: TimingConfig{
			StabilizeTimeout: Duration(60 * time.Second),
			AvailableTimeout: Duration(15 * time.Second),
			PollInterval:     Duration(500 * time.Millisecond),
		},
	}
}

// LoadConfig reads a YAML configuration file over the defaults.
//
// Parameters:
//   - path: Configuration file path
//
// Returns:
//   - *FileConfig: The merged configuration
//   - error: Error if the file cannot be read or parsed
func LoadConfig(path string) (*FileConfig, error) {
	cfg := DefaultFileConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stress: reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("stress: parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Config holds the harness-level dependencies and policy knobs shared by
// the engine and its components.
type Config struct {
	Logger  types.Logger
	Metrics types.MetricsCollector

	// FailThreshold fails a run once this many UNKNOWN errors have been
	// recorded. 0 means errors are advisory only.
	FailThreshold int

	// StabilizeTimeout bounds each wait for a stable HA state.
	StabilizeTimeout time.Duration

	// AvailableTimeout bounds the initial wait for REST availability.
	AvailableTimeout time.Duration

	// PollInterval is the stability poll tick.
	PollInterval time.Duration

	// Seed seeds every random source of the run; 0 derives one from the
	// clock.
	Seed int64
}

// DefaultHarnessConfig returns a Config with sensible defaults.
//
// Returns:
//   - *Config: Configuration with default settings
func DefaultHarnessConfig() *Config {
	return &Config{
		Logger:           logging.NewNopLogger(),
		Metrics:          metrics.NewNopMetrics(),
		StabilizeTimeout: 60 * time.Second,
		AvailableTimeout: 15 * time.Second,
		PollInterval:     500 * time.Millisecond,
	}
}

// Harness derives the harness-level Config from the file configuration,
// then applies the given options on top. Assemblies use the returned
// Config as the single source for the shared dependencies and timing
// knobs they feed into each component.
//
// Parameters:
//   - opts: Options applied over the file's values
//
// Returns:
//   - *Config: The merged harness configuration
func (f *FileConfig) Harness(opts ...Option) *Config {
	c := DefaultHarnessConfig()
	c.FailThreshold = f.Scenario.FailThreshold
	if f.Timing.StabilizeTimeout > 0 {
		c.StabilizeTimeout = f.Timing.StabilizeTimeout.Std()
	}
	if f.Timing.AvailableTimeout > 0 {
		c.AvailableTimeout = f.Timing.AvailableTimeout.Std()
	}
	if f.Timing.PollInterval > 0 {
		c.PollInterval = f.Timing.PollInterval.Std()
	}
	c.Seed = f.Seed

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option configures a Config.
type Option func(*Config)

// WithLogger sets the structured logger.
//
// If not set, a no-op logger is used that discards all messages.
// The logger interface is compatible with log/slog.
//
// Parameters:
//   - logger: The logger implementation
//
// Returns:
//   - Option: Configuration option
func WithLogger(logger types.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics sets the metrics collector.
//
// If not set, a no-op collector is used that discards all metrics.
//
// Parameters:
//   - collector: The metrics collector implementation
//
// Returns:
//   - Option: Configuration option
func WithMetrics(collector types.MetricsCollector) Option {
	return func(c *Config) {
		c.Metrics = collector
	}
}

// WithFailThreshold fails a run once n UNKNOWN errors are recorded.
//
// The default of 0 keeps errors advisory: they are recorded and counted
// but never flip a run's outcome.
//
// Parameters:
//   - n: Maximum tolerated error count
//
// Returns:
//   - Option: Configuration option
func WithFailThreshold(n int) Option {
	return func(c *Config) {
		c.FailThreshold = n
	}
}

// WithStabilizeTimeout bounds each wait for a stable HA state.
//
// Parameters:
//   - d: Deadline per stabilization wait (default: 60s)
//
// Returns:
//   - Option: Configuration option
func WithStabilizeTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.StabilizeTimeout = d
	}
}

// WithAvailableTimeout bounds the initial wait for REST availability.
//
// Parameters:
//   - d: Deadline for the whole pool (default: 15s)
//
// Returns:
//   - Option: Configuration option
func WithAvailableTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.AvailableTimeout = d
	}
}

// WithPollInterval sets the stability poll tick.
//
// Parameters:
//   - d: Poll interval (default: 500ms)
//
// Returns:
//   - Option: Configuration option
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PollInterval = d
	}
}

// WithSeed seeds every random source of the run for reproducibility.
//
// The seed is logged at scenario start either way.
//
// Parameters:
//   - seed: Random seed (default: derived from the clock)
//
// Returns:
//   - Option: Configuration option
func WithSeed(seed int64) Option {
	return func(c *Config) {
		c.Seed = seed
	}
}
