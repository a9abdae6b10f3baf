// Command orientdb-stress drives disturbance scenarios against a local
// docker compose OrientDB cluster.
//
// Usage:
//
//	orientdb-stress list
//	orientdb-stress run [flags] <scenario>
//
// "list" prints the available scenarios. "run" executes one scenario (or
// every scenario with "all"), repeating it -count times. Cluster
// connection settings come from defaults, then the ORIENTDB_* environment
// variables, then an optional -config YAML file, then flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	stress "github.com/indexity-io/orientdb-stress"
	"github.com/indexity-io/orientdb-stress/classify"
	"github.com/indexity-io/orientdb-stress/cluster"
	"github.com/indexity-io/orientdb-stress/contrib/metrics/vm"
	"github.com/indexity-io/orientdb-stress/monitor"
	"github.com/indexity-io/orientdb-stress/orient"
	"github.com/indexity-io/orientdb-stress/policy"
	"github.com/indexity-io/orientdb-stress/recorder"
	"github.com/indexity-io/orientdb-stress/scenario"
	"github.com/indexity-io/orientdb-stress/stability"
	"github.com/indexity-io/orientdb-stress/workload"
)

const repetitionPause = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	switch args[0] {
	case "list":
		for _, info := range policy.Available() {
			fmt.Printf("%-24s %s\n", info.Name, info.Description)
		}
		return 0
	case "run":
		return runScenarios(args[1:])
	case "-h", "--help", "help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: orientdb-stress <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  list          print the available scenarios")
	fmt.Fprintln(os.Stderr, "  run [flags] <scenario|all>")
	fmt.Fprintln(os.Stderr, "                run a scenario; see 'run -h' for flags")
}

func runScenarios(args []string) int {
	cfg := stress.DefaultFileConfig()
	applyEnv(cfg)

	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML configuration file")
	verbose := fs.Bool("v", false, "enable debug logging")

	count := fs.Int("count", cfg.Scenario.Count, "scenario repetitions")
	length := fs.Duration("length", cfg.Scenario.Length.Std(), "length of one repetition")
	restartInterval := fs.Duration("restart-interval", cfg.Scenario.RestartInterval.Std(), "pause between disturbances")
	deadTime := fs.Duration("dead-time", cfg.Scenario.DeadTime.Std(), "hold a disturbed node down this long before restart")
	kill := fs.Bool("kill", cfg.Scenario.Kill, "kill stopped nodes instead of graceful shutdown (alternating-stop-start)")
	reset := fs.Bool("reset", cfg.Scenario.Reset, "wipe a stopped node's data before restart (alternating-stop-start)")
	failThreshold := fs.Int("fail-threshold", cfg.Scenario.FailThreshold, "fail a run after this many unknown errors, 0 disables")
	seed := fs.Int64("seed", cfg.Seed, "random seed, 0 derives one from the clock")

	enableWorkload := fs.Bool("workload", cfg.Workload.Enabled, "run the background workload")
	workloadThreads := fs.Int("workload-threads", cfg.Workload.Threads, "workload worker count")
	workloadRate := fs.Float64("workload-rate", cfg.Workload.Rate, "aggregate workload ops/sec")
	workloadRecords := fs.Int("workload-records", cfg.Workload.Records, "workload record count")
	workloadType := fs.String("workload-type", cfg.Workload.Type, "indexed property to exercise: UNIQUE, NOT_UNIQUE or FULL_TEXT")
	workloadReadOnly := fs.Bool("workload-readonly", cfg.Workload.ReadOnly, "restrict workers to reads")
	validationReadOnly := fs.Bool("validation-readonly", cfg.Workload.ValidationReadOnly, "restrict the validator to reads")

	servers := fs.Int("servers", cfg.Cluster.Servers, "cluster node count")
	composeFile := fs.String("compose-file", cfg.Cluster.ComposeFile, "docker compose file")
	dataDir := fs.String("data-dir", cfg.Cluster.DataDir, "host directory holding per-node data volumes")

	sqlitePath := fs.String("sqlite", cfg.Recorders.SQLitePath, "archive the run transcript to this SQLite database")
	natsURL := fs.String("nats-url", cfg.Recorders.NATSURL, "publish transcript events to this NATS server")
	metricsAddr := fs.String("metrics-addr", "", "expose Prometheus metrics on this address, e.g. :9090")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if *configPath != "" {
		loaded, err := stress.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		cfg = loaded
	}

	// A flag set on the command line wins over the config file; otherwise
	// the flag default already carries the env/default value, so only
	// skip assignment when a file overrode it.
	override := func(name string, apply func()) {
		if *configPath == "" || set[name] {
			apply()
		}
	}
	override("count", func() { cfg.Scenario.Count = *count })
	override("length", func() { cfg.Scenario.Length = stress.Duration(*length) })
	override("restart-interval", func() { cfg.Scenario.RestartInterval = stress.Duration(*restartInterval) })
	override("dead-time", func() { cfg.Scenario.DeadTime = stress.Duration(*deadTime) })
	override("kill", func() { cfg.Scenario.Kill = *kill })
	override("reset", func() { cfg.Scenario.Reset = *reset })
	override("fail-threshold", func() { cfg.Scenario.FailThreshold = *failThreshold })
	override("seed", func() { cfg.Seed = *seed })
	override("workload", func() { cfg.Workload.Enabled = *enableWorkload })
	override("workload-threads", func() { cfg.Workload.Threads = *workloadThreads })
	override("workload-rate", func() { cfg.Workload.Rate = *workloadRate })
	override("workload-records", func() { cfg.Workload.Records = *workloadRecords })
	override("workload-type", func() { cfg.Workload.Type = *workloadType })
	override("workload-readonly", func() { cfg.Workload.ReadOnly = *workloadReadOnly })
	override("validation-readonly", func() { cfg.Workload.ValidationReadOnly = *validationReadOnly })
	override("servers", func() { cfg.Cluster.Servers = *servers })
	override("compose-file", func() { cfg.Cluster.ComposeFile = *composeFile })
	override("data-dir", func() { cfg.Cluster.DataDir = *dataDir })
	override("sqlite", func() { cfg.Recorders.SQLitePath = *sqlitePath })
	override("nats-url", func() { cfg.Recorders.NATSURL = *natsURL })

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "run: exactly one scenario name required, or 'all'")
		return 2
	}
	cfg.Scenario.Name = fs.Arg(0)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, cfg, logger, *metricsAddr); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error("scenario run failed", "error", err)
		}
		return 1
	}
	return 0
}

// applyEnv layers the ORIENTDB_* environment variables over the
// defaults.
func applyEnv(cfg *stress.FileConfig) {
	if v := os.Getenv("ORIENTDB_USER"); v != "" {
		cfg.Cluster.User = v
	}
	if v := os.Getenv("ORIENTDB_PASSWD"); v != "" {
		cfg.Cluster.Password = v
	}
	if v := os.Getenv("ORIENTDB_HOST"); v != "" {
		cfg.Cluster.Host = v
	}
	if v := os.Getenv("ORIENTDB_BASE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Cluster.BaseHTTPPort = port
		}
	}
	if v := os.Getenv("ORIENTDB_SERVER_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cluster.Servers = n
		}
	}
}

// execute assembles the harness from the configuration and runs the
// selected scenario the configured number of times.
func execute(ctx context.Context, cfg *stress.FileConfig, logger *slog.Logger, metricsAddr string) error {
	collector := vm.New()
	hcfg := cfg.Harness(
		stress.WithLogger(logger),
		stress.WithMetrics(collector),
	)
	if hcfg.Seed == 0 {
		hcfg.Seed = time.Now().UnixNano()
	}
	seed := hcfg.Seed

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", collector.Handler)
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server stopped", "error", err)
			}
		}()
		defer srv.Close()
		logger.Info("serving metrics", "addr", metricsAddr)
	}

	pols, err := selectPolicies(cfg.Scenario, seed)
	if err != nil {
		return err
	}

	kind, err := cfg.Workload.IndexKind()
	if err != nil {
		return err
	}

	nodes := cfg.Cluster.NodeNames()
	servers := make([]*orient.Server, len(nodes))
	sources := make([]stability.StatusSource, len(nodes))
	for i, name := range nodes {
		srv := orient.NewServer(name, cfg.Cluster.ServerURL(i), cfg.Cluster.User, cfg.Cluster.Password,
			orient.WithServerLogger(hcfg.Logger))
		servers[i] = srv
		sources[i] = srv
	}
	pool := orient.NewServerPool(servers,
		orient.WithPoolLogger(hcfg.Logger),
		orient.WithPoolSeed(seed))
	detector := stability.NewDetector(sources,
		stability.WithDetectorLogger(hcfg.Logger),
		stability.WithDetectorMetrics(hcfg.Metrics),
		stability.WithTimeout(hcfg.StabilizeTimeout),
		stability.WithTick(hcfg.PollInterval))
	// The tracking wrapper mirrors every lifecycle action into the pool's
	// running flags, so SQL dispatch and availability waits skip nodes the
	// harness took down.
	controller := orient.NewTrackingController(
		cluster.NewCompose(cfg.Cluster.ComposeFile, cfg.Cluster.DataDir,
			cluster.WithComposeLogger(hcfg.Logger)),
		pool)
	logs := cluster.NewLogSource(cfg.Cluster.ComposeFile, "", hcfg.Logger)

	db := orient.NewDatabase(pool, cfg.Cluster.Database, orient.WithDatabaseLogger(hcfg.Logger))
	schema := orient.NewSchemaManager(db, hcfg.Logger)
	prepare := func(ctx context.Context) error {
		if err := pool.WaitAvailable(ctx, hcfg.AvailableTimeout); err != nil {
			return err
		}
		return schema.Ensure(ctx, orient.RecordClass())
	}

	rec, cleanup, err := buildRecorder(cfg.Recorders, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	engine := scenario.NewEngine(controller, detector, nodes,
		scenario.WithEngineLogger(hcfg.Logger),
		scenario.WithEngineMetrics(hcfg.Metrics),
		scenario.WithRecorder(rec),
		scenario.WithPrepare(prepare),
		scenario.WithLength(cfg.Scenario.Length.Std()),
		scenario.WithRestartInterval(cfg.Scenario.RestartInterval.Std()),
		scenario.WithFailThreshold(hcfg.FailThreshold),
		scenario.WithSeed(seed))

	for _, node := range nodes {
		sink := engine.AttachReporter(node, classify.NewServerClassifier())
		engine.AttachTailer(monitor.NewLogMonitor(logs, node, sink,
			monitor.WithMonitorLogger(hcfg.Logger)))
	}

	if cfg.Workload.Enabled {
		mgr := workload.NewRecordManager(db, cfg.Workload.Records,
			workload.WithRecordLogger(hcfg.Logger),
			workload.WithRecordSeed(seed))
		gen := workload.NewGenerator(mgr,
			workload.WithWorkers(cfg.Workload.Threads),
			workload.WithRate(cfg.Workload.Rate),
			workload.WithIndexKind(kind),
			workload.WithReadOnly(cfg.Workload.ReadOnly),
			workload.WithErrorReporter(engine.AttachReporter("workload", classify.NewRESTClassifier())),
			workload.WithGeneratorLogger(hcfg.Logger),
			workload.WithGeneratorMetrics(hcfg.Metrics))
		validator := workload.NewValidator(mgr,
			workload.WithValidatorWorkload(gen),
			workload.WithValidatorIndexKind(kind),
			workload.WithValidatorReadOnly(cfg.Workload.ValidationReadOnly),
			workload.WithValidatorLogger(hcfg.Logger),
			workload.WithValidatorMetrics(hcfg.Metrics))
		engine.AttachWorkload(gen, validator)
	}

	var failed int
	runs := 0
	for _, pol := range pols {
		for i := 1; i <= cfg.Scenario.Count; i++ {
			if runs > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(repetitionPause):
				}
			}
			runs++

			logger.Info("starting scenario",
				"scenario", pol.Name(), "repetition", i, "count", cfg.Scenario.Count)
			res, err := engine.Run(ctx, pol)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				failed++
				logger.Error("scenario failed",
					"scenario", res.Scenario, "repetition", i, "error", err)
				continue
			}
			logger.Info("scenario completed",
				"scenario", res.Scenario, "repetition", i,
				"disturbances", res.Disturbances)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, runs)
	}
	return nil
}

// selectPolicies maps the scenario name to the policies to run. "all"
// expands to every available policy.
func selectPolicies(cfg stress.ScenarioConfig, seed int64) ([]stress.DisturbancePolicy, error) {
	build := func(name string) (stress.DisturbancePolicy, error) {
		switch name {
		case policy.BasicStartupName:
			return policy.NewBasicStartup(), nil
		case policy.RandomRestartName:
			return policy.NewRandomRestart(seed, cfg.DeadTime.Std()), nil
		case policy.RandomKillName:
			return policy.NewRandomKill(seed, cfg.DeadTime.Std()), nil
		case policy.RollingRestartName:
			return policy.NewRollingRestart(seed, cfg.DeadTime.Std()), nil
		case policy.AlternatingStopStartName:
			return policy.NewAlternatingStopStart(seed,
				policy.WithAlternatingKill(cfg.Kill),
				policy.WithAlternatingReset(cfg.Reset)), nil
		default:
			return nil, fmt.Errorf("unknown scenario %q, try 'orientdb-stress list'", name)
		}
	}

	if cfg.Name == "all" {
		var pols []stress.DisturbancePolicy
		for _, info := range policy.Available() {
			pol, err := build(info.Name)
			if err != nil {
				return nil, err
			}
			pols = append(pols, pol)
		}
		return pols, nil
	}

	pol, err := build(cfg.Name)
	if err != nil {
		return nil, err
	}
	return []stress.DisturbancePolicy{pol}, nil
}

// buildRecorder assembles the transcript sinks: the log recorder always,
// SQLite and NATS when configured.
func buildRecorder(cfg stress.RecorderConfig, logger *slog.Logger) (stress.Recorder, func(), error) {
	sinks := []stress.Recorder{recorder.NewLogRecorder(logger)}
	var closers []func()

	if cfg.SQLitePath != "" {
		sqlite, err := recorder.NewSQLiteRecorder(cfg.SQLitePath,
			recorder.WithSQLiteLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, sqlite)
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("orientdb-stress"))
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to NATS %s: %w", cfg.NATSURL, err)
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		opts := []recorder.NATSRecorderOption{recorder.WithNATSLogger(logger)}
		if cfg.NATSStream != "" {
			opts = append(opts, recorder.WithNATSStreamName(cfg.NATSStream))
		}
		nr, err := recorder.NewNATSRecorder(js, opts...)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		sinks = append(sinks, nr)
		closers = append(closers, nc.Close)
	}

	multi := recorder.NewMultiRecorder(sinks...)
	cleanup := func() {
		if err := multi.Close(); err != nil {
			logger.Warn("closing recorders", "error", err)
		}
		for _, c := range closers {
			c()
		}
	}
	return multi, cleanup, nil
}
