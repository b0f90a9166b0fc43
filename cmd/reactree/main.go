package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/joeycumines/reactree/internal/blackboard"
	"github.com/joeycumines/reactree/internal/config"
	"github.com/joeycumines/reactree/internal/example/ballfetch"
	"github.com/joeycumines/reactree/internal/logging"
	"github.com/joeycumines/reactree/internal/metrics"
	"github.com/joeycumines/reactree/internal/scheduler"
	"github.com/joeycumines/reactree/internal/tree"
	"github.com/joeycumines/reactree/internal/treefile"
	"gopkg.in/yaml.v3"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	rate        float64
	treeFile    string
	logLevel    string
	logFile     string
	logFormat   string
	metricsAddr string
	once        bool
	planned     bool
	configHelp  bool
	version     bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var o options
	fs := flag.NewFlagSet("reactree", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintln(stderr, "Usage: reactree [options]")
		_, _ = fmt.Fprintln(stderr, "\nRuns a behaviour tree at a fixed tick rate until interrupted.")
		_, _ = fmt.Fprintln(stderr, "Without -tree the built-in ball-fetch demo is run.")
		_, _ = fmt.Fprintln(stderr, "\nOptions:")
		fs.PrintDefaults()
	}
	fs.StringVar(&o.configPath, "config", "", "Path to the config file (default $"+config.ConfigEnvVar+" or ~/.reactree/config)")
	fs.Float64Var(&o.rate, "rate", 0, "Ticks per second (overrides config and tree file)")
	fs.StringVar(&o.treeFile, "tree", "", "YAML tree definition to run")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&o.logFile, "log-file", "", "Append logs to this file instead of stderr")
	fs.StringVar(&o.logFormat, "log-format", "", "Log format: text, json")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.BoolVar(&o.once, "once", false, "Tick once, print the results and the blackboard, and exit")
	fs.BoolVar(&o.planned, "planned", false, "Run the demo as a goal-directed plan")
	fs.BoolVar(&o.configHelp, "config-help", false, "Print the configuration reference and exit")
	fs.BoolVar(&o.version, "version", false, "Print the version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.rate < 0 {
		return nil, fmt.Errorf("invalid -rate: %v", o.rate)
	}
	return &o, nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if opts.version {
		_, _ = fmt.Fprintf(stdout, "reactree %s\n", version)
		return nil
	}
	if opts.configHelp {
		_, _ = fmt.Fprint(stdout, config.DefaultSchema().FormatHelp())
		return nil
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logOpts, err := logging.Resolve(opts.logLevel, opts.logFile, opts.logFormat, cfg)
	if err != nil {
		return err
	}
	logOpts.Output = stderr
	logger, closer, err := logging.New(logOpts)
	if err != nil {
		return err
	}
	defer closer.Close()

	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "warning", w)
	}

	schema := config.DefaultSchema()

	name, doc, err := loadTree(opts, cfg, schema)
	if err != nil {
		return err
	}

	rate, err := resolveRate(opts.rate, doc, cfg, schema, name)
	if err != nil {
		return err
	}

	var bb *blackboard.Blackboard
	if doc != nil {
		bb = doc.NewBlackboard()
	} else {
		bb = blackboard.New(ballfetch.InitialState())
	}

	schedOpts := []scheduler.Option{
		scheduler.WithName(name),
		scheduler.WithLogger(logger),
	}

	metricsAddr := opts.metricsAddr
	if metricsAddr == "" {
		metricsAddr = schema.Resolve(cfg, "metrics.addr")
	}
	if metricsAddr != "" {
		reg := metrics.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			return err
		}
		schedOpts = append(schedOpts, scheduler.WithObserver(m.Observer(name)))
		shutdown, err := serveMetrics(metricsAddr, metrics.Handler(reg), logger)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	s, err := scheduler.New(bb, rate, schedOpts...)
	if err != nil {
		return err
	}

	children, err := buildTree(ctx, opts, doc, s, cfg, schema, logger)
	if err != nil {
		return err
	}
	if err := s.SetTree(children...); err != nil {
		return err
	}

	if opts.once {
		report, err := s.TickOnce()
		if err != nil {
			return err
		}
		return printReport(stdout, report, bb)
	}

	return runUntilStopped(ctx, s)
}

func loadTree(opts *options, cfg *config.Config, schema *config.ConfigSchema) (string, *treefile.Document, error) {
	path := opts.treeFile
	if path == "" {
		path = schema.Resolve(cfg, "tree.file")
	}
	if path == "" {
		return "ballfetch", nil, nil
	}
	doc, err := treefile.Load(path)
	if err != nil {
		return "", nil, err
	}
	name := doc.Name
	if name == "" {
		name = "root"
	}
	return name, doc, nil
}

// resolveRate picks the tick rate: the -rate flag, then the environment or
// an explicit config value, then the tree file, then the schema default.
func resolveRate(flagRate float64, doc *treefile.Document, cfg *config.Config, schema *config.ConfigSchema, name string) (float64, error) {
	if flagRate > 0 {
		return flagRate, nil
	}
	value := schema.ResolveIn(cfg, name, "tick-rate")
	if !rateIsExplicit(cfg, schema, name) && doc != nil && doc.Rate > 0 {
		return doc.Rate, nil
	}
	rate, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid tick-rate %q: %w", value, err)
	}
	return rate, nil
}

func rateIsExplicit(cfg *config.Config, schema *config.ConfigSchema, name string) bool {
	if opt := schema.Lookup("tick-rate"); opt != nil && opt.EnvVar != "" {
		if _, ok := os.LookupEnv(opt.EnvVar); ok {
			return true
		}
	}
	_, ok := cfg.GetSectionOption(name, "tick-rate")
	return ok
}

func buildTree(ctx context.Context, opts *options, doc *treefile.Document, s *scheduler.Scheduler, cfg *config.Config, schema *config.ConfigSchema, logger *slog.Logger) ([]tree.Node, error) {
	agent := ballfetch.New(ballfetch.WithLogger(logger))
	if doc == nil {
		if opts.planned {
			root, err := agent.PlannedTree(s.Blackboard())
			if err != nil {
				return nil, err
			}
			return []tree.Node{root}, nil
		}
		return []tree.Node{agent.Tree(s.Blackboard())}, nil
	}

	buildOpts := []treefile.BuildOption{
		treefile.WithLogger(logger),
		treefile.WithContext(ctx),
	}
	if v := schema.ResolveIn(cfg, s.Name(), "script.timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid script.timeout %q: %w", v, err)
		}
		buildOpts = append(buildOpts, treefile.WithScriptTimeout(d))
	}
	return doc.Build(s.Blackboard(), agent.Register(treefile.NewRegistry()), buildOpts...)
}

// runUntilStopped runs s under a bt.Manager until ctx is done, then stops it
// cooperatively.
func runUntilStopped(ctx context.Context, s *scheduler.Scheduler) error {
	manager := bt.NewManager()
	if err := s.Start(context.Background()); err != nil {
		return err
	}
	if err := manager.Add(s); err != nil {
		s.Stop()
		<-s.Done()
		return err
	}
	select {
	case <-ctx.Done():
		manager.Stop()
	case <-manager.Done():
	}
	<-manager.Done()
	return manager.Err()
}

func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

type reportResult struct {
	Node    string `yaml:"node"`
	Status  string `yaml:"status"`
	Outcome bool   `yaml:"outcome"`
	Error   string `yaml:"error,omitempty"`
}

type report struct {
	Tick       uint64         `yaml:"tick"`
	Elapsed    string         `yaml:"elapsed"`
	Results    []reportResult `yaml:"results"`
	Blackboard map[string]any `yaml:"blackboard"`
}

func printReport(w io.Writer, r scheduler.TickReport, bb *blackboard.Blackboard) error {
	out := report{
		Tick:       r.Index,
		Elapsed:    r.Elapsed.String(),
		Blackboard: bb.Snapshot(),
	}
	for _, res := range r.Results {
		rr := reportResult{
			Node:    res.Node,
			Status:  res.Status.String(),
			Outcome: res.Outcome,
		}
		if res.Err != nil {
			rr.Error = res.Err.Error()
		}
		out.Results = append(out.Results, rr)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
