package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/contextify/internal/contextify"
	"github.com/GriffinCanCode/contextify/internal/infrastructure/config"
	"github.com/GriffinCanCode/contextify/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/contextify/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/contextify/internal/logging"
	"github.com/GriffinCanCode/contextify/internal/runner"
	"github.com/GriffinCanCode/contextify/internal/sandboxfile"
	"github.com/GriffinCanCode/contextify/internal/watch"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	stdinSource = "-"
)

// output is one line of the result stream
type output struct {
	Sandbox string            `json:"sandbox"`
	Outcome string            `json:"outcome"`
	Result  interface{}       `json:"result,omitempty"`
	Globals json.RawMessage   `json:"globals,omitempty"`
	Console []runner.LogEntry `json:"console,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// session holds what one pass over the sandboxes needs
type session struct {
	engine     *contextify.Engine
	runner     *runner.Runner
	log        *logging.Logger
	metrics    *monitoring.Metrics
	scriptPath string
	eval       string
	origin     string
	sandboxes  []string
	stdout     io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg := config.LoadOrDefault()

	fs := flag.NewFlagSet("contextify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	scriptPath := fs.String("script", "", "Script file to run (- for stdin)")
	eval := fs.String("e", "", "Script source to run instead of -script")
	origin := fs.String("origin", "", "Origin name for errors and stack traces (default: script path)")
	timeout := fs.Duration("timeout", cfg.Runner.Timeout, "Per-sandbox execution timeout")
	console := fs.Bool("console", cfg.Runner.EnableConsole, "Expose console to scripts")
	logLevel := fs.String("log-level", cfg.Logging.Level, "Log level")
	watchFiles := fs.Bool("watch", false, "Re-run whenever the script or a sandbox file changes")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: contextify (-script file | -e source) [flags] [sandbox.yaml|.toml|.json ...]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if err := checkSource(*scriptPath, *eval); err != nil {
		fmt.Fprintln(stderr, err)
		fs.Usage()
		return exitUsage
	}
	if *watchFiles && *scriptPath == stdinSource {
		fmt.Fprintln(stderr, "-watch cannot be used with a script read from stdin")
		return exitUsage
	}

	log, err := logging.New(logging.Config{
		Level:       *logLevel,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		fmt.Fprintf(stderr, "invalid logger config: %v\n", err)
		return exitUsage
	}
	defer log.Sync()

	var metrics *monitoring.Metrics
	if cfg.Metrics.Enabled {
		metrics = monitoring.NewMetrics(prometheus.NewRegistry(), cfg.Metrics.Namespace)
	}

	engine := contextify.New(cfg.Engine,
		contextify.WithLogger(log),
		contextify.WithMetrics(metrics),
	)
	defer engine.Close()

	tracer := tracing.New("contextify", log.Logger)
	defer tracer.Close()

	s := &session{
		engine:     engine,
		runner:     runner.New(engine, runner.Config{Timeout: *timeout, EnableConsole: *console}, log, runner.WithTracer(tracer)),
		log:        log,
		metrics:    metrics,
		scriptPath: *scriptPath,
		eval:       *eval,
		origin:     *origin,
		sandboxes:  fs.Args(),
		stdout:     stdout,
	}

	code := s.pass(ctx)
	if !*watchFiles {
		return code
	}
	return s.watch(ctx)
}

// pass compiles the script and runs it once against every sandbox
func (s *session) pass(ctx context.Context) int {
	source, name, err := readSource(s.scriptPath, s.eval)
	if err != nil {
		s.log.Error("Failed to read script", zap.Error(err))
		return exitFailed
	}
	origin := s.origin
	if origin == "" {
		origin = name
	}

	script, err := s.engine.Compile(source, origin)
	if err != nil {
		writeLine(s.stdout, output{Outcome: contextify.OutcomeCompileError.String(), Error: err.Error()})
		return exitFailed
	}

	names := s.sandboxes
	sandboxes, err := loadSandboxes(names)
	if err != nil {
		s.log.Error("Failed to load sandbox", zap.Error(err))
		return exitFailed
	}
	if len(names) == 0 {
		names = []string{stdinSource}
	}

	results, err := s.runner.ExecuteAll(ctx, script, sandboxes)

	code := exitOK
	for i, res := range results {
		line := report(names[i], sandboxes[i], res)
		if line.Outcome != contextify.OutcomeOK.String() {
			code = exitFailed
		}
		writeLine(s.stdout, line)
	}
	if err != nil {
		s.log.Warn("Run stopped", zap.Error(err))
		code = exitFailed
	}

	snap := s.metrics.Snapshot()
	s.log.Info("Run complete",
		zap.String("origin", script.Origin()),
		zap.Int("sandboxes", len(sandboxes)),
		zap.Int64("runs", snap.Runs),
		zap.Int64("run_errors", snap.RunErrors),
		zap.Float64("run_seconds", snap.TotalRunSeconds),
	)
	return code
}

// watch re-runs pass on every change until ctx is done
func (s *session) watch(ctx context.Context) int {
	paths := append([]string(nil), s.sandboxes...)
	if s.scriptPath != "" {
		paths = append(paths, s.scriptPath)
	}
	if len(paths) == 0 {
		s.log.Error("Nothing to watch: give -script or sandbox files")
		return exitUsage
	}

	w, err := watch.New(paths, watch.DefaultDebounce, s.log)
	if err != nil {
		s.log.Error("Failed to watch files", zap.Error(err))
		return exitFailed
	}

	code := exitOK
	err = w.Run(ctx, func(changed []string) {
		s.log.Info("Files changed, re-running", zap.Strings("files", changed))
		code = s.pass(ctx)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error("Watch stopped", zap.Error(err))
		return exitFailed
	}
	return code
}

func checkSource(path, eval string) error {
	switch {
	case eval != "" && path != "":
		return errors.New("use either -script or -e, not both")
	case eval == "" && path == "":
		return errors.New("no script given")
	default:
		return nil
	}
}

func readSource(path, eval string) (source, name string, err error) {
	switch {
	case eval != "":
		return eval, "", nil
	case path == stdinSource:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("read script from stdin: %w", err)
		}
		return string(data), "<stdin>", nil
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", "", fmt.Errorf("read script: %w", err)
		}
		return string(data), path, nil
	default:
		return "", "", errors.New("no script given")
	}
}

func loadSandboxes(paths []string) ([]*contextify.Sandbox, error) {
	if len(paths) == 0 {
		return []*contextify.Sandbox{contextify.NewSandbox()}, nil
	}
	out := make([]*contextify.Sandbox, 0, len(paths))
	for _, p := range paths {
		sb, err := sandboxfile.Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, sb)
	}
	return out, nil
}

func report(name string, sb *contextify.Sandbox, res *runner.Result) output {
	outcome := contextify.Classify(nil, res.Error)
	line := output{
		Sandbox: name,
		Outcome: outcome.Kind.String(),
		Result:  res.Value,
		Console: res.Console,
	}
	if res.Error != nil {
		line.Error = res.Error.Error()
	}
	if globals, err := sandboxfile.Encode(sb); err == nil {
		line.Globals = globals
	} else if line.Error == "" {
		line.Error = err.Error()
	}
	return line
}

func writeLine(w io.Writer, line output) {
	data, err := sonic.Marshal(line)
	if err != nil {
		data, _ = sonic.Marshal(output{Sandbox: line.Sandbox, Outcome: line.Outcome, Error: err.Error()})
	}
	w.Write(append(data, '\n'))
}
