package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/joeycumines/bte/internal/bt"
	"github.com/joeycumines/bte/internal/btlog"
	"github.com/joeycumines/bte/internal/config"
	"github.com/joeycumines/bte/internal/runner"
)

// ErrTreeFailed is returned by run when the final root status is FAILURE.
var ErrTreeFailed = errors.New("tree finished with FAILURE")

const mqttConnectTimeout = 10 * time.Second

// RunCommand builds a tree and ticks it until the stop policy matches.
type RunCommand struct {
	*BaseCommand
	config *config.Config
	sinks  config.SinkSettings

	treePath   string
	scriptPath string
	seedPath   string
	interval   time.Duration
	maxTicks   int
	stopOn     string
	logFile    string
	sqlitePath string
	mqttBroker string
	mqttTopic  string
	console    bool
	noColor    bool
	logLevel   string
	logFormat  string

	// ctxFactory creates the execution context. If nil, the context is
	// cancelled on SIGINT and SIGTERM.
	ctxFactory func() (context.Context, context.CancelFunc)
	// dialMQTT connects to a broker. If nil, btlog.DialMQTT is used.
	dialMQTT func(broker, clientID string, timeout time.Duration) (btlog.Publisher, error)
}

// NewRunCommand creates a new run command. Flag defaults come from cfg.
func NewRunCommand(cfg *config.Config) *RunCommand {
	run := cfg.Run()
	sinks := cfg.Sinks()
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Build a behavior tree and tick it until it stops",
			"run -tree FILE [options]",
		),
		config:     cfg,
		sinks:      sinks,
		interval:   run.Interval,
		maxTicks:   run.MaxTicks,
		stopOn:     run.StopOn,
		logFile:    sinks.JSONL,
		sqlitePath: sinks.SQLite,
		mqttBroker: sinks.MQTTBroker,
		mqttTopic:  sinks.MQTTTopic,
		console:    sinks.Console,
	}
}

// SetupFlags configures the flags for the run command.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.treePath, "tree", c.treePath, "XML tree definition file")
	fs.StringVar(&c.scriptPath, "script", c.scriptPath, "JavaScript file declaring leaves")
	fs.StringVar(&c.seedPath, "blackboard", c.seedPath, "YAML file seeding the root blackboard")
	fs.DurationVar(&c.interval, "interval", c.interval, "Delay between root ticks")
	fs.IntVar(&c.maxTicks, "max-ticks", c.maxTicks, "Stop after this many ticks (0 = unlimited)")
	fs.StringVar(&c.stopOn, "stop-on", c.stopOn, "Stop policy: terminal, success, failure, never")
	fs.StringVar(&c.logFile, "log-file", c.logFile, "Append transitions as JSON lines to this file")
	fs.StringVar(&c.sqlitePath, "sqlite", c.sqlitePath, "Record transitions in this SQLite database")
	fs.StringVar(&c.mqttBroker, "mqtt-broker", c.mqttBroker, "Publish transitions to this MQTT broker")
	fs.StringVar(&c.mqttTopic, "mqtt-topic", c.mqttTopic, "MQTT topic for transition batches")
	fs.BoolVar(&c.console, "console", c.console, "Print transitions to stderr")
	fs.BoolVar(&c.noColor, "no-color", c.noColor, "Disable colored console output")
	fs.StringVar(&c.logLevel, "log-level", c.logLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&c.logFormat, "log-format", c.logFormat, "Log format (text, json)")
}

// Execute runs the tree and prints the final status and root blackboard.
func (c *RunCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return ErrUnexpectedArgs
	}

	logger, err := resolveLogger(stderr, c.logLevel, c.logFormat, c.config)
	if err != nil {
		return err
	}
	policy, err := runner.ParseStopPolicy(c.stopOn)
	if err != nil {
		return err
	}

	bb := bt.NewBlackboard(nil)
	if c.seedPath != "" {
		values, err := config.LoadSeed(c.seedPath)
		if err != nil {
			return err
		}
		config.ApplySeed(bb, values)
	}

	tree, err := loadTree(c.config, c.treePath, c.scriptPath, bb, logger)
	if err != nil {
		return err
	}

	sink, err := c.openSinks(stderr, logger)
	if err != nil {
		_ = tree.Close()
		return err
	}
	if sink != nil {
		defer sink.Attach(tree)()
	}

	ctx, cancel := c.context()
	defer cancel()

	r := runner.New(tree,
		runner.WithInterval(c.interval),
		runner.WithMaxTicks(c.maxTicks),
		runner.WithStopPolicy(policy),
		runner.WithLogger(logger))
	status, runErr := r.Run(ctx)

	// halt transitions must reach the sinks before they close
	errs := []error{tree.Close()}
	if sink != nil {
		errs = append(errs, sink.Close())
		if n := sink.Dropped(); n > 0 {
			logger.Warn("[command] transitions dropped", "count", n)
		}
	}

	if err := printResult(stdout, status, r.Ticks(), tree.RootBlackboard()); err != nil {
		errs = append(errs, err)
	}

	switch {
	case runErr != nil && !errors.Is(runErr, context.Canceled):
		errs = append(errs, runErr)
	case runErr == nil && status == bt.Failure:
		errs = append(errs, ErrTreeFailed)
	}
	return errors.Join(errs...)
}

func (c *RunCommand) context() (context.Context, context.CancelFunc) {
	if c.ctxFactory != nil {
		return c.ctxFactory()
	}
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openSinks returns nil when no sink is enabled.
func (c *RunCommand) openSinks(stderr io.Writer, logger *slog.Logger) (*btlog.Buffered, error) {
	var backends []btlog.Backend
	fail := func(err error) (*btlog.Buffered, error) {
		_ = btlog.Multi(backends...).Close()
		return nil, err
	}

	if c.console {
		var opts []btlog.ConsoleOption
		if c.noColor {
			opts = append(opts, btlog.WithColor(false))
		}
		backends = append(backends, btlog.NewConsole(stderr, opts...))
	}

	if c.logFile != "" {
		w, err := btlog.NewRotatingFileWriter(c.logFile, int64(c.sinks.JSONLMaxSizeMB)<<20, c.sinks.JSONLMaxFiles,
			btlog.WithRotationLogger(logger))
		if err != nil {
			return fail(err)
		}
		backends = append(backends, btlog.NewJSONL(w))
	}

	if c.sqlitePath != "" {
		db, err := btlog.OpenSQLite(c.sqlitePath)
		if err != nil {
			return fail(err)
		}
		backends = append(backends, db)
	}

	if c.mqttBroker != "" {
		clientID := c.sinks.MQTTClientID
		if clientID == "" {
			clientID = "bte-" + uuid.NewString()
		}
		dial := c.dialMQTT
		if dial == nil {
			dial = func(broker, clientID string, timeout time.Duration) (btlog.Publisher, error) {
				return btlog.DialMQTT(broker, clientID, timeout)
			}
		}
		client, err := dial(c.mqttBroker, clientID, mqttConnectTimeout)
		if err != nil {
			return fail(err)
		}
		backends = append(backends, btlog.NewMQTT(client, c.mqttTopic))
	}

	if len(backends) == 0 {
		return nil, nil
	}
	return btlog.NewBuffered(btlog.Multi(backends...),
		btlog.WithBatchSize(c.sinks.BufferSize),
		btlog.WithFlushInterval(c.sinks.FlushInterval),
		btlog.WithLogger(logger)), nil
}

// printResult writes the outcome as a YAML document.
func printResult(w io.Writer, status bt.Status, ticks int64, bb *bt.Blackboard) error {
	out, err := yaml.Marshal(struct {
		Status     string         `yaml:"status"`
		Ticks      int64          `yaml:"ticks"`
		Blackboard map[string]any `yaml:"blackboard"`
	}{status.String(), ticks, bb.Snapshot()})
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = w.Write(out)
	return err
}
