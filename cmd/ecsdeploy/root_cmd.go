package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/spf13/cobra"

	"github.com/fluxcd/ecsdeploy/pkg/config"
	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
	"github.com/fluxcd/ecsdeploy/pkg/rollout"
)

const metricsJob = "ecsdeploy"

type rootOpts struct {
	stdout, stderr io.Writer

	configPath string
	debug      bool
	flags      *config.Flags

	Config config.Config
	Logger log.Logger

	// makes the backend once the config is known; swapped out in tests
	newBackend func(config.Config, log.Logger) (*backend, error)
	backend    *backend

	ctx    context.Context
	cancel context.CancelFunc
}

func newRoot(stdout, stderr io.Writer) *rootOpts {
	return &rootOpts{
		stdout:     stdout,
		stderr:     stderr,
		newBackend: newAWSBackend,
		Logger:     log.NewNopLogger(),
	}
}

var rootLongHelp = strings.TrimSpace(`
ecsdeploy puts container images into service on Amazon ECS.

Workflow:
  ecsdeploy list-versions                  # Which images have been pushed?
  ecsdeploy release                        # Release the image tagged with the current git revision.
  ecsdeploy release --tag 3f2a9c1          # Release a specific image.
  ecsdeploy status                         # What is the service running?
  ecsdeploy rollback --tag 1d2e3f4         # Go back to an earlier image.

Settings are read from .ecsdeploy.yaml if present (or the file named
by --config or $` + config.PathEnvVar + `); flags override the file.
`)

func (opts *rootOpts) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:               "ecsdeploy",
		Long:              rootLongHelp,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: opts.PersistentPreRunE,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	pf := cmd.PersistentFlags()
	opts.flags = config.BindFlags(pf)
	pf.StringVar(&opts.configPath, "config", config.DefaultPath,
		fmt.Sprintf("config file to read; you can also set the environment variable %s", config.PathEnvVar))
	pf.BoolVarP(&opts.debug, "debug", "v", false, "log debug messages")

	cmd.AddCommand(
		newRelease(opts).Command(),
		newRollback(opts).Command(),
		newListVersions(opts).Command(),
		newStatus(opts).Command(),
		newLogin(opts).Command(),
		newVersionCommand(opts),
	)
	return cmd
}

func (opts *rootOpts) PersistentPreRunE(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	path, required := config.Path(opts.configPath, cmd.Flags().Changed("config"))
	cfg, err := config.Load(path, required)
	if err != nil {
		return usageError{err}
	}
	opts.flags.Override(&cfg)
	if err := cfg.Validate(); err != nil {
		return usageError{err}
	}
	opts.Config = cfg

	// Logging
	logger := log.NewLogfmtLogger(log.NewSyncWriter(opts.stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	allowed := level.AllowInfo()
	if opts.debug {
		allowed = level.AllowDebug()
	}
	opts.Logger = level.NewFilter(logger, allowed)
	level.Debug(opts.Logger).Log("config", path, "region", cfg.Region, "cluster", cfg.Cluster, "service", cfg.Service)

	opts.ctx, opts.cancel = context.WithCancel(context.Background())
	go func(ctx context.Context, cancel context.CancelFunc) {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigs)
		select {
		case sig := <-sigs:
			level.Warn(opts.Logger).Log("signal", sig, "msg", "abandoning; an update already made stands")
			cancel()
		case <-ctx.Done():
		}
	}(opts.ctx, opts.cancel)

	opts.backend, err = opts.newBackend(cfg, opts.Logger)
	return err
}

func (opts *rootOpts) service() rollout.ServiceID {
	return rollout.ServiceID{Cluster: opts.Config.Cluster, Name: opts.Config.Service}
}

// Execute runs the command line, and returns the exit status.
func (opts *rootOpts) Execute(args []string) int {
	rootCmd := opts.Command()
	rootCmd.SetArgs(args)
	rootCmd.SetOutput(opts.stderr)

	cmd, err := rootCmd.ExecuteC()
	opts.shutdown()
	return opts.exitCode(cmd, err)
}

func (opts *rootOpts) shutdown() {
	if opts.cancel != nil {
		opts.cancel()
	}
	if opts.backend != nil && opts.backend.stop != nil {
		opts.backend.stop()
	}
	if opts.Config.PushgatewayURL != "" {
		err := push.New(opts.Config.PushgatewayURL, metricsJob).
			Gatherer(prometheus.DefaultGatherer).
			Grouping("cluster", opts.Config.Cluster).
			Grouping("service", opts.Config.Service).
			Push()
		if err != nil {
			level.Warn(opts.Logger).Log("msg", "pushing metrics", "url", opts.Config.PushgatewayURL, "err", err)
		}
	}
}

func (opts *rootOpts) exitCode(cmd *cobra.Command, err error) int {
	if err == nil {
		return exitOK
	}

	var usage usageError
	if errors.As(err, &usage) || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(opts.stderr, "Error: %s\n\n", err)
		if cmd != nil {
			fmt.Fprintln(opts.stderr, cmd.UsageString())
		}
		return exitUsage
	}

	var timedOut *timedOutError
	if errors.As(err, &timedOut) {
		fmt.Fprintf(opts.stderr, "Error: %s\n", err)
		return exitUncertain
	}

	if presented, ok := deployerr.As(err); ok && presented.Help != "" {
		fmt.Fprintf(opts.stderr, "Error: %s\n\n%s", err, presented.Help)
		return exitFailure
	}
	fmt.Fprintf(opts.stderr, "Error: %s\n", err)
	return exitFailure
}
