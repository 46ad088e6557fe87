// Package cmd wires the umbrella command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nscon-gmbh/umbrella-reporting/pkg/auth"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/config"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/errs"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/logger"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/reports"
	"github.com/nscon-gmbh/umbrella-reporting/pkg/umbrella"
)

// Version is overwritten at build time:
//
//	go build -ldflags "-X github.com/nscon-gmbh/umbrella-reporting/cmd.Version=1.2.0"
var Version = "dev"

type globalOptions struct {
	envFile    string
	configFile string
	logLevel   string
	output     string
}

// app carries what every subcommand needs once the root command has loaded
// the configuration.
type app struct {
	opts   globalOptions
	cfg    *config.Config
	format reports.Format
	log    *zap.Logger
}

// load resolves configuration, flags last, and initializes the logger.
func (a *app) load() error {
	format, err := reports.ParseFormat(a.opts.output)
	if err != nil {
		return err
	}
	a.format = format

	cfg, err := config.Load(config.LoadOptions{EnvFile: a.opts.envFile, ConfigFile: a.opts.configFile})
	if err != nil {
		return err
	}
	if a.opts.logLevel != "" {
		cfg.LogLevel = a.opts.logLevel
	}
	a.log = logger.Init(logger.Config{Env: cfg.LogFormat, Level: cfg.LogLevel})

	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) tokenProvider() *auth.Provider {
	return auth.NewProvider(a.cfg.Credentials,
		auth.WithHTTPClient(&http.Client{Timeout: a.cfg.HTTPTimeout}),
		auth.WithLogger(logger.Named("auth")),
	)
}

func (a *app) reportClient(tokens umbrella.TokenSource, opts ...umbrella.Option) *umbrella.Client {
	opts = append([]umbrella.Option{
		umbrella.WithTimeout(a.cfg.HTTPTimeout),
		umbrella.WithRetry(a.cfg.Retry),
		umbrella.WithRateLimit(a.cfg.RateLimit),
		umbrella.WithLogger(logger.Named("umbrella")),
	}, opts...)
	return umbrella.NewClient(a.cfg.BaseURL(), tokens, opts...)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "umbrella",
		Short: "Umbrella is a tool for querying Cisco Umbrella reports",
		Long: `Umbrella authenticates against the Cisco Umbrella reporting API with OAuth2
client credentials and prints deployment-status and activity reports.

Credentials are read from API_KEY and API_SECRET, from the environment or a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.opts.envFile, "env-file", config.DefaultEnvFile, "Dotenv file loaded before reading the environment")
	flags.StringVar(&a.opts.configFile, "config", "", "YAML configuration file")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides LOG_LEVEL)")
	flags.StringVarP(&a.opts.output, "output", "o", string(reports.FormatTable), "Output format: table, markdown or json")

	rootCmd.AddCommand(createReportCmd(a))
	rootCmd.AddCommand(createCategoriesCmd(a))
	rootCmd.AddCommand(createAuthCmd(a))
	rootCmd.AddCommand(createVersionCmd())
	return rootCmd
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	defer func() { _ = logger.Sync() }()
	if err == nil {
		return 0
	}
	logger.L().Debug("command failed", logger.Err(err))
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitCode(err)
}

// exitCode is 2 for configuration and argument errors, 1 for everything
// else.
func exitCode(err error) int {
	if errors.Is(err, errs.ErrConfig) || errors.Is(err, errs.ErrInvalidArgument) {
		return 2
	}
	return 1
}
