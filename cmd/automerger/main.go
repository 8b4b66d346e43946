package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	zaplogfmt "github.com/sykesm/zap-logfmt"
	"github.com/thecodeteam/goodbye"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/simplesurance/automerger/internal/amerr"
	"github.com/simplesurance/automerger/internal/automerge"
	"github.com/simplesurance/automerger/internal/cfg"
	"github.com/simplesurance/automerger/internal/githubclt"
	"github.com/simplesurance/automerger/internal/logfields"
)

const appName = "automerger"

var logger *zap.Logger

// Version is set via a ldflag on compilation
var Version = "unknown"

const metricsPushTimeout = 30 * time.Second

func exitOnErr(msg string, err error) {
	if err == nil {
		return
	}

	fmt.Fprintln(os.Stderr, "ERROR:", msg+", error:", err.Error())
	os.Exit(1)
}

func panicHandler() {
	if r := recover(); r != nil {
		logger.Info(
			"panic caught , terminating gracefully",
			zap.String("panic", fmt.Sprintf("%v", r)),
			zap.StackSkip("stacktrace", 1),
		)

		ctx, cancelFn := context.WithTimeout(context.Background(), time.Minute)
		defer cancelFn()

		goodbye.Exit(ctx, 1)
	}
}

type arguments struct {
	Verbose     *bool
	ConfigFile  *string
	DryRun      *bool
	ShowVersion *bool
}

var args arguments

func mustParseCommandlineParams() {
	args = arguments{
		Verbose: pflag.BoolP(
			"verbose",
			"v",
			false,
			"enable verbose logging",
		),
		ConfigFile: pflag.StringP(
			"cfg-file",
			"c",
			"",
			"path to an optional configuration file, settings from the CI environment override its values",
		),
		DryRun: pflag.Bool(
			"dry-run",
			false,
			"do not merge pull requests, only log what would be merged",
		),
		ShowVersion: pflag.Bool(
			"version",
			false,
			"print the version and exit",
		),
	}

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTION]\nMerge GitHub pull requests when their CI checks succeeded.\n", appName)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()
}

func mustParseCfg() *cfg.Config {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet

	config := cfg.Default()

	if *args.ConfigFile != "" {
		file, err := os.Open(*args.ConfigFile)
		exitOnErr("could not open configuration file", err)
		defer file.Close()

		config, err = cfg.Load(file)
		exitOnErr(fmt.Sprintf("could not load configuration file: %s", *args.ConfigFile), err)
	}

	err := config.ApplyEnv(os.LookupEnv)
	exitOnErr("could not apply configuration from environment", err)

	if *args.DryRun {
		config.DryRun = true
	}

	exitOnErr("invalid configuration", config.Validate())

	return config
}

func initLogFmtLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zapEncoderConfig(config)

	logger := zap.New(zapcore.NewCore(
		zaplogfmt.NewEncoder(cfg),
		os.Stdout,
		logLevel),
	)

	return logger
}

func zapEncoderConfig(config *cfg.Config) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()

	cfg.LevelKey = "loglevel"
	cfg.TimeKey = config.LogTimeKey
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeDuration = zapcore.StringDurationEncoder

	return cfg
}

func mustInitZapFormatLogger(config *cfg.Config, logLevel zapcore.Level) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.EncoderConfig = zapEncoderConfig(config)
	cfg.OutputPaths = []string{"stdout"}
	cfg.Encoding = config.LogFormat
	cfg.Level = zap.NewAtomicLevelAt(logLevel)

	logger, err := cfg.Build()
	exitOnErr("could not initialize logger", err)

	return logger
}

func mustInitLogger(config *cfg.Config) {
	var logLevel zapcore.Level
	if *args.Verbose {
		logLevel = zapcore.DebugLevel
	} else {
		if err := (&logLevel).Set(config.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "can not set log level to %q: %s \n", config.LogLevel, err)
			os.Exit(2)
		}
	}

	switch config.LogFormat {
	case "logfmt":
		logger = initLogFmtLogger(config, logLevel)
	case "console", "json":
		logger = mustInitZapFormatLogger(config, logLevel)
	default:
		fmt.Fprintf(os.Stderr, "unsupported log-format argument: %q\n", config.LogFormat)
		os.Exit(2)
	}

	logger = logger.Named("main")
	zap.ReplaceGlobals(logger)

	goodbye.Register(func(context.Context, os.Signal) {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "flushing logs failed: %s\n", err)
		}
	})
}

func hide(in string) string {
	if in == "" {
		return in
	}

	return "**hidden**"
}

func githubClientOpts(config *cfg.Config) []githubclt.Option {
	var result []githubclt.Option

	if config.GithubAPIURL != "" {
		result = append(result, githubclt.WithRESTBaseURL(config.GithubAPIURL))
	}

	if config.GithubGraphQLURL != "" {
		result = append(result, githubclt.WithGraphQLURL(config.GithubGraphQLURL))
	}

	return result
}

func pushMetrics(metrics *automerge.Metrics, config *cfg.Config) {
	if config.MetricsPushGatewayURL == "" {
		return
	}

	ctx, cancelFn := context.WithTimeout(context.Background(), metricsPushTimeout)
	defer cancelFn()

	err := metrics.Push(ctx, config.MetricsPushGatewayURL, config.Repository)
	if err != nil {
		logger.Warn(
			"pushing metrics failed",
			logfields.Event("metrics_push_failed"),
			zap.String("pushgateway_url", config.MetricsPushGatewayURL),
			zap.Error(err),
		)

		return
	}

	logger.Debug(
		"metrics pushed",
		logfields.Event("metrics_pushed"),
		zap.String("pushgateway_url", config.MetricsPushGatewayURL),
	)
}

// run processes the CI event and returns the exit code of the process.
func run(ctx context.Context, config *cfg.Config) int {
	owner, repoName, err := config.RepositoryOwnerAndName()
	if err != nil {
		logger.Error("invalid configuration", logfields.Event("cfg_invalid"), zap.Error(err))
		return 1
	}

	ev, err := automerge.LoadEvent(config.EventName, config.EventPath)
	if err != nil {
		logger.Error(
			"loading event failed",
			logfields.Event("event_loading_failed"),
			logfields.EventKind(config.EventName),
			zap.String("event_path", config.EventPath),
			zap.Error(err),
		)

		return 1
	}

	githubClt, err := githubclt.New(config.GithubAPIToken, githubClientOpts(config)...)
	if err != nil {
		logger.Error("creating github client failed", logfields.Event("github_client_creation_failed"), zap.Error(err))
		return 1
	}

	var clt automerge.GithubClient = githubClt
	if config.DryRun {
		clt = automerge.NewDryGithubClient(githubClt, logger)
		logger.Info("dry-run mode enabled, pull requests will not be merged", logfields.Event("dry_run_enabled"))
	}

	metrics := automerge.NewMetrics()
	defer pushMetrics(metrics, config)

	opts := []func(*automerge.Coordinator){automerge.WithMetrics(metrics)}

	if config.EventFilter != "" {
		filter, err := automerge.NewEventFilter(config.EventFilter)
		if err != nil {
			logger.Error(
				"parsing event filter failed",
				logfields.Event("event_filter_invalid"),
				zap.String("event_filter", config.EventFilter),
				zap.Error(amerr.NewConfigError(err)),
			)

			return 1
		}

		opts = append(opts, automerge.WithEventFilter(filter))
	}

	coordinator := automerge.New(
		clt,
		automerge.Repository{Owner: owner, Name: repoName},
		opts...,
	)

	if err := coordinator.Run(ctx, ev); err != nil {
		logger.Error(
			"processing event failed",
			logfields.Event("event_processing_failed"),
			zap.Bool("config_error", amerr.IsConfigError(err)),
			zap.Error(err),
		)

		return 1
	}

	return 0
}

func main() {
	defer panicHandler()

	defer goodbye.Exit(context.Background(), 1)
	goodbye.Notify(context.Background())

	mustParseCommandlineParams()

	if *args.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		os.Exit(0) // nolint:gocritic // defer functions won't run
	}

	config := mustParseCfg()

	mustInitLogger(config)

	logger.Info(
		"loaded configuration",
		logfields.Event("cfg_loaded"),
		zap.String("cfg_file", *args.ConfigFile),
		zap.String("github_api_token", hide(config.GithubAPIToken)),
		zap.String("github_api_url", config.GithubAPIURL),
		zap.String("github_graphql_url", config.GithubGraphQLURL),
		zap.String("repository", config.Repository),
		logfields.EventKind(config.EventName),
		zap.String("event_path", config.EventPath),
		zap.String("event_filter", config.EventFilter),
		zap.Bool("dry_run", config.DryRun),
		zap.String("metrics_pushgateway_url", config.MetricsPushGatewayURL),
		zap.String("log_format", config.LogFormat),
		zap.String("log_time_key", config.LogTimeKey),
		zap.String("log_level", config.LogLevel),
	)

	goodbye.Register(func(_ context.Context, sig os.Signal) {
		if sig != nil {
			logger.Info(fmt.Sprintf("terminating, received signal %s", sig.String()))
		}
	})

	exitCode := run(context.Background(), config)

	goodbye.Exit(context.Background(), exitCode)
}
