package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bigrise/internal/common"
	"github.com/ternarybob/bigrise/internal/scheduler"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	jobName      = flag.String("job", scheduler.JobAll, "Job to run: industry, etf, news, match, all")
	runDate      = flag.String("date", "", "Run date as YYYYMMDD (default: today)")
	serve        = flag.Bool("serve", false, "Run on the configured cron schedule instead of once")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("BigRise version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup sequence:
	// 1. Load config (defaults -> files -> env)
	// 2. Validate for the requested job
	// 3. Initialize logger
	// 4. Print banner
	var err error

	if len(configFiles) == 0 {
		if _, err := os.Stat("bigrise.toml"); err == nil {
			configFiles = append(configFiles, "bigrise.toml")
		}
	}

	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	// Portal credentials are only needed by jobs that log in.
	requireAuth := *serve || *jobName == scheduler.JobAll || *jobName == scheduler.JobIndustry
	if err := config.Validate(requireAuth); err != nil {
		arbor.NewLogger().Fatal().Err(err).Msg("Invalid configuration")
		os.Exit(1)
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("job", *jobName).
		Bool("serve", *serve).
		Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := scheduler.NewRunner(config, logger)

	if *serve {
		svc := scheduler.NewService(config, runner, logger)
		if err := svc.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start scheduler")
			os.Exit(1)
		}

		<-ctx.Done()
		logger.Info().Msg("Shutdown signal received")
		svc.Stop()
		return
	}

	date := common.Today()
	if *runDate != "" {
		date, err = common.ParseRunDate(*runDate)
		if err != nil {
			logger.Fatal().Err(err).Msg("Invalid -date flag")
			os.Exit(1)
		}
	}

	// One-shot runs collect news for the requested date itself.
	if err := runner.RunJob(ctx, *jobName, date, date); err != nil {
		os.Exit(1)
	}
}
