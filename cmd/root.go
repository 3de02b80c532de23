package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tallyhq/tally/core"
	"github.com/tallyhq/tally/internal/apiclient"
	"github.com/tallyhq/tally/internal/contract"
	"github.com/tallyhq/tally/internal/iocache"
	"github.com/tallyhq/tally/internal/logger"
	"github.com/tallyhq/tally/schema"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// defaultMaxRetries is how often idempotent backend calls are retried.
const defaultMaxRetries = 2

// rootCtx is the root context for all operations.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// cacheManager is the global persistence manager instance.
var cacheManager contract.CacheManager

// backendClient talks to the usage and incentive backend.
var backendClient contract.BackendClient

// appLog is the structured logger of the server and MCP commands.
var appLog = logger.Nop()

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "tally",
	Short: "Resolve periods, aggregate contributions and preview incentive scores.",
	Long: `Tally works next to the usage and incentive backend. It resolves weekly and
monthly period keys, sums contribution rows, normalizes incentive weights and
scores periods locally so weight changes can be previewed before they are saved.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	// Check if a specific config file is provided
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		// Set config file name and paths
		viper.SetConfigName(".tally") // Name of config file (without extension)
		viper.SetConfigType("yaml")   // We'll use YAML format
		viper.AddConfigPath(".")      // Look in the current directory
		viper.AddConfigPath("$HOME")  // Look in the home directory
	}

	// Set environment variable prefix
	viper.SetEnvPrefix("TALLY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // Read in environment variables that match

	// Set defaults in Viper
	viper.SetDefault("api-url", contract.DefaultAPIURL)
	viper.SetDefault("rps", contract.DefaultRequestsPerSecond)
	viper.SetDefault("period-type", string(schema.WeeklyPeriod))
	viper.SetDefault("rule", contract.DefaultRuleID)
	viper.SetDefault("limit", contract.DefaultResultLimit)
	viper.SetDefault("precision", contract.DefaultPrecision)
	viper.SetDefault("output", string(schema.TextOut))
	viper.SetDefault("group-by", string(schema.GroupByProject))
	viper.SetDefault("cache-backend", string(schema.SQLiteBackend))
	viper.SetDefault("cache-db-connect", "")
	viper.SetDefault("snapshot-backend", "")
	viper.SetDefault("snapshot-db-connect", "")
	viper.SetDefault("color", "yes")
	viper.SetDefault("log-mode", contract.DefaultLogMode)
	viper.SetDefault("log-level", contract.DefaultLogLevel)
	viper.SetDefault("listen", contract.DefaultListenAddr)
}

// configSetup merges defaults, file, env and flags into cfg and validates them.
// Commands that never reach the backend or the stores stop here.
func configSetup() error {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := loadConfigFile(); err != nil {
		return err
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Run all validation and complex parsing.
	if err := contract.ProcessAndValidate(cfg, input); err != nil {
		return err
	}

	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	appLog = log
	return nil
}

// configSetupWrapper wraps configSetup to provide PreRunE for offline commands.
func configSetupWrapper(_ *cobra.Command, _ []string) error {
	return configSetup()
}

// sharedSetup runs configSetup and opens the stores and the backend client.
func sharedSetup(_ context.Context, _ *cobra.Command, _ []string) error {
	if err := configSetup(); err != nil {
		return err
	}

	// 4. Initialize persistence layer with validated config
	if err := iocache.InitStores(cfg.CacheBackend, cfg.CacheDBConnect, cfg.SnapshotBackend, cfg.SnapshotDBConnect); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	cacheManager = iocache.Manager

	// 5. Build the backend client on top of the response cache
	client, err := apiclient.New(appLog, apiclient.Config{
		BaseURL:           cfg.APIURL,
		APIKey:            cfg.APIKey,
		Timeout:           cfg.Timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxRetries:        defaultMaxRetries,
	}, cacheManager.GetResponseStore())
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}
	backendClient = client

	return nil
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// loadConfigFile handles config file loading logic common to all setup functions.
func loadConfigFile() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, which is fine; we'll use defaults/env/flags.
	}
	return nil
}

// runExecutor runs an executor against the shared config and dependencies.
func runExecutor(msg string, fn core.ExecutorFunc) func(*cobra.Command, []string) {
	return func(_ *cobra.Command, _ []string) {
		if err := fn(rootCtx, cfg, backendClient, cacheManager); err != nil {
			contract.LogFatal(msg, err)
		}
	}
}

// Execute runs the root command.
func Execute() error {
	defer func() { appLog.Sync() }()
	return rootCmd.Execute()
}
