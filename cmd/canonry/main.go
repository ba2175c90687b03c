package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"canonry/internal/config"
	"canonry/internal/store"
)

var (
	// Global flags
	cfgPath  string
	dbPath   string
	rulesDir string
	verbose  bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "canonry",
	Short: "canonry - candidate entity resolution pipeline",
	Long: `canonry resolves raced-sourced candidate entities (clubs, events,
yachts, participants, registrations) into canonical records.

Candidates are scored against YAML rule sets, routed through a
resolution state machine, and promoted to canonical tables in
dependency order. Coverage snapshots gate source-data purges.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		// Flags override config file and environment.
		if dbPath == "" {
			dbPath = cfg.DatabasePath
		}
		if rulesDir == "" {
			rulesDir = cfg.RulesDir
		}

		zapCfg := zap.NewProductionConfig()
		if cfg.Logging.Format == "console" {
			zapCfg.Encoding = "console"
			zapCfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		}
		level, levelErr := zapcore.ParseLevel(cfg.Logging.Level)
		if levelErr != nil {
			level = zapcore.InfoLevel
		}
		if verbose {
			level = zapcore.DebugLevel
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runInTx opens the store and runs fn inside one transaction. A dry run
// rolls the whole transaction back instead of committing, so every
// pipeline sees exactly the writes it would have made.
func runInTx(dryRun bool, fn func(tx *store.Tx) error) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	tx, err := st.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if dryRun {
		logger.Debug("rolling back instead of committing")
		return tx.Rollback()
	}
	return tx.Commit()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "canonry.yml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&rulesDir, "rules-dir", "", "Rule file directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(lineageCmd)
	rootCmd.AddCommand(purgeCheckCmd)
	rootCmd.AddCommand(lifecycleCmd)
	rootCmd.AddCommand(manualApplyCmd)
	rootCmd.AddCommand(statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
