package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"canonry/internal/promote"
	"canonry/internal/store"
)

var (
	promoteEntityType string
	promoteDryRun     bool
)

var promoteCmd = &cobra.Command{
	Use:   "promote",
	Short: "Promote auto_promote candidates to canonical tables",
	Long: `Materializes canonical rows for candidates in auto_promote state.
Entity types run in dependency order (club, event, yacht, participant,
registration); a registration whose event has no canonical link yet is
deferred to a later run rather than failed.`,
	RunE: runPromote,
}

func init() {
	promoteCmd.Flags().StringVarP(&promoteEntityType, "entity-type", "t", "all", "Entity type to promote (or 'all')")
	promoteCmd.Flags().BoolVar(&promoteDryRun, "dry-run", false, "Compute and report without committing")
}

func runPromote(cmd *cobra.Command, args []string) error {
	var ctrs *promote.Counters
	err := runInTx(promoteDryRun, func(tx *store.Tx) error {
		var err error
		ctrs, err = promote.Run(tx, promoteEntityType, logger)
		return err
	})
	if err != nil {
		return err
	}
	logger.Info("promotion complete",
		zap.Int("candidates_promoted", ctrs.CandidatesPromoted),
		zap.Int("skipped_missing_dep", ctrs.CandidatesSkippedMissingDep),
		zap.Int("db_errors", ctrs.DBErrors))
	fmt.Println(promote.BuildReport(ctrs, promoteDryRun))
	return nil
}
