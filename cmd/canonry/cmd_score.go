package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"canonry/internal/score"
	"canonry/internal/store"
)

var (
	scoreEntityType string
	scoreRuleFile   string
	scoreDryRun     bool
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score candidates against the active rule sets",
	Long: `Scores every candidate of the selected entity types, routes each to a
resolution state, and regenerates enrichment next-best-actions for
candidates that fall short. Already-promoted candidates keep their
auto_promote state regardless of the computed score.`,
	RunE: runScore,
}

func init() {
	scoreCmd.Flags().StringVarP(&scoreEntityType, "entity-type", "t", "all", "Entity type to score (or 'all')")
	scoreCmd.Flags().StringVar(&scoreRuleFile, "rule-file", "", "Rule file override (single entity type only)")
	scoreCmd.Flags().BoolVar(&scoreDryRun, "dry-run", false, "Compute and report without committing")
}

func runScore(cmd *cobra.Command, args []string) error {
	var ctrs *score.Counters
	err := runInTx(scoreDryRun, func(tx *store.Tx) error {
		var err error
		ctrs, err = score.Run(tx, rulesDir, scoreEntityType, scoreRuleFile, logger)
		return err
	})
	if err != nil {
		return err
	}
	logger.Info("scoring complete",
		zap.Int("candidates_scored", ctrs.CandidatesScored),
		zap.Int("nbas_written", ctrs.NBAsWritten),
		zap.Int("db_errors", ctrs.DBErrors))
	fmt.Println(score.BuildReport(ctrs, scoreDryRun))
	return nil
}
