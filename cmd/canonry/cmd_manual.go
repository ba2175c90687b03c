package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"canonry/internal/lifecycle"
	"canonry/internal/score"
	"canonry/internal/store"
)

var (
	manualDecisions    string
	manualValidateOnly bool
	manualRescore      bool
	manualDryRun       bool
)

var manualApplyCmd = &cobra.Command{
	Use:   "manual-apply",
	Short: "Apply manual review decisions from a CSV",
	Long: `Applies human promote/reject/hold decisions to candidates.

CSV columns: candidate_entity_type, candidate_entity_id, action, actor
             (reason_code optional, defaults to manual_review)

With --rescore, entity types that had at least one successful promote
are re-scored afterwards so confidence reasons and run ids stay
current. Types that only saw reject/hold are left alone: re-scoring
them would override the manually set states.`,
	RunE: runManualApply,
}

func init() {
	manualApplyCmd.Flags().StringVar(&manualDecisions, "decisions", "", "Path to the decisions CSV")
	manualApplyCmd.Flags().BoolVar(&manualValidateOnly, "validate-only", false, "Parse and validate without touching the database")
	manualApplyCmd.Flags().BoolVar(&manualRescore, "rescore", false, "Re-score entity types with successful promotes")
	manualApplyCmd.Flags().BoolVar(&manualDryRun, "dry-run", false, "Apply and report without committing")
	_ = manualApplyCmd.MarkFlagRequired("decisions")
}

func runManualApply(cmd *cobra.Command, args []string) error {
	if manualValidateOnly {
		ctrs, err := lifecycle.ValidateManualDecisions(manualDecisions)
		if err != nil {
			return err
		}
		fmt.Println(lifecycle.BuildManualReport(ctrs, false))
		return nil
	}

	var ctrs *lifecycle.ManualCounters
	err := runInTx(manualDryRun, func(tx *store.Tx) error {
		var err error
		var types []string
		ctrs, types, err = applyManualDecisions(tx)
		if err != nil {
			return err
		}
		if manualRescore {
			for _, et := range types {
				if _, err := score.Run(tx, rulesDir, et, "", logger); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("manual apply complete",
		zap.Int("rows_applied", ctrs.RowsApplied),
		zap.Int("rows_invalid", ctrs.RowsInvalid),
		zap.Int("db_errors", ctrs.DBErrors))
	fmt.Println(lifecycle.BuildManualReport(ctrs, manualDryRun))
	return nil
}

func applyManualDecisions(tx *store.Tx) (*lifecycle.ManualCounters, []string, error) {
	ctrs, types, err := lifecycle.RunManualApply(tx, manualDecisions, logger)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(types))
	for _, et := range types {
		names = append(names, string(et))
	}
	return ctrs, names, nil
}
