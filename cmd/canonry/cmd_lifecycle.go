package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"canonry/internal/lifecycle"
	"canonry/internal/store"
)

var (
	lifecycleOp        string
	lifecycleDecisions string
	lifecycleDryRun    bool
)

var lifecycleCmd = &cobra.Command{
	Use:   "lifecycle",
	Short: "Apply canonical lifecycle operations from a decisions CSV",
	Long: `Applies merge, demote, unlink or split decisions.

CSV columns by operation:
  merge:         canonical_entity_type, keep_canonical_id, merge_canonical_id, reason_code, actor
  demote/unlink: candidate_entity_type, candidate_entity_id, reason_code, actor
  split:         canonical_entity_type, old_canonical_id, candidate_entity_id, reason_code, actor
                 (rows sharing an old_canonical_id form one split group)`,
	RunE: runLifecycle,
}

func init() {
	lifecycleCmd.Flags().StringVar(&lifecycleOp, "op", "", "Lifecycle operation: merge, demote, unlink or split")
	lifecycleCmd.Flags().StringVar(&lifecycleDecisions, "decisions", "", "Path to the decisions CSV")
	lifecycleCmd.Flags().BoolVar(&lifecycleDryRun, "dry-run", false, "Apply and report without committing")
	_ = lifecycleCmd.MarkFlagRequired("op")
	_ = lifecycleCmd.MarkFlagRequired("decisions")
}

func runLifecycle(cmd *cobra.Command, args []string) error {
	op, err := lifecycle.ParseOp(lifecycleOp)
	if err != nil {
		return err
	}

	var ctrs *lifecycle.Counters
	err = runInTx(lifecycleDryRun, func(tx *store.Tx) error {
		var err error
		ctrs, err = lifecycle.RunLifecycle(tx, lifecycleDecisions, op, logger)
		return err
	})
	if err != nil {
		return err
	}
	logger.Info("lifecycle run complete",
		zap.String("op", string(op)),
		zap.Int("rows_applied", ctrs.RowsApplied),
		zap.Int("rows_invalid", ctrs.RowsInvalid),
		zap.Int("db_errors", ctrs.DBErrors))
	fmt.Println(lifecycle.BuildReport(ctrs, lifecycleDryRun))
	return nil
}
