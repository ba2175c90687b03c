package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"canonry/internal/lineage"
	"canonry/internal/store"
)

var (
	lineageEntityType      string
	lineageCanonThreshold  float64
	lineageSourceThreshold float64
	lineageDryRun          bool

	purgeEntityType      string
	purgeCanonThreshold  float64
	purgeSourceThreshold float64
)

var lineageCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Report candidate-to-canonical coverage",
	Long: `Computes coverage metrics per entity type and appends an audit
snapshot for each. A dry run reports without persisting snapshots.`,
	RunE: runLineage,
}

var purgeCheckCmd = &cobra.Command{
	Use:   "purge-check",
	Short: "Gate source-data purges on coverage thresholds",
	Long: `Like lineage, but evaluated at the stricter purge thresholds and
always persisting snapshots. Exits non-zero when any entity type fails,
so automation can chain on the result.`,
	RunE: runPurgeCheck,
}

func init() {
	lineageCmd.Flags().StringVarP(&lineageEntityType, "entity-type", "t", "all", "Entity type to report (or 'all')")
	lineageCmd.Flags().Float64Var(&lineageCanonThreshold, "threshold", 0, "Canonical coverage threshold percent (0 = config default)")
	lineageCmd.Flags().Float64Var(&lineageSourceThreshold, "source-threshold", 0, "Source coverage threshold percent (0 = config default)")
	lineageCmd.Flags().BoolVar(&lineageDryRun, "dry-run", false, "Compute and report without persisting snapshots")

	purgeCheckCmd.Flags().StringVarP(&purgeEntityType, "entity-type", "t", "all", "Entity type to check (or 'all')")
	purgeCheckCmd.Flags().Float64Var(&purgeCanonThreshold, "threshold", 0, "Canonical coverage threshold percent (0 = config default)")
	purgeCheckCmd.Flags().Float64Var(&purgeSourceThreshold, "source-threshold", 0, "Source coverage threshold percent (0 = config default)")
}

func runLineage(cmd *cobra.Command, args []string) error {
	canonPct := lineageCanonThreshold
	if canonPct == 0 {
		canonPct = cfg.Lineage.ReportThresholdPct
	}
	sourcePct := lineageSourceThreshold
	if sourcePct == 0 {
		sourcePct = cfg.Lineage.ReportThresholdPct
	}

	var results []lineage.Result
	err := runInTx(lineageDryRun, func(tx *store.Tx) error {
		var err error
		results, err = lineage.RunReport(tx, lineageEntityType, canonPct, sourcePct, lineageDryRun)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Println(lineage.BuildReport(results, lineageDryRun))
	return nil
}

func runPurgeCheck(cmd *cobra.Command, args []string) error {
	canonPct := purgeCanonThreshold
	if canonPct == 0 {
		canonPct = cfg.Lineage.PurgeThresholdPct
	}
	sourcePct := purgeSourceThreshold
	if sourcePct == 0 {
		sourcePct = cfg.Lineage.PurgeThresholdPct
	}

	var results []lineage.Result
	var allPassed bool
	err := runInTx(false, func(tx *store.Tx) error {
		var err error
		results, allPassed, err = lineage.RunPurgeCheck(tx, purgeEntityType, canonPct, sourcePct)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Println(lineage.BuildReport(results, false))
	if !allPassed {
		os.Exit(1)
	}
	return nil
}
