package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"canonry/internal/entity"
	"canonry/internal/rules"
	"canonry/internal/score"
)

var (
	rulesEntityType string
	rulesFile       string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and validate YAML rule sets",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate rule files without touching the database",
	Long: `Loads and validates the rule file for each selected entity type,
printing the version and content hash of each. Scoring registers rule
sets itself; this command exists so a rule edit can be checked before
any pipeline consumes it.`,
	RunE: runRulesValidate,
}

func init() {
	rulesValidateCmd.Flags().StringVarP(&rulesEntityType, "entity-type", "t", "all", "Entity type to validate (or 'all')")
	rulesValidateCmd.Flags().StringVar(&rulesFile, "rule-file", "", "Rule file override (single entity type only)")
	rulesCmd.AddCommand(rulesValidateCmd)
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	types, err := entity.ExpandTypes(rulesEntityType)
	if err != nil {
		return err
	}

	var failed bool
	for _, et := range types {
		path := score.DefaultRulePath(rulesDir, et)
		if rulesFile != "" && rulesEntityType != "all" {
			path = rulesFile
		}
		rs, err := rules.LoadFile(path)
		if err != nil {
			failed = true
			fmt.Printf("  [FAIL] %-12s %s\n         %v\n", et, path, err)
			continue
		}
		fmt.Printf("  [OK]   %-12s version=%s hash=%s\n", et, rs.Version, rs.ContentHash[:12])
		fmt.Printf("         thresholds auto_promote=%.2f review=%.2f hold=%.2f, %d weights, %d penalties\n",
			rs.Thresholds.AutoPromote, rs.Thresholds.Review, rs.Thresholds.Hold,
			len(rs.FeatureWeights), len(rs.MissingAttributePenalties))
	}
	if failed {
		return fmt.Errorf("rule validation failed")
	}
	return nil
}
