package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"canonry/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize candidate state per entity type",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	var counts []store.StateCount
	err := runInTx(true, func(tx *store.Tx) error {
		var err error
		counts, err = tx.StateCounts()
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("  %-14s %8s %9s %13s %8s %6s %8s\n",
		"entity_type", "total", "promoted", "auto_promote", "review", "hold", "reject")
	for _, c := range counts {
		fmt.Printf("  %-14s %8d %9d %13d %8d %6d %8d\n",
			c.EntityType, c.Total, c.Promoted, c.AutoPromote, c.Review, c.Hold, c.Reject)
	}
	return nil
}
