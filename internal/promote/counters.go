package promote

import (
	"encoding/json"
	"fmt"
	"strings"
)

const maxWarnings = 50

// Counters accumulates run statistics across one promotion run.
type Counters struct {
	CandidatesPromoted          int
	CandidatesAlreadyPromoted   int
	CandidatesSkippedMissingDep int
	DBErrors                    int
	Warnings                    []string
}

func (c *Counters) warn(msg string) {
	if len(c.Warnings) < maxWarnings {
		c.Warnings = append(c.Warnings, msg)
	}
}

// JSON renders the counters for persistence alongside a run record.
func (c *Counters) JSON() string {
	b, err := json.Marshal(map[string]any{
		"candidates_promoted":            c.CandidatesPromoted,
		"candidates_already_promoted":    c.CandidatesAlreadyPromoted,
		"candidates_skipped_missing_dep": c.CandidatesSkippedMissingDep,
		"db_errors":                      c.DBErrors,
		"warnings":                       c.Warnings,
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}

// BuildReport renders the operator-facing run summary.
func BuildReport(c *Counters, dryRun bool) string {
	rule := strings.Repeat("=", 60)
	lines := []string{
		rule,
		"Candidate -> Canonical Promotion Report",
		fmt.Sprintf("  dry_run: %t", dryRun),
		rule,
		fmt.Sprintf("  candidates promoted:         %d", c.CandidatesPromoted),
		fmt.Sprintf("  already promoted (skipped):  %d", c.CandidatesAlreadyPromoted),
		fmt.Sprintf("  skipped (dep not promoted):  %d", c.CandidatesSkippedMissingDep),
		fmt.Sprintf("DB errors:                     %d", c.DBErrors),
	}
	if len(c.Warnings) > 0 {
		lines = append(lines, fmt.Sprintf("\nWarnings (%d):", len(c.Warnings)))
		for i, w := range c.Warnings {
			if i == 20 {
				lines = append(lines, fmt.Sprintf("  ... and %d more", len(c.Warnings)-20))
				break
			}
			lines = append(lines, "  "+w)
		}
	}
	lines = append(lines, rule)
	return strings.Join(lines, "\n")
}
