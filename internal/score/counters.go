// Package score drives the candidate scoring pipeline: it loads the
// active rule set per entity type, computes quality scores, routes
// resolution states, and regenerates enrichment next-best-actions.
package score

import (
	"encoding/json"
	"fmt"
	"strings"
)

const maxWarnings = 50

// Counters accumulates run statistics across one scoring run.
type Counters struct {
	CandidatesScored      int
	CandidatesAutoPromote int
	CandidatesReview      int
	CandidatesHold        int
	CandidatesRejected    int
	NBAsWritten           int
	DBErrors              int
	Warnings              []string
}

func (c *Counters) warn(msg string) {
	if len(c.Warnings) < maxWarnings {
		c.Warnings = append(c.Warnings, msg)
	}
}

// JSON renders the counters for the score run record.
func (c *Counters) JSON() string {
	b, err := json.Marshal(map[string]any{
		"candidates_scored":       c.CandidatesScored,
		"candidates_auto_promote": c.CandidatesAutoPromote,
		"candidates_review":       c.CandidatesReview,
		"candidates_hold":         c.CandidatesHold,
		"candidates_rejected":     c.CandidatesRejected,
		"nbas_written":            c.NBAsWritten,
		"db_errors":               c.DBErrors,
		"warnings":                c.Warnings,
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
		"Candidate Scoring Pipeline Report",
		fmt.Sprintf("  dry_run: %t", dryRun),
		rule,
		fmt.Sprintf("  candidates scored:   %d", c.CandidatesScored),
		fmt.Sprintf("    -> auto_promote:   %d", c.CandidatesAutoPromote),
		fmt.Sprintf("    -> review:         %d", c.CandidatesReview),
		fmt.Sprintf("    -> hold:           %d", c.CandidatesHold),
		fmt.Sprintf("    -> rejected:       %d", c.CandidatesRejected),
		fmt.Sprintf("  NBAs written:        %d", c.NBAsWritten),
		fmt.Sprintf("DB errors:             %d", c.DBErrors),
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
