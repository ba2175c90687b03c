package lifecycle

import (
	"encoding/json"
	"fmt"
	"strings"
)

const maxWarnings = 50

// Counters accumulates run statistics across one lifecycle CSV.
type Counters struct {
	RowsRead    int
	RowsApplied int
	RowsInvalid int
	RowsSkipped int
	DBErrors    int
	Warnings    []string
}

func (c *Counters) warn(msg string) {
	if len(c.Warnings) < maxWarnings {
		c.Warnings = append(c.Warnings, msg)
	}
}

func (c *Counters) record(res Result) {
	switch res.Outcome {
	case OutcomeApplied:
		c.RowsApplied++
	case OutcomeInvalid:
		c.RowsInvalid++
	default:
		c.RowsSkipped++
	}
	if res.Warning != "" {
		c.warn(res.Warning)
	}
}

// JSON renders the counters for persistence alongside a run record.
func (c *Counters) JSON() string {
	b, err := json.Marshal(map[string]any{
		"rows_read":    c.RowsRead,
		"rows_applied": c.RowsApplied,
		"rows_invalid": c.RowsInvalid,
		"rows_skipped": c.RowsSkipped,
		"db_errors":    c.DBErrors,
		"warnings":     c.Warnings,
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
		"Resolution Lifecycle Operation Report",
		fmt.Sprintf("  dry_run: %t", dryRun),
		rule,
		fmt.Sprintf("  rows read:      %d", c.RowsRead),
		fmt.Sprintf("  rows applied:   %d", c.RowsApplied),
		fmt.Sprintf("  rows invalid:   %d", c.RowsInvalid),
		fmt.Sprintf("  rows skipped:   %d", c.RowsSkipped),
		fmt.Sprintf("DB errors:        %d", c.DBErrors),
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
