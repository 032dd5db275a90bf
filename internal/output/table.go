// Package output renders packport's terminal output: stage progress bars
// for exports, spinners, and the tables printed by the list commands.
//
// Tables are plain text padded with spaces; colour comes from fatih/color,
// which switches itself off for non-terminals and when NO_COLOR is set.
package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/blackwell-systems/packport/internal/backup"
	"github.com/blackwell-systems/packport/internal/store"
	"github.com/blackwell-systems/packport/internal/targets"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// TargetRow is one line of the target table.
type TargetRow struct {
	Target *targets.Target
	Stale  bool
}

// RenderTargetTable renders the managed targets sorted by name.
func RenderTargetTable(rows []TargetRow) string {
	if len(rows) == 0 {
		return "No targets configured. Add one with 'packport target add'.\n"
	}

	sorted := make([]TargetRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Target.ID) < strings.ToLower(sorted[j].Target.ID)
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-16s %-8s %-9s %-7s %s\n", "Target", "App ID", "Packages", "Cache", "Directory"))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	for _, row := range sorted {
		t := row.Target
		cache := green("fresh")
		if row.Stale {
			cache = yellow("stale")
		}
		// colour codes would break %-7s padding
		pad := strings.Repeat(" ", 7-len("fresh"))
		sb.WriteString(fmt.Sprintf("%-16s %-8s %-9d %s%s %s\n",
			truncate(t.ID, 16),
			t.AppID,
			len(t.ModTimes),
			cache, pad,
			t.Root))
	}

	return sb.String()
}

// outcomeWidth fits "failed@" followed by the longest phase name.
const outcomeWidth = 24

// shortID is the prefix of a run id that `packport history <id>` accepts.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RenderHistoryTable renders exports newest first.
func RenderHistoryTable(exports []*store.Export) string {
	if len(exports) == 0 {
		return "No exports recorded.\n"
	}

	sorted := make([]*store.Export, len(exports))
	copy(sorted, exports)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.After(sorted[j].StartedAt)
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-8s  %-14s %-16s %-15s %-*s %-9s %s\n",
		"Run", "Target", "Style", "Started", outcomeWidth, "Outcome", "Packaging", "Warnings"))
	sb.WriteString(strings.Repeat("─", 104))
	sb.WriteString("\n")

	for _, e := range sorted {
		packaging := "ok"
		if !e.PackagingOK {
			packaging = "failed"
		}
		if e.Outcome == store.OutcomeRunning {
			packaging = "-"
		}
		sb.WriteString(fmt.Sprintf("%-8s  %-14s %-16s %-15s %s %-9s %d\n",
			shortID(e.ID),
			truncate(e.Target, 14),
			truncate(e.Style, 16),
			formatRelativeTime(e.StartedAt),
			formatOutcome(e.Outcome, e.FailedPhase, outcomeWidth),
			packaging,
			e.Warnings))
	}

	return sb.String()
}

// RenderPhaseTable renders the phases of one export.
func RenderPhaseTable(phases []*store.PhaseEvent) string {
	if len(phases) == 0 {
		return "No phases recorded.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-18s %-8s %s\n", "Phase", "Status", "Detail"))
	sb.WriteString(strings.Repeat("─", 60))
	sb.WriteString("\n")
	for _, p := range phases {
		sb.WriteString(fmt.Sprintf("%-18s %s %s\n", p.Phase, formatStatus(p.Status, 8), p.Detail))
	}
	return sb.String()
}

// RenderBackupTable renders a target's backup ledger oldest first, followed
// by the state each file was left in by its last action.
func RenderBackupTable(events []*store.BackupEvent) string {
	if len(events) == 0 {
		return "No backups recorded.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-19s  %-14s %s\n", "When", "File", "Action"))
	sb.WriteString(strings.Repeat("─", 50))
	sb.WriteString("\n")

	var files []string
	last := make(map[string]string)
	for _, ev := range events {
		sb.WriteString(fmt.Sprintf("%-19s  %-14s %s\n",
			ev.Timestamp.Local().Format("2006-01-02 15:04:05"),
			truncate(ev.File, 14),
			ev.Action))
		if _, seen := last[ev.File]; !seen {
			files = append(files, ev.File)
		}
		last[ev.File] = ev.Action
	}

	sb.WriteString("\nCurrent state:\n")
	for _, f := range files {
		state, ok := backup.StateAfter(last[f])
		text := state.String()
		switch {
		case !ok:
			text = gray("unknown")
		case last[f] == backup.ActionLost:
			text = red("lost, verify the game files")
		case state == backup.Restored:
			text = green(text)
		}
		sb.WriteString(fmt.Sprintf("  %-14s %s\n", truncate(f, 14), text))
	}
	return sb.String()
}

// RenderCacheStatus renders the mirror summary of one target.
func RenderCacheStatus(t *targets.Target, files int, size int64, stale bool) string {
	var sb strings.Builder
	state := green("up to date")
	if stale {
		state = yellow("stale")
	}
	sb.WriteString(fmt.Sprintf("Target:    %s (%s)\n", t.ID, t.Root))
	sb.WriteString(fmt.Sprintf("Files:     %s\n", humanize.Comma(int64(files))))
	sb.WriteString(fmt.Sprintf("Size:      %s\n", humanize.Bytes(uint64(size))))
	sb.WriteString(fmt.Sprintf("State:     %s\n", state))
	if len(t.ModTimes) > 0 {
		sb.WriteString("Packages:\n")
		for _, id := range t.PackageIDs() {
			sb.WriteString(fmt.Sprintf("  %-24s %s\n", truncate(id, 24), formatRelativeTime(time.Unix(t.ModTimes[id], 0))))
		}
	}
	return sb.String()
}

// formatOutcome colours an outcome and pads it to width.
func formatOutcome(outcome, failedPhase string, width int) string {
	text := outcome
	if outcome == store.OutcomeFailed && failedPhase != "" {
		text = "failed@" + failedPhase
	}
	text = truncate(text, width)
	pad := strings.Repeat(" ", width-len(text))
	switch outcome {
	case store.OutcomeDone:
		return green(text) + pad
	case store.OutcomeCancelled:
		return yellow(text) + pad
	case store.OutcomeFailed:
		return red(text) + pad
	default:
		return gray(text) + pad
	}
}

func formatStatus(status string, width int) string {
	text := truncate(status, width)
	pad := strings.Repeat(" ", width-len(text))
	switch status {
	case "ok":
		return green(text) + pad
	case "warning", "skipped":
		return yellow(text) + pad
	case "failed":
		return red(text) + pad
	default:
		return text + pad
	}
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
