package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/devicelab-dev/uiprobe/pkg/core"
	"github.com/devicelab-dev/uiprobe/pkg/executor"
	"github.com/devicelab-dev/uiprobe/pkg/suite"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow case threshold in milliseconds (30 seconds)
const slowThresholdMs = 30000

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// progress prints live run output to w.
type progress struct {
	w io.Writer
}

func (p progress) groupStart(idx, total int, name string) {
	fmt.Fprintf(p.w, "\n  %s[%d/%d]%s %s%s%s\n",
		color(colorCyan), idx+1, total, color(colorReset),
		color(colorBold), name, color(colorReset))
	fmt.Fprintln(p.w, strings.Repeat("─", 60))
}

func (p progress) caseEnd(group string, r suite.CaseResult) {
	durStr := formatDuration(r.Duration)
	switch r.Status {
	case core.StatusPassed:
		symbol, symbolColor, durColor := "✓", color(colorGreen), ""
		if r.Duration >= slowThresholdMs {
			symbol, symbolColor, durColor = "⚠", color(colorYellow), color(colorYellow)
		}
		fmt.Fprintf(p.w, "    %s%s%s %s %s(%s)%s\n",
			symbolColor, symbol, color(colorReset), r.Name, durColor, durStr, color(colorReset))
	case core.StatusSkipped:
		fmt.Fprintf(p.w, "    %s-%s %s (skipped)\n", color(colorCyan), color(colorReset), r.Name)
	default:
		fmt.Fprintf(p.w, "    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), r.Name, durStr)
		if r.Error != "" {
			fmt.Fprintf(p.w, "      %s╰─%s %s\n", color(colorGray), color(colorReset), r.Error)
		}
	}
}

func (p progress) groupEnd(r suite.GroupResult) {
	if r.SetupError != "" {
		fmt.Fprintf(p.w, "    %s✗ setup%s %s\n", color(colorRed), color(colorReset), r.SetupError)
	}
	if r.TeardownError != "" {
		fmt.Fprintf(p.w, "    %s⚠ teardown%s %s\n", color(colorYellow), color(colorReset), r.TeardownError)
	}
	if r.Status == core.StatusSkipped && len(r.Cases) > 0 && r.Cases[0].Error != "" {
		fmt.Fprintf(p.w, "    %s- skipped%s %s\n", color(colorCyan), color(colorReset), r.Cases[0].Error)
	}
	fmt.Fprintf(p.w, "%s%s %s%s %s%s%s\n",
		statusColor(r.Status), statusSymbol(r.Status), color(colorReset),
		r.Name, color(colorGray), formatDuration(r.Duration), color(colorReset))
}

func statusSymbol(s core.TestStatus) string {
	switch s {
	case core.StatusPassed:
		return "✓"
	case core.StatusSkipped:
		return "-"
	default:
		return "✗"
	}
}

func statusColor(s core.TestStatus) string {
	switch s {
	case core.StatusPassed:
		return color(colorGreen)
	case core.StatusSkipped:
		return color(colorCyan)
	case core.StatusFailed:
		return color(colorRed)
	default:
		return color(colorYellow)
	}
}

func statusLabel(s core.TestStatus) string {
	switch s {
	case core.StatusPassed:
		return "✓ PASS"
	case core.StatusFailed:
		return "✗ FAIL"
	case core.StatusErrored:
		return "✗ ERR"
	case core.StatusSkipped:
		return "- SKIP"
	default:
		return strings.ToUpper(s.String())
	}
}

func printSummary(w io.Writer, result *executor.RunResult) {
	fmt.Fprintln(w)
	if result.Cases.Passed > 0 {
		fmt.Fprintf(w, "  %s%d cases passing%s (%s)\n", color(colorGreen), result.Cases.Passed, color(colorReset), formatDuration(result.Duration))
	}
	if n := result.Cases.Failed + result.Cases.Errored; n > 0 {
		fmt.Fprintf(w, "  %s%d cases failing%s\n", color(colorRed), n, color(colorReset))
	}
	if result.Cases.Skipped > 0 {
		fmt.Fprintf(w, "  %s%d cases skipped%s\n", color(colorCyan), result.Cases.Skipped, color(colorReset))
	}
	fmt.Fprintln(w)

	tableWidth := 84
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
	fmt.Fprintf(w, "  %-36s %6s %7s %6s %6s %6s %10s\n", "Group", "Status", "Cases", "Pass", "Fail", "Skip", "Duration")
	fmt.Fprintln(w, strings.Repeat("─", tableWidth))

	for _, g := range result.Groups {
		var pass, fail, skip int
		for _, c := range g.Cases {
			switch c.Status {
			case core.StatusPassed:
				pass++
			case core.StatusSkipped:
				skip++
			default:
				fail++
			}
		}

		name := g.Name
		if len(name) > 36 {
			name = name[:33] + "..."
		}
		fmt.Fprintf(w, "  %-36s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor(g.Status), statusLabel(g.Status), color(colorReset),
			len(g.Cases), pass, fail, skip, formatDuration(g.Duration))
	}

	fmt.Fprintln(w, strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", result.PassedGroups, result.TotalGroups)
	fmt.Fprintf(w, "  %s%-36s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor(result.Status), statusStr, color(colorReset),
		result.Cases.Total, result.Cases.Passed, result.Cases.Failed+result.Cases.Errored, result.Cases.Skipped,
		formatDuration(result.Duration))
	fmt.Fprintln(w, strings.Repeat("═", tableWidth))
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
