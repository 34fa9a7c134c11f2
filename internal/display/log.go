package display

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Saksham338101/menu-scanner1/internal/menu"
)

// Output streams; swapped in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// ────────────────────────────────────────────────────────────
// Log-level helpers (colored prefixes for CLI output)
// ────────────────────────────────────────────────────────────

// Step prints a pipeline step like "  [1/3] Loading images..."
func Step(step, total int, msg string) {
	fmt.Fprintf(stdout, "  %s%s[%d/%d]%s %s%s%s\n",
		bold, brightCyan, step, total, reset,
		white, msg, reset,
	)
}

// StepDetail prints an indented detail line under a step.
func StepDetail(msg string) {
	fmt.Fprintf(stdout, "        %s%s%s\n", dim+white, msg, reset)
}

// StepResult prints a success result for a step with a highlighted value.
func StepResult(label string, value any) {
	fmt.Fprintf(stdout, "        %s%s%s %s%v%s\n",
		dim, label, reset,
		bold+brightGreen, value, reset,
	)
}

// StepWarn prints a warning detail under a step.
func StepWarn(msg string) {
	fmt.Fprintf(stdout, "        %s%s⚠ %s%s\n", yellow, bold, msg, reset)
}

// Info prints a general info message.
func Info(msg string) {
	fmt.Fprintf(stdout, "  %s%sℹ%s %s\n", brightBlue, bold, reset, msg)
}

// Success prints a green success message.
func Success(msg string) {
	fmt.Fprintf(stdout, "  %s%s✓%s %s\n", brightGreen, bold, reset, msg)
}

// Warn prints a yellow warning message.
func Warn(msg string) {
	fmt.Fprintf(stdout, "  %s%s⚠%s %s%s%s\n", brightYellow, bold, reset, yellow, msg, reset)
}

// ErrorMsg prints a red error message.
func ErrorMsg(msg string) {
	fmt.Fprintf(stderr, "  %s%s✗%s %s%s%s\n", brightRed, bold, reset, red, msg, reset)
}

// Header prints a section header line.
func Header(msg string) {
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  %s%s%s%s\n", bold, brightCyan, msg, reset)
	fmt.Fprintf(stdout, "  %s%s%s%s\n", dim, cyan, rule, reset)
}

// KeyValue prints a labeled value.
func KeyValue(key string, value any, valueColor string) {
	fmt.Fprintf(stdout, "    %s%s%s  %s%v%s\n", dim, padRight(key, 18), reset, valueColor, value, reset)
}

// ────────────────────────────────────────────────────────────
// Menu output
// ────────────────────────────────────────────────────────────

// ItemTable prints extracted dishes grouped under their section headings in
// extraction order.
func ItemTable(items []menu.Item) {
	current := "\x00"
	for _, it := range items {
		section := ""
		if it.Section != nil {
			section = *it.Section
		}
		if section != current {
			current = section
			title := section
			if title == "" {
				title = "Other"
			}
			fmt.Fprintf(stdout, "\n  %s%s%s%s\n", bold, brightYellow, title, reset)
		}

		price := ""
		if it.Price != nil {
			price = strconv.FormatFloat(*it.Price, 'f', 2, 64)
		}
		fmt.Fprintf(stdout, "    %s%s%s %s%8s%s", brightWhite, padRight(it.Name, 36), reset, brightGreen, price, reset)
		if it.Nutrition != nil && it.Nutrition.Calories != nil {
			fmt.Fprintf(stdout, "  %s%d kcal%s", dim, *it.Nutrition.Calories, reset)
		}
		if tags := visibleTags(it.Tags); len(tags) > 0 {
			fmt.Fprintf(stdout, "  %s%s[%s]%s", dim, magenta, strings.Join(tags, ", "), reset)
		}
		fmt.Fprintln(stdout)
		if it.Description != nil {
			fmt.Fprintf(stdout, "      %s%s%s%s\n", dim, italic, *it.Description, reset)
		}
	}
	fmt.Fprintln(stdout)
}

func visibleTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if !strings.HasPrefix(t, "section:") {
			out = append(out, t)
		}
	}
	return out
}

// ────────────────────────────────────────────────────────────
// HTTP request log: colorized request lines for the server
// ────────────────────────────────────────────────────────────

// LogRequest prints a colorized HTTP request log line to stdout.
func LogRequest(method, path string, status int, duration time.Duration, remote string) {
	fmt.Fprintf(stdout, "  %s%s%-7s%s %s%-40s%s %s%s%d%s %s%s%s %s%s%s\n",
		bold, colorForMethod(method), method, reset,
		white, path, reset,
		bold, colorForStatus(status), status, reset,
		dim, formatDuration(duration), reset,
		dim+white, remote, reset,
	)
}

func colorForMethod(method string) string {
	switch method {
	case "GET":
		return brightBlue
	case "POST":
		return brightGreen
	case "OPTIONS":
		return dim + white
	default:
		return white
	}
}

func colorForStatus(code int) string {
	switch {
	case code >= 500:
		return brightRed
	case code >= 400:
		return brightYellow
	case code >= 300:
		return brightCyan
	case code >= 200:
		return brightGreen
	default:
		return white
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dμs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
}
