// Package display renders colored terminal output for the CLI.
package display

import (
	"fmt"
	"strings"
)

// ANSI color codes
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	italic = "\033[3m"

	red     = "\033[31m"
	yellow  = "\033[33m"
	magenta = "\033[35m"
	cyan    = "\033[36m"
	white   = "\033[37m"

	brightRed     = "\033[91m"
	brightGreen   = "\033[92m"
	brightYellow  = "\033[93m"
	brightBlue    = "\033[94m"
	brightMagenta = "\033[95m"
	brightCyan    = "\033[96m"
	brightWhite   = "\033[97m"
)

// Exported colors for KeyValue callers.
const (
	Green   = brightGreen
	Yellow  = brightYellow
	Magenta = brightMagenta
	White   = brightWhite
	Dim     = dim + white
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// Endpoint is one route shown in the banner.
type Endpoint struct {
	Method string
	Path   string
}

// ServerInfo holds all the information to display in the startup banner.
type ServerInfo struct {
	Version string

	// Extraction
	LLMModel      string
	FallbackModel string
	LLMBaseURL    string
	Variants      []string
	MaxBatches    int
	BatchSize     int

	// Storage
	Sinks       []string
	DishCount   int
	TripleCount int64
	Cache       string

	// Limits
	RatePerMin int
	Burst      int
	ShareTTL   string

	Endpoints []Endpoint
	Port      int
}

// PrintBanner prints the colorful startup banner.
func PrintBanner(info ServerInfo) {
	w := stdout
	host := fmt.Sprintf("http://localhost:%d", info.Port)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %s%s🍜 menuscan server%s %s%s%s\n", bold, brightCyan, reset, dim, info.Version, reset)
	fmt.Fprintf(w, "  %s%s%s%s\n", dim, cyan, rule, reset)
	fmt.Fprintln(w)

	printSectionHeader("🤖 Extraction")
	printKV("LLM Model", info.LLMModel, brightMagenta)
	if info.FallbackModel != "" && info.FallbackModel != info.LLMModel {
		printKV("Fallback Model", info.FallbackModel, brightMagenta)
	}
	printKV("LLM Endpoint", maskURL(info.LLMBaseURL), dim+white)
	printKV("Variants", strings.Join(info.Variants, " → "), white)
	printKVColored("Rounds", fmt.Sprintf("%d × %d dishes", info.MaxBatches, info.BatchSize), brightYellow)
	fmt.Fprintln(w)

	printSectionHeader("📚 Storage")
	if len(info.Sinks) == 0 {
		printKVColored("Sinks", "✗ none (menus are not persisted)", dim+yellow)
	} else {
		printKVColored("Sinks", strings.Join(info.Sinks, ", "), brightGreen)
	}
	printKVColored("Dishes", formatCount(info.DishCount), brightGreen)
	printKVColored("Graph Triples", formatCount(int(info.TripleCount)), brightGreen)
	printKV("Cache", info.Cache, white)
	fmt.Fprintln(w)

	printSectionHeader("🛡  Limits")
	printKV("Extract Rate", fmt.Sprintf("%d/min per restaurant (burst %d)", info.RatePerMin, info.Burst), white)
	printKV("Share Links", info.ShareTTL, white)
	fmt.Fprintln(w)

	printSectionHeader("🌐 Endpoints")
	for _, e := range info.Endpoints {
		printEndpoint(e.Method, host+e.Path)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %s%s%s%s\n", dim, cyan, rule, reset)
	fmt.Fprintf(w, "  %s%s🚀 Server listening on %s%s%s%s\n", dim, white, reset, bold+brightGreen, host, reset)
	fmt.Fprintf(w, "  %s%s%s%s\n", dim, cyan, rule, reset)
	fmt.Fprintln(w)
}

func printSectionHeader(title string) {
	fmt.Fprintf(stdout, "  %s%s%s%s\n", bold, brightYellow, title, reset)
}

func printKV(key, value, valueColor string) {
	fmt.Fprintf(stdout, "    %s%s%s  %s%s%s\n", dim, padRight(key, 18), reset, valueColor, value, reset)
}

func printKVColored(key, value, valueColor string) {
	fmt.Fprintf(stdout, "    %s%s%s  %s%s%s%s\n", dim, padRight(key, 18), reset, bold, valueColor, value, reset)
}

func printEndpoint(method, url string) {
	fmt.Fprintf(stdout, "    %s%s%-5s%s %s%s%s\n",
		bold, colorForMethod(strings.TrimSpace(method)), method, reset,
		brightBlue, url, reset,
	)
}

func padRight(s string, n int) string {
	if len([]rune(s)) >= n {
		return s
	}
	return s + strings.Repeat(" ", n-len([]rune(s)))
}

func formatCount(n int) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%d (%0.1fM)", n, float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%d (%0.1fK)", n, float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// maskURL trims the trailing slash for compact display.
func maskURL(rawURL string) string {
	if rawURL == "" {
		return "(not set)"
	}
	return strings.TrimRight(rawURL, "/")
}
