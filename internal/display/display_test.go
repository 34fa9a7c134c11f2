package display

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Saksham338101/menu-scanner1/internal/menu"
)

var ansi = regexp.MustCompile("\033\\[[0-9;]*m")

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func plain(buf *bytes.Buffer) string { return ansi.ReplaceAllString(buf.String(), "") }

func strp(s string) *string { return &s }

func TestItemTable(t *testing.T) {
	buf := capture(t)
	price := 12.5
	kcal := 640
	ItemTable([]menu.Item{
		{Name: "Pad Thai", Price: &price, Section: strp("Noodles"), Tags: []string{"spicy", "section:Noodles"},
			Nutrition: &menu.Nutrition{Calories: &kcal}},
		{Name: "Tom Yum", Description: strp("hot and sour")},
	})

	out := plain(buf)
	assert.Contains(t, out, "Noodles\n")
	assert.Contains(t, out, "12.50")
	assert.Contains(t, out, "640 kcal")
	assert.Contains(t, out, "[spicy]")
	assert.NotContains(t, out, "section:")
	assert.Contains(t, out, "Other\n")
	assert.Contains(t, out, "hot and sour")
}

func TestLogRequest(t *testing.T) {
	buf := capture(t)
	LogRequest("POST", "/v1/menus/x/extract", 422, 1500*time.Millisecond, "127.0.0.1")
	out := plain(buf)
	assert.Contains(t, out, "POST")
	assert.Contains(t, out, "422")
	assert.Contains(t, out, "1.5s")
}

func TestPrintBanner(t *testing.T) {
	buf := capture(t)
	PrintBanner(ServerInfo{
		Version:   "dev",
		LLMModel:  "gpt-4o-mini",
		Variants:  []string{"json_object", "no_response_format"},
		Endpoints: []Endpoint{{Method: "GET ", Path: "/health"}},
		Port:      8000,
	})
	out := plain(buf)
	assert.Contains(t, out, "json_object → no_response_format")
	assert.Contains(t, out, "http://localhost:8000/health")
	assert.Contains(t, out, "none (menus are not persisted)")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250μs", formatDuration(250*time.Microsecond))
	assert.Equal(t, "12ms", formatDuration(12*time.Millisecond))
}
