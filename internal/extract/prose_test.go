package extract

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saksham338101/menu-scanner1/internal/menu"
)

func names(cands []menu.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Name
	}
	return out
}

func TestItemsFromText_Garbage(t *testing.T) {
	cands := ItemsFromText("Here's the menu: Burger $12, fries $5 (no JSON)")
	require.Equal(t, []string{"Burger", "fries"}, names(cands))

	burger := menu.ParsePrice(cands[0].Price)
	require.NotNil(t, burger)
	assert.Equal(t, 12.0, *burger)

	fries := menu.ParsePrice(cands[1].Price)
	require.NotNil(t, fries)
	assert.Equal(t, 5.0, *fries)
	assert.Equal(t, "no JSON", cands[1].Description)

	for _, c := range cands {
		assert.Equal(t, menu.ConfidenceEstimated, c.Confidence)
	}
}

func TestItemsFromText_Bullets(t *testing.T) {
	text := strings.Join([]string{
		"Menu highlights:",
		"- Margherita Pizza - tomato, basil $11 (vegetarian)",
		"- Spicy Wings: 650 kcal, $9.50",
		"- Garlic Bread",
		"Note: prices include tax",
	}, "\n")

	cands := ItemsFromText(text)
	require.Equal(t, []string{"Margherita Pizza", "Spicy Wings", "Garlic Bread"}, names(cands))

	pizza := cands[0]
	assert.Equal(t, "tomato, basil (vegetarian)", pizza.Description)
	assert.Equal(t, []string{"vegetarian"}, pizza.Tags)
	assert.Equal(t, "$11", pizza.Price.String())

	wings := cands[1]
	kcal, ok := wings.Calories.Float()
	require.True(t, ok)
	assert.Equal(t, 650.0, kcal)
	assert.Equal(t, "$9.50", wings.Price.String())
	assert.Empty(t, wings.Description)
	assert.Equal(t, []string{"spicy"}, wings.Tags)

	assert.True(t, cands[2].Price.IsZero())
}

func TestItemsFromText_Paragraphs(t *testing.T) {
	text := "Tacos $4\n\nNachos 320 calories $6.5 - gluten free\n\nThanks for asking! Enjoy."

	cands := ItemsFromText(text)
	require.Equal(t, []string{"Tacos", "Nachos"}, names(cands))
	assert.Equal(t, "$6.5", cands[1].Price.String())
	assert.Equal(t, "320", cands[1].Calories.String())
	assert.Equal(t, []string{"gluten-free"}, cands[1].Tags)
}

func TestItemsFromText_NumberedList(t *testing.T) {
	cands := ItemsFromText("1. Pad Thai - rice noodles 12.99\n2) Tom Yum 9")
	require.Equal(t, []string{"Pad Thai", "Tom Yum"}, names(cands))
	assert.Equal(t, "rice noodles", cands[0].Description)
	assert.Equal(t, "12.99", cands[0].Price.String())
	assert.Equal(t, "9", cands[1].Price.String())
}

func TestItemsFromText_Skips(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "empty", text: "", want: []string{}},
		{name: "fence only", text: "```json\n```", want: []string{}},
		{name: "narration", text: "I could not read this image clearly.", want: []string{}},
		{name: "metadata", text: "Total: $40\nServes 4 for $30", want: []string{}},
		{name: "fenced prose", text: "```text\nSoup $5\n```", want: []string{"Soup"}},
		{name: "dedup", text: "Soup $5\nsoup $6", want: []string{"Soup"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(ItemsFromText(tt.text)))
		})
	}
}

func TestItemsFromText_Cap(t *testing.T) {
	var lines []string
	for i := 1; i <= 100; i++ {
		lines = append(lines, fmt.Sprintf("Dish %d $%d", i, i))
	}
	cands := ItemsFromText(strings.Join(lines, "\n"))
	assert.Len(t, cands, MaxProseItems)
	assert.Equal(t, "Dish 1", cands[0].Name)
}

func TestItemsFromText_SidesDescribePreviousDish(t *testing.T) {
	cands := ItemsFromText("Chicken Tikka $12.99, served with rice, naan; Lamb Rogan Josh $14")
	require.Equal(t, []string{"Chicken Tikka", "Lamb Rogan Josh"}, names(cands))
	assert.Equal(t, "served with rice, naan", cands[0].Description)
	assert.Equal(t, "$12.99", cands[0].Price.String())
	assert.Equal(t, "$14", cands[1].Price.String())
	assert.Empty(t, cands[1].Description)
}
