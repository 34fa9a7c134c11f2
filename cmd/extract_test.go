package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Saksham338101/menu-scanner1/internal/extract"
	"github.com/Saksham338101/menu-scanner1/internal/menu"
	"github.com/Saksham338101/menu-scanner1/internal/reader"
)

type pageExtractor map[string]func() (*extract.Result, error)

func (p pageExtractor) Extract(_ context.Context, img extract.Image) (*extract.Result, error) {
	return p[string(img.Data)]()
}

func page(name string) reader.Page {
	return reader.Page{Source: name, Image: extract.Image{Data: []byte(name)}}
}

func result(at time.Time, tokens int, names ...string) func() (*extract.Result, error) {
	return func() (*extract.Result, error) {
		items := make([]menu.Item, len(names))
		for i, n := range names {
			items[i] = menu.Item{Name: n, Tags: []string{}}
		}
		return &extract.Result{Items: items, GeneratedAt: at, Usage: extract.Usage{TotalTokens: tokens}}, nil
	}
}

func TestExtractPages_MergesFirstSeen(t *testing.T) {
	t1 := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	ex := pageExtractor{
		"p1": result(t1, 10, "Pad Thai", "Tom Yum"),
		"p2": func() (*extract.Result, error) { return nil, extract.ErrNoDishes },
		"p3": result(t2, 5, "tom yum", "Green Curry"),
	}

	doc, err := extractPages(context.Background(), ex, []reader.Page{page("p1"), page("p2"), page("p3")}, false, zap.NewNop())
	require.NoError(t, err)

	var names []string
	for _, it := range doc.Items {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"Pad Thai", "Tom Yum", "Green Curry"}, names)
	assert.Equal(t, 15, doc.Usage.TotalTokens)
	assert.True(t, t2.Equal(doc.GeneratedAt))
}

func TestExtractPages_Errors(t *testing.T) {
	empty := pageExtractor{"p1": func() (*extract.Result, error) { return nil, extract.ErrNoDishes }}
	_, err := extractPages(context.Background(), empty, []reader.Page{page("p1")}, false, zap.NewNop())
	assert.ErrorIs(t, err, extract.ErrNoDishes)

	boom := errors.New("boom")
	failing := pageExtractor{"p1": func() (*extract.Result, error) { return nil, boom }}
	_, err = extractPages(context.Background(), failing, []reader.Page{page("p1")}, false, zap.NewNop())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "extract p1")
}

func TestWriteMenu(t *testing.T) {
	price := 12.0
	doc := &menuDoc{
		Restaurant:  "golden-lotus",
		GeneratedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		Items:       []menu.Item{{Name: "Pad Thai", Price: &price, Tags: []string{"spicy"}}},
	}

	var js bytes.Buffer
	require.NoError(t, writeMenu(&js, doc, formatJSON))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, "golden-lotus", decoded["restaurant"])
	assert.Len(t, decoded["items"], 1)

	var ym bytes.Buffer
	require.NoError(t, writeMenu(&ym, doc, formatYAML))
	var back menuDoc
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &back))
	require.Len(t, back.Items, 1)
	assert.Equal(t, "Pad Thai", back.Items[0].Name)
	assert.Equal(t, 12.0, *back.Items[0].Price)
}
