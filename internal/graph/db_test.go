package graph

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saksham338101/menu-scanner1/internal/menu"
)

func strp(s string) *string { return &s }
func f64p(f float64) *float64 { return &f }

func thaiMenu() []menu.Item {
	return []menu.Item{
		{
			Name:    "Pad Thai",
			Price:   f64p(12),
			Section: strp("Noodles"),
			Tags:    []string{"spicy", "section:Noodles"},
		},
		{Name: "Tom Yum", Description: strp("hot and sour soup")},
	}
}

func TestSaveMenu_ReplacesOnlyThatRestaurant(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SaveMenu(ctx, "golden-lotus", thaiMenu()))
	require.NoError(t, db.SaveMenu(ctx, "taqueria", []menu.Item{{Name: "Tacos", Price: f64p(4)}}))
	// serves x2, in_section, priced, tagged, described_as + serves, priced
	assert.EqualValues(t, 8, db.Count())

	require.NoError(t, db.SaveMenu(ctx, "golden-lotus", []menu.Item{{Name: "Green Curry"}}))
	assert.EqualValues(t, 3, db.Count())

	res, err := db.Search(ctx, "golden-lotus", "pad thai", 10)
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = db.Search(ctx, "golden-lotus", "curry", 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, SearchResult{Restaurant: "golden-lotus", Subject: "golden-lotus", Predicate: PredServes, Object: "Green Curry", Score: 1}, res[0])
}

func TestSaveMenu_Idempotent(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SaveMenu(ctx, "golden-lotus", thaiMenu()))
	n := db.Count()
	require.NoError(t, db.SaveMenu(ctx, "golden-lotus", thaiMenu()))
	assert.Equal(t, n, db.Count())

	assert.Error(t, db.SaveMenu(ctx, "", thaiMenu()))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SaveMenu(ctx, "golden-lotus", thaiMenu()))
	require.NoError(t, db.SaveMenu(ctx, "soup-bar", []menu.Item{{Name: "Tom Yum Soup"}}))

	all, err := db.Search(ctx, "", "tom yum soup", 10)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	assert.Equal(t, 3.0, all[0].Score)

	scoped, err := db.Search(ctx, "golden-lotus", "spicy", 10)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, PredTagged, scoped[0].Predicate)
	assert.Equal(t, "Pad Thai", scoped[0].Subject)

	_, err = db.Search(ctx, "", "", 10)
	assert.Error(t, err)
}

func TestNewDBFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "menus.cayley")
	ctx := context.Background()

	db, err := NewDBFromPath(path)
	require.NoError(t, err)
	require.NoError(t, db.SaveMenu(ctx, "golden-lotus", thaiMenu()))
	require.NoError(t, db.Close())

	db, err = NewDBFromPath(path)
	require.NoError(t, err)
	defer db.Close()

	res, err := db.Search(ctx, "golden-lotus", "noodles", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, PredInSection, res[0].Predicate)
}
