package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saksham338101/menu-scanner1/internal/menu"
)

type recorder struct {
	calls *[]string
	name  string
	err   error
}

func (r recorder) SaveMenu(_ context.Context, restaurantID string, items []menu.Item) error {
	*r.calls = append(*r.calls, r.name+":"+restaurantID)
	return r.err
}

func TestMulti_SaveMenu(t *testing.T) {
	var calls []string
	m := NewMulti(nil,
		Named{Name: "graph", Sink: recorder{calls: &calls, name: "graph"}},
		Named{Name: "vector", Sink: recorder{calls: &calls, name: "vector"}},
	)
	require.NoError(t, m.SaveMenu(context.Background(), "golden-lotus", []menu.Item{{Name: "Pad Thai"}}))
	assert.Equal(t, []string{"graph:golden-lotus", "vector:golden-lotus"}, calls)
	assert.Equal(t, 2, m.Len())
}

func TestMulti_FirstErrorWins(t *testing.T) {
	var calls []string
	boom := errors.New("disk full")
	m := NewMulti(nil,
		Named{Name: "graph", Sink: recorder{calls: &calls, name: "graph", err: boom}},
		Named{Name: "vector", Sink: recorder{calls: &calls, name: "vector", err: errors.New("other")}},
	)
	err := m.SaveMenu(context.Background(), "golden-lotus", nil)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "graph sink")
	assert.Equal(t, []string{"graph:golden-lotus"}, calls)
}

func TestMulti_Canceled(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMulti(nil, Named{Name: "graph", Sink: recorder{calls: &calls, name: "graph"}})
	assert.ErrorIs(t, m.SaveMenu(ctx, "x", nil), context.Canceled)
	assert.Empty(t, calls)
}
