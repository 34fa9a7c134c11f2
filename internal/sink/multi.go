// Package sink fans a finished menu out to several stores.
package sink

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Saksham338101/menu-scanner1/internal/menu"
)

// Named pairs a sink with the label used in logs and errors.
type Named struct {
	Name string
	Sink menu.Sink
}

// Multi writes to every sink in order and stops at the first failure.
type Multi struct {
	sinks  []Named
	logger *zap.Logger
}

// NewMulti creates a Multi. A nil logger disables logging.
func NewMulti(logger *zap.Logger, sinks ...Named) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{sinks: sinks, logger: logger}
}

// Len returns the number of configured sinks.
func (m *Multi) Len() int { return len(m.sinks) }

// SaveMenu implements menu.Sink.
func (m *Multi) SaveMenu(ctx context.Context, restaurantID string, items []menu.Item) error {
	for _, s := range m.sinks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.Sink.SaveMenu(ctx, restaurantID, items); err != nil {
			return fmt.Errorf("%s sink: %w", s.Name, err)
		}
		m.logger.Debug("menu saved",
			zap.String("sink", s.Name),
			zap.String("restaurant", restaurantID),
			zap.Int("items", len(items)))
	}
	return nil
}
