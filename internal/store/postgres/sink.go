package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Saksham338101/menu-scanner1/internal/menu"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS menu_items (
    restaurant_id TEXT        NOT NULL,
    position      INTEGER     NOT NULL,
    name          TEXT        NOT NULL,
    description   TEXT,
    price         NUMERIC(10,2),
    section       TEXT,
    tags          TEXT[]      NOT NULL DEFAULT '{}',
    calories      INTEGER,
    ai_review     TEXT,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (restaurant_id, position)
)`

const deleteMenuSQL = `DELETE FROM menu_items WHERE restaurant_id = $1`

const insertItemSQL = `
INSERT INTO menu_items (restaurant_id, position, name, description, price, section, tags, calories, ai_review)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const listMenuSQL = `
SELECT name, description, price::float8, section, tags, calories, ai_review
FROM menu_items
WHERE restaurant_id = $1
ORDER BY position`

// Sink stores menus in PostgreSQL.
type Sink struct {
	pool *pgxpool.Pool
}

// New creates a Sink on an open pool.
func New(pool *pgxpool.Pool) *Sink {
	return &Sink{pool: pool}
}

// EnsureSchema creates the menu_items table when it does not exist.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create menu_items: %w", err)
	}
	return nil
}

// SaveMenu replaces the restaurant's rows with items inside one transaction.
func (s *Sink) SaveMenu(ctx context.Context, restaurantID string, items []menu.Item) (err error) {
	if restaurantID == "" {
		return errors.New("restaurant id is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, deleteMenuSQL, restaurantID); err != nil {
		return fmt.Errorf("delete menu %q: %w", restaurantID, err)
	}

	batch := &pgx.Batch{}
	for i, it := range items {
		batch.Queue(insertItemSQL, rowArgs(restaurantID, i, it)...)
	}
	if batch.Len() > 0 {
		if err = tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert menu %q: %w", restaurantID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// LoadMenu returns the stored items for a restaurant in extraction order.
func (s *Sink) LoadMenu(ctx context.Context, restaurantID string) ([]menu.Item, error) {
	rows, err := s.pool.Query(ctx, listMenuSQL, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("query menu %q: %w", restaurantID, err)
	}
	defer rows.Close()

	var items []menu.Item
	for rows.Next() {
		var (
			it       menu.Item
			calories *int
			review   *string
		)
		if err := rows.Scan(&it.Name, &it.Description, &it.Price, &it.Section, &it.Tags, &calories, &review); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		if calories != nil || review != nil {
			it.Nutrition = &menu.Nutrition{Calories: calories, AIReview: review}
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate menu rows: %w", err)
	}
	return items, nil
}

// rowArgs flattens an item into insertItemSQL arguments.
func rowArgs(restaurantID string, position int, it menu.Item) []any {
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	var (
		calories *int
		review   *string
	)
	if it.Nutrition != nil {
		calories = it.Nutrition.Calories
		review = it.Nutrition.AIReview
	}
	return []any{restaurantID, position, it.Name, it.Description, it.Price, it.Section, tags, calories, review}
}
