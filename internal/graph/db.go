package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cayleygraph/cayley"
	"github.com/cayleygraph/cayley/graph"
	_ "github.com/cayleygraph/cayley/graph/kv/bolt"
	_ "github.com/cayleygraph/cayley/graph/memstore"
	"github.com/cayleygraph/quad"

	"github.com/Saksham338101/menu-scanner1/internal/menu"
)

// Predicates written for every dish.
const (
	PredServes      = "serves"
	PredInSection   = "in_section"
	PredTagged      = "tagged"
	PredPriced      = "priced"
	PredDescribedAs = "described_as"
	PredCalories    = "calories"
)

// writerOpts lets a replace re-add quads it is also removing.
var writerOpts = graph.Options{"ignore_duplicate": true, "ignore_missing": true}

// SearchResult represents a result from a graph search.
type SearchResult struct {
	Restaurant string  `json:"restaurant"`
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Score      float64 `json:"score"`
}

// DB is a menu knowledge graph. Every quad carries the restaurant id as its
// label so one restaurant's menu can be replaced without touching others.
type DB struct {
	store *cayley.Handle
}

// NewDB creates a new in-memory graph DB.
func NewDB() (*DB, error) {
	store, err := cayley.NewGraph("memstore", "", writerOpts)
	if err != nil {
		return nil, fmt.Errorf("create memory graph: %w", err)
	}
	return &DB{store: store}, nil
}

// NewDBFromPath opens a persistent bolt-backed cayley graph, creating it on
// first use.
func NewDBFromPath(path string) (*DB, error) {
	if err := graph.InitQuadStore("bolt", path, nil); err != nil {
		if !errors.Is(err, graph.ErrDatabaseExists) && !strings.Contains(err.Error(), "already") {
			return nil, fmt.Errorf("init bolt quad store at %q: %w", path, err)
		}
	}

	store, err := cayley.NewGraph("bolt", path, writerOpts)
	if err != nil {
		return nil, fmt.Errorf("open bolt graph at %q: %w", path, err)
	}
	return &DB{store: store}, nil
}

// SaveMenu replaces every quad labelled with restaurantID by the quads
// describing items.
func (db *DB) SaveMenu(ctx context.Context, restaurantID string, items []menu.Item) error {
	if restaurantID == "" {
		return errors.New("restaurant id is required")
	}

	old, err := db.labelled(ctx, restaurantID)
	if err != nil {
		return err
	}

	tx := cayley.NewTransaction()
	for _, q := range old {
		tx.RemoveQuad(q)
	}
	for _, q := range menuQuads(restaurantID, items) {
		tx.AddQuad(q)
	}

	if err := db.store.ApplyTransaction(tx); err != nil {
		return fmt.Errorf("replace menu quads for %q: %w", restaurantID, err)
	}
	return nil
}

func (db *DB) labelled(ctx context.Context, restaurantID string) ([]quad.Quad, error) {
	it := db.store.QuadsAllIterator()
	defer it.Close()

	var out []quad.Quad
	for it.Next(ctx) {
		q := db.store.Quad(it.Result())
		if quadValueStr(q.Label) == restaurantID {
			out = append(out, q)
		}
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("scan quads: %w", err)
	}
	return out, nil
}

func menuQuads(restaurantID string, items []menu.Item) []quad.Quad {
	label := quad.String(restaurantID)
	mk := func(s, p, o string) quad.Quad {
		return quad.Make(quad.String(s), quad.String(p), quad.String(o), label)
	}

	var quads []quad.Quad
	for _, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			continue
		}
		quads = append(quads, mk(restaurantID, PredServes, name))
		if it.Section != nil {
			quads = append(quads, mk(name, PredInSection, *it.Section))
		}
		if it.Description != nil {
			quads = append(quads, mk(name, PredDescribedAs, *it.Description))
		}
		if it.Price != nil {
			quads = append(quads, mk(name, PredPriced, strconv.FormatFloat(*it.Price, 'f', 2, 64)))
		}
		if it.Nutrition != nil && it.Nutrition.Calories != nil {
			quads = append(quads, mk(name, PredCalories, strconv.Itoa(*it.Nutrition.Calories)))
		}
		for _, tag := range it.Tags {
			if strings.HasPrefix(tag, "section:") {
				continue
			}
			quads = append(quads, mk(name, PredTagged, tag))
		}
	}
	return quads
}

// Search scores quads against the query terms. An empty restaurantID
// searches every menu.
func (db *DB) Search(ctx context.Context, restaurantID, query string, topK int) ([]SearchResult, error) {
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}
	if topK <= 0 {
		topK = 10
	}

	queryTerms := strings.Fields(strings.ToLower(query))
	results := []SearchResult{}
	seen := map[string]bool{}

	it := db.store.QuadsAllIterator()
	defer it.Close()

	for it.Next(ctx) {
		q := db.store.Quad(it.Result())

		label := quadValueStr(q.Label)
		if restaurantID != "" && label != restaurantID {
			continue
		}
		subj := quadValueStr(q.Subject)
		pred := quadValueStr(q.Predicate)
		obj := quadValueStr(q.Object)

		key := label + "|" + subj + "|" + pred + "|" + obj
		if seen[key] {
			continue
		}

		if score := scoreMatch(queryTerms, subj, obj); score > 0 {
			seen[key] = true
			results = append(results, SearchResult{
				Restaurant: label,
				Subject:    subj,
				Predicate:  pred,
				Object:     obj,
				Score:      score,
			})
		}
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("scan quads: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of quads in the graph.
func (db *DB) Count() int64 {
	stats, err := db.store.Stats(context.Background(), false)
	if err != nil {
		return 0
	}
	return stats.Quads.Size
}

// Close shuts down the graph store.
func (db *DB) Close() error {
	return db.store.Close()
}

func quadValueStr(v quad.Value) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(quad.String); ok {
		return string(s)
	}
	s := quad.StringOf(v)
	s = strings.TrimPrefix(s, "\"")
	s = strings.TrimSuffix(s, "\"")
	return strings.TrimSpace(s)
}

// scoreMatch counts query terms of three or more letters found in values.
func scoreMatch(terms []string, values ...string) float64 {
	combined := strings.ToLower(strings.Join(values, " "))
	score := 0.0
	for _, term := range terms {
		if len(term) < 3 {
			continue
		}
		if strings.Contains(combined, term) {
			score += 1.0
		}
	}
	return score
}
