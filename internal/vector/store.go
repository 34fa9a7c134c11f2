package vector

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"github.com/Saksham338101/menu-scanner1/internal/menu"
)

// ErrNilEmbedder is returned when no embedding function is provided.
var ErrNilEmbedder = errors.New("vector store embedding func is nil")

const collectionName = "menu_items"

// Metadata keys stored with every dish document.
const (
	MetaRestaurant = "restaurant"
	MetaName       = "name"
	MetaSection    = "section"
	MetaPrice      = "price"
)

// SearchResult represents a single dish matched by semantic search.
type SearchResult struct {
	ID         string            `json:"id"`
	Restaurant string            `json:"restaurant"`
	Name       string            `json:"name"`
	Content    string            `json:"content"`
	Similarity float32           `json:"similarity"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// BatchEmbedder embeds many dish documents in few requests.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Option configures a Store.
type Option func(*Store)

// WithBatchEmbedder embeds a whole menu up front instead of one document at
// a time. Queries still go through the store's EmbeddingFunc.
func WithBatchEmbedder(b BatchEmbedder) Option {
	return func(s *Store) { s.batch = b }
}

// Store indexes dishes in a chromem-go collection for semantic search.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	batch      BatchEmbedder
}

// NewStore creates a new vector Store backed by an in-memory chromem-go database.
func NewStore(embed chromem.EmbeddingFunc, opts ...Option) (*Store, error) {
	if embed == nil {
		return nil, ErrNilEmbedder
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return newStore(db, collection, opts), nil
}

func newStore(db *chromem.DB, c *chromem.Collection, opts []Option) *Store {
	s := &Store{db: db, collection: c}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewPersistentStore opens or creates a chromem-go database on disk.
func NewPersistentStore(path string, embed chromem.EmbeddingFunc, opts ...Option) (*Store, error) {
	if embed == nil {
		return nil, ErrNilEmbedder
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open persistent db at %q: %w", path, err)
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}
	return newStore(db, collection, opts), nil
}

// SaveMenu replaces the restaurant's dish documents with items.
func (s *Store) SaveMenu(ctx context.Context, restaurantID string, items []menu.Item) error {
	if restaurantID == "" {
		return errors.New("restaurant id is required")
	}

	if err := s.collection.Delete(ctx, map[string]string{MetaRestaurant: restaurantID}, nil); err != nil {
		return fmt.Errorf("delete previous menu: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(items))
	for _, it := range items {
		key := it.Key()
		if key == "" {
			continue
		}
		meta := map[string]string{
			MetaRestaurant: restaurantID,
			MetaName:       it.Name,
		}
		if it.Section != nil {
			meta[MetaSection] = *it.Section
		}
		if it.Price != nil {
			meta[MetaPrice] = strconv.FormatFloat(*it.Price, 'f', 2, 64)
		}
		docs = append(docs, chromem.Document{
			ID:       restaurantID + "/" + key,
			Content:  documentText(it),
			Metadata: meta,
		})
	}

	if s.batch != nil {
		if err := s.embedAll(ctx, docs); err != nil {
			return err
		}
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add documents to collection: %w", err)
	}
	return nil
}

func (s *Store) embedAll(ctx context.Context, docs []chromem.Document) error {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vecs, err := s.batch.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed menu: %w", err)
	}
	if len(vecs) != len(docs) {
		return fmt.Errorf("embed menu: got %d vectors for %d dishes", len(vecs), len(docs))
	}
	for i := range docs {
		docs[i].Embedding = vecs[i]
	}
	return nil
}

// documentText is the text embedded for a dish.
func documentText(it menu.Item) string {
	parts := []string{it.Name}
	if it.Description != nil {
		parts = append(parts, *it.Description)
	}
	if it.Section != nil {
		parts = append(parts, "Section: "+*it.Section)
	}
	var tags []string
	for _, t := range it.Tags {
		if !strings.HasPrefix(t, "section:") && t != "estimated" {
			tags = append(tags, t)
		}
	}
	if len(tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(tags, ", "))
	}
	return strings.Join(parts, ". ")
}

// Query performs a semantic similarity search. An empty restaurantID searches
// every menu.
func (s *Store) Query(ctx context.Context, restaurantID, query string, topK int) ([]SearchResult, error) {
	if query == "" {
		return nil, errors.New("query cannot be empty")
	}
	if topK <= 0 {
		topK = 5
	}
	// chromem rejects nResults above the collection size.
	if n := s.collection.Count(); topK > n {
		topK = n
	}
	if topK == 0 {
		return []SearchResult{}, nil
	}

	var where map[string]string
	if restaurantID != "" {
		where = map[string]string{MetaRestaurant: restaurantID}
	}

	results, err := s.collection.Query(ctx, query, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:         r.ID,
			Restaurant: r.Metadata[MetaRestaurant],
			Name:       r.Metadata[MetaName],
			Content:    r.Content,
			Similarity: r.Similarity,
			Metadata:   r.Metadata,
		}
	}
	return out, nil
}

// Count returns the number of documents in the store.
func (s *Store) Count() int {
	return s.collection.Count()
}
