package knowledge

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	apperrors "solguardian/internal/errors"
	"solguardian/types"
)

// Store is the seam to the semantic-search backend. The analysis pipeline
// depends only on this contract, never on the backend's internals, so tests
// substitute an in-memory fake.
type Store interface {
	// Query returns distance-ranked matches for free text. Backend failures
	// surface as a KnowledgeUnavailable error; callers degrade to empty
	// result sets rather than aborting.
	Query(ctx context.Context, collection types.Collection, text string, limit int, where map[string]string) ([]types.KnowledgeMatch, error)
	// Get fetches records by ID.
	Get(ctx context.Context, collection types.Collection, ids []string) ([]types.KnowledgeMatch, error)
	// Add inserts records into a collection.
	Add(ctx context.Context, collection types.Collection, records []types.KnowledgeRecord) error
	// Count returns the number of documents in a collection.
	Count(collection types.Collection) int
}

// ChromemStore implements Store on an embedded chromem-go database with one
// collection per logical knowledge-base collection.
type ChromemStore struct {
	db          *chromem.DB
	collections map[types.Collection]*chromem.Collection
	mu          sync.RWMutex
}

// NewChromemStore opens (or creates) the persistent vector database at
// dbPath and readies the three knowledge collections.
func NewChromemStore(dbPath string, ef chromem.EmbeddingFunc) (*ChromemStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("dbPath is required for persistent store")
	}
	if err := os.MkdirAll(dbPath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create knowledge db directory %s: %w", dbPath, err)
	}
	log.Printf("📚 Knowledge store: opening persistent database at %s", dbPath)

	db, err := chromem.NewPersistentDB(dbPath, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open chromem database: %w", err)
	}

	s := &ChromemStore{
		db:          db,
		collections: make(map[types.Collection]*chromem.Collection),
	}
	for _, name := range []types.Collection{types.CollectionSWC, types.CollectionExploits, types.CollectionAuditFindings} {
		coll, err := db.GetOrCreateCollection(string(name), nil, ef)
		if err != nil {
			return nil, fmt.Errorf("failed to get/create collection %s: %w", name, err)
		}
		s.collections[name] = coll
		log.Printf("📚 Knowledge store: collection %q ready (%d documents)", name, coll.Count())
	}
	return s, nil
}

func (s *ChromemStore) collection(name types.Collection) (*chromem.Collection, error) {
	coll, ok := s.collections[name]
	if !ok {
		return nil, apperrors.NewKnowledgeUnavailable(fmt.Errorf("unknown collection %q", name))
	}
	return coll, nil
}

// Query implements Store.
func (s *ChromemStore) Query(ctx context.Context, collection types.Collection, text string, limit int, where map[string]string) ([]types.KnowledgeMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	// chromem rejects nResults larger than the collection size.
	n := limit
	if count := coll.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := coll.Query(ctx, text, n, where, nil)
	if err != nil {
		return nil, apperrors.NewKnowledgeUnavailable(err)
	}

	matches := make([]types.KnowledgeMatch, 0, len(results))
	for _, res := range results {
		matches = append(matches, types.KnowledgeMatch{
			ID:       res.ID,
			Document: res.Content,
			Metadata: res.Metadata,
			Distance: clampDistance(1 - float64(res.Similarity)),
		})
	}
	return matches, nil
}

// Get implements Store.
func (s *ChromemStore) Get(ctx context.Context, collection types.Collection, ids []string) ([]types.KnowledgeMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	matches := make([]types.KnowledgeMatch, 0, len(ids))
	for _, id := range ids {
		doc, err := coll.GetByID(ctx, id)
		if err != nil {
			continue // absent ids are skipped, not fatal
		}
		matches = append(matches, types.KnowledgeMatch{
			ID:       doc.ID,
			Document: doc.Content,
			Metadata: doc.Metadata,
		})
	}
	return matches, nil
}

// Add implements Store.
func (s *ChromemStore) Add(ctx context.Context, collection types.Collection, records []types.KnowledgeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, err := s.collection(collection)
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, 0, len(records))
	for _, rec := range records {
		docs = append(docs, chromem.Document{
			ID:       rec.ID,
			Content:  rec.Document,
			Metadata: rec.Metadata,
		})
	}
	if len(docs) == 0 {
		return nil
	}
	if err := coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return apperrors.NewKnowledgeUnavailable(err)
	}
	return nil
}

// Count implements Store.
func (s *ChromemStore) Count(collection types.Collection) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll, ok := s.collections[collection]
	if !ok {
		return 0
	}
	return coll.Count()
}

func clampDistance(d float64) float64 {
	if d < 0 {
		return 0
	}
	if d > 1 {
		return 1
	}
	return d
}
