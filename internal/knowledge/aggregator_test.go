package knowledge

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "solguardian/internal/errors"
	"solguardian/types"
)

// fakeStore is an in-memory Store for pipeline tests. Results are keyed by
// collection and returned for every query unless a per-query override is
// set.
type fakeStore struct {
	mu       sync.Mutex
	byColl   map[types.Collection][]types.KnowledgeMatch
	byQuery  map[string][]types.KnowledgeMatch
	failAll  bool
	queryLog []string
	added    map[types.Collection][]types.KnowledgeRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byColl:  make(map[types.Collection][]types.KnowledgeMatch),
		byQuery: make(map[string][]types.KnowledgeMatch),
		added:   make(map[types.Collection][]types.KnowledgeRecord),
	}
}

func (f *fakeStore) Query(ctx context.Context, collection types.Collection, text string, limit int, where map[string]string) ([]types.KnowledgeMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryLog = append(f.queryLog, fmt.Sprintf("%s|%s", collection, text))
	if f.failAll {
		return nil, apperrors.NewKnowledgeUnavailable(fmt.Errorf("backend down"))
	}
	matches, ok := f.byQuery[text]
	if !ok {
		matches = f.byColl[collection]
	}
	if limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, nil
}

func (f *fakeStore) Get(ctx context.Context, collection types.Collection, ids []string) ([]types.KnowledgeMatch, error) {
	return nil, nil
}

func (f *fakeStore) Add(ctx context.Context, collection types.Collection, records []types.KnowledgeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return apperrors.NewKnowledgeUnavailable(fmt.Errorf("backend down"))
	}
	f.added[collection] = append(f.added[collection], records...)
	return nil
}

func (f *fakeStore) Count(collection types.Collection) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byColl[collection])
}

func match(id string, distance float64) types.KnowledgeMatch {
	return types.KnowledgeMatch{ID: id, Document: "doc " + id, Distance: distance}
}

func analysisWithIndicators() *types.ContractAnalysis {
	return &types.ContractAnalysis{
		Indicators: []types.Indicator{
			{Severity: types.SeverityCritical, Category: types.CategoryReentrancy, Description: "external call before state update"},
			{Severity: types.SeverityHigh, Category: types.CategoryAccessControl, Description: "tx.origin used for authorization"},
		},
		Protocols:          []string{"ERC20"},
		SensitiveFunctions: []string{"withdraw"},
	}
}

func TestBuildQueriesPrimaryFromKeywords(t *testing.T) {
	a := NewAggregator(newFakeStore())
	queries := a.BuildQueries(analysisWithIndicators(), 2)

	require.NotEmpty(t, queries)
	primary := queries[0]
	assert.Contains(t, primary, categoryPhrases[types.CategoryReentrancy])
	assert.Contains(t, primary, categoryPhrases[types.CategoryAccessControl])
	assert.Contains(t, primary, "ERC20")
	assert.Contains(t, primary, "withdraw")

	// Two secondary indicator queries plus one per protocol.
	assert.Contains(t, queries, "CRITICAL: external call before state update")
	assert.Contains(t, queries, "HIGH: tx.origin used for authorization")
	assert.Contains(t, queries, "ERC20 security vulnerability")
}

func TestBuildQueriesFallback(t *testing.T) {
	a := NewAggregator(newFakeStore())
	queries := a.BuildQueries(&types.ContractAnalysis{}, 3)

	assert.Equal(t, []string{DefaultQuery}, queries)
}

func TestBuildQueriesDeterministic(t *testing.T) {
	a := NewAggregator(newFakeStore())
	ca := analysisWithIndicators()
	first := a.BuildQueries(ca, 3)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, a.BuildQueries(ca, 3))
	}
}

func TestAggregateMergesPerCollection(t *testing.T) {
	store := newFakeStore()
	store.byColl[types.CollectionSWC] = []types.KnowledgeMatch{match("SWC-107", 0.1)}
	store.byColl[types.CollectionExploits] = []types.KnowledgeMatch{match("exploit-1", 0.2)}
	store.byColl[types.CollectionAuditFindings] = []types.KnowledgeMatch{match("finding-1", 0.3)}

	a := NewAggregator(store)
	agg := a.Aggregate(context.Background(), analysisWithIndicators(), DefaultAggregateOptions())

	require.NotNil(t, agg)
	assert.Equal(t, []types.KnowledgeMatch{match("SWC-107", 0.1)}, agg.SWC)
	assert.Equal(t, []types.KnowledgeMatch{match("exploit-1", 0.2)}, agg.Exploits)
	assert.Equal(t, []types.KnowledgeMatch{match("finding-1", 0.3)}, agg.AuditFindings)
	assert.NotEmpty(t, agg.Queries)
}

func TestAggregateFirstWinsOnDuplicateIDs(t *testing.T) {
	store := newFakeStore()
	ca := analysisWithIndicators()

	a := NewAggregator(store)
	queries := a.BuildQueries(ca, 1)
	require.True(t, len(queries) >= 2)

	// The same ID comes back from two queries with different distances;
	// the first query's occurrence must survive.
	store.byQuery[queries[0]] = []types.KnowledgeMatch{match("SWC-107", 0.4)}
	store.byQuery[queries[1]] = []types.KnowledgeMatch{match("SWC-107", 0.1)}

	agg := a.Aggregate(context.Background(), ca, AggregateOptions{LimitPerCollection: 10, SecondaryQueries: 1})

	require.Len(t, agg.SWC, 1)
	assert.Equal(t, 0.4, agg.SWC[0].Distance, "first-seen occurrence wins over a closer duplicate")
}

func TestAggregateCapsAtLimit(t *testing.T) {
	store := newFakeStore()
	var many []types.KnowledgeMatch
	for i := 0; i < 30; i++ {
		many = append(many, match(fmt.Sprintf("id-%d", i), 0.1))
	}
	store.byColl[types.CollectionExploits] = many

	a := NewAggregator(store)
	agg := a.Aggregate(context.Background(), analysisWithIndicators(), AggregateOptions{LimitPerCollection: 4, SecondaryQueries: 3})

	assert.LessOrEqual(t, len(agg.Exploits), 4)
}

func TestAggregateDegradesOnBackendFailure(t *testing.T) {
	store := newFakeStore()
	store.failAll = true

	a := NewAggregator(store)
	agg := a.Aggregate(context.Background(), analysisWithIndicators(), DefaultAggregateOptions())

	require.NotNil(t, agg, "backend failure must not surface as an error")
	assert.Empty(t, agg.SWC)
	assert.Empty(t, agg.Exploits)
	assert.Empty(t, agg.AuditFindings)
	assert.NotEmpty(t, agg.Queries, "issued queries are still reported")
}

func TestAggregateIdempotent(t *testing.T) {
	store := newFakeStore()
	store.byColl[types.CollectionSWC] = []types.KnowledgeMatch{match("SWC-101", 0.2), match("SWC-107", 0.1)}

	a := NewAggregator(store)
	ca := analysisWithIndicators()
	opts := DefaultAggregateOptions()

	first := a.Aggregate(context.Background(), ca, opts)
	second := a.Aggregate(context.Background(), ca, opts)
	assert.Equal(t, first, second)
}

func TestMergeByID(t *testing.T) {
	in := []types.KnowledgeMatch{
		match("a", 0.5),
		match("b", 0.2),
		match("a", 0.1),
		match("c", 0.3),
	}
	out := MergeByID(in, 10)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, 0.5, out[0].Distance)
	assert.Equal(t, "b", out[1].ID)
	assert.Equal(t, "c", out[2].ID)

	capped := MergeByID(in, 2)
	assert.Len(t, capped, 2)

	assert.Empty(t, MergeByID(nil, 5))
}
