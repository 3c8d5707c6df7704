package knowledge

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"solguardian/types"
)

// DefaultQuery is the fallback when no indicator, protocol or sensitive
// function yields a search keyword.
const DefaultQuery = "smart contract security vulnerability"

// categoryPhrases maps indicator categories to canonical search phrases.
var categoryPhrases = map[types.Category]string{
	types.CategoryReentrancy:    "reentrancy attack external call",
	types.CategoryAccessControl: "access control authorization bypass",
	types.CategoryDelegatecall:  "delegatecall proxy storage collision",
	types.CategoryOverflow:      "integer overflow underflow arithmetic",
	types.CategoryOracle:        "price oracle manipulation",
	types.CategoryFlashLoan:     "flash loan attack",
	types.CategoryRandomness:    "weak randomness predictable seed",
	types.CategoryDOS:           "denial of service gas limit",
	types.CategoryValidation:    "input validation missing check",
	types.CategoryLogic:         "business logic error",
	types.CategorySignature:     "signature replay malleability",
	types.CategoryStorage:       "storage pointer collision",
	types.CategoryVisibility:    "function visibility shadowing",
	types.CategorySelfdestruct:  "selfdestruct unprotected contract destruction",
}

// AggregateOptions controls query fan-out and result capping.
type AggregateOptions struct {
	// LimitPerCollection caps each collection's merged result list.
	LimitPerCollection int
	// SecondaryQueries is the number of raw-indicator secondary queries to
	// issue. Comprehensive mode widens this.
	SecondaryQueries int
}

// DefaultAggregateOptions mirror the analyze defaults.
func DefaultAggregateOptions() AggregateOptions {
	return AggregateOptions{LimitPerCollection: 10, SecondaryQueries: 3}
}

// Aggregator turns one contract analysis into a set of targeted
// knowledge-base queries and merges the per-collection results.
type Aggregator struct {
	store Store
}

// NewAggregator creates an aggregator over the given store.
func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// BuildQueries derives the query set for a contract analysis: one primary
// keyword query plus secondary queries from raw indicator text and detected
// protocols, in deterministic order.
func (a *Aggregator) BuildQueries(ca *types.ContractAnalysis, secondaryCount int) []string {
	var keywords []string
	seenCat := make(map[types.Category]bool)
	for _, ind := range ca.Indicators {
		if seenCat[ind.Category] {
			continue
		}
		seenCat[ind.Category] = true
		if phrase, ok := categoryPhrases[ind.Category]; ok {
			keywords = append(keywords, phrase)
		}
	}
	keywords = append(keywords, ca.Protocols...)
	keywords = append(keywords, ca.SensitiveFunctions...)

	primary := DefaultQuery
	if len(keywords) > 0 {
		primary = strings.Join(keywords, " ")
	}
	queries := []string{primary}

	for i, ind := range ca.Indicators {
		if i >= secondaryCount {
			break
		}
		queries = append(queries, types.Truncate(ind.String(), 100))
	}
	for _, proto := range ca.Protocols {
		queries = append(queries, fmt.Sprintf("%s security vulnerability", proto))
	}
	return queries
}

// Aggregate issues every query against every collection and merges the
// results per collection. Within one query the backend's ascending-distance
// order is preserved; across queries the merge follows query-submission
// order, keeping the first match for any duplicated ID. Backend failures
// degrade to empty result sets for the affected query, never to an error.
func (a *Aggregator) Aggregate(ctx context.Context, ca *types.ContractAnalysis, opts AggregateOptions) *types.AggregatedKnowledge {
	if opts.LimitPerCollection <= 0 {
		opts.LimitPerCollection = 10
	}
	queries := a.BuildQueries(ca, opts.SecondaryQueries)

	// ceil(limitPerCollection / numberOfQueries)
	perQuery := (opts.LimitPerCollection + len(queries) - 1) / len(queries)
	if perQuery < 1 {
		perQuery = 1
	}

	collections := []types.Collection{
		types.CollectionSWC,
		types.CollectionExploits,
		types.CollectionAuditFindings,
	}

	// All (query, collection) lookups are independent; fire them
	// concurrently and join, then merge deterministically.
	results := make([][][]types.KnowledgeMatch, len(queries))
	for i := range results {
		results[i] = make([][]types.KnowledgeMatch, len(collections))
	}

	var failed sync.Once
	g, gctx := errgroup.WithContext(ctx)
	for qi, query := range queries {
		for ci, coll := range collections {
			qi, ci, query, coll := qi, ci, query, coll
			g.Go(func() error {
				matches, err := a.store.Query(gctx, coll, query, perQuery, nil)
				if err != nil {
					failed.Do(func() {
						log.Printf("⚠️  Knowledge query failed, degrading to partial results: %v", err)
					})
					return nil // non-fatal: empty result set for this pair
				}
				results[qi][ci] = matches
				return nil
			})
		}
	}
	g.Wait()

	agg := &types.AggregatedKnowledge{Queries: queries}
	for ci, coll := range collections {
		var perColl []types.KnowledgeMatch
		for qi := range queries {
			perColl = append(perColl, results[qi][ci]...)
		}
		merged := MergeByID(perColl, opts.LimitPerCollection)
		switch coll {
		case types.CollectionSWC:
			agg.SWC = merged
		case types.CollectionExploits:
			agg.Exploits = merged
		case types.CollectionAuditFindings:
			agg.AuditFindings = merged
		}
	}
	return agg
}

// MergeByID deduplicates matches by ID, keeping the first occurrence even
// when a later duplicate has a lower distance, and caps the result at
// limit. First-wins keeps the merge cheap and order-stable; preferring the
// lowest distance on duplicates is a candidate change.
func MergeByID(matches []types.KnowledgeMatch, limit int) []types.KnowledgeMatch {
	seen := make(map[string]bool, len(matches))
	var out []types.KnowledgeMatch
	for _, m := range matches {
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
