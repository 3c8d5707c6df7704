package knowledge

import (
	"context"
	"log"

	"solguardian/types"
)

// indicatorProbeLimit is the per-indicator result capacity when probing the
// exploits collection with individual indicator text.
const indicatorProbeLimit = 3

// maxIndicatorProbes caps how many of the first-occurring indicators are
// probed individually.
const maxIndicatorProbes = 3

// SimilarityMatcher finds historical exploits similar to a contract by
// probing the exploits collection with both the raw source text and the
// strongest individual indicators. Code-level similarity catches structural
// matches the indicator text misses, and vice versa.
type SimilarityMatcher struct {
	store Store
}

// NewSimilarityMatcher creates a matcher over the given store.
func NewSimilarityMatcher(store Store) *SimilarityMatcher {
	return &SimilarityMatcher{store: store}
}

// FindSimilar unions the probe results, deduplicates by ID keeping the
// first occurrence, caps the list at limit*2, and projects each match into
// its display shape. Backend failure degrades to an empty list.
func (m *SimilarityMatcher) FindSimilar(ctx context.Context, ca *types.ContractAnalysis, sourceText string, limit int) []types.SimilarExploit {
	if limit <= 0 {
		limit = 5
	}
	maxResults := limit * 2

	var union []types.KnowledgeMatch

	matches, err := m.store.Query(ctx, types.CollectionExploits, sourceText, maxResults, nil)
	if err != nil {
		log.Printf("⚠️  Exploit similarity probe failed on source text: %v", err)
	} else {
		union = append(union, matches...)
	}

	for i, ind := range ca.Indicators {
		if i >= maxIndicatorProbes {
			break
		}
		matches, err := m.store.Query(ctx, types.CollectionExploits, ind.String(), indicatorProbeLimit, nil)
		if err != nil {
			continue
		}
		union = append(union, matches...)
	}

	merged := MergeByID(union, maxResults)
	exploits := make([]types.SimilarExploit, 0, len(merged))
	for _, match := range merged {
		exploits = append(exploits, types.SimilarExploitFromMatch(match))
	}
	return exploits
}
