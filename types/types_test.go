package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityWeight(t *testing.T) {
	assert.Equal(t, 30, SeverityCritical.Weight())
	assert.Equal(t, 20, SeverityHigh.Weight())
	assert.Equal(t, 10, SeverityMedium.Weight())
	assert.Equal(t, 5, SeverityLow.Weight())
	assert.Equal(t, 0, Severity("BOGUS").Weight())
}

func TestIndicatorString(t *testing.T) {
	ind := Indicator{
		Severity:    SeverityCritical,
		Category:    CategoryReentrancy,
		Description: "external call before state update",
	}
	assert.Equal(t, "CRITICAL: external call before state update", ind.String())
}

func TestKnowledgeMatchSimilarity(t *testing.T) {
	assert.Equal(t, 100, KnowledgeMatch{Distance: 0}.Similarity())
	assert.Equal(t, 90, KnowledgeMatch{Distance: 0.1}.Similarity())
	assert.Equal(t, 0, KnowledgeMatch{Distance: 1}.Similarity())
	assert.Equal(t, 87, KnowledgeMatch{Distance: 0.125}.Similarity())
}

func TestKnowledgeMatchMeta(t *testing.T) {
	m := KnowledgeMatch{Metadata: map[string]string{"name": "DAO"}}
	assert.Equal(t, "DAO", m.Meta("name"))
	assert.Equal(t, "", m.Meta("missing"))
	assert.Equal(t, "", KnowledgeMatch{}.Meta("name"))
}

func TestProjections(t *testing.T) {
	m := KnowledgeMatch{
		ID:       "2021/cream",
		Document: "Cream Finance flash loan exploit writeup",
		Distance: 0.25,
		Metadata: map[string]string{
			"name":     "Cream Finance",
			"protocol": "Cream",
			"category": "flash-loan",
			"loss":     "$130M",
			"source":   "rekt.news",
			"severity": "critical",
			"title":    "Flash Loan",
			"auditor":  "none",
		},
	}

	ex := SimilarExploitFromMatch(m)
	assert.Equal(t, "2021/cream", ex.ID)
	assert.Equal(t, "Cream Finance", ex.Name)
	assert.Equal(t, "flash-loan", ex.Category)
	assert.Equal(t, 75, ex.Similarity)

	swc := SWCRecordFromMatch(m)
	assert.Equal(t, "Flash Loan", swc.Title)
	assert.Equal(t, "critical", swc.Severity)

	af := AuditFindingFromMatch(m)
	assert.Equal(t, "Cream", af.Protocol)
	assert.Equal(t, "none", af.Auditor)
}

func TestCriticalSWCCount(t *testing.T) {
	ak := &AggregatedKnowledge{SWC: []KnowledgeMatch{
		{ID: "SWC-107", Metadata: map[string]string{"severity": "critical"}},
		{ID: "SWC-106", Metadata: map[string]string{"severity": "Critical"}},
		{ID: "SWC-104", Metadata: map[string]string{"severity": "medium"}},
		{ID: "SWC-000"},
	}}
	assert.Equal(t, 2, ak.CriticalSWCCount())
}

func TestIndicatorsBySeverity(t *testing.T) {
	ca := &ContractAnalysis{Indicators: []Indicator{
		{Severity: SeverityCritical, Description: "a"},
		{Severity: SeverityLow, Description: "b"},
		{Severity: SeverityCritical, Description: "c"},
	}}
	crit := ca.IndicatorsBySeverity(SeverityCritical)
	assert.Len(t, crit, 2)
	assert.Equal(t, "a", crit[0].Description)
	assert.Empty(t, ca.IndicatorsBySeverity(SeverityMedium))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exact", Truncate("exact", 5))
	assert.Equal(t, "lon...", Truncate("longer", 3))
}
