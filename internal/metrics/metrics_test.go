package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solguardian/types"
)

func TestObserveReport(t *testing.T) {
	c := NewCollector()

	report := &types.AnalysisReport{
		Contract: &types.ContractAnalysis{
			SeverityBreakdown: map[types.Severity]int{
				types.SeverityCritical: 2,
				types.SeverityLow:      1,
			},
		},
		Risk: types.RiskAssessment{Level: types.RiskCritical, Score: 90},
		Tools: []types.ToolResult{
			{Tool: "slither", Status: types.ToolStatusCompleted},
			{Tool: "myth", Status: types.ToolStatusFailed},
		},
		Knowledge: &types.KnowledgeReport{Queries: []string{"q1", "q2", "q3"}},
		Duration:  1500 * time.Millisecond,
	}
	c.ObserveReport(report)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.analysesTotal.WithLabelValues("CRITICAL")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.indicatorsTotal.WithLabelValues("CRITICAL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.toolRunsTotal.WithLabelValues("slither", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.toolRunsTotal.WithLabelValues("myth", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.knowledgeQueries))
}

func TestNilCollectorIsNoOp(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveReport(&types.AnalysisReport{Contract: &types.ContractAnalysis{}})
	})
}

func TestHandlerServesRegistry(t *testing.T) {
	c := NewCollector()
	c.ObserveReport(&types.AnalysisReport{
		Contract: &types.ContractAnalysis{},
		Risk:     types.RiskAssessment{Level: types.RiskInfo},
	})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "solguardian_analyses_total")
}
