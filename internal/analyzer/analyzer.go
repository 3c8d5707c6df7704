package analyzer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"solguardian/internal/audit"
	"solguardian/internal/config"
	"solguardian/internal/events"
	"solguardian/internal/knowledge"
	"solguardian/internal/metrics"
	"solguardian/internal/risk"
	"solguardian/internal/scanner"
	"solguardian/internal/tools"
	"solguardian/internal/utils"
	"solguardian/types"
)

// Options are the caller-supplied flags of one analyze call.
type Options struct {
	IncludeKnowledgeBase   bool `json:"include_knowledge_base"`
	KnowledgeLimit         int  `json:"knowledge_limit"`
	IncludeSimilarExploits bool `json:"include_similar_exploits"`
	UseExternalTools       bool `json:"use_external_tools"`
	// ComprehensiveMode widens the knowledge query fan-out.
	ComprehensiveMode bool `json:"comprehensive_mode"`
}

// DefaultOptions returns the documented defaults: everything enabled,
// limit 10.
func DefaultOptions() Options {
	return Options{
		IncludeKnowledgeBase:   true,
		KnowledgeLimit:         10,
		IncludeSimilarExploits: true,
		UseExternalTools:       true,
		ComprehensiveMode:      true,
	}
}

// Analyzer composes the heuristic scanner, knowledge base, external tools,
// scorer and recommender into one analysis pipeline. Collaborators are
// injected at construction; a nil store, runner, audit store, collector or
// producer disables that concern without changing the pipeline shape.
type Analyzer struct {
	cfg        *config.Config
	scanner    *scanner.Scanner
	aggregator *knowledge.Aggregator
	matcher    *knowledge.SimilarityMatcher
	store      knowledge.Store
	runner     *tools.Runner
	auditStore *audit.Store
	collector  *metrics.Collector
	producer   *events.Producer
}

// New wires an analyzer from its collaborators.
func New(cfg *config.Config, store knowledge.Store, runner *tools.Runner, auditStore *audit.Store, collector *metrics.Collector, producer *events.Producer) *Analyzer {
	a := &Analyzer{
		cfg:        cfg,
		scanner:    scanner.New(),
		store:      store,
		runner:     runner,
		auditStore: auditStore,
		collector:  collector,
		producer:   producer,
	}
	if store != nil {
		a.aggregator = knowledge.NewAggregator(store)
		a.matcher = knowledge.NewSimilarityMatcher(store)
	}
	return a
}

// Analyze runs the full pipeline for one source file. File-access
// precondition failures abort with a typed error; every other sub-step
// failure degrades to empty data in the report. Once the heuristic scan
// has succeeded the call always returns a complete, well-formed report.
func (a *Analyzer) Analyze(ctx context.Context, path string, opts Options) (*types.AnalysisReport, error) {
	start := time.Now()
	if opts.KnowledgeLimit <= 0 {
		opts.KnowledgeLimit = 10
	}

	source, info, err := utils.ReadSourceFile(path, a.cfg.MaxFileSize)
	if err != nil {
		return nil, err
	}

	log.Printf("🔍 Analyzing %s (%d bytes)", info.Name, info.Size)
	contract := a.scanner.Analyze(source, info)
	log.Printf("  📄 Static analysis found %d indicator(s) across %d function(s)",
		len(contract.Indicators), contract.Functions.Total)

	// Knowledge aggregation, similarity matching and external tools all
	// depend only on the scan output, so they run concurrently.
	var (
		wg          sync.WaitGroup
		aggregated  *types.AggregatedKnowledge
		similar     []types.SimilarExploit
		toolResults []types.ToolResult
	)

	if opts.IncludeKnowledgeBase && a.aggregator != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			aggOpts := knowledge.AggregateOptions{
				LimitPerCollection: opts.KnowledgeLimit,
				SecondaryQueries:   1,
			}
			if opts.ComprehensiveMode {
				aggOpts.SecondaryQueries = 3
			}
			aggregated = a.aggregator.Aggregate(ctx, contract, aggOpts)
		}()
	}

	if opts.IncludeSimilarExploits && a.matcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			similar = a.matcher.FindSimilar(ctx, contract, source, 5)
		}()
	}

	if opts.UseExternalTools && a.runner != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			toolResults = a.runner.RunAll(ctx, path)
		}()
	}

	wg.Wait()

	// Scoring and recommendation tolerate empty knowledge and similarity
	// inputs; disabled stages just contribute nothing.
	assessment := risk.Score(contract, aggregated, similar)
	recommendations := risk.Recommend(contract, aggregated, similar)

	report := &types.AnalysisReport{
		RequestID:       uuid.NewString(),
		Contract:        contract,
		Tools:           toolResults,
		SimilarExploits: similar,
		Risk:            assessment,
		Recommendations: recommendations,
		GeneratedAt:     time.Now().UTC(),
	}
	if opts.IncludeKnowledgeBase {
		report.Knowledge = buildKnowledgeReport(aggregated, similar, a.store != nil)
	}
	report.Summary = buildSummary(report)
	report.Duration = time.Since(start)

	log.Printf("✅ Analysis complete: %s (score %d) in %s",
		assessment.Level, assessment.Score, report.Duration.Round(time.Millisecond))

	a.auditStore.RecordAnalysis(report)
	a.collector.ObserveReport(report)
	a.producer.PublishAnalysisCompleted(ctx, report)

	return report, nil
}

// buildKnowledgeReport projects the aggregated matches into their typed
// per-collection shapes and collects exploit source provenance.
func buildKnowledgeReport(aggregated *types.AggregatedKnowledge, similar []types.SimilarExploit, available bool) *types.KnowledgeReport {
	kr := &types.KnowledgeReport{Available: available}
	if aggregated == nil {
		return kr
	}
	kr.Queries = aggregated.Queries
	for _, m := range aggregated.SWC {
		kr.SWC = append(kr.SWC, types.SWCRecordFromMatch(m))
	}
	for _, m := range aggregated.AuditFindings {
		kr.AuditFindings = append(kr.AuditFindings, types.AuditFindingFromMatch(m))
	}
	var sources []string
	for _, m := range aggregated.Exploits {
		if src := m.Meta("source"); src != "" {
			sources = append(sources, src)
		}
	}
	for _, ex := range similar {
		if ex.Source != "" {
			sources = append(sources, ex.Source)
		}
	}
	kr.Sources = utils.UniqueStrings(sources)
	return kr
}

func buildSummary(report *types.AnalysisReport) types.ReportSummary {
	summary := types.ReportSummary{
		TotalIndicators: len(report.Contract.Indicators),
		BySeverity:      report.Contract.SeverityBreakdown,
		SimilarExploits: len(report.SimilarExploits),
		RiskLevel:       report.Risk.Level,
		RiskScore:       report.Risk.Score,
	}
	if report.Knowledge != nil {
		summary.KnowledgeMatches = len(report.Knowledge.SWC) + len(report.Knowledge.AuditFindings)
	}
	for _, tr := range report.Tools {
		summary.ToolsRun++
		summary.ToolFindings += len(tr.Findings)
	}
	return summary
}
