package types

import (
	"fmt"
	"math"
	"time"
)

// ============================================================================
// INDICATORS
// ============================================================================

type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Weight returns the additive risk score contribution of one indicator
// at this severity.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 30
	case SeverityHigh:
		return 20
	case SeverityMedium:
		return 10
	case SeverityLow:
		return 5
	default:
		return 0
	}
}

// Category identifies the vulnerability class an indicator belongs to.
// Attached explicitly at creation so downstream consumers never re-parse
// the description text.
type Category string

const (
	CategoryReentrancy    Category = "reentrancy"
	CategoryAccessControl Category = "access-control"
	CategoryDelegatecall  Category = "delegatecall"
	CategoryOverflow      Category = "overflow"
	CategoryOracle        Category = "oracle"
	CategoryFlashLoan     Category = "flash-loan"
	CategoryRandomness    Category = "randomness"
	CategoryDOS           Category = "dos"
	CategoryValidation    Category = "validation"
	CategoryLogic         Category = "logic"
	CategorySignature     Category = "signature"
	CategoryStorage       Category = "storage"
	CategoryVisibility    Category = "visibility"
	CategorySelfdestruct  Category = "selfdestruct"
)

// Indicator is a single heuristic finding produced by the scanner.
type Indicator struct {
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
}

// String renders the indicator in its canonical "SEVERITY: description" form.
func (i Indicator) String() string {
	return fmt.Sprintf("%s: %s", i.Severity, i.Description)
}

// ============================================================================
// CONTRACT ANALYSIS
// ============================================================================

// FunctionCounts breaks down the functions found in a source file by
// visibility and mutability.
type FunctionCounts struct {
	Total    int `json:"total"`
	External int `json:"external"`
	Public   int `json:"public"`
	Internal int `json:"internal"`
	Private  int `json:"private"`
	Payable  int `json:"payable"`
	View     int `json:"view"`
	Pure     int `json:"pure"`
}

// ContractAnalysis is the structured summary of one Solidity source file.
// It is built once per analysis call and not mutated afterwards.
type ContractAnalysis struct {
	FileName   string    `json:"file_name"`
	FilePath   string    `json:"file_path"`
	FileSize   int64     `json:"file_size"`
	LineCount  int       `json:"line_count"`
	AnalyzedAt time.Time `json:"analyzed_at"`

	Pragmas    []string `json:"pragmas"`
	Imports    []string `json:"imports"`
	Contracts  []string `json:"contracts"`
	Interfaces []string `json:"interfaces"`
	Libraries  []string `json:"libraries"`

	Functions FunctionCounts `json:"functions"`

	Indicators        []Indicator      `json:"indicators"`
	SeverityBreakdown map[Severity]int `json:"severity_breakdown"`

	// Protocols lists detected protocol/standard usage (ERC20, Uniswap, ...).
	Protocols []string `json:"protocols"`

	HasReentrancyGuard bool `json:"has_reentrancy_guard"`
	HasAccessControl   bool `json:"has_access_control"`

	// UnprotectedPrivileged names external/public functions with sensitive
	// verbs (withdraw, mint, setOwner, ...) that carry no access-control
	// signature.
	UnprotectedPrivileged []string `json:"unprotected_privileged"`

	// SensitiveFunctions names all functions matching the sensitive verb
	// list, protected or not. Used to drive knowledge-base queries.
	SensitiveFunctions []string `json:"sensitive_functions"`
}

// IndicatorsBySeverity returns the indicators matching the given severity,
// in scan order.
func (ca *ContractAnalysis) IndicatorsBySeverity(sev Severity) []Indicator {
	var out []Indicator
	for _, ind := range ca.Indicators {
		if ind.Severity == sev {
			out = append(out, ind)
		}
	}
	return out
}

// ============================================================================
// KNOWLEDGE BASE
// ============================================================================

// Collection names the three logical knowledge-base collections.
type Collection string

const (
	CollectionSWC           Collection = "swc"
	CollectionExploits      Collection = "exploits"
	CollectionAuditFindings Collection = "audit_findings"
)

// KnowledgeMatch is one distance-ranked result from a knowledge-base query.
// Distance is semantic distance in [0,1]; lower means more similar.
type KnowledgeMatch struct {
	ID       string            `json:"id"`
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance"`
}

// Similarity converts the match distance to a percentage.
func (m KnowledgeMatch) Similarity() int {
	return int(math.Round((1 - m.Distance) * 100))
}

// Meta returns a metadata value, or empty string when absent.
func (m KnowledgeMatch) Meta(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// SWCRecord is the typed projection of a match from the weakness
// classification collection.
type SWCRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Severity   string `json:"severity"`
	Excerpt    string `json:"excerpt"`
	Similarity int    `json:"similarity"`
}

// SWCRecordFromMatch projects a raw match into its SWC shape.
func SWCRecordFromMatch(m KnowledgeMatch) SWCRecord {
	return SWCRecord{
		ID:         m.ID,
		Title:      m.Meta("title"),
		Severity:   m.Meta("severity"),
		Excerpt:    Truncate(m.Document, 200),
		Similarity: m.Similarity(),
	}
}

// SimilarExploit is the display projection of a match from the exploits
// collection, deduplicated by ID across probe searches.
type SimilarExploit struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Protocol     string `json:"protocol"`
	Category     string `json:"category"`
	Loss         string `json:"loss"`
	Date         string `json:"date"`
	Source       string `json:"source"`
	AttackVector string `json:"attack_vector"`
	Similarity   int    `json:"similarity"`
	Description  string `json:"description"`
}

// SimilarExploitFromMatch projects a raw exploits-collection match into its
// display shape.
func SimilarExploitFromMatch(m KnowledgeMatch) SimilarExploit {
	return SimilarExploit{
		ID:           m.ID,
		Name:         m.Meta("name"),
		Protocol:     m.Meta("protocol"),
		Category:     m.Meta("category"),
		Loss:         m.Meta("loss"),
		Date:         m.Meta("date"),
		Source:       m.Meta("source"),
		AttackVector: m.Meta("attack_vector"),
		Similarity:   m.Similarity(),
		Description:  Truncate(m.Document, 300),
	}
}

// AuditFindingRecord is the typed projection of a match from the audit
// findings collection.
type AuditFindingRecord struct {
	ID         string `json:"id"`
	Protocol   string `json:"protocol"`
	Severity   string `json:"severity"`
	Category   string `json:"category"`
	Auditor    string `json:"auditor"`
	Excerpt    string `json:"excerpt"`
	Similarity int    `json:"similarity"`
}

// AuditFindingFromMatch projects a raw match into its audit-finding shape.
func AuditFindingFromMatch(m KnowledgeMatch) AuditFindingRecord {
	return AuditFindingRecord{
		ID:         m.ID,
		Protocol:   m.Meta("protocol"),
		Severity:   m.Meta("severity"),
		Category:   m.Meta("category"),
		Auditor:    m.Meta("auditor"),
		Excerpt:    Truncate(m.Document, 200),
		Similarity: m.Similarity(),
	}
}

// KnowledgeRecord is one document to insert into a collection.
type KnowledgeRecord struct {
	ID       string            `json:"id"`
	Document string            `json:"document"`
	Metadata map[string]string `json:"metadata"`
}

// AggregatedKnowledge holds the per-collection deduplicated query results
// for one analysis.
type AggregatedKnowledge struct {
	SWC           []KnowledgeMatch `json:"swc"`
	Exploits      []KnowledgeMatch `json:"exploits"`
	AuditFindings []KnowledgeMatch `json:"audit_findings"`

	// Queries records the query strings issued, in submission order.
	Queries []string `json:"queries"`
}

// CriticalSWCCount counts weakness-classification matches whose recorded
// severity is critical.
func (ak *AggregatedKnowledge) CriticalSWCCount() int {
	n := 0
	for _, m := range ak.SWC {
		sev := m.Meta("severity")
		if sev == "critical" || sev == "Critical" {
			n++
		}
	}
	return n
}

// ============================================================================
// RISK ASSESSMENT
// ============================================================================

type RiskLevel string

const (
	RiskInfo     RiskLevel = "INFO"
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevelForScore buckets an additive score into its risk level.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score >= 70:
		return RiskCritical
	case score >= 50:
		return RiskHigh
	case score >= 30:
		return RiskMedium
	case score >= 10:
		return RiskLow
	default:
		return RiskInfo
	}
}

// RiskAssessment is the scored outcome of one analysis. Recomputed fresh on
// every call; never persisted as authoritative state.
type RiskAssessment struct {
	Level   RiskLevel `json:"level"`
	Score   int       `json:"score"`
	Factors []string  `json:"factors"`
}

// ============================================================================
// EXTERNAL TOOLS
// ============================================================================

type ToolStatus string

const (
	ToolStatusPassed    ToolStatus = "passed"
	ToolStatusWarnings  ToolStatus = "warnings"
	ToolStatusCompleted ToolStatus = "completed"
	ToolStatusFailed    ToolStatus = "failed"
)

// ToolFinding is one normalized finding parsed from an external tool's
// output.
type ToolFinding struct {
	Check       string `json:"check"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
}

// ToolResult is the per-tool outcome of an external tool invocation. A
// failed tool never aborts the rest of the analysis.
type ToolResult struct {
	Tool      string        `json:"tool"`
	Available bool          `json:"available"`
	Status    ToolStatus    `json:"status"`
	Findings  []ToolFinding `json:"findings,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration_ms"`
}

// ============================================================================
// ANALYSIS REPORT
// ============================================================================

// KnowledgeReport is the knowledge-base section of the final report.
type KnowledgeReport struct {
	SWC           []SWCRecord          `json:"swc_matches"`
	AuditFindings []AuditFindingRecord `json:"audit_findings"`
	Queries       []string             `json:"queries"`
	Sources       []string             `json:"sources"`
	Available     bool                 `json:"available"`
}

// ReportSummary is the rollup block of the final report.
type ReportSummary struct {
	TotalIndicators  int              `json:"total_indicators"`
	BySeverity       map[Severity]int `json:"by_severity"`
	KnowledgeMatches int              `json:"knowledge_matches"`
	SimilarExploits  int              `json:"similar_exploits"`
	ToolsRun         int              `json:"tools_run"`
	ToolFindings     int              `json:"tool_findings"`
	RiskLevel        RiskLevel        `json:"risk_level"`
	RiskScore        int              `json:"risk_score"`
}

// AnalysisReport is the single JSON-serializable response of one analyze
// call.
type AnalysisReport struct {
	RequestID       string            `json:"request_id"`
	Contract        *ContractAnalysis `json:"contract"`
	Tools           []ToolResult      `json:"tools,omitempty"`
	Knowledge       *KnowledgeReport  `json:"knowledge,omitempty"`
	SimilarExploits []SimilarExploit  `json:"similar_exploits,omitempty"`
	Risk            RiskAssessment    `json:"risk_assessment"`
	Recommendations []string          `json:"recommendations"`
	Summary         ReportSummary     `json:"summary"`
	Duration        time.Duration     `json:"duration_ms"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

// Truncate shortens s to at most max bytes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
