package risk

import (
	"fmt"
	"strings"

	"solguardian/types"
)

// Point weights of the additive scoring model. The model is deliberately
// additive with fixed weights so a score can be audited factor by factor.
const (
	pointsNoReentrancyGuard   = 30
	pointsNoAccessControl     = 20
	pointsOutdatedCompiler    = 25
	pointsFloatingPragma      = 15
	pointsPerUnprotectedPriv  = 15
	pointsPerSimilarExploit   = 5
	pointsPerCriticalSWCMatch = 15
)

// Score computes the risk assessment for one analysis. Pure function: the
// same inputs always produce the same assessment, and nothing is mutated.
//
// The per-indicator severity sum is reflected in the summary severity
// breakdown rather than repeated in the factor list.
func Score(ca *types.ContractAnalysis, knowledge *types.AggregatedKnowledge, exploits []types.SimilarExploit) types.RiskAssessment {
	score := 0
	var factors []string

	for _, ind := range ca.Indicators {
		score += ind.Severity.Weight()
	}

	if !ca.HasReentrancyGuard {
		score += pointsNoReentrancyGuard
		factors = append(factors, "No reentrancy guard detected")
	}
	if !ca.HasAccessControl {
		score += pointsNoAccessControl
		factors = append(factors, "No access control mechanism detected")
	}
	if hasOutdatedPragma(ca.Pragmas) {
		score += pointsOutdatedCompiler
		factors = append(factors, "Compiler version below 0.8 lacks overflow protection")
	}
	if hasFloatingPragma(ca.Pragmas) {
		score += pointsFloatingPragma
		factors = append(factors, "Floating pragma allows compilation with untested compiler versions")
	}
	if n := len(ca.UnprotectedPrivileged); n > 0 {
		score += pointsPerUnprotectedPriv * n
		factors = append(factors, fmt.Sprintf("%d privileged function(s) without access control: %v", n, ca.UnprotectedPrivileged))
	}
	if n := len(exploits); n > 0 {
		score += pointsPerSimilarExploit * n
		factors = append(factors, fmt.Sprintf("%d similar historical exploit(s) found", n))
	}
	if knowledge != nil {
		if n := knowledge.CriticalSWCCount(); n > 0 {
			score += pointsPerCriticalSWCMatch * n
			factors = append(factors, fmt.Sprintf("%d critical weakness classification match(es)", n))
		}
	}

	return types.RiskAssessment{
		Level:   types.RiskLevelForScore(score),
		Score:   score,
		Factors: factors,
	}
}

// hasOutdatedPragma reports whether any pragma resolves to a major version
// below 0.8.
func hasOutdatedPragma(pragmas []string) bool {
	for _, p := range pragmas {
		if minor, ok := pragmaMinor(p); ok && minor < 8 {
			return true
		}
	}
	return false
}

// hasFloatingPragma reports whether any pragma is unpinned.
func hasFloatingPragma(pragmas []string) bool {
	for _, p := range pragmas {
		if strings.ContainsAny(p, "^~") || strings.Contains(p, ">=") {
			return true
		}
	}
	return false
}

func pragmaMinor(pragma string) (int, bool) {
	idx := strings.Index(pragma, "0.")
	if idx < 0 {
		return 0, false
	}
	rest := pragma[idx+2:]
	n := 0
	digits := 0
	for _, r := range rest {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		digits++
	}
	return n, digits > 0
}
