package risk

import (
	"fmt"
	"strings"

	"solguardian/types"
)

// fallbackRecommendation is returned when no condition triggers; the list
// is never empty.
const fallbackRecommendation = "No immediate issues detected. Still recommend a professional audit before mainnet deployment."

// exploitCategoryAdvice maps similar-exploit categories to remediation
// strings.
var exploitCategoryAdvice = map[string]string{
	"reentrancy":          "Historical reentrancy exploits match this contract. Apply the checks-effects-interactions pattern and OpenZeppelin's ReentrancyGuard.",
	"flash-loan":          "Similar flash loan attacks found. Validate spot prices against time-weighted averages and add same-block interaction guards.",
	"oracle-manipulation": "Similar oracle manipulation attacks found. Use a decentralized oracle (e.g. Chainlink) instead of on-chain spot prices.",
	"access-control":      "Similar access control exploits found. Audit every privileged function and adopt role-based access control.",
	"logic-error":         "Similar business logic exploits found. Add invariant tests covering the core accounting paths.",
	"integer-overflow":    "Similar integer overflow exploits found. Upgrade to Solidity 0.8+ or guard arithmetic with SafeMath.",
}

// indicatorCategoryAdvice maps indicator categories to remediation strings.
var indicatorCategoryAdvice = map[types.Category]string{
	types.CategoryReentrancy:   "Apply the checks-effects-interactions pattern: update state before any external call.",
	types.CategoryDelegatecall: "Restrict delegatecall targets to a whitelist of audited implementations.",
}

// Recommend maps detected conditions to fixed remediation strings,
// deduplicated with set semantics. Pure function; never returns an empty
// list.
func Recommend(ca *types.ContractAnalysis, knowledge *types.AggregatedKnowledge, exploits []types.SimilarExploit) []string {
	var recs []string
	add := func(r string) { recs = append(recs, r) }

	if !ca.HasReentrancyGuard {
		add("Add OpenZeppelin's ReentrancyGuard and mark state-changing external functions nonReentrant.")
	}
	if !ca.HasAccessControl {
		add("Add access control (Ownable or AccessControl) to privileged functions.")
	}

	seenCat := make(map[types.Category]bool)
	for _, ind := range ca.Indicators {
		if seenCat[ind.Category] {
			continue
		}
		seenCat[ind.Category] = true
		if advice, ok := indicatorCategoryAdvice[ind.Category]; ok {
			add(advice)
		}
		if ind.Category == types.CategoryAccessControl && strings.Contains(ind.Description, "tx.origin") {
			add("Replace tx.origin with msg.sender for authorization checks.")
		}
	}

	seenExploitCat := make(map[string]bool)
	seenSource := make(map[string]bool)
	for _, ex := range exploits {
		cat := strings.ToLower(ex.Category)
		if advice, ok := exploitCategoryAdvice[cat]; ok && !seenExploitCat[cat] {
			seenExploitCat[cat] = true
			add(advice)
		}
		if ex.Source != "" && !seenSource[ex.Source] {
			seenSource[ex.Source] = true
			add(fmt.Sprintf("Review the %s incident write-ups matched against this contract (source: %s).", ex.Source, ex.Source))
		}
	}

	if knowledge != nil {
		for _, m := range knowledge.SWC {
			if strings.Contains(m.ID, "107") {
				add("SWC-107 (reentrancy) matched: audit every external call site for reentrancy before deployment.")
				break
			}
		}
	}

	deduped := dedupe(recs)
	if len(deduped) == 0 {
		return []string{fallbackRecommendation}
	}
	return deduped
}

// dedupe removes duplicates preserving first-occurrence order.
func dedupe(recs []string) []string {
	seen := make(map[string]bool, len(recs))
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
