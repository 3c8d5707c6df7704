package scanner

import (
	"strings"
	"time"

	"solguardian/internal/utils"
	"solguardian/types"
)

// SensitiveVerbs are function-name fragments that mark a function as
// privileged for scoring and query generation.
var SensitiveVerbs = []string{
	"withdraw", "transfer", "burn", "mint", "approve",
	"setowner", "destroy", "kill", "upgrade",
}

// protocolSignatures maps a protocol hint to the substrings that betray its
// usage in raw source text.
var protocolSignatures = []struct {
	Name       string
	Signatures []string
}{
	{"ERC20", []string{"ERC20", "IERC20"}},
	{"ERC721", []string{"ERC721", "IERC721"}},
	{"ERC1155", []string{"ERC1155"}},
	{"Uniswap", []string{"Uniswap", "IUniswapV2", "IUniswapV3", "swapExactTokens"}},
	{"Balancer", []string{"Balancer", "IVault", "flashLoan"}},
	{"Chainlink", []string{"Chainlink", "AggregatorV3", "latestRoundData"}},
	{"Compound", []string{"Comptroller", "CToken", "cToken"}},
	{"Aave", []string{"Aave", "ILendingPool", "IPool"}},
	{"OpenZeppelin", []string{"openzeppelin", "OpenZeppelin"}},
}

// Scanner applies the heuristic rule battery to Solidity source text.
// Stateless; a single instance is safe for concurrent use.
type Scanner struct {
	rules []Rule
}

// New creates a scanner with the default rule registry.
func New() *Scanner {
	return &Scanner{rules: defaultRules()}
}

// NewWithRules creates a scanner with a custom rule registry. Rules run in
// slice order.
func NewWithRules(rules []Rule) *Scanner {
	return &Scanner{rules: rules}
}

// Scan runs every rule against the source text in registry order and
// returns all indicators. Pure and deterministic: identical text always
// yields an identical list. Malformed input yields an empty list, never an
// error.
func (s *Scanner) Scan(source string) []types.Indicator {
	src := parseSource(source)
	var indicators []types.Indicator
	for _, rule := range s.rules {
		indicators = append(indicators, rule.Check(src)...)
	}
	return indicators
}

// Analyze builds the full structured summary for one source file: parsed
// declarations, function counts, protocol hints, the indicator list and its
// severity breakdown.
func (s *Scanner) Analyze(source string, info *utils.FileInfo) *types.ContractAnalysis {
	src := parseSource(source)

	ca := &types.ContractAnalysis{
		AnalyzedAt:         time.Now(),
		LineCount:          len(src.Lines),
		Pragmas:            src.Pragmas,
		HasReentrancyGuard: src.HasReentrancyGuard,
		HasAccessControl:   src.HasAccessControl,
		SeverityBreakdown:  make(map[types.Severity]int),
	}
	if info != nil {
		ca.FileName = info.Name
		ca.FilePath = info.Path
		ca.FileSize = info.Size
	}

	for _, m := range importRe.FindAllStringSubmatch(source, -1) {
		ca.Imports = append(ca.Imports, strings.Trim(strings.TrimSpace(m[1]), `"'`))
	}
	for _, m := range contractRe.FindAllStringSubmatch(source, -1) {
		ca.Contracts = append(ca.Contracts, m[1])
	}
	for _, m := range interfaceRe.FindAllStringSubmatch(source, -1) {
		ca.Interfaces = append(ca.Interfaces, m[1])
	}
	for _, m := range libraryRe.FindAllStringSubmatch(source, -1) {
		ca.Libraries = append(ca.Libraries, m[1])
	}

	for i := range src.Functions {
		fn := &src.Functions[i]
		ca.Functions.Total++
		switch fn.Visibility {
		case "external":
			ca.Functions.External++
		case "public":
			ca.Functions.Public++
		case "internal":
			ca.Functions.Internal++
		case "private":
			ca.Functions.Private++
		}
		if fn.Payable {
			ca.Functions.Payable++
		}
		if fn.View {
			ca.Functions.View++
		}
		if fn.Pure {
			ca.Functions.Pure++
		}

		if isSensitiveName(fn.Name) {
			ca.SensitiveFunctions = append(ca.SensitiveFunctions, fn.Name)
			if fn.IsExternalOrPublic() && !fn.HasAccessModifier() {
				ca.UnprotectedPrivileged = append(ca.UnprotectedPrivileged, fn.Name)
			}
		}
	}

	for _, proto := range protocolSignatures {
		for _, sig := range proto.Signatures {
			if strings.Contains(source, sig) {
				ca.Protocols = append(ca.Protocols, proto.Name)
				break
			}
		}
	}

	for _, rule := range s.rules {
		for _, ind := range rule.Check(src) {
			ca.Indicators = append(ca.Indicators, ind)
			ca.SeverityBreakdown[ind.Severity]++
		}
	}

	return ca
}

// isSensitiveName reports whether the function name contains a sensitive
// verb.
func isSensitiveName(name string) bool {
	lower := strings.ToLower(name)
	for _, verb := range SensitiveVerbs {
		if strings.Contains(lower, verb) {
			return true
		}
	}
	return false
}
