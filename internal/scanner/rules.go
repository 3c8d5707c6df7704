package scanner

import (
	"fmt"
	"strings"

	"solguardian/types"
)

// Rule is one independent pattern check. Rules never suppress each other
// and may emit zero or more indicators; the registry order is fixed so a
// given source text always yields the same indicator list.
type Rule struct {
	Name     string
	Category types.Category
	Check    func(src *Source) []types.Indicator
}

// defaultRules returns the rule battery in its documented execution order.
func defaultRules() []Rule {
	return []Rule{
		{Name: "reentrancy", Category: types.CategoryReentrancy, Check: checkReentrancy},
		{Name: "tx-origin", Category: types.CategoryAccessControl, Check: checkTxOrigin},
		{Name: "unprotected-selfdestruct", Category: types.CategorySelfdestruct, Check: checkSelfdestruct},
		{Name: "delegatecall", Category: types.CategoryDelegatecall, Check: checkDelegatecall},
		{Name: "unchecked-arithmetic", Category: types.CategoryOverflow, Check: checkUncheckedArithmetic},
		{Name: "unchecked-call-return", Category: types.CategoryValidation, Check: checkUncheckedCallReturn},
		{Name: "timestamp-dependence", Category: types.CategoryLogic, Check: checkTimestampDependence},
		{Name: "gas-griefing-loop", Category: types.CategoryDOS, Check: checkGasGriefingLoop},
		{Name: "missing-events", Category: types.CategoryLogic, Check: checkMissingEvents},
		{Name: "inline-assembly", Category: types.CategoryLogic, Check: checkInlineAssembly},
		{Name: "uninitialized-storage", Category: types.CategoryStorage, Check: checkUninitializedStorage},
		{Name: "pragma", Category: types.CategoryValidation, Check: checkPragma},
		{Name: "zero-address", Category: types.CategoryValidation, Check: checkZeroAddress},
		{Name: "unprotected-payable", Category: types.CategoryAccessControl, Check: checkUnprotectedPayable},
		{Name: "weak-randomness", Category: types.CategoryRandomness, Check: checkWeakRandomness},
		{Name: "shadowing", Category: types.CategoryVisibility, Check: checkShadowing},
	}
}

func indicator(sev types.Severity, cat types.Category, format string, args ...interface{}) types.Indicator {
	return types.Indicator{
		Severity:    sev,
		Category:    cat,
		Description: fmt.Sprintf(format, args...),
	}
}

// hasValueCall reports an external call that forwards ether.
func hasValueCall(body string) bool {
	return strings.Contains(body, ".call{value:") ||
		strings.Contains(body, ".call{ value:") ||
		strings.Contains(body, ".call.value(")
}

func checkReentrancy(src *Source) []types.Indicator {
	var out []types.Indicator
	for i := range src.Functions {
		fn := &src.Functions[i]
		if fn.Body == "" || !hasValueCall(fn.Body) {
			continue
		}
		if fn.HasModifier("nonReentrant") {
			continue
		}
		callIdx := strings.Index(fn.Body, ".call")
		writeAfter := strings.Contains(fn.Body[callIdx:], "-=") ||
			strings.Contains(fn.Body[callIdx:], "+=") ||
			strings.Contains(fn.Body[callIdx:], "] =")
		if writeAfter {
			out = append(out, indicator(types.SeverityCritical, types.CategoryReentrancy,
				"Reentrancy: external call before state update in function %s", fn.Name))
		} else {
			out = append(out, indicator(types.SeverityCritical, types.CategoryReentrancy,
				"Reentrancy: external value call without reentrancy guard in function %s", fn.Name))
		}
	}
	return out
}

func checkTxOrigin(src *Source) []types.Indicator {
	var out []types.Indicator
	for i := range src.Functions {
		fn := &src.Functions[i]
		if strings.Contains(fn.Body, "tx.origin") {
			out = append(out, indicator(types.SeverityHigh, types.CategoryAccessControl,
				"tx.origin used for authorization in function %s, vulnerable to phishing", fn.Name))
		}
	}
	if out == nil && strings.Contains(src.Raw, "tx.origin") {
		out = append(out, indicator(types.SeverityHigh, types.CategoryAccessControl,
			"tx.origin used for authorization, vulnerable to phishing"))
	}
	return out
}

func checkSelfdestruct(src *Source) []types.Indicator {
	var out []types.Indicator
	for i := range src.Functions {
		fn := &src.Functions[i]
		if !strings.Contains(fn.Body, "selfdestruct(") && !strings.Contains(fn.Body, "suicide(") {
			continue
		}
		if !fn.HasAccessModifier() {
			out = append(out, indicator(types.SeverityCritical, types.CategorySelfdestruct,
				"Unprotected selfdestruct in function %s", fn.Name))
		}
	}
	return out
}

func checkDelegatecall(src *Source) []types.Indicator {
	var out []types.Indicator
	for i := range src.Functions {
		fn := &src.Functions[i]
		if strings.Contains(fn.Body, ".delegatecall(") {
			out = append(out, indicator(types.SeverityHigh, types.CategoryDelegatecall,
				"Delegatecall with potentially unvalidated target in function %s", fn.Name))
		}
	}
	return out
}

func checkUncheckedArithmetic(src *Source) []types.Indicator {
	if !pragmaMajorBelow8(src.Pragmas) {
		return nil
	}
	if strings.Contains(src.Raw, "SafeMath") {
		return nil
	}
	return []types.Indicator{indicator(types.SeverityHigh, types.CategoryOverflow,
		"Solidity version below 0.8 without SafeMath, arithmetic can overflow silently")}
}

func checkUncheckedCallReturn(src *Source) []types.Indicator {
	var out []types.Indicator
	for _, line := range src.Lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "*") {
			continue
		}
		lowLevel := strings.Contains(trimmed, ".send(") ||
			(strings.Contains(trimmed, ".call") && !strings.Contains(trimmed, ".callcode"))
		if !lowLevel {
			continue
		}
		checked := strings.Contains(trimmed, "require(") ||
			strings.Contains(trimmed, "=") ||
			strings.HasPrefix(trimmed, "if")
		if !checked {
			out = append(out, indicator(types.SeverityMedium, types.CategoryValidation,
				"Unchecked return value of low-level call: %s", types.Truncate(trimmed, 80)))
		}
	}
	return out
}

func checkTimestampDependence(src *Source) []types.Indicator {
	var out []types.Indicator
	for _, line := range src.Lines {
		trimmed := strings.TrimSpace(line)
		usesTime := strings.Contains(trimmed, "block.timestamp") || strings.Contains(trimmed, "now ")
		guarded := strings.Contains(trimmed, "require(") || strings.Contains(trimmed, "if ") ||
			strings.Contains(trimmed, "if(")
		if usesTime && guarded {
			out = append(out, indicator(types.SeverityMedium, types.CategoryLogic,
				"Timestamp-dependent logic, miners can influence block.timestamp: %s", types.Truncate(trimmed, 80)))
		}
	}
	return out
}

func checkGasGriefingLoop(src *Source) []types.Indicator {
	var out []types.Indicator
	for i := range src.Functions {
		fn := &src.Functions[i]
		for _, kw := range []string{"for ", "for(", "while ", "while("} {
			idx := strings.Index(fn.Body, kw)
			if idx < 0 {
				continue
			}
			loop := fn.Body[idx:]
			if brace := strings.Index(loop, "{"); brace >= 0 {
				loop = matchBraces(loop[brace:])
			}
			if strings.Contains(loop, ".call") || strings.Contains(loop, ".transfer(") ||
				strings.Contains(loop, ".send(") {
				out = append(out, indicator(types.SeverityMedium, types.CategoryDOS,
					"External call inside loop in function %s can grief gas or lock funds", fn.Name))
				break
			}
		}
	}
	return out
}

func checkMissingEvents(src *Source) []types.Indicator {
	var out []types.Indicator
	for i := range src.Functions {
		fn := &src.Functions[i]
		name := strings.ToLower(fn.Name)
		stateChanging := strings.HasPrefix(name, "set") || strings.HasPrefix(name, "change") ||
			strings.HasPrefix(name, "update")
		if stateChanging && fn.Body != "" && !strings.Contains(fn.Body, "emit ") {
			out = append(out, indicator(types.SeverityLow, types.CategoryLogic,
				"State-changing function %s emits no event", fn.Name))
		}
	}
	return out
}

func checkInlineAssembly(src *Source) []types.Indicator {
	if strings.Contains(src.Raw, "assembly {") || strings.Contains(src.Raw, "assembly{") {
		return []types.Indicator{indicator(types.SeverityLow, types.CategoryLogic,
			"Inline assembly bypasses Solidity safety checks")}
	}
	return nil
}

var storagePointerMarker = " storage "

func checkUninitializedStorage(src *Source) []types.Indicator {
	var out []types.Indicator
	for _, line := range src.Lines {
		trimmed := strings.TrimSpace(line)
		if !strings.Contains(trimmed, storagePointerMarker) || strings.Contains(trimmed, "=") {
			continue
		}
		// A bare `<Type> storage <name>;` local declaration points at slot 0.
		if strings.HasSuffix(trimmed, ";") && !strings.Contains(trimmed, "(") &&
			!strings.HasPrefix(trimmed, "function") {
			out = append(out, indicator(types.SeverityHigh, types.CategoryStorage,
				"Uninitialized storage pointer: %s", types.Truncate(trimmed, 80)))
		}
	}
	return out
}

func checkPragma(src *Source) []types.Indicator {
	var out []types.Indicator
	for _, p := range src.Pragmas {
		if isFloatingPragma(p) {
			out = append(out, indicator(types.SeverityLow, types.CategoryValidation,
				"Floating pragma %q, pin the compiler version", p))
		}
	}
	if pragmaMajorBelow8(src.Pragmas) {
		out = append(out, indicator(types.SeverityLow, types.CategoryValidation,
			"Outdated Solidity version, 0.8+ has built-in overflow checks"))
	}
	return out
}

func checkZeroAddress(src *Source) []types.Indicator {
	var out []types.Indicator
	for i := range src.Functions {
		fn := &src.Functions[i]
		if !fn.IsExternalOrPublic() || fn.Body == "" {
			continue
		}
		params := fn.Header
		if close := strings.Index(params, ")"); close >= 0 {
			params = params[:close]
		}
		if strings.Contains(params, "address ") && !strings.Contains(fn.Body, "address(0)") {
			out = append(out, indicator(types.SeverityLow, types.CategoryValidation,
				"Function %s takes an address parameter without a zero-address check", fn.Name))
		}
	}
	return out
}

func checkUnprotectedPayable(src *Source) []types.Indicator {
	var out []types.Indicator
	for i := range src.Functions {
		fn := &src.Functions[i]
		if !fn.Payable || !fn.IsExternalOrPublic() {
			continue
		}
		// Plain deposit/receive entry points are expected to be open.
		lower := strings.ToLower(fn.Name)
		if lower == "deposit" || lower == "receive" || lower == "fallback" {
			continue
		}
		if !fn.HasAccessModifier() {
			out = append(out, indicator(types.SeverityMedium, types.CategoryAccessControl,
				"Payable function %s is callable by anyone", fn.Name))
		}
	}
	return out
}

var randomnessSources = []string{"block.timestamp", "blockhash(", "block.difficulty", "block.prevrandao"}

func checkWeakRandomness(src *Source) []types.Indicator {
	var out []types.Indicator
	for _, line := range src.Lines {
		if !strings.Contains(line, "keccak256") && !strings.Contains(line, "%") {
			continue
		}
		for _, s := range randomnessSources {
			if strings.Contains(line, s) {
				out = append(out, indicator(types.SeverityMedium, types.CategoryRandomness,
					"Weak randomness from %s: %s", strings.TrimSuffix(s, "("), types.Truncate(strings.TrimSpace(line), 80)))
				break
			}
		}
	}
	return out
}

func checkShadowing(src *Source) []types.Indicator {
	if len(src.StateVars) == 0 {
		return nil
	}
	stateSet := make(map[string]bool, len(src.StateVars))
	for _, v := range src.StateVars {
		stateSet[v] = true
	}
	var out []types.Indicator
	for i := range src.Functions {
		fn := &src.Functions[i]
		params := fn.Header
		if close := strings.Index(params, ")"); close >= 0 {
			params = params[:close]
		}
		for _, part := range strings.Split(params, ",") {
			fields := strings.Fields(strings.TrimSpace(part))
			if len(fields) == 0 {
				continue
			}
			name := fields[len(fields)-1]
			if stateSet[name] {
				out = append(out, indicator(types.SeverityLow, types.CategoryVisibility,
					"Parameter %s of function %s shadows a state variable", name, fn.Name))
			}
		}
	}
	return out
}
