package scanner

import (
	"regexp"
	"strconv"
	"strings"
)

// Function is one function declaration extracted from raw source text.
// Extraction is regex plus brace matching over the raw text, not an AST;
// it tolerates arbitrary malformed input by simply extracting nothing.
type Function struct {
	Name       string
	Header     string // declaration between "function" and the body/semicolon
	Body       string
	Visibility string // external, public, internal, private (default public)
	Payable    bool
	View       bool
	Pure       bool
	// Modifiers are the non-keyword tokens in the header, e.g. onlyOwner.
	Modifiers []string
}

// Source is the pre-parsed view of one contract file that rules operate on.
type Source struct {
	Raw       string
	Lines     []string
	Pragmas   []string
	Functions []Function
	StateVars []string

	HasReentrancyGuard bool
	HasAccessControl   bool
}

var (
	pragmaRe    = regexp.MustCompile(`pragma\s+solidity\s+([^;]+);`)
	importRe    = regexp.MustCompile(`import\s+([^;]+);`)
	contractRe  = regexp.MustCompile(`(?m)^\s*(?:abstract\s+)?contract\s+(\w+)`)
	interfaceRe = regexp.MustCompile(`(?m)^\s*interface\s+(\w+)`)
	libraryRe   = regexp.MustCompile(`(?m)^\s*library\s+(\w+)`)
	functionRe  = regexp.MustCompile(`function\s+(\w+)\s*\(`)
	stateVarRe  = regexp.MustCompile(`(?m)^\s{0,8}(address|uint\d*|int\d*|bool|bytes\d*|string|mapping\s*\([^)]*\))\s+(?:public\s+|private\s+|internal\s+|constant\s+|immutable\s+)*(\w+)\s*(?:=[^;]*)?;`)
)

// Solidity function header keywords that are not user-defined modifiers.
var headerKeywords = map[string]bool{
	"external": true, "public": true, "internal": true, "private": true,
	"payable": true, "view": true, "pure": true, "virtual": true,
	"override": true, "returns": true, "memory": true, "storage": true,
	"calldata": true, "constant": true,
}

// parseSource builds the rule input from raw text. Never fails: malformed
// source just yields fewer parsed elements.
func parseSource(raw string) *Source {
	src := &Source{
		Raw:   raw,
		Lines: strings.Split(raw, "\n"),
	}

	for _, m := range pragmaRe.FindAllStringSubmatch(raw, -1) {
		src.Pragmas = append(src.Pragmas, strings.TrimSpace(m[1]))
	}
	for _, m := range stateVarRe.FindAllStringSubmatch(raw, -1) {
		src.StateVars = append(src.StateVars, m[2])
	}

	src.Functions = extractFunctions(raw)
	src.HasReentrancyGuard = strings.Contains(raw, "nonReentrant") ||
		strings.Contains(raw, "ReentrancyGuard")
	src.HasAccessControl = strings.Contains(raw, "onlyOwner") ||
		strings.Contains(raw, "onlyRole") ||
		strings.Contains(raw, "AccessControl") ||
		strings.Contains(raw, "Ownable") ||
		strings.Contains(raw, "require(msg.sender ==") ||
		strings.Contains(raw, "require(msg.sender==")

	return src
}

// extractFunctions locates every "function name(" occurrence and recovers
// the header and brace-matched body for each, in source order.
func extractFunctions(raw string) []Function {
	var fns []Function
	for _, loc := range functionRe.FindAllStringSubmatchIndex(raw, -1) {
		name := raw[loc[2]:loc[3]]
		// Header runs from the opening paren to the body brace or the
		// terminating semicolon (interface declarations have no body).
		rest := raw[loc[1]:]
		end := strings.IndexAny(rest, "{;")
		if end < 0 {
			continue
		}
		header := rest[:end]

		fn := Function{
			Name:       name,
			Header:     header,
			Visibility: "public",
		}
		if rest[end] == '{' {
			fn.Body = matchBraces(rest[end:])
		}

		// Visibility, mutability and user modifiers live in the header
		// after the parameter list.
		afterParams := header
		if close := strings.Index(header, ")"); close >= 0 {
			afterParams = header[close+1:]
		}
		for _, tok := range strings.Fields(strings.NewReplacer("(", " ", ")", " ", ",", " ").Replace(afterParams)) {
			switch tok {
			case "external", "public", "internal", "private":
				fn.Visibility = tok
			case "payable":
				fn.Payable = true
			case "view":
				fn.View = true
			case "pure":
				fn.Pure = true
			default:
				if !headerKeywords[tok] && identRe.MatchString(tok) {
					fn.Modifiers = append(fn.Modifiers, tok)
				}
			}
		}
		fns = append(fns, fn)
	}
	return fns
}

var identRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// matchBraces returns the balanced block starting at the opening brace at
// s[0]. Unbalanced input returns everything to the end of the text.
func matchBraces(s string) string {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return s
}

// IsExternalOrPublic reports whether the function is callable from outside
// the contract.
func (f *Function) IsExternalOrPublic() bool {
	return f.Visibility == "external" || f.Visibility == "public"
}

// HasAccessModifier reports whether the function declaration carries a
// recognizable access-control modifier or the body gates on msg.sender.
func (f *Function) HasAccessModifier() bool {
	for _, m := range f.Modifiers {
		lower := strings.ToLower(m)
		if strings.HasPrefix(lower, "only") || strings.Contains(lower, "auth") ||
			strings.Contains(lower, "admin") || strings.Contains(lower, "owner") {
			return true
		}
	}
	return strings.Contains(f.Body, "require(msg.sender ==") ||
		strings.Contains(f.Body, "require(msg.sender==")
}

// HasModifier reports whether the function carries the named modifier.
func (f *Function) HasModifier(name string) bool {
	for _, m := range f.Modifiers {
		if m == name {
			return true
		}
	}
	return false
}

// pragmaMajorBelow8 reports whether any pragma resolves to a Solidity
// version below 0.8.
func pragmaMajorBelow8(pragmas []string) bool {
	for _, p := range pragmas {
		if m := versionRe.FindStringSubmatch(p); m != nil {
			if minor, err := strconv.Atoi(m[1]); err == nil && minor < 8 {
				return true
			}
		}
	}
	return false
}

var versionRe = regexp.MustCompile(`0\.(\d+)`)

// isFloatingPragma reports whether the pragma version is unpinned.
func isFloatingPragma(pragma string) bool {
	return strings.ContainsAny(pragma, "^~") || strings.Contains(pragma, ">=")
}
