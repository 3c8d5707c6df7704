package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractFunctions(t *testing.T) {
	src := `
contract C {
    function transfer(address to, uint256 amount) external payable onlyOwner returns (bool) {
        if (amount > 0) { balances[to] += amount; }
        return true;
    }

    function peek() internal view returns (uint256) { return 1; }

    function declared(uint256 x) external returns (bool);
}
`
	fns := extractFunctions(src)
	require.Len(t, fns, 3)

	transfer := fns[0]
	assert.Equal(t, "transfer", transfer.Name)
	assert.Equal(t, "external", transfer.Visibility)
	assert.True(t, transfer.Payable)
	assert.True(t, transfer.HasModifier("onlyOwner"))
	assert.Contains(t, transfer.Body, "balances[to] += amount")
	assert.Contains(t, transfer.Body, "return true")

	peek := fns[1]
	assert.Equal(t, "internal", peek.Visibility)
	assert.True(t, peek.View)
	assert.False(t, peek.IsExternalOrPublic())

	declared := fns[2]
	assert.Equal(t, "declared", declared.Name)
	assert.Empty(t, declared.Body, "interface-style declarations have no body")
}

func TestExtractFunctionsDefaultVisibility(t *testing.T) {
	fns := extractFunctions(`function legacy() { x = 1; }`)
	require.Len(t, fns, 1)
	assert.Equal(t, "public", fns[0].Visibility)
}

func TestMatchBracesNested(t *testing.T) {
	assert.Equal(t, "{ a { b } c }", matchBraces("{ a { b } c } trailing"))
	assert.Equal(t, "{ unbalanced", matchBraces("{ unbalanced"))
}

func TestHasAccessModifier(t *testing.T) {
	assert.True(t, (&Function{Modifiers: []string{"onlyOwner"}}).HasAccessModifier())
	assert.True(t, (&Function{Modifiers: []string{"onlyRole"}}).HasAccessModifier())
	assert.True(t, (&Function{Modifiers: []string{"requiresAuth"}}).HasAccessModifier())
	assert.True(t, (&Function{Modifiers: []string{"isAdmin"}}).HasAccessModifier())
	assert.True(t, (&Function{Body: "{ require(msg.sender == owner); }"}).HasAccessModifier())
	assert.False(t, (&Function{Modifiers: []string{"nonReentrant"}}).HasAccessModifier())
	assert.False(t, (&Function{Body: "{ require(amount > 0); }"}).HasAccessModifier())
}

func TestParseSourceSignals(t *testing.T) {
	src := parseSource(`
pragma solidity ^0.8.19;
import "@openzeppelin/contracts/security/ReentrancyGuard.sol";
contract C is ReentrancyGuard {
    address public owner;
    uint256 totalSupply;
    function setOwner(address next) external {
        require(msg.sender == owner);
        owner = next;
    }
}
`)
	assert.Equal(t, []string{"^0.8.19"}, src.Pragmas)
	assert.True(t, src.HasReentrancyGuard)
	assert.True(t, src.HasAccessControl)
	assert.Contains(t, src.StateVars, "owner")
	assert.Contains(t, src.StateVars, "totalSupply")
}

func TestPragmaVersionHelpers(t *testing.T) {
	assert.True(t, pragmaMajorBelow8([]string{"^0.4.24"}))
	assert.True(t, pragmaMajorBelow8([]string{"0.7.6"}))
	assert.False(t, pragmaMajorBelow8([]string{"0.8.19"}))
	assert.False(t, pragmaMajorBelow8([]string{"0.12.0"}))
	assert.False(t, pragmaMajorBelow8(nil))

	assert.True(t, isFloatingPragma("^0.8.0"))
	assert.True(t, isFloatingPragma("~0.8.0"))
	assert.True(t, isFloatingPragma(">=0.6.0 <0.9.0"))
	assert.False(t, isFloatingPragma("0.8.19"))
}
