package analyzer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solguardian/internal/config"
	apperrors "solguardian/internal/errors"
	"solguardian/internal/knowledge"
	"solguardian/types"
)

const vulnerableSource = `
pragma solidity ^0.7.6;

contract VulnerableVault {
    mapping(address => uint256) public balances;

    function deposit() external payable {
        balances[msg.sender] += msg.value;
    }

    function withdraw(uint256 amount) external {
        require(balances[msg.sender] >= amount);
        (bool ok, ) = msg.sender.call{value: amount}("");
        balances[msg.sender] -= amount;
    }
}
`

// stubStore implements knowledge.Store with canned or failing behavior.
type stubStore struct {
	fail    bool
	matches map[types.Collection][]types.KnowledgeMatch
}

func (s *stubStore) Query(ctx context.Context, collection types.Collection, text string, limit int, where map[string]string) ([]types.KnowledgeMatch, error) {
	if s.fail {
		return nil, apperrors.NewKnowledgeUnavailable(fmt.Errorf("backend down"))
	}
	matches := s.matches[collection]
	if limit < len(matches) {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *stubStore) Get(ctx context.Context, collection types.Collection, ids []string) ([]types.KnowledgeMatch, error) {
	return nil, nil
}

func (s *stubStore) Add(ctx context.Context, collection types.Collection, records []types.KnowledgeRecord) error {
	return nil
}

func (s *stubStore) Count(collection types.Collection) int {
	return len(s.matches[collection])
}

var _ knowledge.Store = (*stubStore)(nil)

func testConfig() *config.Config {
	return &config.Config{MaxFileSize: 1024 * 1024}
}

func writeContract(t *testing.T, name, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func TestAnalyzeVulnerableContract(t *testing.T) {
	store := &stubStore{matches: map[types.Collection][]types.KnowledgeMatch{
		types.CollectionSWC: {{
			ID:       "SWC-107",
			Document: "Reentrancy...",
			Metadata: map[string]string{"title": "Reentrancy", "severity": "critical"},
			Distance: 0.1,
		}},
		types.CollectionExploits: {{
			ID:       "2016/dao",
			Document: "The DAO hack writeup",
			Metadata: map[string]string{"name": "The DAO Hack", "category": "reentrancy", "source": "rekt.news"},
			Distance: 0.2,
		}},
	}}
	a := New(testConfig(), store, nil, nil, nil, nil)
	path := writeContract(t, "VulnerableVault.sol", vulnerableSource)

	report, err := a.Analyze(context.Background(), path, DefaultOptions())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RequestID)
	assert.Equal(t, "VulnerableVault.sol", report.Contract.FileName)
	assert.NotEmpty(t, report.Contract.Indicators)
	assert.Equal(t, types.RiskCritical, report.Risk.Level)
	assert.GreaterOrEqual(t, report.Risk.Score, 70)

	require.NotNil(t, report.Knowledge)
	assert.True(t, report.Knowledge.Available)
	require.NotEmpty(t, report.Knowledge.SWC)
	assert.Equal(t, "SWC-107", report.Knowledge.SWC[0].ID)
	assert.Contains(t, report.Knowledge.Sources, "rekt.news")

	require.NotEmpty(t, report.SimilarExploits)
	assert.Equal(t, "2016/dao", report.SimilarExploits[0].ID)

	assert.NotEmpty(t, report.Recommendations)
	assert.Equal(t, report.Risk.Score, report.Summary.RiskScore)
	assert.Equal(t, len(report.Contract.Indicators), report.Summary.TotalIndicators)
}

func TestAnalyzeDegradesWhenKnowledgeDown(t *testing.T) {
	a := New(testConfig(), &stubStore{fail: true}, nil, nil, nil, nil)
	path := writeContract(t, "VulnerableVault.sol", vulnerableSource)

	report, err := a.Analyze(context.Background(), path, DefaultOptions())
	require.NoError(t, err, "a dead knowledge backend must not abort the analysis")

	assert.NotEmpty(t, report.Contract.Indicators)
	assert.NotEmpty(t, report.Recommendations)
	assert.NotEqual(t, types.RiskLevel(""), report.Risk.Level)
	require.NotNil(t, report.Knowledge)
	assert.Empty(t, report.Knowledge.SWC)
	assert.Empty(t, report.SimilarExploits)
}

func TestAnalyzeWithoutStore(t *testing.T) {
	a := New(testConfig(), nil, nil, nil, nil, nil)
	path := writeContract(t, "VulnerableVault.sol", vulnerableSource)

	report, err := a.Analyze(context.Background(), path, DefaultOptions())
	require.NoError(t, err)

	require.NotNil(t, report.Knowledge)
	assert.False(t, report.Knowledge.Available)
	assert.Empty(t, report.SimilarExploits)
	assert.NotEmpty(t, report.Recommendations)
}

func TestAnalyzeDisabledStages(t *testing.T) {
	store := &stubStore{matches: map[types.Collection][]types.KnowledgeMatch{
		types.CollectionSWC: {{ID: "SWC-107", Distance: 0.1}},
	}}
	a := New(testConfig(), store, nil, nil, nil, nil)
	path := writeContract(t, "VulnerableVault.sol", vulnerableSource)

	report, err := a.Analyze(context.Background(), path, Options{
		IncludeKnowledgeBase:   false,
		IncludeSimilarExploits: false,
		UseExternalTools:       false,
	})
	require.NoError(t, err)

	assert.Nil(t, report.Knowledge)
	assert.Empty(t, report.SimilarExploits)
	assert.Empty(t, report.Tools)
	assert.NotEmpty(t, report.Contract.Indicators, "the heuristic scan always runs")
}

func TestAnalyzeFileErrors(t *testing.T) {
	a := New(testConfig(), nil, nil, nil, nil, nil)
	dir := t.TempDir()

	_, err := a.Analyze(context.Background(), filepath.Join(dir, "missing.sol"), DefaultOptions())
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindFileNotFound, appErr.Kind)
	assert.True(t, appErr.IsFatal())

	notSol := filepath.Join(dir, "readme.txt")
	require.NoError(t, os.WriteFile(notSol, []byte("hello"), 0o644))
	_, err = a.Analyze(context.Background(), notSol, DefaultOptions())
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindNotASourceFile, appErr.Kind)

	big := filepath.Join(dir, "big.sol")
	require.NoError(t, os.WriteFile(big, []byte(strings.Repeat("x", 64)), 0o644))
	small := New(&config.Config{MaxFileSize: 16}, nil, nil, nil, nil, nil)
	_, err = small.Analyze(context.Background(), big, DefaultOptions())
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.KindFileTooLarge, appErr.Kind)
}
