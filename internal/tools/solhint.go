package tools

import (
	"encoding/json"
	"fmt"
	"time"

	"solguardian/types"
)

// Solhint wraps the Solidity linter.
type Solhint struct{}

func (s *Solhint) Name() string { return "solhint" }

func (s *Solhint) Timeout(cfg Timeouts) time.Duration { return cfg.Default }

func (s *Solhint) Args(path string) []string {
	return []string{"--formatter", "json", path}
}

// solhintIssue mirrors one entry of solhint's JSON formatter output.
type solhintIssue struct {
	RuleID   string `json:"ruleId"`
	Severity int    `json:"severity"` // 1 warning, 2 error
	Message  string `json:"message"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	FilePath string `json:"filePath"`
}

func (s *Solhint) Parse(res *ExecResult) ([]types.ToolFinding, types.ToolStatus, error) {
	// Solhint exits 1 when issues are found; only a missing report is a
	// real failure.
	if res.Stdout == "" {
		if res.Success {
			return nil, types.ToolStatusPassed, nil
		}
		return nil, types.ToolStatusFailed, fmt.Errorf("no output (exit %d): %s", res.ExitCode, types.Truncate(res.Stderr, 200))
	}
	var issues []solhintIssue
	if err := json.Unmarshal([]byte(res.Stdout), &issues); err != nil {
		return nil, types.ToolStatusFailed, fmt.Errorf("unparseable output: %w", err)
	}

	var findings []types.ToolFinding
	hasError := false
	for _, issue := range issues {
		severity := "warning"
		if issue.Severity == 2 {
			severity = "error"
			hasError = true
		}
		findings = append(findings, types.ToolFinding{
			Check:       issue.RuleID,
			Severity:    severity,
			Description: issue.Message,
			Location:    fmt.Sprintf("%s:%d:%d", issue.FilePath, issue.Line, issue.Column),
		})
	}
	switch {
	case len(findings) == 0:
		return nil, types.ToolStatusPassed, nil
	case hasError:
		return findings, types.ToolStatusCompleted, nil
	default:
		return findings, types.ToolStatusWarnings, nil
	}
}
