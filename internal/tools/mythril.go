package tools

import (
	"encoding/json"
	"fmt"
	"time"

	"solguardian/types"
)

// Mythril wraps the symbolic execution analyzer. Symbolic execution is
// slow, so it runs under the longer analysis timeout.
type Mythril struct{}

func (m *Mythril) Name() string { return "myth" }

func (m *Mythril) Timeout(cfg Timeouts) time.Duration { return cfg.Analysis }

func (m *Mythril) Args(path string) []string {
	return []string{"analyze", path, "-o", "json"}
}

// mythrilOutput mirrors mythril's JSON report.
type mythrilOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Issues  []struct {
		Title       string `json:"title"`
		Severity    string `json:"severity"`
		Description string `json:"description"`
		SWCID       string `json:"swc-id"`
		Filename    string `json:"filename"`
		LineNo      int    `json:"lineno"`
	} `json:"issues"`
}

func (m *Mythril) Parse(res *ExecResult) ([]types.ToolFinding, types.ToolStatus, error) {
	if res.Stdout == "" {
		return nil, types.ToolStatusFailed, fmt.Errorf("no output (exit %d): %s", res.ExitCode, types.Truncate(res.Stderr, 200))
	}
	var out mythrilOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return nil, types.ToolStatusFailed, fmt.Errorf("unparseable output: %w", err)
	}
	if out.Error != "" {
		return nil, types.ToolStatusFailed, fmt.Errorf("mythril error: %s", out.Error)
	}

	var findings []types.ToolFinding
	for _, issue := range out.Issues {
		check := issue.Title
		if issue.SWCID != "" {
			check = fmt.Sprintf("%s (SWC-%s)", issue.Title, issue.SWCID)
		}
		findings = append(findings, types.ToolFinding{
			Check:       check,
			Severity:    issue.Severity,
			Description: issue.Description,
			Location:    fmt.Sprintf("%s:%d", issue.Filename, issue.LineNo),
		})
	}
	if len(findings) == 0 {
		return nil, types.ToolStatusPassed, nil
	}
	return findings, types.ToolStatusCompleted, nil
}
