package tools

import (
	"encoding/json"
	"fmt"
	"time"

	"solguardian/types"
)

// Slither wraps the Trail of Bits static analyzer.
type Slither struct{}

func (s *Slither) Name() string { return "slither" }

func (s *Slither) Timeout(cfg Timeouts) time.Duration { return cfg.Default }

func (s *Slither) Args(path string) []string {
	return []string{path, "--json", "-"}
}

// slitherOutput mirrors the relevant slice of slither's JSON report.
type slitherOutput struct {
	Success bool `json:"success"`
	Results struct {
		Detectors []struct {
			Check       string `json:"check"`
			Impact      string `json:"impact"`
			Description string `json:"description"`
			Elements    []struct {
				SourceMapping struct {
					Filename string `json:"filename_short"`
					Lines    []int  `json:"lines"`
				} `json:"source_mapping"`
			} `json:"elements"`
		} `json:"detectors"`
	} `json:"results"`
}

// Parse reads slither's JSON report from stdout. Slither exits nonzero when
// detectors fire, so exit code alone is not a failure signal.
func (s *Slither) Parse(res *ExecResult) ([]types.ToolFinding, types.ToolStatus, error) {
	if res.Stdout == "" {
		return nil, types.ToolStatusFailed, fmt.Errorf("no output (exit %d): %s", res.ExitCode, types.Truncate(res.Stderr, 200))
	}
	var out slitherOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return nil, types.ToolStatusFailed, fmt.Errorf("unparseable output: %w", err)
	}

	var findings []types.ToolFinding
	for _, det := range out.Results.Detectors {
		f := types.ToolFinding{
			Check:       det.Check,
			Severity:    det.Impact,
			Description: det.Description,
		}
		if len(det.Elements) > 0 {
			sm := det.Elements[0].SourceMapping
			if len(sm.Lines) > 0 {
				f.Location = fmt.Sprintf("%s:%d", sm.Filename, sm.Lines[0])
			} else {
				f.Location = sm.Filename
			}
		}
		findings = append(findings, f)
	}
	if len(findings) == 0 {
		return nil, types.ToolStatusPassed, nil
	}
	return findings, types.ToolStatusCompleted, nil
}
