package tools

import (
	"bytes"
	"context"
	"log"
	"os/exec"
	"time"

	apperrors "solguardian/internal/errors"
	"solguardian/types"
)

// ExecResult is the raw outcome of one subprocess invocation.
type ExecResult struct {
	Success  bool
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Tool is one external security analyzer. Implementations wrap a CLI
// binary and parse its JSON output into normalized findings.
type Tool interface {
	Name() string
	// Timeout returns the per-invocation deadline for this tool.
	Timeout(cfg Timeouts) time.Duration
	// Args returns the command-line arguments to analyze the given file.
	Args(path string) []string
	// Parse turns raw output into findings and the resulting status.
	Parse(res *ExecResult) ([]types.ToolFinding, types.ToolStatus, error)
}

// Timeouts carries the configured subprocess deadlines.
type Timeouts struct {
	Default  time.Duration
	Analysis time.Duration
}

// Runner invokes external tools as black-box subprocesses with per-tool
// timeouts. One tool's failure never aborts the others.
type Runner struct {
	tools    []Tool
	timeouts Timeouts
	// lookPath is swapped in tests.
	lookPath func(string) (string, error)
	// execute is swapped in tests.
	execute func(ctx context.Context, name string, args []string) *ExecResult
}

// NewRunner creates a runner over the default tool set: Slither, Solhint
// and Mythril.
func NewRunner(timeouts Timeouts) *Runner {
	return &Runner{
		tools:    []Tool{&Slither{}, &Solhint{}, &Mythril{}},
		timeouts: timeouts,
		lookPath: exec.LookPath,
		execute:  executeCommand,
	}
}

// IsInstalled reports whether the named tool binary is on PATH.
func (r *Runner) IsInstalled(tool string) bool {
	_, err := r.lookPath(tool)
	return err == nil
}

// RunAll runs every tool against the file and returns one result per tool.
// Missing binaries, nonzero exits and timeouts are recorded in the per-tool
// status, never raised.
func (r *Runner) RunAll(ctx context.Context, path string) []types.ToolResult {
	results := make([]types.ToolResult, 0, len(r.tools))
	for _, tool := range r.tools {
		results = append(results, r.runOne(ctx, tool, path))
	}
	return results
}

func (r *Runner) runOne(ctx context.Context, tool Tool, path string) types.ToolResult {
	result := types.ToolResult{Tool: tool.Name()}

	if !r.IsInstalled(tool.Name()) {
		result.Status = types.ToolStatusFailed
		result.Error = apperrors.NewToolNotFound(tool.Name()).Message
		return result
	}
	result.Available = true

	toolCtx, cancel := context.WithTimeout(ctx, tool.Timeout(r.timeouts))
	defer cancel()

	start := time.Now()
	res := r.execute(toolCtx, tool.Name(), tool.Args(path))
	result.Duration = time.Since(start)

	if toolCtx.Err() == context.DeadlineExceeded {
		result.Status = types.ToolStatusFailed
		result.Error = "analysis timed out"
		log.Printf("⚠️  Tool %s timed out after %s", tool.Name(), result.Duration.Round(time.Millisecond))
		return result
	}

	findings, status, err := tool.Parse(res)
	if err != nil {
		result.Status = types.ToolStatusFailed
		result.Error = apperrors.NewToolExecFailed(tool.Name(), err).Message
		log.Printf("⚠️  Tool %s failed: %v", tool.Name(), err)
		return result
	}
	result.Findings = findings
	result.Status = status
	return result
}

// executeCommand runs the binary and captures its streams. Nonzero exit is
// not an error here: several tools exit nonzero when they find issues, so
// the per-tool Parse decides what a usable result looks like.
func executeCommand(ctx context.Context, name string, args []string) *ExecResult {
	start := time.Now()
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}
	if err == nil {
		res.Success = true
	} else if exitErr, ok := err.(*exec.ExitError); ok {
		res.ExitCode = exitErr.ExitCode()
	} else {
		res.ExitCode = -1
	}
	return res
}
