package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aquasecurity/table"
	"github.com/fatih/color"

	"solguardian/types"
)

var (
	critColor = color.New(color.FgRed, color.Bold)
	highColor = color.New(color.FgRed)
	medColor  = color.New(color.FgYellow)
	lowColor  = color.New(color.FgCyan)
	okColor   = color.New(color.FgGreen)
)

func severityColor(sev types.Severity) *color.Color {
	switch sev {
	case types.SeverityCritical:
		return critColor
	case types.SeverityHigh:
		return highColor
	case types.SeverityMedium:
		return medColor
	default:
		return lowColor
	}
}

func riskColor(level types.RiskLevel) *color.Color {
	switch level {
	case types.RiskCritical:
		return critColor
	case types.RiskHigh:
		return highColor
	case types.RiskMedium:
		return medColor
	case types.RiskLow:
		return lowColor
	default:
		return okColor
	}
}

// renderReport writes the human-readable report to w.
func renderReport(w io.Writer, report *types.AnalysisReport) {
	ca := report.Contract

	fmt.Fprintf(w, "\n🔍 %s  (%d lines, %d bytes)\n", ca.FileName, ca.LineCount, ca.FileSize)
	if len(ca.Contracts) > 0 {
		fmt.Fprintf(w, "   Contracts: %s\n", strings.Join(ca.Contracts, ", "))
	}
	if len(ca.Protocols) > 0 {
		fmt.Fprintf(w, "   Protocols: %s\n", strings.Join(ca.Protocols, ", "))
	}
	fmt.Fprintln(w)

	rc := riskColor(report.Risk.Level)
	fmt.Fprintf(w, "Risk: %s (score %d)\n\n",
		rc.Sprint(string(report.Risk.Level)), report.Risk.Score)

	if len(ca.Indicators) > 0 {
		t := table.New(w)
		t.SetHeaders("Severity", "Category", "Description")
		for _, ind := range ca.Indicators {
			t.AddRow(severityColor(ind.Severity).Sprint(string(ind.Severity)),
				string(ind.Category), ind.Description)
		}
		t.Render()
		fmt.Fprintln(w)
	} else {
		okColor.Fprintln(w, "No heuristic indicators found.")
		fmt.Fprintln(w)
	}

	if len(report.Risk.Factors) > 0 {
		fmt.Fprintln(w, "Risk factors:")
		for _, f := range report.Risk.Factors {
			fmt.Fprintf(w, "  • %s\n", f)
		}
		fmt.Fprintln(w)
	}

	if report.Knowledge != nil && report.Knowledge.Available {
		if len(report.Knowledge.SWC) > 0 {
			fmt.Fprintln(w, "Weakness classification matches:")
			t := table.New(w)
			t.SetHeaders("SWC", "Title", "Severity", "Match")
			for _, rec := range report.Knowledge.SWC {
				t.AddRow(rec.ID, rec.Title, rec.Severity, strconv.Itoa(rec.Similarity)+"%")
			}
			t.Render()
			fmt.Fprintln(w)
		}
		if len(report.Knowledge.AuditFindings) > 0 {
			fmt.Fprintln(w, "Related audit findings:")
			t := table.New(w)
			t.SetHeaders("ID", "Protocol", "Severity", "Match")
			for _, rec := range report.Knowledge.AuditFindings {
				t.AddRow(rec.ID, rec.Protocol, rec.Severity, strconv.Itoa(rec.Similarity)+"%")
			}
			t.Render()
			fmt.Fprintln(w)
		}
	}

	if len(report.SimilarExploits) > 0 {
		fmt.Fprintln(w, "Similar historical exploits:")
		t := table.New(w)
		t.SetHeaders("Name", "Protocol", "Category", "Loss", "Match")
		for _, ex := range report.SimilarExploits {
			t.AddRow(ex.Name, ex.Protocol, ex.Category, ex.Loss, strconv.Itoa(ex.Similarity)+"%")
		}
		t.Render()
		fmt.Fprintln(w)
	}

	if len(report.Tools) > 0 {
		fmt.Fprintln(w, "External tools:")
		t := table.New(w)
		t.SetHeaders("Tool", "Status", "Findings")
		for _, tr := range report.Tools {
			status := string(tr.Status)
			if tr.Status == types.ToolStatusFailed {
				status = highColor.Sprint(status)
			}
			t.AddRow(tr.Tool, status, strconv.Itoa(len(tr.Findings)))
		}
		t.Render()
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Recommendations:")
	for i, rec := range report.Recommendations {
		fmt.Fprintf(w, "  %d. %s\n", i+1, rec)
	}
	fmt.Fprintf(w, "\nCompleted in %s (request %s)\n", report.Duration, report.RequestID)
}
