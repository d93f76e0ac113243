// Package publish renders the ledger into a shareable BRD executive
// summary document.
package publish

import (
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/elicit/internal/domain"
)

// MarkdownGenerator converts a session ledger into a Markdown executive
// summary. Pure; no I/O.
type MarkdownGenerator struct {
	// Now is swappable for tests.
	Now func() time.Time
}

// NewMarkdownGenerator creates a generator using wall-clock time.
func NewMarkdownGenerator() *MarkdownGenerator {
	return &MarkdownGenerator{Now: time.Now}
}

// Generate stitches the ledger into a summary string.
func (g *MarkdownGenerator) Generate(state *domain.SessionState) string {
	var lines []string
	lines = append(lines,
		fmt.Sprintf("**Project ID:** %s", state.SessionID),
		fmt.Sprintf("**Generated:** %s", g.Now().Format("2006-01-02 15:04")),
		"\n---\n",
	)

	lines = append(lines, "## 1. Executive Summary")
	if state.ProjectScope != "" {
		lines = append(lines, fmt.Sprintf("### 1.1 Scope\n%s", state.ProjectScope))
	}
	if state.Goal != nil {
		lines = append(lines, fmt.Sprintf("### 1.2 Business Goal\n**%s**", state.Goal.MainGoal))
		if len(state.Goal.SuccessMetrics) > 0 {
			lines = append(lines, "\n**Key Success Metrics (KPIs):**")
			for _, kpi := range state.Goal.SuccessMetrics {
				lines = append(lines, "- "+kpi)
			}
		}
	}
	lines = append(lines, "\n")

	lines = append(lines, "## 2. Actors & Stakeholders")
	if len(state.Actors) > 0 {
		lines = append(lines, "| Role | Responsibilities |", "| :--- | :--- |")
		for _, actor := range state.Actors {
			responsibilities := actor.Responsibilities
			if responsibilities == "" {
				responsibilities = "N/A"
			}
			lines = append(lines, fmt.Sprintf("| **%s** | %s |", actor.RoleName, responsibilities))
		}
	} else {
		lines = append(lines, "_No actors defined._")
	}
	lines = append(lines, "\n")

	lines = append(lines, "## 3. Business Process Flow", "### 3.1 High-Level Steps")
	if len(state.ProcessSteps) > 0 {
		for _, step := range state.ProcessSteps {
			lines = append(lines, fmt.Sprintf("1. **%s**: %s", step.Actor, step.Description))
		}
	} else {
		lines = append(lines, "_No process steps defined._")
	}
	lines = append(lines, "\n_(See attached Diagram below)_", "\n")

	lines = append(lines, "## 4. Data Dictionary")
	if len(state.DataEntities) > 0 {
		for _, entity := range state.DataEntities {
			lines = append(lines, "### "+entity.Name)
			if entity.Description != "" {
				lines = append(lines, "_"+entity.Description+"_")
			}
			if len(entity.Fields) > 0 {
				lines = append(lines, fmt.Sprintf("- Fields: `%s`", strings.Join(entity.Fields, ", ")))
			}
		}
	} else {
		lines = append(lines, "_No specific data entities defined._")
	}
	lines = append(lines, "\n")

	lines = append(lines, "## 5. System Constraints (NFRs)")
	if len(state.NFRs) > 0 {
		for _, nfr := range state.NFRs {
			lines = append(lines, fmt.Sprintf("- **[%s]** %s", nfr.Category, nfr.Requirement))
		}
	} else {
		lines = append(lines, "_No NFRs defined._")
	}
	lines = append(lines, "\n")

	return strings.Join(lines, "\n")
}
