// Package promptctx assembles the project context block injected into
// model prompts from the session ledger.
package promptctx

import (
	"fmt"
	"strings"

	"github.com/ashureev/elicit/internal/domain"
)

// Section formats one slice of the ledger. Render returns "" when the
// section has nothing to contribute.
type Section interface {
	Header() string
	Render(state *domain.SessionState) string
}

// Builder assembles sections in order into a single context block.
type Builder struct {
	sections []Section
}

// NewBuilder creates a builder with the default section order.
func NewBuilder() *Builder {
	return &Builder{sections: []Section{
		ScopeSection{},
		GoalSection{},
		ActorSection{},
		ProcessSection{},
		EntitySection{},
		NFRSection{},
	}}
}

// AddSection appends a section to the pipeline.
func (b *Builder) AddSection(s Section) {
	b.sections = append(b.sections, s)
}

// Build renders every non-empty section under its header.
func (b *Builder) Build(state *domain.SessionState) string {
	blocks := []string{"=== PROJECT CONTEXT (Source of Truth) ==="}
	for _, section := range b.sections {
		content := section.Render(state)
		if content == "" {
			continue
		}
		blocks = append(blocks, "\n--- "+section.Header()+" ---", content)
	}
	blocks = append(blocks, "\n=========================================")
	return strings.Join(blocks, "\n")
}

// ScopeSection always renders, showing "Undefined" until scope is captured.
type ScopeSection struct{}

func (ScopeSection) Header() string { return "PROJECT SCOPE" }

func (ScopeSection) Render(state *domain.SessionState) string {
	if state.ProjectScope == "" {
		return "Undefined"
	}
	return state.ProjectScope
}

// GoalSection renders the singleton goal with its KPIs.
type GoalSection struct{}

func (GoalSection) Header() string { return "BUSINESS GOALS & KPIs" }

func (GoalSection) Render(state *domain.SessionState) string {
	if state.Goal == nil {
		return ""
	}
	lines := []string{"Main Goal: " + state.Goal.MainGoal}
	if len(state.Goal.SuccessMetrics) > 0 {
		lines = append(lines, "Success Metrics (KPIs):")
		for _, m := range state.Goal.SuccessMetrics {
			lines = append(lines, "- "+m)
		}
	}
	return strings.Join(lines, "\n")
}

// ActorSection renders the actor roster.
type ActorSection struct{}

func (ActorSection) Header() string { return "DEFINED ACTORS (Must be respected)" }

func (ActorSection) Render(state *domain.SessionState) string {
	if len(state.Actors) == 0 {
		return "No actors defined yet."
	}
	var lines []string
	for _, a := range state.Actors {
		responsibilities := a.Responsibilities
		if responsibilities == "" {
			responsibilities = "No specific role defined"
		}
		lines = append(lines, fmt.Sprintf("- [%s]: %s", a.RoleName, responsibilities))
	}
	return strings.Join(lines, "\n")
}

// ProcessSection renders the workflow as "step. actor -> description".
type ProcessSection struct{}

func (ProcessSection) Header() string { return "PROCESS FLOW (Sequence of Events)" }

func (ProcessSection) Render(state *domain.SessionState) string {
	if len(state.ProcessSteps) == 0 {
		return ""
	}
	var lines []string
	for _, s := range state.ProcessSteps {
		lines = append(lines, fmt.Sprintf("%d. %s -> %s", s.StepID, s.Actor, s.Description))
	}
	return strings.Join(lines, "\n")
}

// EntitySection renders captured data entities and their fields.
type EntitySection struct{}

func (EntitySection) Header() string { return "DATA ENTITIES" }

func (EntitySection) Render(state *domain.SessionState) string {
	if len(state.DataEntities) == 0 {
		return ""
	}
	var lines []string
	for _, e := range state.DataEntities {
		line := "- " + e.Name
		if len(e.Fields) > 0 {
			line += " (" + strings.Join(e.Fields, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// NFRSection renders non-functional requirements grouped inline by category.
type NFRSection struct{}

func (NFRSection) Header() string { return "NON-FUNCTIONAL REQUIREMENTS" }

func (NFRSection) Render(state *domain.SessionState) string {
	if len(state.NFRs) == 0 {
		return ""
	}
	var lines []string
	for _, n := range state.NFRs {
		lines = append(lines, fmt.Sprintf("- [%s] %s", n.Category, n.Requirement))
	}
	return strings.Join(lines, "\n")
}
