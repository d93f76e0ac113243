package promptctx

import (
	"strings"
	"testing"

	"github.com/ashureev/elicit/internal/domain"
)

func TestBuild_EmptyState(t *testing.T) {
	out := NewBuilder().Build(domain.NewSessionState("s1"))

	if !strings.Contains(out, "PROJECT SCOPE") {
		t.Error("scope section must always render")
	}
	if !strings.Contains(out, "Undefined") {
		t.Error("empty scope should render as Undefined")
	}
	if !strings.Contains(out, "No actors defined yet.") {
		t.Error("actor section should state that no actors exist")
	}
	if strings.Contains(out, "PROCESS FLOW") {
		t.Error("empty process section must be omitted")
	}
}

func TestBuild_FullState(t *testing.T) {
	state := domain.NewSessionState("s1")
	state.SetScope("loan origination")
	state.SetGoal(&domain.BusinessGoal{MainGoal: "cut approval time", SuccessMetrics: []string{"< 24h turnaround"}})
	state.AddActors([]domain.Persona{{RoleName: "Loan Officer", Responsibilities: "reviews applications"}})
	state.SetSteps([]domain.ProcessStep{{StepID: 1, Actor: "Customer", Description: "submits application"}})
	state.MergeDataEntities([]domain.DataEntity{{Name: "Loan", Fields: []string{"Amount"}}})
	state.AddNFRs([]domain.NonFunctionalRequirement{{ID: "NFR-1", Category: "performance", Requirement: "p99 under 2s"}})

	out := NewBuilder().Build(state)

	for _, want := range []string{
		"loan origination",
		"Main Goal: cut approval time",
		"- < 24h turnaround",
		"- [Loan Officer]: reviews applications",
		"1. Customer -> submits application",
		"- Loan (Amount)",
		"- [performance] p99 under 2s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("context missing %q:\n%s", want, out)
		}
	}
}

type staticSection struct{ header, body string }

func (s staticSection) Header() string                      { return s.header }
func (s staticSection) Render(*domain.SessionState) string { return s.body }

func TestBuild_CustomSectionAppended(t *testing.T) {
	b := NewBuilder()
	b.AddSection(staticSection{header: "RISKS", body: "- regulatory exposure"})

	out := b.Build(domain.NewSessionState("s1"))
	if !strings.Contains(out, "--- RISKS ---") || !strings.Contains(out, "- regulatory exposure") {
		t.Errorf("custom section missing:\n%s", out)
	}
}
