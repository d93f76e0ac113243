package compliance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ashureev/elicit/internal/domain"
	"github.com/ashureev/elicit/internal/llm"
	"github.com/ashureev/elicit/internal/policy"
)

type fakeLLM struct {
	structured func(schemaName string, out any) error
	calls      int
	lastSystem string
}

func (f *fakeLLM) ChatWithTools(context.Context, []llm.Message, []llm.ToolDefinition) (*llm.Response, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeLLM) StructuredCompletion(_ context.Context, messages []llm.Message, schemaName string, _ json.RawMessage, out any) error {
	f.calls++
	if len(messages) > 0 {
		f.lastSystem = messages[0].Content
	}
	return f.structured(schemaName, out)
}

func (f *fakeLLM) TextCompletion(context.Context, []llm.Message) (string, error) {
	return "", errors.New("not implemented")
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAudit_EmptyLedgerSkipsModel(t *testing.T) {
	fake := &fakeLLM{structured: func(string, any) error {
		t.Fatal("model must not be called for an empty ledger")
		return nil
	}}
	checker := NewChecker(fake, policy.NewLocalStore(), discard())

	report, err := checker.Audit(context.Background(), domain.NewSessionState("s1"))
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if report.SafetyScore != 100 || len(report.Issues) != 0 {
		t.Errorf("expected clean report, got %+v", report)
	}
}

func TestAudit_InjectsRelevantPolicies(t *testing.T) {
	fake := &fakeLLM{structured: func(_ string, out any) error {
		*(out.(*Report)) = Report{SafetyScore: 95}
		return nil
	}}
	checker := NewChecker(fake, policy.NewLocalStore(), discard())

	state := domain.NewSessionState("s1")
	state.SetScope("loan origination platform")
	state.AddActors([]domain.Persona{{RoleName: "Loan Officer", Responsibilities: "approves loan amounts"}})

	if _, err := checker.Audit(context.Background(), state); err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if fake.calls != 1 {
		t.Fatalf("expected one model call, got %d", fake.calls)
	}
	if !strings.Contains(fake.lastSystem, "Risk Committee") {
		t.Error("expected the loan policy in the system prompt")
	}
}

func TestAudit_CoercesUnknownCategory(t *testing.T) {
	fake := &fakeLLM{structured: func(_ string, out any) error {
		*(out.(*Report)) = Report{
			Issues:      []Issue{{ID: "1", Severity: "high", Category: "Cybersecurity Hygiene"}},
			SafetyScore: 60,
		}
		return nil
	}}
	checker := NewChecker(fake, policy.NewLocalStore(), discard())

	state := domain.NewSessionState("s1")
	state.AddActors([]domain.Persona{{RoleName: "Clerk"}})

	report, err := checker.Audit(context.Background(), state)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if report.Issues[0].Category != "policy" {
		t.Errorf("unknown category should coerce to policy, got %q", report.Issues[0].Category)
	}
}

func TestAudit_KeepsKnownCategoryCaseInsensitive(t *testing.T) {
	fake := &fakeLLM{structured: func(_ string, out any) error {
		*(out.(*Report)) = Report{
			Issues:      []Issue{{ID: "1", Severity: "low", Category: " Security "}},
			SafetyScore: 80,
		}
		return nil
	}}
	checker := NewChecker(fake, policy.NewLocalStore(), discard())

	state := domain.NewSessionState("s1")
	state.AddActors([]domain.Persona{{RoleName: "Clerk"}})

	report, err := checker.Audit(context.Background(), state)
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if report.Issues[0].Category != "security" {
		t.Errorf("expected normalized security category, got %q", report.Issues[0].Category)
	}
}
