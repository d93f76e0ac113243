package tools

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/ashureev/elicit/internal/artifacts"
	"github.com/ashureev/elicit/internal/compliance"
	"github.com/ashureev/elicit/internal/gap"
	"github.com/ashureev/elicit/internal/llm"
	"github.com/ashureev/elicit/internal/policy"
	"github.com/ashureev/elicit/internal/requirements"
	"github.com/ashureev/elicit/internal/store"
	"github.com/ashureev/elicit/internal/wire"
)

type passLLM struct{}

func (passLLM) ChatWithTools(context.Context, []llm.Message, []llm.ToolDefinition) (*llm.Response, error) {
	return nil, errors.New("not implemented")
}

func (passLLM) StructuredCompletion(_ context.Context, _ []llm.Message, _ string, _ json.RawMessage, out any) error {
	*(out.(*compliance.Report)) = compliance.Report{SafetyScore: 100}
	return nil
}

func (passLLM) TextCompletion(context.Context, []llm.Message) (string, error) {
	return "", errors.New("not implemented")
}

func testContext(t *testing.T) (*Context, *[]wire.Message) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := store.NewManager(store.NewMemory())
	checker := compliance.NewChecker(passLLM{}, policy.NewLocalStore(), logger)
	service := requirements.NewService(manager, gap.NewDefaultEngine(), checker, false, logger)

	catalog := artifacts.NewCatalog(artifacts.Entry{Title: "Generated Document"})
	catalog.Register(artifacts.TypeUserStory, artifacts.Entry{
		Title:  "User Stories",
		Search: artifacts.StorySearch{},
	})

	var emitted []wire.Message
	state, err := manager.GetOrCreate(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	return &Context{
		State:        state,
		Emit:         func(m wire.Message) error { emitted = append(emitted, m); return nil },
		Mapper:       wire.NewMapper(),
		Manager:      manager,
		Requirements: service,
		Schedule:     func(string) {},
		Catalog:      catalog,
		Logger:       logger,
	}, &emitted
}

func TestRegistry_UnknownTool(t *testing.T) {
	r := NewRegistry()
	tc, _ := testContext(t)

	out := r.Dispatch(context.Background(), "does_not_exist", nil, tc)
	if !strings.Contains(out, "Unknown tool") {
		t.Errorf("expected unknown-tool error, got %s", out)
	}
}

func TestRegistry_DefinitionsAreStrict(t *testing.T) {
	r := NewRegistry()
	r.Register(UpdateRequirements{})
	r.Register(TriggerVisualization{})

	defs, err := r.Definitions()
	if err != nil {
		t.Fatalf("Definitions: %v", err)
	}
	if len(defs) != 2 || defs[0].Name != "update_requirements" {
		t.Fatalf("registration order lost: %+v", defs)
	}
	for _, def := range defs {
		if !def.Strict {
			t.Errorf("%s must be strict", def.Name)
		}
		var schema map[string]any
		if err := json.Unmarshal(def.Parameters, &schema); err != nil {
			t.Fatalf("bad schema for %s: %v", def.Name, err)
		}
		if ap, ok := schema["additionalProperties"].(bool); !ok || ap {
			t.Errorf("%s schema missing additionalProperties=false", def.Name)
		}
	}
}

func TestUpdateRequirements_EmitsAndRefreshesState(t *testing.T) {
	tc, emitted := testContext(t)

	args, _ := json.Marshal(map[string]any{
		"actors_to_add": []map[string]string{{"role_name": "Loan Officer"}},
	})
	out, err := (UpdateRequirements{}).Execute(context.Background(), args, tc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, `"status":"success"`) {
		t.Errorf("unexpected feedback: %s", out)
	}
	if len(tc.State.Actors) != 1 {
		t.Error("tool context state not refreshed after update")
	}

	var types []string
	for _, m := range *emitted {
		types = append(types, m.Type)
	}
	want := []string{wire.MsgStateUpdate, wire.MsgValidationWarn, wire.MsgStatusUpdate}
	if len(types) != len(want) {
		t.Fatalf("emitted %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestUpdateRequirements_BadArgsAreUserSafe(t *testing.T) {
	tc, _ := testContext(t)

	out, err := (UpdateRequirements{}).Execute(context.Background(), json.RawMessage(`{"actors_to_add": "nope"}`), tc)
	if err != nil {
		t.Fatalf("validation errors must not propagate: %v", err)
	}
	if !strings.Contains(out, "Invalid arguments") {
		t.Errorf("expected user-safe error, got %s", out)
	}
}

func TestTriggerVisualization_RefusesEmptyLedger(t *testing.T) {
	tc, _ := testContext(t)

	args := json.RawMessage(`{"artifact_types":["mermaid_diagram"]}`)
	out, err := (TriggerVisualization{}).Execute(context.Background(), args, tc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "State is empty") {
		t.Errorf("expected refusal, got %s", out)
	}
}

func TestTriggerVisualization_QueuesPerType(t *testing.T) {
	tc, _ := testContext(t)
	tc.State.SetScope("loans")

	var scheduled []string
	tc.Schedule = func(artifactType string) { scheduled = append(scheduled, artifactType) }

	args := json.RawMessage(`{"artifact_types":["mermaid_diagram","user_story"]}`)
	out, err := (TriggerVisualization{}).Execute(context.Background(), args, tc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, `"status":"queued"`) {
		t.Errorf("expected queued ack, got %s", out)
	}
	if len(scheduled) != 2 || scheduled[0] != "mermaid_diagram" || scheduled[1] != "user_story" {
		t.Errorf("unexpected schedule calls: %v", scheduled)
	}
}

func TestInspectArtifact_NotGeneratedYet(t *testing.T) {
	tc, _ := testContext(t)

	args := json.RawMessage(`{"artifact_type":"user_story","query":"submit"}`)
	out, err := (InspectArtifact{}).Execute(context.Background(), args, tc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "has been generated yet") {
		t.Errorf("expected missing-artifact error, got %s", out)
	}
}

func TestPatchArtifact_OverwritesWithoutVersionBump(t *testing.T) {
	tc, emitted := testContext(t)
	ctx := context.Background()

	content, _ := json.Marshal(artifacts.StorySet{Stories: []artifacts.UserStory{
		{ID: "us-1", Title: "Submit Application", IWantTo: "submit", Priority: "Low"},
	}})
	tc.State.PutArtifactVersion(artifacts.TypeUserStory, content)
	if err := tc.Manager.Save(ctx, tc.State); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	args := json.RawMessage(`{"artifact_type":"user_story","query":"submit","field":"priority","value":"High"}`)
	out, err := (PatchArtifact{}).Execute(ctx, args, tc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, `"status":"patched"`) {
		t.Fatalf("unexpected result: %s", out)
	}

	if tc.State.CurrentVersion(artifacts.TypeUserStory) != 1 {
		t.Error("patch must not bump the version counter")
	}
	current, _ := tc.State.CurrentArtifact(artifacts.TypeUserStory)
	var set artifacts.StorySet
	if err := json.Unmarshal(current, &set); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if set.Stories[0].Priority != "High" {
		t.Errorf("field not patched: %+v", set.Stories[0])
	}

	found := false
	for _, m := range *emitted {
		if m.Type == wire.MsgArtifactUpdate {
			found = true
		}
	}
	if !found {
		t.Error("patch must re-emit an artifact update")
	}
}

func TestPatchArtifact_KeepsConcurrentlyPersistedArtifacts(t *testing.T) {
	tc, _ := testContext(t)
	ctx := context.Background()

	content, _ := json.Marshal(artifacts.StorySet{Stories: []artifacts.UserStory{
		{ID: "us-1", Title: "Submit Application", IWantTo: "submit", Priority: "Low"},
	}})
	tc.State.PutArtifactVersion(artifacts.TypeUserStory, content)
	if err := tc.Manager.Save(ctx, tc.State); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	// A background generation lands after the tool context took its
	// snapshot; the patch save must not erase it.
	background, err := tc.Manager.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	background.PutArtifactVersion("mermaid_diagram", json.RawMessage(`{"code":"graph TD"}`))
	if err := tc.Manager.Save(ctx, background); err != nil {
		t.Fatalf("background save: %v", err)
	}

	args := json.RawMessage(`{"artifact_type":"user_story","query":"submit","field":"priority","value":"High"}`)
	out, err := (PatchArtifact{}).Execute(ctx, args, tc)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, `"status":"patched"`) {
		t.Fatalf("unexpected result: %s", out)
	}

	reloaded, err := tc.Manager.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.CurrentVersion("mermaid_diagram") != 1 {
		t.Error("patch save clobbered an artifact persisted mid-turn")
	}
	current, _ := reloaded.CurrentArtifact(artifacts.TypeUserStory)
	var set artifacts.StorySet
	if err := json.Unmarshal(current, &set); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if set.Stories[0].Priority != "High" {
		t.Errorf("patch lost: %+v", set.Stories[0])
	}
	if tc.State.CurrentVersion("mermaid_diagram") != 1 {
		t.Error("tool context state not refreshed after patch")
	}
}
