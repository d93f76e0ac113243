package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/elicit/internal/artifacts"
	"github.com/ashureev/elicit/internal/compliance"
	"github.com/ashureev/elicit/internal/domain"
	"github.com/ashureev/elicit/internal/gap"
	"github.com/ashureev/elicit/internal/llm"
	"github.com/ashureev/elicit/internal/policy"
	"github.com/ashureev/elicit/internal/promptctx"
	"github.com/ashureev/elicit/internal/publish"
	"github.com/ashureev/elicit/internal/requirements"
	"github.com/ashureev/elicit/internal/scheduler"
	"github.com/ashureev/elicit/internal/store"
	"github.com/ashureev/elicit/internal/wire"
)

// scriptLLM replays a fixed sequence of chat responses. Structured
// completions always return a clean compliance report.
type scriptLLM struct {
	mu      sync.Mutex
	calls   int
	script  []*llm.Response
	chatErr error
}

func (f *scriptLLM) ChatWithTools(context.Context, []llm.Message, []llm.ToolDefinition) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	if len(f.script) == 0 {
		return &llm.Response{}, nil
	}
	resp := f.script[0]
	f.script = f.script[1:]
	return resp, nil
}

func (f *scriptLLM) StructuredCompletion(_ context.Context, _ []llm.Message, _ string, _ json.RawMessage, out any) error {
	if report, ok := out.(*compliance.Report); ok {
		*report = compliance.Report{Issues: []compliance.Issue{}, SafetyScore: 100}
	}
	return nil
}

func (f *scriptLLM) TextCompletion(context.Context, []llm.Message) (string, error) {
	return "", errors.New("not implemented")
}

func (f *scriptLLM) chatCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recorder captures emitted messages; generators emit from goroutines.
type recorder struct {
	mu   sync.Mutex
	msgs []wire.Message
}

func (r *recorder) emit(m wire.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

func (r *recorder) all() []wire.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]wire.Message(nil), r.msgs...)
}

func (r *recorder) types() []string {
	var types []string
	for _, m := range r.all() {
		types = append(types, m.Type)
	}
	return types
}

func (r *recorder) count(msgType string) int {
	n := 0
	for _, m := range r.all() {
		if m.Type == msgType {
			n++
		}
	}
	return n
}

func newTestOrchestrator(t *testing.T, client llm.Client, catalog *artifacts.Catalog) (*Orchestrator, *recorder, *store.Manager) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := store.NewManager(store.NewMemory())
	checker := compliance.NewChecker(client, policy.NewLocalStore(), logger)
	rec := &recorder{}

	o := New(Config{
		SessionID:    "s1",
		Emit:         rec.emit,
		Manager:      manager,
		Client:       client,
		Registry:     DefaultRegistry(),
		Catalog:      catalog,
		Scheduler:    scheduler.New(logger),
		Mapper:       wire.NewMapper(),
		Requirements: requirements.NewService(manager, gap.NewDefaultEngine(), checker, false, logger),
		Builder:      promptctx.NewBuilder(),
		Publisher:    publish.NewMarkdownGenerator(),
		Logger:       logger,
	})
	return o, rec, manager
}

func emptyCatalog() *artifacts.Catalog {
	return artifacts.NewCatalog(artifacts.Entry{Title: "Generated Document"})
}

func TestHandleUserMessage_ToolCallThenText(t *testing.T) {
	client := &scriptLLM{script: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{
			ID:        "call_1",
			Name:      "update_requirements",
			Arguments: json.RawMessage(`{"project_scope":"Consumer lending portal"}`),
		}}},
		{Content: "Scope captured. What happens after the application is submitted?"},
	}}
	o, rec, manager := newTestOrchestrator(t, client, emptyCatalog())

	o.HandleUserMessage(context.Background(), "We are building a loan portal")

	if got := client.chatCalls(); got != 2 {
		t.Fatalf("chat calls = %d, want 2", got)
	}

	state, err := manager.GetOrCreate(context.Background(), "s1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	roles := make([]string, 0, len(state.ChatHistory))
	for _, msg := range state.ChatHistory {
		roles = append(roles, msg.Role)
	}
	want := []string{domain.RoleUser, domain.RoleAssistant, domain.RoleTool, domain.RoleAssistant}
	if len(roles) != len(want) {
		t.Fatalf("history roles = %v, want %v", roles, want)
	}
	for i := range want {
		if roles[i] != want[i] {
			t.Errorf("history[%d] role = %s, want %s", i, roles[i], want[i])
		}
	}
	if state.ChatHistory[1].ToolCalls[0].Name != "update_requirements" {
		t.Error("assistant tool-call message not persisted")
	}
	if state.ChatHistory[2].ToolCallID != "call_1" {
		t.Error("tool output not linked to its call")
	}
	if state.ProjectScope != "Consumer lending portal" {
		t.Errorf("scope = %q", state.ProjectScope)
	}

	if rec.count(wire.MsgStateUpdate) == 0 {
		t.Error("tool side effects must emit a state update")
	}
	if rec.count(wire.MsgChatDelta) != 1 {
		t.Errorf("chat deltas = %d, want 1", rec.count(wire.MsgChatDelta))
	}
	msgs := rec.all()
	last := msgs[len(msgs)-1]
	if last.Type != wire.MsgStatusUpdate {
		t.Fatalf("last message type = %s", last.Type)
	}
	if status := last.Payload.(wire.StatusUpdatePayload); status.Status != wire.StatusIdle {
		t.Errorf("final status = %s, want idle", status.Status)
	}
}

func TestHandleUserMessage_TurnCapIsHardBound(t *testing.T) {
	// Empty responses (no tools, no text) must loop until the cap.
	client := &scriptLLM{}
	o, rec, _ := newTestOrchestrator(t, client, emptyCatalog())

	o.HandleUserMessage(context.Background(), "hello")

	if got := client.chatCalls(); got != DefaultMaxTurns {
		t.Fatalf("chat calls = %d, want %d", got, DefaultMaxTurns)
	}
	if rec.count(wire.MsgChatDelta) != 0 {
		t.Error("no text response should produce no chat delta")
	}
	msgs := rec.all()
	last := msgs[len(msgs)-1].Payload.(wire.StatusUpdatePayload)
	if last.Status != wire.StatusIdle {
		t.Errorf("must return to idle after turn cap, got %s", last.Status)
	}
}

func TestHandleUserMessage_ProviderErrorApologizes(t *testing.T) {
	client := &scriptLLM{chatErr: errors.New("upstream down")}
	o, rec, _ := newTestOrchestrator(t, client, emptyCatalog())

	o.HandleUserMessage(context.Background(), "hello")

	msgs := rec.all()
	if len(msgs) < 2 {
		t.Fatalf("too few messages: %v", rec.types())
	}
	status := msgs[len(msgs)-2].Payload.(wire.StatusUpdatePayload)
	if status.Status != wire.StatusIdle || status.Message != "Error processing request" {
		t.Errorf("unexpected error status: %+v", status)
	}
	delta := msgs[len(msgs)-1].Payload.(wire.ChatDeltaPayload)
	if delta.Text != "I encountered an internal error." {
		t.Errorf("unexpected apology: %q", delta.Text)
	}
}

// gateGenerator blocks until cancelled or released.
type gateGenerator struct {
	release chan struct{}
	content json.RawMessage
}

func (g *gateGenerator) Generate(ctx context.Context, _ *domain.SessionState) (json.RawMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.release:
		return g.content, nil
	}
}

func TestScheduleGeneration_PersistsAndEmits(t *testing.T) {
	gen := &gateGenerator{
		release: make(chan struct{}),
		content: json.RawMessage(`{"code":"graph TD","explanation":"flow"}`),
	}
	close(gen.release)

	catalog := emptyCatalog()
	catalog.Register(artifacts.TypeMermaidDiagram, artifacts.Entry{
		Title:     "Process Visualization",
		Generator: gen,
	})
	o, rec, manager := newTestOrchestrator(t, &scriptLLM{}, catalog)

	ctx := context.Background()
	if _, err := manager.GetOrCreate(ctx, "s1"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	o.ScheduleGeneration(ctx, artifacts.TypeMermaidDiagram)
	o.sched.Wait()

	state, err := manager.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if state.CurrentVersion(artifacts.TypeMermaidDiagram) != 1 {
		t.Fatalf("version = %d, want 1", state.CurrentVersion(artifacts.TypeMermaidDiagram))
	}

	types := rec.types()
	updateAt, openAt := -1, -1
	for i, msgType := range types {
		switch msgType {
		case wire.MsgArtifactUpdate:
			updateAt = i
		case wire.MsgArtifactOpen:
			openAt = i
		}
	}
	if updateAt < 0 || openAt < 0 || updateAt > openAt {
		t.Errorf("want ARTIFACT_UPDATE before ARTIFACT_OPEN, got %v", types)
	}
	last := rec.all()[len(types)-1].Payload.(wire.StatusUpdatePayload)
	if last.Status != wire.StatusIdle || last.Message != "Ready" {
		t.Errorf("generator must end idle, got %+v", last)
	}
}

func TestScheduleGeneration_DebounceKeepsOneResult(t *testing.T) {
	gen := &gateGenerator{
		release: make(chan struct{}),
		content: json.RawMessage(`{"code":"graph TD","explanation":"flow"}`),
	}
	catalog := emptyCatalog()
	catalog.Register(artifacts.TypeMermaidDiagram, artifacts.Entry{
		Title:     "Process Visualization",
		Generator: gen,
	})
	o, rec, manager := newTestOrchestrator(t, &scriptLLM{}, catalog)

	ctx := context.Background()
	o.ScheduleGeneration(ctx, artifacts.TypeMermaidDiagram)
	time.Sleep(10 * time.Millisecond)
	o.ScheduleGeneration(ctx, artifacts.TypeMermaidDiagram)
	close(gen.release)
	o.sched.Wait()

	state, err := manager.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := state.CurrentVersion(artifacts.TypeMermaidDiagram); got != 1 {
		t.Fatalf("version = %d, want exactly 1 persisted generation", got)
	}
	if rec.count(wire.MsgArtifactOpen) != 1 {
		t.Errorf("artifact opens = %d, want 1", rec.count(wire.MsgArtifactOpen))
	}
	for _, m := range rec.all() {
		if status, ok := m.Payload.(wire.StatusUpdatePayload); ok {
			if strings.HasPrefix(status.Message, "Failed to generate") {
				t.Errorf("cancelled generation must not report failure: %+v", status)
			}
		}
	}
}

// visualizeThenWaitLLM requests a visualization on the first call; on the
// second it releases the generator gate and waits for the background task
// to persist before answering, so the final save races a completed
// generation.
type visualizeThenWaitLLM struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
	wait    func()
}

func (f *visualizeThenWaitLLM) ChatWithTools(context.Context, []llm.Message, []llm.ToolDefinition) (*llm.Response, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()

	if n == 1 {
		return &llm.Response{ToolCalls: []llm.ToolCall{{
			ID:        "call_1",
			Name:      "trigger_visualization",
			Arguments: json.RawMessage(`{"artifact_types":["mermaid_diagram"]}`),
		}}}, nil
	}
	close(f.release)
	f.wait()
	return &llm.Response{Content: "The diagram is ready."}, nil
}

func (f *visualizeThenWaitLLM) StructuredCompletion(_ context.Context, _ []llm.Message, _ string, _ json.RawMessage, out any) error {
	if report, ok := out.(*compliance.Report); ok {
		*report = compliance.Report{Issues: []compliance.Issue{}, SafetyScore: 100}
	}
	return nil
}

func (f *visualizeThenWaitLLM) TextCompletion(context.Context, []llm.Message) (string, error) {
	return "", errors.New("not implemented")
}

func TestHandleUserMessage_KeepsArtifactPersistedMidTurn(t *testing.T) {
	gen := &gateGenerator{
		release: make(chan struct{}),
		content: json.RawMessage(`{"code":"graph TD","explanation":"flow"}`),
	}
	catalog := emptyCatalog()
	catalog.Register(artifacts.TypeMermaidDiagram, artifacts.Entry{
		Title:     "Process Visualization",
		Generator: gen,
	})
	client := &visualizeThenWaitLLM{release: gen.release}
	o, rec, manager := newTestOrchestrator(t, client, catalog)
	client.wait = o.sched.Wait

	ctx := context.Background()
	seed, err := manager.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	seed.SetScope("Consumer lending portal")
	if err := manager.Save(ctx, seed); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	o.HandleUserMessage(ctx, "Show me the process diagram")

	state, err := manager.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := state.CurrentVersion(artifacts.TypeMermaidDiagram); got != 1 {
		t.Fatalf("version = %d, want 1: the loop's final save must not clobber the generated artifact", got)
	}
	if _, ok := state.CurrentArtifact(artifacts.TypeMermaidDiagram); !ok {
		t.Fatal("generated artifact content lost")
	}

	roles := make([]string, 0, len(state.ChatHistory))
	for _, msg := range state.ChatHistory {
		roles = append(roles, msg.Role)
	}
	want := []string{domain.RoleUser, domain.RoleAssistant, domain.RoleTool, domain.RoleAssistant}
	if len(roles) != len(want) {
		t.Fatalf("history roles = %v, want %v", roles, want)
	}
	if rec.count(wire.MsgChatDelta) != 1 {
		t.Errorf("chat deltas = %d, want 1", rec.count(wire.MsgChatDelta))
	}
}

func TestHandleArtifactEdit_InvalidContentLeavesLedgerUntouched(t *testing.T) {
	client := &scriptLLM{}
	o, rec, manager := newTestOrchestrator(t, client, DefaultCatalog(client, promptctx.NewBuilder()))
	ctx := context.Background()

	o.HandleArtifactEdit(ctx, artifacts.TypeMermaidDiagram, json.RawMessage(`{"wrong":1}`))

	types := rec.types()
	if len(types) != 2 || types[0] != wire.MsgArtifactSyncEvent || types[1] != wire.MsgArtifactSyncEvent {
		t.Fatalf("want processing+error sync events, got %v", types)
	}
	final := rec.all()[1].Payload.(wire.ArtifactSyncEventPayload)
	if final.Status != wire.SyncError {
		t.Errorf("final sync status = %s, want error", final.Status)
	}

	state, err := manager.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if state.CurrentVersion(artifacts.TypeMermaidDiagram) != 0 {
		t.Error("invalid edit must not touch the version log")
	}
}

func TestHandleArtifactEdit_OverwritesInPlaceAndReverseSyncs(t *testing.T) {
	client := &scriptLLM{}
	o, rec, manager := newTestOrchestrator(t, client, DefaultCatalog(client, promptctx.NewBuilder()))
	ctx := context.Background()

	state, err := manager.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	seed, _ := json.Marshal(artifacts.StorySet{Stories: []artifacts.UserStory{
		{ID: "us-1", Title: "Apply", AsA: "Customer"},
	}})
	state.PutArtifactVersion(artifacts.TypeUserStory, seed)
	if err := manager.Save(ctx, state); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	edited := json.RawMessage(`{"stories":[{"id":"us-1","title":"Apply","as_a":"Auditor","i_want_to":"review files","so_that":"risk is controlled"}]}`)
	o.HandleArtifactEdit(ctx, artifacts.TypeUserStory, edited)

	state, err = manager.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := state.CurrentVersion(artifacts.TypeUserStory); got != 1 {
		t.Errorf("edit must overwrite in place, version = %d", got)
	}
	current, _ := state.CurrentArtifact(artifacts.TypeUserStory)
	var set artifacts.StorySet
	if err := json.Unmarshal(current, &set); err != nil {
		t.Fatalf("decode current: %v", err)
	}
	if set.Stories[0].AsA != "Auditor" {
		t.Errorf("edit content not stored: %+v", set.Stories[0])
	}

	found := false
	for _, actor := range state.Actors {
		if actor.RoleName == "Auditor" {
			found = true
		}
	}
	if !found {
		t.Error("edited story role must reverse-sync into actors")
	}

	types := rec.types()
	if types[len(types)-1] != wire.MsgStateUpdate {
		t.Errorf("ledger change must emit a state update, got %v", types)
	}
	synced := false
	for _, m := range rec.all() {
		if payload, ok := m.Payload.(wire.ArtifactSyncEventPayload); ok && payload.Status == wire.SyncSynced {
			synced = true
		}
	}
	if !synced {
		t.Error("missing synced acknowledgment")
	}
}

func TestLoadInitialState_RestoreSequence(t *testing.T) {
	client := &scriptLLM{}
	o, rec, manager := newTestOrchestrator(t, client, DefaultCatalog(client, promptctx.NewBuilder()))
	ctx := context.Background()

	state, err := manager.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	state.AppendMessage(domain.ChatMessage{Role: domain.RoleUser, Content: "hi"})
	state.AppendMessage(domain.ChatMessage{Role: domain.RoleTool, Content: `{"status":"success"}`, ToolCallID: "c1"})
	state.AppendMessage(domain.ChatMessage{Role: domain.RoleAssistant, Content: "hello"})
	diagram, _ := json.Marshal(artifacts.Diagram{Code: "graph TD", Explanation: "flow"})
	state.PutArtifactVersion(artifacts.TypeMermaidDiagram, diagram)
	if err := manager.Save(ctx, state); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	if err := o.LoadInitialState(ctx, false); err != nil {
		t.Fatalf("LoadInitialState: %v", err)
	}

	want := []string{
		wire.MsgSessionEstablished,
		wire.MsgStateUpdate,
		wire.MsgChatHistory,
		wire.MsgArtifactOpen,
		wire.MsgStatusUpdate,
	}
	types := rec.types()
	if len(types) != len(want) {
		t.Fatalf("restore sequence = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("restore[%d] = %s, want %s", i, types[i], want[i])
		}
	}

	history := rec.all()[2].Payload.(wire.ChatHistoryPayload)
	if len(history.Messages) != 2 {
		t.Errorf("tool plumbing must be filtered from restored history: %+v", history.Messages)
	}
	handshake := rec.all()[0].Payload.(wire.SessionEstablishedPayload)
	if handshake.SessionID != "s1" || handshake.IsNew {
		t.Errorf("unexpected handshake: %+v", handshake)
	}
}

func TestHandlePublish_OpensMarkdownDocument(t *testing.T) {
	client := &scriptLLM{}
	o, rec, manager := newTestOrchestrator(t, client, emptyCatalog())
	ctx := context.Background()

	state, err := manager.GetOrCreate(ctx, "s1")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	state.SetScope("Consumer lending portal")
	state.SetGoal(&domain.BusinessGoal{MainGoal: "Cut approval time", SuccessMetrics: []string{"< 24h"}})
	if err := manager.Save(ctx, state); err != nil {
		t.Fatalf("seed save: %v", err)
	}

	o.HandlePublish(ctx, "markdown")

	msgs := rec.all()
	if len(msgs) != 2 || msgs[0].Type != wire.MsgArtifactOpen {
		t.Fatalf("want ARTIFACT_OPEN then status, got %v", rec.types())
	}
	doc := msgs[0].Payload.(wire.Artifact)
	if doc.Type != wire.ContentMarkdown || doc.ID != "brd_document" {
		t.Errorf("unexpected document envelope: %+v", doc)
	}
	if !strings.Contains(doc.Content, "Consumer lending portal") ||
		!strings.Contains(doc.Content, "Cut approval time") {
		t.Error("published document missing ledger facts")
	}
	status := msgs[1].Payload.(wire.StatusUpdatePayload)
	if status.Status != wire.StatusSuccess {
		t.Errorf("publish status = %s, want success", status.Status)
	}
}
