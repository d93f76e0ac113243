// Package orchestrator runs the per-session agentic loop and coordinates
// background artifact generation, edit reconciliation and session restore.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ashureev/elicit/internal/artifacts"
	"github.com/ashureev/elicit/internal/domain"
	"github.com/ashureev/elicit/internal/llm"
	"github.com/ashureev/elicit/internal/promptctx"
	"github.com/ashureev/elicit/internal/publish"
	"github.com/ashureev/elicit/internal/requirements"
	"github.com/ashureev/elicit/internal/scheduler"
	"github.com/ashureev/elicit/internal/store"
	"github.com/ashureev/elicit/internal/tools"
	"github.com/ashureev/elicit/internal/wire"
)

// DefaultMaxTurns bounds the agentic loop per user message.
const DefaultMaxTurns = 5

// Config wires one orchestrator instance. All fields are required except
// MaxTurns, which defaults to DefaultMaxTurns.
type Config struct {
	SessionID    string
	Emit         func(wire.Message) error
	Manager      *store.Manager
	Client       llm.Client
	Registry     *tools.Registry
	Catalog      *artifacts.Catalog
	Scheduler    *scheduler.Scheduler
	Mapper       *wire.Mapper
	Requirements *requirements.Service
	Builder      *promptctx.Builder
	Publisher    *publish.MarkdownGenerator
	MaxTurns     int
	Logger       *slog.Logger
}

// Orchestrator owns one session's conversational state machine. One
// instance per websocket connection; Emit is the only channel back to
// the UI.
type Orchestrator struct {
	sessionID string
	emit      func(wire.Message) error
	manager   *store.Manager
	client    llm.Client
	registry  *tools.Registry
	catalog   *artifacts.Catalog
	sched     *scheduler.Scheduler
	mapper    *wire.Mapper
	reqs      *requirements.Service
	builder   *promptctx.Builder
	publisher *publish.MarkdownGenerator
	maxTurns  int
	logger    *slog.Logger
}

// New creates an orchestrator from the config.
func New(cfg Config) *Orchestrator {
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Orchestrator{
		sessionID: cfg.SessionID,
		emit:      cfg.Emit,
		manager:   cfg.Manager,
		client:    cfg.Client,
		registry:  cfg.Registry,
		catalog:   cfg.Catalog,
		sched:     cfg.Scheduler,
		mapper:    cfg.Mapper,
		reqs:      cfg.Requirements,
		builder:   cfg.Builder,
		publisher: cfg.Publisher,
		maxTurns:  maxTurns,
		logger:    cfg.Logger.With("session_id", cfg.SessionID),
	}
}

// send emits a message, logging instead of failing when the socket is gone.
func (o *Orchestrator) send(msg wire.Message) {
	if err := o.emit(msg); err != nil {
		o.logger.Warn("emit failed", "type", msg.Type, "error", err)
	}
}

// LoadInitialState replays the session to a freshly connected client:
// identity handshake, ledger snapshot, visible chat history, then the
// current version of every known artifact. Side-effect free on the ledger.
func (o *Orchestrator) LoadInitialState(ctx context.Context, isNew bool) error {
	state, err := o.manager.GetOrCreate(ctx, o.sessionID)
	if err != nil {
		return fmt.Errorf("load initial state: %w", err)
	}

	o.send(o.mapper.SessionEstablished(o.sessionID, isNew))
	o.send(o.mapper.StateUpdate(state))
	o.send(o.mapper.ChatHistory(state))

	types := make([]string, 0, len(state.ArtifactCounters))
	for artifactType := range state.ArtifactCounters {
		types = append(types, artifactType)
	}
	sort.Strings(types)
	for _, artifactType := range types {
		content, ok := state.CurrentArtifact(artifactType)
		if !ok {
			continue
		}
		open, err := o.mapper.ArtifactOpen(artifactType, content)
		if err != nil {
			o.logger.Warn("map stored artifact failed", "type", artifactType, "error", err)
			continue
		}
		o.send(open)
	}

	o.send(o.mapper.StatusUpdate(wire.StatusIdle, "Ready"))
	return nil
}

// HandleUserMessage runs one bounded agentic turn for a user message.
// ctx is the connection context: background generations spawned by tools
// live until the connection closes. Failures never escape; the session
// gets an apology and returns to idle.
func (o *Orchestrator) HandleUserMessage(ctx context.Context, content string) {
	if err := o.runAgentLoop(ctx, content); err != nil {
		o.logger.Error("agent loop failed", "error", err)
		o.send(o.mapper.StatusUpdate(wire.StatusIdle, "Error processing request"))
		o.send(o.mapper.ChatDelta("I encountered an internal error."))
	}
}

func (o *Orchestrator) runAgentLoop(ctx context.Context, content string) error {
	state, err := o.manager.AppendMessages(ctx, o.sessionID,
		domain.ChatMessage{Role: domain.RoleUser, Content: content})
	if err != nil {
		return err
	}

	o.send(o.mapper.StatusUpdate(wire.StatusThinking, "Processing..."))

	defs, err := o.registry.Definitions()
	if err != nil {
		return err
	}

	tc := &tools.Context{
		State:        state,
		Emit:         o.emit,
		Mapper:       o.mapper,
		Manager:      o.manager,
		Requirements: o.reqs,
		Schedule:     func(artifactType string) { o.ScheduleGeneration(ctx, artifactType) },
		Catalog:      o.catalog,
		Logger:       o.logger,
	}

	system := llm.Message{
		Role:    llm.RoleSystem,
		Content: fmt.Sprintf(managerPrompt, o.builder.Build(state)),
	}
	messages := append([]llm.Message{system}, historyToLLM(state.ChatHistory)...)

	for turn := 0; turn < o.maxTurns; turn++ {
		statusMsg := "Processing..."
		if turn > 0 {
			statusMsg = "Reviewing results..."
		}
		o.send(o.mapper.StatusUpdate(wire.StatusThinking, statusMsg))

		resp, err := o.client.ChatWithTools(ctx, messages, defs)
		if err != nil {
			return err
		}

		if len(resp.ToolCalls) > 0 {
			o.send(o.mapper.StatusUpdate(wire.StatusWorking, "Using tools..."))

			assistant := llm.Message{
				Role:      llm.RoleAssistant,
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			}
			messages = append(messages, assistant)
			// Every save re-fetches: the model call above is a suspension
			// point, and a background generation may have bumped the
			// version log while this turn held its snapshot.
			fresh, err := o.manager.AppendMessages(ctx, o.sessionID, toDomainMessage(assistant))
			if err != nil {
				return err
			}
			tc.State = fresh

			// Outputs are appended in call order; a failing tool feeds
			// its error back to the model instead of aborting the turn.
			var outputs []domain.ChatMessage
			for _, call := range resp.ToolCalls {
				output := o.registry.Dispatch(ctx, call.Name, call.Arguments, tc)
				toolMsg := llm.Message{
					Role:       llm.RoleTool,
					Content:    output,
					ToolCallID: call.ID,
				}
				messages = append(messages, toolMsg)
				outputs = append(outputs, toDomainMessage(toolMsg))
			}
			fresh, err = o.manager.AppendMessages(ctx, o.sessionID, outputs...)
			if err != nil {
				return err
			}
			tc.State = fresh
			continue
		}

		if resp.Content != "" {
			if _, err := o.manager.AppendMessages(ctx, o.sessionID,
				domain.ChatMessage{Role: domain.RoleAssistant, Content: resp.Content}); err != nil {
				return err
			}
			o.send(o.mapper.ChatDelta(resp.Content))
			o.send(o.mapper.StatusUpdate(wire.StatusIdle, "Ready"))
			return nil
		}
		// Neither tools nor text: keep looping until the turn cap.
	}

	o.logger.Warn("agent turn cap reached", "max_turns", o.maxTurns)
	o.send(o.mapper.StatusUpdate(wire.StatusIdle, "Ready"))
	return nil
}

// ScheduleGeneration queues a debounced background generation for the
// type. A newer request for the same type supersedes an unfinished one.
func (o *Orchestrator) ScheduleGeneration(ctx context.Context, artifactType string) {
	o.sched.Schedule(ctx, artifactType, func(taskCtx context.Context) {
		o.runGenerator(taskCtx, artifactType)
	})
}

func (o *Orchestrator) runGenerator(ctx context.Context, artifactType string) {
	o.send(o.mapper.StatusUpdate(wire.StatusWorking, fmt.Sprintf("Generating %s...", artifactType)))

	// A superseded run exits without events; everything else resets to idle.
	cancelled := false
	defer func() {
		if !cancelled {
			o.send(o.mapper.StatusUpdate(wire.StatusIdle, "Ready"))
		}
	}()

	entry, registered := o.catalog.Resolve(artifactType)
	if !registered || entry.Generator == nil {
		o.logger.Warn("no generator registered", "type", artifactType)
		return
	}

	// Generation reflects the ledger at execution time, not enqueue time.
	state, err := o.manager.GetOrCreate(ctx, o.sessionID)
	if err != nil {
		o.logger.Error("load state for generation failed", "type", artifactType, "error", err)
		o.send(o.mapper.StatusUpdate(wire.StatusIdle, "Failed to generate "+artifactType))
		return
	}

	content, err := entry.Generator.Generate(ctx, state)
	if err != nil {
		if ctx.Err() != nil {
			cancelled = true
			o.logger.Debug("generation cancelled", "type", artifactType)
			return
		}
		o.logger.Error("generation failed", "type", artifactType, "error", err)
		o.send(o.mapper.StatusUpdate(wire.StatusIdle, "Failed to generate "+artifactType))
		return
	}
	if len(content) == 0 {
		return
	}
	if ctx.Err() != nil {
		// Superseded while the model call was in flight: drop the result.
		cancelled = true
		o.logger.Debug("generation cancelled", "type", artifactType)
		return
	}

	state, err = o.manager.GetOrCreate(ctx, o.sessionID)
	if err != nil {
		o.logger.Error("reload state for persist failed", "type", artifactType, "error", err)
		o.send(o.mapper.StatusUpdate(wire.StatusIdle, "Failed to generate "+artifactType))
		return
	}
	key, version := state.PutArtifactVersion(artifactType, content)
	if err := o.manager.Save(ctx, state); err != nil {
		o.logger.Error("persist artifact failed", "key", key, "error", err)
		o.send(o.mapper.StatusUpdate(wire.StatusIdle, "Failed to generate "+artifactType))
		return
	}

	// Advisory only: findings never block the persisted artifact.
	if entry.Validator != nil {
		if issues := entry.Validator.Validate(content, state); len(issues) > 0 {
			o.send(o.mapper.ValidationWarn(issues, safetyScore(len(issues))))
		}
	}

	update, err := o.mapper.ArtifactUpdate(artifactType, content)
	if err != nil {
		o.logger.Error("map artifact failed", "type", artifactType, "error", err)
		return
	}
	open, err := o.mapper.ArtifactOpen(artifactType, content)
	if err != nil {
		o.logger.Error("map artifact failed", "type", artifactType, "error", err)
		return
	}
	// Update first so an existing tab refreshes, then open to ensure the
	// tab exists and has focus. The wire ID stays the type name.
	o.send(update)
	o.send(open)
	o.send(o.mapper.StatusUpdate(wire.StatusSuccess, "Generated "+artifactType))

	o.logger.Info("generator finished", "key", key, "version", version, "wire_id", artifactType)
}

// HandleArtifactEdit applies a user edit to the artifact's current
// version in place. Invalid content leaves the ledger untouched.
func (o *Orchestrator) HandleArtifactEdit(ctx context.Context, docID string, content json.RawMessage) {
	o.send(o.mapper.SyncEvent(docID, wire.SyncProcessing, "Applying edit..."))

	entry, registered := o.catalog.Resolve(docID)
	if !registered || entry.Edit == nil {
		o.send(o.mapper.SyncEvent(docID, wire.SyncError, fmt.Sprintf("Editing is not supported for '%s'.", docID)))
		return
	}

	parsed, err := entry.Edit.ValidateAndParse(content)
	if err != nil {
		o.send(o.mapper.SyncEvent(docID, wire.SyncError, err.Error()))
		return
	}

	state, err := o.manager.GetOrCreate(ctx, o.sessionID)
	if err != nil {
		o.logger.Error("load state for edit failed", "doc_id", docID, "error", err)
		o.send(o.mapper.SyncEvent(docID, wire.SyncError, "Failed to load session."))
		return
	}

	state.OverwriteCurrentArtifact(docID, parsed)

	ledgerChanged := false
	if syncer, ok := entry.Edit.(artifacts.ReverseSyncer); ok {
		ledgerChanged = syncer.ApplyReverseSync(state, parsed)
	}

	if err := o.manager.Save(ctx, state); err != nil {
		o.logger.Error("persist edit failed", "doc_id", docID, "error", err)
		o.send(o.mapper.SyncEvent(docID, wire.SyncError, "Failed to save edit."))
		return
	}

	o.send(o.mapper.SyncEvent(docID, wire.SyncSynced, "Saved"))
	if ledgerChanged {
		o.send(o.mapper.StateUpdate(state))
	}
}

// HandleVisualSync stores rendered visual content (e.g. SVG markup)
// under the artifact's current version key.
func (o *Orchestrator) HandleVisualSync(ctx context.Context, docID, visualData, format string) {
	state, err := o.manager.GetOrCreate(ctx, o.sessionID)
	if err != nil {
		o.logger.Error("load state for visual sync failed", "doc_id", docID, "error", err)
		return
	}
	key := state.PutVisualArtifact(docID, visualData)
	if err := o.manager.Save(ctx, state); err != nil {
		o.logger.Error("persist visual sync failed", "key", key, "error", err)
		return
	}
	o.logger.Debug("visual artifact synced", "key", key, "format", format, "bytes", len(visualData))
}

// HandlePublish renders the ledger into a BRD document and opens it as
// a markdown artifact.
func (o *Orchestrator) HandlePublish(ctx context.Context, target string) {
	state, err := o.manager.GetOrCreate(ctx, o.sessionID)
	if err != nil {
		o.logger.Error("load state for publish failed", "error", err)
		o.send(o.mapper.Error("Failed to publish the project."))
		return
	}

	doc := o.publisher.Generate(state)
	o.send(wire.Message{Type: wire.MsgArtifactOpen, Payload: wire.Artifact{
		ID:      "brd_document",
		Type:    wire.ContentMarkdown,
		Title:   "Business Requirements Document",
		Content: doc,
	}})
	o.send(o.mapper.StatusUpdate(wire.StatusSuccess, "Document published"))
	o.logger.Info("project published", "target", target)
}

// Close cancels in-flight generations and waits for them to unwind.
func (o *Orchestrator) Close() {
	o.sched.CancelAll()
	o.sched.Wait()
}

func safetyScore(issueCount int) int {
	score := 100 - 10*issueCount
	if score < 0 {
		return 0
	}
	return score
}

func toDomainMessage(m llm.Message) domain.ChatMessage {
	msg := domain.ChatMessage{
		Role:       m.Role,
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, call := range m.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, domain.ToolCall{
			ID:        call.ID,
			Name:      call.Name,
			Arguments: string(call.Arguments),
		})
	}
	return msg
}

func historyToLLM(history []domain.ChatMessage) []llm.Message {
	messages := make([]llm.Message, 0, len(history))
	for _, msg := range history {
		converted := llm.Message{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, llm.ToolCall{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: json.RawMessage(call.Arguments),
			})
		}
		messages = append(messages, converted)
	}
	return messages
}
