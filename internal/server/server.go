// Package server exposes the websocket API: one conversation per
// connection, driven by the per-session orchestrator.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/ashureev/elicit/internal/artifacts"
	"github.com/ashureev/elicit/internal/llm"
	"github.com/ashureev/elicit/internal/middleware"
	"github.com/ashureev/elicit/internal/orchestrator"
	"github.com/ashureev/elicit/internal/promptctx"
	"github.com/ashureev/elicit/internal/publish"
	"github.com/ashureev/elicit/internal/requirements"
	"github.com/ashureev/elicit/internal/scheduler"
	"github.com/ashureev/elicit/internal/store"
	"github.com/ashureev/elicit/internal/tools"
	"github.com/ashureev/elicit/internal/wire"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Config wires the websocket handler.
type Config struct {
	Repo          store.Repository
	Manager       *store.Manager
	Client        llm.Client
	Requirements  *requirements.Service
	Catalog       *artifacts.Catalog
	Registry      *tools.Registry
	Mapper        *wire.Mapper
	Builder       *promptctx.Builder
	Publisher     *publish.MarkdownGenerator
	AllowedOrigin string
	IsDev         bool
	MaxTurns      int
	RateLimiter   *RateLimiter
	Logger        *slog.Logger
}

// Handler owns the HTTP surface. Shared collaborators are connection-safe;
// each websocket connection gets its own orchestrator and scheduler.
type Handler struct {
	cfg Config
}

// NewHandler creates the HTTP handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{cfg: cfg}
}

// Routes builds the chi router with the standard middleware stack.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{h.corsOrigin()}))

	r.Get("/healthz", h.handleHealth)
	r.Get("/ws/{clientID}", h.handleWS)
	return r
}

func (h *Handler) corsOrigin() string {
	if h.cfg.IsDev || h.cfg.AllowedOrigin == "" {
		return "*"
	}
	return h.cfg.AllowedOrigin
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := h.cfg.Repo.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"degraded","db":"down"}`))
		return
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// resolveSession resumes the session named by ?session_id= or mints a new
// one. Returns the ID and whether it is new.
func resolveSession(r *http.Request) (string, bool) {
	sid := r.URL.Query().Get("session_id")
	if sid != "" && sessionIDPattern.MatchString(sid) {
		return sid, false
	}
	return uuid.NewString(), true
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.cfg.IsDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.cfg.AllowedOrigin == "" || h.cfg.AllowedOrigin == "*" {
		return true
	}
	if origin == h.cfg.AllowedOrigin {
		return true
	}
	h.cfg.Logger.Warn("websocket origin rejected", "origin", origin, "allowed", h.cfg.AllowedOrigin)
	return false
}

// wsEmitter serializes concurrent writes from the orchestrator and its
// background generators onto one websocket connection.
type wsEmitter struct {
	mu   sync.Mutex
	conn *websocket.Conn
	ctx  context.Context
}

func (e *wsEmitter) emit(msg wire.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conn.Write(e.ctx, websocket.MessageText, data)
}

func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	sessionID, isNew := resolveSession(r)
	logger := h.cfg.Logger.With("client_id", clientID, "session_id", sessionID)
	logger.Info("websocket connection request", "is_new", isNew, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			logger.Debug("websocket close failed", "error", closeErr)
		}
	}()

	// Connection context bounds everything: the read loop, the agent turn
	// in flight, and background generations.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	emitter := &wsEmitter{conn: conn, ctx: ctx}
	orch := orchestrator.New(orchestrator.Config{
		SessionID:    sessionID,
		Emit:         emitter.emit,
		Manager:      h.cfg.Manager,
		Client:       h.cfg.Client,
		Registry:     h.cfg.Registry,
		Catalog:      h.cfg.Catalog,
		Scheduler:    scheduler.New(logger),
		Mapper:       h.cfg.Mapper,
		Requirements: h.cfg.Requirements,
		Builder:      h.cfg.Builder,
		Publisher:    h.cfg.Publisher,
		MaxTurns:     h.cfg.MaxTurns,
		Logger:       logger,
	})
	defer orch.Close()

	if err := orch.LoadInitialState(ctx, isNew); err != nil {
		logger.Error("session restore failed", "error", err)
		_ = emitter.emit(h.cfg.Mapper.Error("Failed to restore the session."))
		return
	}

	h.readLoop(ctx, conn, emitter, orch, sessionID, logger)
	logger.Info("websocket session ended")
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, emitter *wsEmitter, orch *orchestrator.Orchestrator, sessionID string, logger *slog.Logger) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				logger.Debug("websocket closed by client")
			} else if ctx.Err() == nil {
				logger.Warn("websocket read error", "error", err)
			}
			return
		}

		var inbound wire.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			// Malformed frames are never fatal to the connection.
			logger.Debug("ignoring malformed inbound frame", "error", err)
			continue
		}

		if !h.cfg.RateLimiter.Allow(sessionID) {
			logger.Warn("rate limit exceeded")
			_ = emitter.emit(h.cfg.Mapper.Error("Rate limit exceeded. Please slow down."))
			continue
		}

		h.dispatch(ctx, orch, inbound, logger)
	}
}

func (h *Handler) dispatch(ctx context.Context, orch *orchestrator.Orchestrator, inbound wire.Inbound, logger *slog.Logger) {
	switch inbound.Type {
	case wire.MsgUserMessage:
		var payload wire.UserMessagePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Content == "" {
			logger.Debug("ignoring invalid user message payload")
			return
		}
		orch.HandleUserMessage(ctx, payload.Content)

	case wire.MsgArtifactEdit:
		var payload wire.ArtifactEditPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.ID == "" {
			logger.Debug("ignoring invalid artifact edit payload")
			return
		}
		orch.HandleArtifactEdit(ctx, payload.ID, payload.Content)

	case wire.MsgArtifactVisualSync:
		var payload wire.VisualSyncPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.ID == "" {
			logger.Debug("ignoring invalid visual sync payload")
			return
		}
		orch.HandleVisualSync(ctx, payload.ID, payload.VisualData, payload.Format)

	case wire.MsgProjectPublish:
		var payload wire.ProjectPublishPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			logger.Debug("ignoring invalid publish payload")
			return
		}
		orch.HandlePublish(ctx, payload.Target)

	default:
		logger.Debug("ignoring unknown inbound type", "type", inbound.Type)
	}
}
