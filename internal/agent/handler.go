package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/ndelia/loom/internal/api"
	"github.com/ndelia/loom/internal/auth"
	"github.com/ndelia/loom/internal/config"
	"github.com/ndelia/loom/internal/domain"
	"github.com/ndelia/loom/internal/store"
	"github.com/ndelia/loom/internal/tools"
)

// Handler exposes the agent over HTTP: an SSE stream, a whole-result
// completion endpoint, and a WebSocket variant of the stream.
type Handler struct {
	repo          store.Repository
	loop          *Loop
	reconciler    *Reconciler
	rateLimiter   *RateLimiter
	maxBodySize   int64
	allowedOrigin string
	isDev         bool
}

// NewHandler wires the reasoning loop, reconciler, and rate limiter.
func NewHandler(repo store.Repository, model ModelClient, registry *tools.Registry, cfg *config.Config) *Handler {
	return &Handler{
		repo:          repo,
		loop:          NewLoop(model, registry, cfg.Agent.MaxIterations),
		reconciler:    NewReconciler(repo),
		rateLimiter:   NewRateLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.WindowDuration),
		maxBodySize:   cfg.MaxRequestBodySize,
		allowedOrigin: cfg.FrontendURL,
		isDev:         cfg.IsDevelopment(),
	}
}

// Close stops background goroutines owned by the handler.
func (h *Handler) Close() {
	h.rateLimiter.Close()
}

// RegisterRoutes mounts the agent endpoints. The router is expected to
// already carry the auth middleware.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/chat/{chatPageID}", func(r chi.Router) {
		r.Post("/stream", h.HandleStream)
		r.Post("/complete", h.HandleComplete)
		r.Get("/ws", h.HandleWS)
	})
}

// HandleStream runs the agent and streams events to the client as SSE.
// Validation failures surface as plain JSON errors before the stream is
// opened; once streaming has begun, failures arrive as error events.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	session, turns, ok := h.prepareRun(w, r)
	if !ok {
		return
	}
	if _, err := h.reconciler.PersistUserTurn(r.Context(), session, turns); err != nil {
		slog.Error("Failed to persist user turn", "chat_page_id", session.ChatPageID(), "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	sse := newSSEWriter(w)
	if sse == nil {
		api.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Finalize runs on a detached context so an aborted client connection
	// cannot prevent the outcome from being recorded.
	defer func() {
		if _, err := h.reconciler.Finalize(context.WithoutCancel(r.Context()), session); err != nil {
			slog.Error("Failed to finalize agent run", "chat_page_id", session.ChatPageID(), "error", err)
		}
	}()

	h.drain(r.Context(), session, sse, true)
}

// HandleComplete runs the agent to completion without streaming and
// responds with the persisted assistant message.
func (h *Handler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	session, turns, ok := h.prepareRun(w, r)
	if !ok {
		return
	}
	if _, err := h.reconciler.PersistUserTurn(r.Context(), session, turns); err != nil {
		slog.Error("Failed to persist user turn", "chat_page_id", session.ChatPageID(), "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to save message")
		return
	}

	var failure *ErrorData
	for ev := range h.loop.Run(r.Context(), session, false) {
		if ev.Type == EventError {
			if data, isErr := ev.Data.(ErrorData); isErr {
				failure = &data
			}
		}
	}

	assistant, err := h.reconciler.Finalize(context.WithoutCancel(r.Context()), session)
	if err != nil {
		slog.Error("Failed to finalize agent run", "chat_page_id", session.ChatPageID(), "error", err)
		api.Error(w, http.StatusInternalServerError, "failed to save response")
		return
	}
	if failure != nil {
		api.Error(w, http.StatusBadGateway, failure.Message)
		return
	}
	if assistant == nil {
		api.Error(w, http.StatusBadGateway, "no response from agent")
		return
	}
	api.JSON(w, http.StatusOK, map[string]any{"message": assistant})
}

// HandleWS is the WebSocket variant of the event stream. The client sends
// one text message holding the JSON turn array; events come back as text
// frames with the same payloads as the SSE stream.
func (h *Handler) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	page := h.ownedChatPage(w, r.Context(), chi.URLParam(r, "chatPageID"), userID)
	if page == nil {
		return
	}
	if !h.rateLimiter.Allow(userID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "run ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ws.SetReadLimit(h.maxBodySize)
	_, payload, err := ws.Read(ctx)
	if err != nil {
		slog.Debug("WebSocket closed before turns arrived", "error", err, "user_id", userID)
		return
	}
	var turns []Turn
	if err := json.Unmarshal(payload, &turns); err != nil {
		h.writeWSError(ctx, ws, "invalid request body")
		return
	}
	msgs, err := NormalizeTurns(turns)
	if err != nil {
		h.writeWSError(ctx, ws, err.Error())
		return
	}

	session := NewSession(page.ID, msgs)
	if _, err := h.reconciler.PersistUserTurn(ctx, session, turns); err != nil {
		slog.Error("Failed to persist user turn", "chat_page_id", session.ChatPageID(), "error", err)
		h.writeWSError(ctx, ws, "failed to save message")
		return
	}
	defer func() {
		if _, err := h.reconciler.Finalize(context.WithoutCancel(ctx), session); err != nil {
			slog.Error("Failed to finalize agent run", "chat_page_id", session.ChatPageID(), "error", err)
		}
	}()

	h.drain(ctx, session, &wsWriter{conn: ws, ctx: ctx}, true)
}

// drain runs the loop and forwards every event to the writer. A write
// failure means the client is gone; breaking out of the range cancels the
// run so no further model or tool calls are made.
func (h *Handler) drain(ctx context.Context, s *Session, out EventWriter, stream bool) {
	for ev := range h.loop.Run(ctx, s, stream) {
		if err := out.WriteEvent(ev); err != nil {
			slog.Debug("Client disconnected during agent run",
				"chat_page_id", s.ChatPageID(), "error", err)
			break
		}
	}
}

// prepareRun performs the shared request checks for the POST endpoints:
// identity, rate limit, chat page ownership, body decoding, and turn
// normalization. On failure it writes the response and returns ok=false.
func (h *Handler) prepareRun(w http.ResponseWriter, r *http.Request) (*Session, []Turn, bool) {
	userID := auth.UserIDFromContext(r.Context())
	if userID == "" {
		api.Error(w, http.StatusUnauthorized, "unauthorized")
		return nil, nil, false
	}
	if !h.rateLimiter.Allow(userID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return nil, nil, false
	}
	page := h.ownedChatPage(w, r.Context(), chi.URLParam(r, "chatPageID"), userID)
	if page == nil {
		return nil, nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var turns []Turn
	if err := json.NewDecoder(r.Body).Decode(&turns); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, nil, false
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return nil, nil, false
	}
	msgs, err := NormalizeTurns(turns)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return nil, nil, false
	}
	return NewSession(page.ID, msgs), turns, true
}

// ownedChatPage loads the chat page and verifies the caller owns its
// workspace, writing the error response itself when the check fails.
func (h *Handler) ownedChatPage(w http.ResponseWriter, ctx context.Context, chatPageID, userID string) *domain.ChatPage {
	page, err := h.repo.GetChatPage(ctx, chatPageID)
	if err != nil {
		slog.Error("Failed to load chat page", "chat_page_id", chatPageID, "error", err)
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return nil
	}
	if page == nil {
		api.Error(w, http.StatusNotFound, "chat page not found")
		return nil
	}
	workspace, err := h.repo.GetWorkspace(ctx, page.WorkspaceID)
	if err != nil {
		slog.Error("Failed to load workspace", "workspace_id", page.WorkspaceID, "error", err)
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return nil
	}
	if workspace == nil {
		api.Error(w, http.StatusNotFound, "workspace not found")
		return nil
	}
	if workspace.UserID != userID {
		api.Error(w, http.StatusForbidden, "forbidden")
		return nil
	}
	return page
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	return origin == h.allowedOrigin
}

func (h *Handler) writeWSError(ctx context.Context, ws *websocket.Conn, message string) {
	if err := (&wsWriter{conn: ws, ctx: ctx}).WriteEvent(errorEvent(message, "")); err != nil {
		slog.Debug("Failed to send WebSocket error", "error", err)
	}
}
