// Package api provides HTTP handlers for workspace, chat page and message CRUD.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ndelia/loom/internal/domain"
	"github.com/ndelia/loom/internal/store"
)

// Handler provides common handler utilities and CRUD endpoints.
type Handler struct {
	repo store.Repository
}

// NewHandler creates a new Handler.
func NewHandler(repo store.Repository) *Handler {
	return &Handler{repo: repo}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// ownedWorkspace loads a workspace and verifies the caller owns it.
// Writes the error response itself and returns nil when the caller should stop.
func (h *Handler) ownedWorkspace(w http.ResponseWriter, ctx context.Context, workspaceID, userID string) *domain.Workspace {
	ws, err := h.repo.GetWorkspace(ctx, workspaceID)
	if err != nil {
		slog.Error("Workspace lookup failed", "workspace_id", workspaceID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return nil
	}
	if ws == nil {
		Error(w, http.StatusNotFound, "workspace not found")
		return nil
	}
	if ws.UserID != userID {
		Error(w, http.StatusForbidden, "forbidden")
		return nil
	}
	return ws
}

// ownedChatPage loads a chat page and verifies the caller owns its workspace.
func (h *Handler) ownedChatPage(w http.ResponseWriter, ctx context.Context, chatPageID, userID string) *domain.ChatPage {
	page, err := h.repo.GetChatPage(ctx, chatPageID)
	if err != nil {
		slog.Error("Chat page lookup failed", "chat_page_id", chatPageID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return nil
	}
	if page == nil {
		Error(w, http.StatusNotFound, "chat page not found")
		return nil
	}
	if h.ownedWorkspace(w, ctx, page.WorkspaceID, userID) == nil {
		return nil
	}
	return page
}
