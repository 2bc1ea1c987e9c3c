package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ndelia/loom/internal/auth"
	"github.com/ndelia/loom/internal/domain"
)

const maxWorkspaceNameLen = 100

// RegisterWorkspaceRoutes registers workspace and nested chat page routes.
// All routes require authentication.
func (h *Handler) RegisterWorkspaceRoutes(r chi.Router) {
	r.Route("/api/workspaces", func(r chi.Router) {
		r.Get("/", h.HandleListWorkspaces)
		r.Post("/", h.HandleCreateWorkspace)
		r.Get("/{workspaceID}", h.HandleGetWorkspace)
		r.Put("/{workspaceID}", h.HandleUpdateWorkspace)
		r.Delete("/{workspaceID}", h.HandleDeleteWorkspace)
		r.Get("/{workspaceID}/chat-pages", h.HandleListChatPages)
		r.Post("/{workspaceID}/chat-pages", h.HandleCreateChatPage)
	})
}

type workspaceRequest struct {
	Name string `json:"name"`
}

// HandleListWorkspaces handles GET /api/workspaces.
func (h *Handler) HandleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	workspaces, err := h.repo.ListWorkspaces(r.Context(), userID)
	if err != nil {
		slog.Error("Workspace list failed", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if workspaces == nil {
		workspaces = []*domain.Workspace{}
	}
	JSON(w, http.StatusOK, workspaces)
}

// HandleGetWorkspace handles GET /api/workspaces/{workspaceID}.
func (h *Handler) HandleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	ws := h.ownedWorkspace(w, r.Context(), chi.URLParam(r, "workspaceID"), userID)
	if ws == nil {
		return
	}
	JSON(w, http.StatusOK, ws)
}

// HandleCreateWorkspace handles POST /api/workspaces.
func (h *Handler) HandleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())

	var req workspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		Error(w, http.StatusBadRequest, "workspace name is required")
		return
	}
	if len(name) > maxWorkspaceNameLen {
		Error(w, http.StatusBadRequest, "workspace name must be less than 100 characters")
		return
	}

	now := time.Now()
	ws := &domain.Workspace{
		ID:        uuid.NewString(),
		Name:      name,
		UserID:    userID,
		ChatPages: []domain.ChatPage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.repo.CreateWorkspace(r.Context(), ws); err != nil {
		slog.Error("Workspace create failed", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	slog.Info("Workspace created", "workspace_id", ws.ID, "user_id", userID)
	JSON(w, http.StatusCreated, ws)
}

// HandleUpdateWorkspace handles PUT /api/workspaces/{workspaceID}.
func (h *Handler) HandleUpdateWorkspace(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	ws := h.ownedWorkspace(w, r.Context(), chi.URLParam(r, "workspaceID"), userID)
	if ws == nil {
		return
	}

	var req workspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		Error(w, http.StatusBadRequest, "workspace name is required")
		return
	}
	if len(name) > maxWorkspaceNameLen {
		Error(w, http.StatusBadRequest, "workspace name must be less than 100 characters")
		return
	}

	if err := h.repo.RenameWorkspace(r.Context(), ws.ID, name); err != nil {
		slog.Error("Workspace rename failed", "workspace_id", ws.ID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	updated := h.ownedWorkspace(w, r.Context(), ws.ID, userID)
	if updated == nil {
		return
	}
	JSON(w, http.StatusOK, updated)
}

// HandleDeleteWorkspace handles DELETE /api/workspaces/{workspaceID}.
func (h *Handler) HandleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	ws := h.ownedWorkspace(w, r.Context(), chi.URLParam(r, "workspaceID"), userID)
	if ws == nil {
		return
	}

	if err := h.repo.DeleteWorkspace(r.Context(), ws.ID); err != nil {
		slog.Error("Workspace delete failed", "workspace_id", ws.ID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	slog.Info("Workspace deleted", "workspace_id", ws.ID, "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}
