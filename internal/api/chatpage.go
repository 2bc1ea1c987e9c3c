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

const (
	maxChatPageTitleLen  = 200
	defaultChatPageTitle = "New Chat"
)

// RegisterChatPageRoutes registers chat page routes addressed by page ID.
// All routes require authentication.
func (h *Handler) RegisterChatPageRoutes(r chi.Router) {
	r.Route("/api/chat-pages/{chatPageID}", func(r chi.Router) {
		r.Get("/", h.HandleGetChatPage)
		r.Put("/", h.HandleUpdateChatPage)
		r.Delete("/", h.HandleDeleteChatPage)
		r.Get("/messages", h.HandleListMessages)
		r.Post("/messages", h.HandleCreateMessage)
		r.Delete("/messages/{messageID}", h.HandleDeleteMessage)
	})
}

type chatPageRequest struct {
	Title string `json:"title"`
}

// HandleListChatPages handles GET /api/workspaces/{workspaceID}/chat-pages.
func (h *Handler) HandleListChatPages(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	ws := h.ownedWorkspace(w, r.Context(), chi.URLParam(r, "workspaceID"), userID)
	if ws == nil {
		return
	}

	pages, err := h.repo.ListChatPages(r.Context(), ws.ID)
	if err != nil {
		slog.Error("Chat page list failed", "workspace_id", ws.ID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if pages == nil {
		pages = []*domain.ChatPage{}
	}
	JSON(w, http.StatusOK, pages)
}

// HandleCreateChatPage handles POST /api/workspaces/{workspaceID}/chat-pages.
func (h *Handler) HandleCreateChatPage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	ws := h.ownedWorkspace(w, r.Context(), chi.URLParam(r, "workspaceID"), userID)
	if ws == nil {
		return
	}

	// Title is optional on create; an absent body means a default title.
	var req chatPageRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			Error(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultChatPageTitle
	}
	if len(title) > maxChatPageTitleLen {
		Error(w, http.StatusBadRequest, "title must be less than 200 characters")
		return
	}

	now := time.Now()
	page := &domain.ChatPage{
		ID:          uuid.NewString(),
		Title:       title,
		WorkspaceID: ws.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.repo.CreateChatPage(r.Context(), page); err != nil {
		slog.Error("Chat page create failed", "workspace_id", ws.ID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	slog.Info("Chat page created", "chat_page_id", page.ID, "workspace_id", ws.ID)
	JSON(w, http.StatusCreated, page)
}

// HandleGetChatPage handles GET /api/chat-pages/{chatPageID}.
func (h *Handler) HandleGetChatPage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	page := h.ownedChatPage(w, r.Context(), chi.URLParam(r, "chatPageID"), userID)
	if page == nil {
		return
	}
	JSON(w, http.StatusOK, page)
}

// HandleUpdateChatPage handles PUT /api/chat-pages/{chatPageID}.
func (h *Handler) HandleUpdateChatPage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	page := h.ownedChatPage(w, r.Context(), chi.URLParam(r, "chatPageID"), userID)
	if page == nil {
		return
	}

	var req chatPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if len(title) > maxChatPageTitleLen {
		Error(w, http.StatusBadRequest, "title must be less than 200 characters")
		return
	}

	if err := h.repo.RenameChatPage(r.Context(), page.ID, title); err != nil {
		slog.Error("Chat page rename failed", "chat_page_id", page.ID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	page.Title = title
	JSON(w, http.StatusOK, page)
}

// HandleDeleteChatPage handles DELETE /api/chat-pages/{chatPageID}.
func (h *Handler) HandleDeleteChatPage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	page := h.ownedChatPage(w, r.Context(), chi.URLParam(r, "chatPageID"), userID)
	if page == nil {
		return
	}

	if err := h.repo.DeleteChatPage(r.Context(), page.ID); err != nil {
		slog.Error("Chat page delete failed", "chat_page_id", page.ID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	slog.Info("Chat page deleted", "chat_page_id", page.ID)
	w.WriteHeader(http.StatusNoContent)
}
