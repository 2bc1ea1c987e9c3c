package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ndelia/loom/internal/auth"
	"github.com/ndelia/loom/internal/domain"
)

type messageRequest struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// HandleListMessages handles GET /api/chat-pages/{chatPageID}/messages.
func (h *Handler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	page := h.ownedChatPage(w, r.Context(), chi.URLParam(r, "chatPageID"), userID)
	if page == nil {
		return
	}

	messages, err := h.repo.ListMessages(r.Context(), page.ID)
	if err != nil {
		slog.Error("Message list failed", "chat_page_id", page.ID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if messages == nil {
		messages = []*domain.Message{}
	}
	JSON(w, http.StatusOK, messages)
}

// HandleCreateMessage handles POST /api/chat-pages/{chatPageID}/messages.
func (h *Handler) HandleCreateMessage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	page := h.ownedChatPage(w, r.Context(), chi.URLParam(r, "chatPageID"), userID)
	if page == nil {
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Content == "" {
		Error(w, http.StatusBadRequest, "message content is required")
		return
	}
	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAssistant {
		Error(w, http.StatusBadRequest, "invalid message role")
		return
	}

	msg := &domain.Message{
		ID:         uuid.NewString(),
		ChatPageID: page.ID,
		Role:       role,
		Content:    req.Content,
		CreatedAt:  time.Now(),
	}
	if err := h.repo.AppendMessage(r.Context(), msg); err != nil {
		slog.Error("Message append failed", "chat_page_id", page.ID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if err := h.repo.TouchChatPage(r.Context(), page.ID); err != nil {
		slog.Warn("Chat page touch failed", "chat_page_id", page.ID, "error", err)
	}

	JSON(w, http.StatusCreated, msg)
}

// HandleDeleteMessage handles DELETE /api/chat-pages/{chatPageID}/messages/{messageID}.
func (h *Handler) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserIDFromContext(r.Context())
	page := h.ownedChatPage(w, r.Context(), chi.URLParam(r, "chatPageID"), userID)
	if page == nil {
		return
	}

	messageID := chi.URLParam(r, "messageID")
	msg, err := h.repo.GetMessage(r.Context(), messageID)
	if err != nil {
		slog.Error("Message lookup failed", "message_id", messageID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if msg == nil || msg.ChatPageID != page.ID {
		Error(w, http.StatusNotFound, "message not found")
		return
	}

	if err := h.repo.DeleteMessage(r.Context(), messageID); err != nil {
		slog.Error("Message delete failed", "message_id", messageID, "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
