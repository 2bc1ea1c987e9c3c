package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ndelia/loom/internal/domain"
	"github.com/ndelia/loom/internal/store"
)

// Reconciler writes the durable outcome of an agent run back to storage.
// Both of its steps are idempotent per session, so a deferred Finalize is
// safe even when the run already completed normally.
type Reconciler struct {
	repo store.Repository
}

// NewReconciler builds a reconciler over the given repository.
func NewReconciler(repo store.Repository) *Reconciler {
	return &Reconciler{repo: repo}
}

// PersistUserTurn stores the newest user turn before the run starts, so
// the user's message survives even if the stream is cut short. Only the
// final turn is considered; earlier turns are history already on record.
func (r *Reconciler) PersistUserTurn(ctx context.Context, s *Session, turns []Turn) (*domain.Message, error) {
	if s.userPersisted || len(turns) == 0 {
		return nil, nil
	}
	last := turns[len(turns)-1]
	if last.Role != domain.RoleUser {
		return nil, nil
	}
	msg := &domain.Message{
		ID:         uuid.NewString(),
		ChatPageID: s.chatPageID,
		Role:       domain.RoleUser,
		Content:    last.Content,
		CreatedAt:  time.Now().UTC(),
	}
	if err := r.repo.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("persisting user turn: %w", err)
	}
	s.userPersisted = true
	return msg, nil
}

// Finalize records the assistant's reply once the run has ended, however
// it ended. The assistant message is stored only when the run completed
// and the accumulated text is non-empty; cancelled and failed runs write
// no assistant turn, so partial output from a cut stream never lands in
// history. Tool invocations ride along in the message metadata. The chat
// page's updated marker is refreshed exactly once if anything was
// persisted. Subsequent calls on the same session are no-ops.
func (r *Reconciler) Finalize(ctx context.Context, s *Session) (*domain.Message, error) {
	if s.finalized {
		return nil, nil
	}
	s.finalized = true

	var assistant *domain.Message
	if text := s.AssistantText(); s.completed && strings.TrimSpace(text) != "" {
		var metadata map[string]any
		if invocations := s.Invocations(); len(invocations) > 0 {
			metadata = map[string]any{"toolCalls": invocations}
		}
		assistant = &domain.Message{
			ID:         uuid.NewString(),
			ChatPageID: s.chatPageID,
			Role:       domain.RoleAssistant,
			Content:    text,
			Metadata:   metadata,
			CreatedAt:  time.Now().UTC(),
		}
		if err := r.repo.AppendMessage(ctx, assistant); err != nil {
			return nil, fmt.Errorf("persisting assistant turn: %w", err)
		}
	}

	if s.userPersisted || assistant != nil {
		if err := r.repo.TouchChatPage(ctx, s.chatPageID); err != nil {
			slog.Warn("Failed to refresh chat page timestamp",
				"chat_page_id", s.chatPageID, "error", err)
		}
	}
	return assistant, nil
}
