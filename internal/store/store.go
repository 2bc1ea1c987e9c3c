// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ndelia/loom/internal/domain"
)

// Repository defines the interface for persisting users, workspaces, chat
// pages and messages. Lookups return (nil, nil) when the record is absent.
type Repository interface {
	// CreateUser inserts a new user record.
	CreateUser(ctx context.Context, user *domain.User) error

	// GetUserByEmail retrieves a user by their email address.
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// CreateWorkspace inserts a new workspace.
	CreateWorkspace(ctx context.Context, ws *domain.Workspace) error

	// GetWorkspace retrieves a workspace with its chat pages, newest first.
	GetWorkspace(ctx context.Context, workspaceID string) (*domain.Workspace, error)

	// ListWorkspaces returns a user's workspaces ordered by updated_at
	// descending, each with its chat pages.
	ListWorkspaces(ctx context.Context, userID string) ([]*domain.Workspace, error)

	// RenameWorkspace updates a workspace's name.
	RenameWorkspace(ctx context.Context, workspaceID, name string) error

	// DeleteWorkspace removes a workspace and cascades to its chat pages
	// and their messages.
	DeleteWorkspace(ctx context.Context, workspaceID string) error

	// CreateChatPage inserts a new chat page.
	CreateChatPage(ctx context.Context, page *domain.ChatPage) error

	// GetChatPage retrieves a chat page by ID.
	GetChatPage(ctx context.Context, chatPageID string) (*domain.ChatPage, error)

	// ListChatPages returns a workspace's chat pages ordered by updated_at
	// descending.
	ListChatPages(ctx context.Context, workspaceID string) ([]*domain.ChatPage, error)

	// RenameChatPage updates a chat page's title.
	RenameChatPage(ctx context.Context, chatPageID, title string) error

	// DeleteChatPage removes a chat page and cascades to its messages.
	DeleteChatPage(ctx context.Context, chatPageID string) error

	// TouchChatPage refreshes the chat page's updated_at marker and its
	// workspace's, so recently active conversations sort first.
	TouchChatPage(ctx context.Context, chatPageID string) error

	// AppendMessage inserts a new message. Messages are never mutated.
	AppendMessage(ctx context.Context, msg *domain.Message) error

	// GetMessage retrieves a message by ID.
	GetMessage(ctx context.Context, messageID string) (*domain.Message, error)

	// ListMessages returns a chat page's messages ordered by created_at
	// ascending.
	ListMessages(ctx context.Context, chatPageID string) ([]*domain.Message, error)

	// DeleteMessage removes a single message.
	DeleteMessage(ctx context.Context, messageID string) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
