package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ndelia/loom/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS workspaces (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_workspaces_user ON workspaces(user_id, updated_at);

	CREATE TABLE IF NOT EXISTS chat_pages (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_pages_workspace ON chat_pages(workspace_id, updated_at);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		chat_page_id TEXT NOT NULL REFERENCES chat_pages(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata_json TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_chat_page ON messages(chat_page_id, created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateUser inserts a new user record.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	var name interface{}
	if user.Name != "" {
		name = user.Name
	}

	_, err := s.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, name,
		user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	var name sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&user.ID, &user.Email, &user.PasswordHash, &name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.Name = name.String
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)
	return &user, nil
}

// GetUserByEmail retrieves a user by their email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT id, email, password_hash, name, created_at, updated_at FROM users WHERE email = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

// GetUser retrieves a user by ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT id, email, password_hash, name, created_at, updated_at FROM users WHERE id = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, userID))
}

// CreateWorkspace inserts a new workspace.
func (s *SQLiteStore) CreateWorkspace(ctx context.Context, ws *domain.Workspace) error {
	query := `
		INSERT INTO workspaces (id, name, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		ws.ID, ws.Name, ws.UserID, ws.CreatedAt.Unix(), ws.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

// GetWorkspace retrieves a workspace with its chat pages, newest first.
func (s *SQLiteStore) GetWorkspace(ctx context.Context, workspaceID string) (*domain.Workspace, error) {
	query := `SELECT id, name, user_id, created_at, updated_at FROM workspaces WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, workspaceID)

	var ws domain.Workspace
	var createdAt, updatedAt int64

	err := row.Scan(&ws.ID, &ws.Name, &ws.UserID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan workspace row: %w", err)
	}

	ws.CreatedAt = time.Unix(createdAt, 0)
	ws.UpdatedAt = time.Unix(updatedAt, 0)

	pages, err := s.listChatPages(ctx, ws.ID)
	if err != nil {
		return nil, err
	}
	ws.ChatPages = pages

	return &ws, nil
}

// ListWorkspaces returns a user's workspaces ordered by updated_at descending.
func (s *SQLiteStore) ListWorkspaces(ctx context.Context, userID string) ([]*domain.Workspace, error) {
	query := `
		SELECT id, name, user_id, created_at, updated_at
		FROM workspaces WHERE user_id = ? ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []*domain.Workspace
	for rows.Next() {
		var ws domain.Workspace
		var createdAt, updatedAt int64
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.UserID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan workspace row: %w", err)
		}
		ws.CreatedAt = time.Unix(createdAt, 0)
		ws.UpdatedAt = time.Unix(updatedAt, 0)
		workspaces = append(workspaces, &ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}

	for _, ws := range workspaces {
		pages, err := s.listChatPages(ctx, ws.ID)
		if err != nil {
			return nil, err
		}
		ws.ChatPages = pages
	}

	return workspaces, nil
}

// RenameWorkspace updates a workspace's name.
func (s *SQLiteStore) RenameWorkspace(ctx context.Context, workspaceID, name string) error {
	query := `UPDATE workspaces SET name = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, name, time.Now().Unix(), workspaceID)
	if err != nil {
		return fmt.Errorf("rename workspace: %w", err)
	}
	return requireRow(result, "workspace")
}

// DeleteWorkspace removes a workspace; chat pages and messages cascade.
func (s *SQLiteStore) DeleteWorkspace(ctx context.Context, workspaceID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE id = ?`, workspaceID)
	if err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return requireRow(result, "workspace")
}

// CreateChatPage inserts a new chat page.
func (s *SQLiteStore) CreateChatPage(ctx context.Context, page *domain.ChatPage) error {
	query := `
		INSERT INTO chat_pages (id, title, workspace_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		page.ID, page.Title, page.WorkspaceID, page.CreatedAt.Unix(), page.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert chat page: %w", err)
	}
	return nil
}

// GetChatPage retrieves a chat page by ID.
func (s *SQLiteStore) GetChatPage(ctx context.Context, chatPageID string) (*domain.ChatPage, error) {
	query := `SELECT id, title, workspace_id, created_at, updated_at FROM chat_pages WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, chatPageID)

	var page domain.ChatPage
	var createdAt, updatedAt int64

	err := row.Scan(&page.ID, &page.Title, &page.WorkspaceID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat page row: %w", err)
	}

	page.CreatedAt = time.Unix(createdAt, 0)
	page.UpdatedAt = time.Unix(updatedAt, 0)
	return &page, nil
}

// ListChatPages returns a workspace's chat pages ordered by updated_at descending.
func (s *SQLiteStore) ListChatPages(ctx context.Context, workspaceID string) ([]*domain.ChatPage, error) {
	pages, err := s.listChatPages(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ChatPage, len(pages))
	for i := range pages {
		out[i] = &pages[i]
	}
	return out, nil
}

func (s *SQLiteStore) listChatPages(ctx context.Context, workspaceID string) ([]domain.ChatPage, error) {
	query := `
		SELECT id, title, workspace_id, created_at, updated_at
		FROM chat_pages WHERE workspace_id = ? ORDER BY updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("query chat pages: %w", err)
	}
	defer rows.Close()

	pages := []domain.ChatPage{}
	for rows.Next() {
		var page domain.ChatPage
		var createdAt, updatedAt int64
		if err := rows.Scan(&page.ID, &page.Title, &page.WorkspaceID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan chat page row: %w", err)
		}
		page.CreatedAt = time.Unix(createdAt, 0)
		page.UpdatedAt = time.Unix(updatedAt, 0)
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat pages: %w", err)
	}
	return pages, nil
}

// RenameChatPage updates a chat page's title.
func (s *SQLiteStore) RenameChatPage(ctx context.Context, chatPageID, title string) error {
	query := `UPDATE chat_pages SET title = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, title, time.Now().Unix(), chatPageID)
	if err != nil {
		return fmt.Errorf("rename chat page: %w", err)
	}
	return requireRow(result, "chat page")
}

// DeleteChatPage removes a chat page; messages cascade.
func (s *SQLiteStore) DeleteChatPage(ctx context.Context, chatPageID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chat_pages WHERE id = ?`, chatPageID)
	if err != nil {
		return fmt.Errorf("delete chat page: %w", err)
	}
	return requireRow(result, "chat page")
}

// TouchChatPage refreshes updated_at on the chat page and its workspace.
func (s *SQLiteStore) TouchChatPage(ctx context.Context, chatPageID string) error {
	now := time.Now().Unix()

	result, err := s.db.ExecContext(ctx,
		`UPDATE chat_pages SET updated_at = ? WHERE id = ?`, now, chatPageID)
	if err != nil {
		return fmt.Errorf("touch chat page: %w", err)
	}
	if err := requireRow(result, "chat page"); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE workspaces SET updated_at = ?
		WHERE id = (SELECT workspace_id FROM chat_pages WHERE id = ?)`, now, chatPageID)
	if err != nil {
		return fmt.Errorf("touch workspace: %w", err)
	}
	return nil
}

// AppendMessage inserts a new message.
// Retries on SQLite concurrency errors since message writes race with the
// streaming handler's reconciliation.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	var metadata interface{}
	if len(msg.Metadata) > 0 {
		raw, err := json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("marshal message metadata: %w", err)
		}
		metadata = string(raw)
	}

	query := `
		INSERT INTO messages (id, chat_page_id, role, content, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	var err error
	delay := 100 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		_, err = s.db.ExecContext(ctx, query,
			msg.ID, msg.ChatPageID, msg.Role, msg.Content, metadata, msg.CreatedAt.Unix(),
		)
		if err == nil {
			return nil
		}
		if !isSQLiteConflict(err) {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	return fmt.Errorf("insert message: %w", err)
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	query := `SELECT id, chat_page_id, role, content, metadata_json, created_at FROM messages WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, messageID)

	msg, err := scanMessage(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan message row: %w", err)
	}
	return msg, nil
}

// ListMessages returns a chat page's messages ordered by created_at ascending.
func (s *SQLiteStore) ListMessages(ctx context.Context, chatPageID string) ([]*domain.Message, error) {
	query := `
		SELECT id, chat_page_id, role, content, metadata_json, created_at
		FROM messages WHERE chat_page_id = ? ORDER BY created_at ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, chatPageID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*domain.Message
	for rows.Next() {
		msg, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

func scanMessage(scan func(dest ...any) error) (*domain.Message, error) {
	var msg domain.Message
	var metadata sql.NullString
	var createdAt int64

	if err := scan(&msg.ID, &msg.ChatPageID, &msg.Role, &msg.Content, &metadata, &createdAt); err != nil {
		return nil, err
	}

	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &msg.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal message metadata: %w", err)
		}
	}
	msg.CreatedAt = time.Unix(createdAt, 0)
	return &msg, nil
}

// DeleteMessage removes a single message.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, messageID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return requireRow(result, "message")
}

// ErrNotFound is returned by mutations that matched no row.
var ErrNotFound = sql.ErrNoRows

func requireRow(result sql.Result, entity string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found: %w", entity, ErrNotFound)
	}
	return nil
}
