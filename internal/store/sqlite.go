package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// ErrNotFound is returned when a row does not exist or is not visible to the
// requesting user. Callers must not distinguish the two cases.
var ErrNotFound = errors.New("not found")

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        username TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS chats (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        title TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        chat_id TEXT NOT NULL,
        sender TEXT NOT NULL CHECK (sender IN ('user', 'assistant')),
        content TEXT NOT NULL,
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (chat_id) REFERENCES chats (id)
    );

    CREATE TABLE IF NOT EXISTS passage_embeddings (
        position INTEGER PRIMARY KEY, -- index into the passage corpus
        embedding TEXT NOT NULL       -- JSON-encoded []float32
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) GetUserByUsername(username string) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(username, passwordHash string) (*User, error) {
	res, err := s.db.Exec("INSERT INTO users (username, password_hash) VALUES (?, ?)", username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.getUserByID(id)
}

func (s *SQLiteStore) getUserByID(id int64) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, username, password_hash, created_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// Chat methods

// CreateChatWithExchange inserts the chat row and the first user/assistant turn
// pair in a single transaction, so a new chat never exists without its opening
// exchange.
func (s *SQLiteStore) CreateChatWithExchange(userID int64, title, userText, assistantText string) (*Chat, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	chatID := uuid.NewString()
	now := time.Now()
	if _, err := tx.Exec("INSERT INTO chats (id, user_id, title, created_at) VALUES (?, ?, ?, ?)",
		chatID, userID, title, now); err != nil {
		return nil, fmt.Errorf("failed to insert chat: %w", err)
	}

	if err := insertExchange(tx, chatID, userText, assistantText); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit chat creation: %w", err)
	}
	return &Chat{ID: chatID, UserID: userID, Title: title, CreatedAt: now}, nil
}

// AppendExchange writes a user turn and the matching assistant turn atomically.
func (s *SQLiteStore) AppendExchange(chatID, userText, assistantText string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertExchange(tx, chatID, userText, assistantText); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit exchange: %w", err)
	}
	return nil
}

func insertExchange(tx *sql.Tx, chatID, userText, assistantText string) error {
	stmt, err := tx.Prepare("INSERT INTO messages (id, chat_id, sender, content, timestamp) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	if _, err := stmt.Exec(uuid.NewString(), chatID, SenderUser, userText, time.Now()); err != nil {
		return fmt.Errorf("failed to insert user message: %w", err)
	}
	if _, err := stmt.Exec(uuid.NewString(), chatID, SenderAssistant, assistantText, time.Now()); err != nil {
		return fmt.Errorf("failed to insert assistant message: %w", err)
	}
	return nil
}

// GetChatByID returns the chat only if it belongs to userID; nil otherwise.
func (s *SQLiteStore) GetChatByID(chatID string, userID int64) (*Chat, error) {
	var chat Chat
	err := s.db.QueryRow("SELECT id, user_id, title, created_at FROM chats WHERE id = ? AND user_id = ?", chatID, userID).
		Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found or not owned
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return &chat, nil
}

func (s *SQLiteStore) ListChats(userID int64) ([]ChatTitle, error) {
	rows, err := s.db.Query("SELECT id, title FROM chats WHERE user_id = ? ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []ChatTitle
	for rows.Next() {
		var ct ChatTitle
		if err := rows.Scan(&ct.ChatID, &ct.Title); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		chats = append(chats, ct)
	}
	return chats, rows.Err()
}

// RenameChat updates the title scoped to (chatID, userID). A rename against a
// chat the user does not own affects zero rows and reports ErrNotFound.
func (s *SQLiteStore) RenameChat(userID int64, chatID, title string) error {
	res, err := s.db.Exec("UPDATE chats SET title = ? WHERE id = ? AND user_id = ?", title, chatID, userID)
	if err != nil {
		return fmt.Errorf("failed to execute chat title update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Message methods

// ListMessages returns a chat's messages oldest first. rowid breaks timestamp
// ties so the user turn of an exchange always precedes its assistant turn.
func (s *SQLiteStore) ListMessages(chatID string) ([]Message, error) {
	rows, err := s.db.Query("SELECT id, chat_id, sender, content, timestamp FROM messages WHERE chat_id = ? ORDER BY timestamp ASC, rowid ASC", chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Sender, &msg.Content, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Passage embedding methods (vector index persistence)

// SaveEmbeddings replaces all stored passage embeddings. Row positions are the
// indices of the passages they were computed from; the two must stay aligned.
func (s *SQLiteStore) SaveEmbeddings(vectors [][]float32) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM passage_embeddings"); err != nil {
		return fmt.Errorf("failed to clear passage embeddings: %w", err)
	}

	stmt, err := tx.Prepare("INSERT INTO passage_embeddings (position, embedding) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare embedding insert: %w", err)
	}
	defer stmt.Close()

	for i, vec := range vectors {
		encoded, err := json.Marshal(vec)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding %d: %w", i, err)
		}
		if _, err := stmt.Exec(i, string(encoded)); err != nil {
			return fmt.Errorf("failed to insert embedding %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit embeddings: %w", err)
	}
	return nil
}

// LoadEmbeddings returns all stored embeddings ordered by corpus position.
func (s *SQLiteStore) LoadEmbeddings() ([][]float32, error) {
	rows, err := s.db.Query("SELECT position, embedding FROM passage_embeddings ORDER BY position ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query passage embeddings: %w", err)
	}
	defer rows.Close()

	var vectors [][]float32
	for rows.Next() {
		var position int
		var encoded string
		if err := rows.Scan(&position, &encoded); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(encoded), &vec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding at position %d: %w", position, err)
		}
		vectors = append(vectors, vec)
	}
	return vectors, rows.Err()
}
