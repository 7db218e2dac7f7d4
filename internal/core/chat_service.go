package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"srokagri.com/khmer-agri-chat/internal/store"
)

// titlePrefixRunes bounds the chat title derived from the first user message.
const titlePrefixRunes = 30

// Completer turns a rendered prompt into an answer. May fail.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Session is the per-connection conversational state. ActiveChatID is empty
// until the first message of a conversation commits, after which it stays
// pinned until an explicit new-chat or set-active-chat command.
//
// The mutex is the advisory lock of the chat-creation step: HandleMessage
// holds it across resolve-create-persist, so two near-simultaneous first
// messages on one session cannot create two chats.
type Session struct {
	mu           sync.Mutex
	ActiveChatID string
}

// MessageResult is what HandleMessage produces for one user turn.
type MessageResult struct {
	Reply   string
	ChatID  string
	NewChat *store.Chat // set when this message created the chat
	Saved   bool        // false when the exchange could not be persisted
}

// ChatService owns the active-chat state machine and chat/message
// persistence. It is the only component that creates or mutates chat rows.
type ChatService struct {
	dbStore   *store.SQLiteStore
	retriever *Retriever
	completer Completer
	topK      int
	boost     float64
}

func NewChatService(db *store.SQLiteStore, retriever *Retriever, completer Completer, topK int, boost float64) *ChatService {
	return &ChatService{
		dbStore:   db,
		retriever: retriever,
		completer: completer,
		topK:      topK,
		boost:     boost,
	}
}

func (s *ChatService) GetUserByUsername(username string) (*store.User, error) {
	return s.dbStore.GetUserByUsername(username)
}

func (s *ChatService) CreateUser(username, passwordHash string) (*store.User, error) {
	return s.dbStore.CreateUser(username, passwordHash)
}

// generateReply runs retrieval, prompt building, and the completion call.
// Nothing is persisted here; any failure aborts before a single write.
func (s *ChatService) generateReply(ctx context.Context, text string) (string, error) {
	passages, err := s.retriever.Retrieve(ctx, text, s.topK, s.boost)
	if err != nil {
		return "", err
	}
	prompt := BuildPrompt(text, passages)
	return s.completer.Complete(ctx, prompt)
}

// HandleMessage processes one user turn for an authenticated user. The reply
// is computed first; only then are the user and assistant messages written,
// in one transaction, together with the chat row when this is the first
// message of the session. If that write fails the reply is still returned
// with Saved=false alongside the persistence error, so the answer is never
// silently lost.
func (s *ChatService) HandleMessage(ctx context.Context, userID int64, sess *Session, text string) (*MessageResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: message is empty", ErrValidation)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	reply, err := s.generateReply(ctx, text)
	if err != nil {
		return nil, err
	}

	// A stale session can carry a chat pinned under a different account.
	// Treat it as no active chat rather than writing across users.
	chatID := sess.ActiveChatID
	if chatID != "" {
		chat, err := s.dbStore.GetChatByID(chatID, userID)
		if err != nil {
			return &MessageResult{Reply: reply, ChatID: chatID}, fmt.Errorf("%w: verifying chat: %v", ErrPersistence, err)
		}
		if chat == nil {
			chatID = ""
		}
	}

	if chatID == "" {
		chat, err := s.dbStore.CreateChatWithExchange(userID, deriveTitle(text), text, reply)
		if err != nil {
			log.Printf("Failed to persist first exchange for user %d: %v", userID, err)
			return &MessageResult{Reply: reply}, fmt.Errorf("%w: creating chat: %v", ErrPersistence, err)
		}
		sess.ActiveChatID = chat.ID
		return &MessageResult{Reply: reply, ChatID: chat.ID, NewChat: chat, Saved: true}, nil
	}

	if err := s.dbStore.AppendExchange(chatID, text, reply); err != nil {
		log.Printf("Failed to persist exchange for chat %s: %v", chatID, err)
		return &MessageResult{Reply: reply, ChatID: chatID}, fmt.Errorf("%w: appending exchange: %v", ErrPersistence, err)
	}
	return &MessageResult{Reply: reply, ChatID: chatID, Saved: true}, nil
}

// HandleAnonymousMessage runs retrieval and completion for an unauthenticated
// caller. Stateless: no chat or message rows are ever written on this path.
func (s *ChatService) HandleAnonymousMessage(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: message is empty", ErrValidation)
	}
	return s.generateReply(ctx, text)
}

// NewChat clears the session's active chat. No-op when none is set.
func (s *ChatService) NewChat(sess *Session) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.ActiveChatID = ""
}

// SetActiveChat pins the session to an existing chat after verifying the chat
// belongs to the requesting user.
func (s *ChatService) SetActiveChat(userID int64, sess *Session, chatID string) error {
	chat, err := s.dbStore.GetChatByID(chatID, userID)
	if err != nil {
		return fmt.Errorf("%w: verifying chat: %v", ErrPersistence, err)
	}
	if chat == nil {
		return ErrAuthorization
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.ActiveChatID = chatID
	return nil
}

// LoadChat returns a chat's messages, oldest first, only to its owner.
func (s *ChatService) LoadChat(userID int64, chatID string) ([]store.Message, error) {
	chat, err := s.dbStore.GetChatByID(chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: verifying chat: %v", ErrPersistence, err)
	}
	if chat == nil {
		return nil, ErrAuthorization
	}

	messages, err := s.dbStore.ListMessages(chatID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing messages: %v", ErrPersistence, err)
	}
	return messages, nil
}

// ListChats returns the user's chats, newest first.
func (s *ChatService) ListChats(userID int64) ([]store.ChatTitle, error) {
	chats, err := s.dbStore.ListChats(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing chats: %v", ErrPersistence, err)
	}
	return chats, nil
}

// RenameChat updates a chat title, scoped to the owning user. A rename on a
// missing or foreign chat surfaces as an authorization failure.
func (s *ChatService) RenameChat(userID int64, chatID, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title is empty", ErrValidation)
	}

	err := s.dbStore.RenameChat(userID, chatID, title)
	if err == store.ErrNotFound {
		return ErrAuthorization
	}
	if err != nil {
		return fmt.Errorf("%w: renaming chat: %v", ErrPersistence, err)
	}
	return nil
}

// deriveTitle takes a bounded rune prefix of the first user message, with an
// ellipsis marker when truncated.
func deriveTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= titlePrefixRunes {
		return message
	}
	return strings.TrimRight(string(runes[:titlePrefixRunes]), " ") + "…"
}
