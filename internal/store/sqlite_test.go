package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)

	created, err := s.CreateUser("sokha", "hashed-password")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "sokha", created.Username)

	found, err := s.GetUserByUsername("sokha")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "hashed-password", found.PasswordHash)

	missing, err := s.GetUserByUsername("nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateUser("sokha", "h1")
	require.NoError(t, err)

	_, err = s.CreateUser("sokha", "h2")
	assert.Error(t, err)
}

func TestCreateChatWithExchange(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("sokha", "h")
	require.NoError(t, err)

	chat, err := s.CreateChatWithExchange(user.ID, "rice question", "how much fertilizer?", "about 90kg of urea per hectare")
	require.NoError(t, err)
	assert.NotEmpty(t, chat.ID)
	assert.Equal(t, "rice question", chat.Title)

	messages, err := s.ListMessages(chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, SenderUser, messages[0].Sender)
	assert.Equal(t, "how much fertilizer?", messages[0].Content)
	assert.Equal(t, SenderAssistant, messages[1].Sender)
	assert.False(t, messages[1].Timestamp.Before(messages[0].Timestamp))
}

func TestAppendExchangeKeepsOrder(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("sokha", "h")
	require.NoError(t, err)
	chat, err := s.CreateChatWithExchange(user.ID, "t", "q1", "a1")
	require.NoError(t, err)

	require.NoError(t, s.AppendExchange(chat.ID, "q2", "a2"))

	messages, err := s.ListMessages(chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	contents := []string{messages[0].Content, messages[1].Content, messages[2].Content, messages[3].Content}
	assert.Equal(t, []string{"q1", "a1", "q2", "a2"}, contents)
}

func TestListMessagesBreaksTimestampTies(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("sokha", "h")
	require.NoError(t, err)
	chat, err := s.CreateChatWithExchange(user.ID, "t", "q", "a")
	require.NoError(t, err)

	// Two turns sharing one timestamp, dated before the exchange above so
	// they sort first. Insertion order must decide between them.
	tied := "2026-01-02 03:04:05"
	_, err = s.db.Exec("INSERT INTO messages (id, chat_id, sender, content, timestamp) VALUES (?, ?, ?, ?, ?)", "tied-q", chat.ID, SenderUser, "tied question", tied)
	require.NoError(t, err)
	_, err = s.db.Exec("INSERT INTO messages (id, chat_id, sender, content, timestamp) VALUES (?, ?, ?, ?, ?)", "tied-a", chat.ID, SenderAssistant, "tied answer", tied)
	require.NoError(t, err)

	messages, err := s.ListMessages(chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	assert.Equal(t, "tied question", messages[0].Content)
	assert.Equal(t, "tied answer", messages[1].Content)
}

func TestGetChatByIDScopedToOwner(t *testing.T) {
	s := newTestStore(t)
	alice, err := s.CreateUser("alice", "h")
	require.NoError(t, err)
	bob, err := s.CreateUser("bob", "h")
	require.NoError(t, err)

	chat, err := s.CreateChatWithExchange(alice.ID, "t", "q", "a")
	require.NoError(t, err)

	found, err := s.GetChatByID(chat.ID, alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, found)

	foreign, err := s.GetChatByID(chat.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, foreign, "foreign chat must be indistinguishable from a missing one")
}

func TestListChatsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	user, err := s.CreateUser("sokha", "h")
	require.NoError(t, err)

	first, err := s.CreateChatWithExchange(user.ID, "first", "q", "a")
	require.NoError(t, err)
	second, err := s.CreateChatWithExchange(user.ID, "second", "q", "a")
	require.NoError(t, err)

	chats, err := s.ListChats(user.ID)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, second.ID, chats[0].ChatID)
	assert.Equal(t, first.ID, chats[1].ChatID)
}

func TestRenameChat(t *testing.T) {
	s := newTestStore(t)
	alice, err := s.CreateUser("alice", "h")
	require.NoError(t, err)
	bob, err := s.CreateUser("bob", "h")
	require.NoError(t, err)

	chat, err := s.CreateChatWithExchange(alice.ID, "old title", "q", "a")
	require.NoError(t, err)

	// Not the owner: zero rows affected.
	err = s.RenameChat(bob.ID, chat.ID, "stolen")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.RenameChat(alice.ID, chat.ID, "new title"))
	renamed, err := s.GetChatByID(chat.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "new title", renamed.Title)

	err = s.RenameChat(alice.ID, "no-such-chat", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmbeddingsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	vectors := [][]float32{
		{0.1, 0.2, 0.3},
		{0.4, 0.5, 0.6},
	}
	require.NoError(t, s.SaveEmbeddings(vectors))

	loaded, err := s.LoadEmbeddings()
	require.NoError(t, err)
	assert.Equal(t, vectors, loaded)

	// Saving again replaces, never appends.
	require.NoError(t, s.SaveEmbeddings(vectors[:1]))
	loaded, err = s.LoadEmbeddings()
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestLoadEmbeddingsEmpty(t *testing.T) {
	s := newTestStore(t)
	loaded, err := s.LoadEmbeddings()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
