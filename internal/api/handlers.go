package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"srokagri.com/khmer-agri-chat/internal/auth"
	"srokagri.com/khmer-agri-chat/internal/core"
	"srokagri.com/khmer-agri-chat/internal/store"
)

type contextKey string

const userIDKey contextKey = "userID"

type APIHandler struct {
	chatService *core.ChatService
	sessions    *SessionManager
}

func NewAPIHandler(cs *core.ChatService, sm *SessionManager) *APIHandler {
	return &APIHandler{chatService: cs, sessions: sm}
}

// JWTAuthMiddleware requires a valid bearer token and resolves it to an
// internal user id.
func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}
		h.authenticate(w, r, next, authHeader)
	})
}

// OptionalAuthMiddleware lets unauthenticated requests through untouched
// (the anonymous path) but still rejects tokens that are present and invalid.
func (h *APIHandler) OptionalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}
		h.authenticate(w, r, next, authHeader)
	})
}

func (h *APIHandler) authenticate(w http.ResponseWriter, r *http.Request, next http.Handler, authHeader string) {
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	username, err := auth.ValidateJWT(tokenString)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	user, err := h.chatService.GetUserByUsername(username)
	if err != nil {
		log.Printf("Error resolving user %s: %v", username, err)
		http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusUnauthorized)
		return
	}

	ctx := context.WithValue(r.Context(), userIDKey, user.ID)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// requestUserID returns the authenticated user id, or false on the anonymous
// path.
func requestUserID(r *http.Request) (int64, bool) {
	id, ok := r.Context().Value(userIDKey).(int64)
	return id, ok
}

type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	existing, err := h.chatService.GetUserByUsername(req.Username)
	if err != nil {
		log.Printf("Error checking username %s: %v", req.Username, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "Username already taken", http.StatusConflict)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("Error hashing password for user %s: %v", req.Username, err)
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.chatService.CreateUser(req.Username, hashedPassword)
	if err != nil {
		log.Printf("Error creating user %s: %v", req.Username, err)
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.chatService.GetUserByUsername(req.Username)
	if err != nil {
		log.Printf("Error getting user %s: %v", req.Username, err)
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(req.Username)
	if err != nil {
		log.Printf("Error generating JWT for user %s: %v", req.Username, err)
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

type MessageRequest struct {
	Message string `json:"message"`
}

type NewChatInfo struct {
	ChatID string `json:"chat_id"`
	Title  string `json:"title"`
}

type MessageResponse struct {
	Response string       `json:"response"`
	ChatID   string       `json:"chat_id,omitempty"`
	NewChat  *NewChatInfo `json:"new_chat,omitempty"`
	Saved    *bool        `json:"saved,omitempty"`
	Warning  string       `json:"warning,omitempty"`
}

func (h *APIHandler) MessageHandler(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	userID, authenticated := requestUserID(r)
	if !authenticated {
		reply, err := h.chatService.HandleAnonymousMessage(r.Context(), req.Message)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		json.NewEncoder(w).Encode(MessageResponse{Response: reply})
		return
	}

	sess := h.sessions.Ensure(w, r)
	result, err := h.chatService.HandleMessage(r.Context(), userID, sess, req.Message)
	if err != nil && !(errors.Is(err, core.ErrPersistence) && result != nil) {
		writeServiceError(w, err)
		return
	}

	resp := MessageResponse{
		Response: result.Reply,
		ChatID:   result.ChatID,
		Saved:    &result.Saved,
	}
	if result.NewChat != nil {
		resp.NewChat = &NewChatInfo{ChatID: result.NewChat.ID, Title: result.NewChat.Title}
	}
	if err != nil {
		// The reply was generated but could not be saved; say so instead of
		// discarding it or faking success.
		log.Printf("Returning unsaved reply for user %d: %v", userID, err)
		resp.Warning = "The reply could not be saved to your chat history."
	}
	json.NewEncoder(w).Encode(resp)
}

func (h *APIHandler) NewChatHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Ensure(w, r)
	h.chatService.NewChat(sess)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type SetActiveChatRequest struct {
	ChatID string `json:"chat_id"`
}

func (h *APIHandler) SetActiveChatHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUserID(r)

	var req SetActiveChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.ChatID == "" {
		http.Error(w, "chat_id is required", http.StatusBadRequest)
		return
	}

	sess := h.sessions.Ensure(w, r)
	if err := h.chatService.SetActiveChat(userID, sess, req.ChatID); err != nil {
		writeServiceError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUserID(r)

	chats, err := h.chatService.ListChats(userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if chats == nil {
		chats = []store.ChatTitle{}
	}
	json.NewEncoder(w).Encode(chats)
}

func (h *APIHandler) LoadChatHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUserID(r)
	chatID := chi.URLParam(r, "chatID")

	messages, err := h.chatService.LoadChat(userID, chatID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	json.NewEncoder(w).Encode(map[string][]store.Message{"messages": messages})
}

type RenameChatRequest struct {
	Title string `json:"title"`
}

func (h *APIHandler) RenameChatHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := requestUserID(r)
	chatID := chi.URLParam(r, "chatID")

	var req RenameChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.chatService.RenameChat(userID, chatID, req.Title); err != nil {
		writeServiceError(w, err)
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeServiceError is the single place core failures become status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrAuthorization):
		// Same body whether the chat is missing or foreign.
		http.Error(w, "Chat not found", http.StatusNotFound)
	case errors.Is(err, core.ErrUpstreamTimeout):
		log.Printf("Upstream timeout: %v", err)
		http.Error(w, "The model took too long to respond", http.StatusGatewayTimeout)
	case errors.Is(err, core.ErrUpstream), errors.Is(err, core.ErrRetrieval):
		log.Printf("Upstream failure: %v", err)
		http.Error(w, "Failed to generate a response", http.StatusBadGateway)
	default:
		log.Printf("Internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
