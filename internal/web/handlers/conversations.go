package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/domyjob/domyjob/internal/ai"
	"github.com/domyjob/domyjob/internal/models"
	"github.com/domyjob/domyjob/internal/store"
	"github.com/domyjob/domyjob/internal/web/middleware"
)

// ConversationHandler serves chat threads. Posting a message appends the
// user's turn, asks the model for a reply grounded on active contexts, and
// stores both.
type ConversationHandler struct {
	conversations store.ConversationStore
	messages      store.ChatMessageStore
	contexts      store.ContextStore
	responder     *ai.Responder
}

func NewConversationHandler(conversations store.ConversationStore, messages store.ChatMessageStore, contexts store.ContextStore, responder *ai.Responder) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		contexts:      contexts,
		responder:     responder,
	}
}

type conversationResponse struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

type chatMessageResponse struct {
	ID        int64     `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func toChatMessageResponse(m *models.ChatMessage) chatMessageResponse {
	return chatMessageResponse{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
}

func (h *ConversationHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	conversations, err := h.conversations.GetConversationsByUserID(r.Context(), user.ID)
	if err != nil {
		slog.Error("listing conversations", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]conversationResponse, 0, len(conversations))
	for _, c := range conversations {
		out = append(out, conversationResponse{ID: c.ID, Title: c.Title, CreatedAt: c.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ConversationHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		req.Title = "New conversation"
	}

	conversation, err := h.conversations.CreateConversation(r.Context(), user.ID, req.Title)
	if err != nil {
		slog.Error("creating conversation", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, conversationResponse{ID: conversation.ID, Title: conversation.Title, CreatedAt: conversation.CreatedAt})
}

func (h *ConversationHandler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	conversation, ok := h.ownedConversation(w, r, user.ID)
	if !ok {
		return
	}

	messages, err := h.messages.GetChatMessagesByConversationID(r.Context(), conversation.ID)
	if err != nil {
		slog.Error("listing messages", "conversation_id", conversation.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]chatMessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, toChatMessageResponse(&messages[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandlePostMessage appends a user turn and returns the assistant's reply.
func (h *ConversationHandler) HandlePostMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())

	conversation, ok := h.ownedConversation(w, r, user.ID)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	userMsg, err := h.messages.CreateChatMessage(r.Context(), conversation.ID, "user", req.Content)
	if err != nil {
		slog.Error("storing user message", "conversation_id", conversation.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	history, err := h.messages.GetChatMessagesByConversationID(r.Context(), conversation.ID)
	if err != nil {
		slog.Error("loading history", "conversation_id", conversation.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	contexts, err := h.contexts.GetActiveContextsByUserID(r.Context(), user.ID)
	if err != nil {
		slog.Error("loading active contexts", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	reply, err := h.responder.Chat(r.Context(), history, contexts)
	if err != nil {
		slog.Error("chat completion", "conversation_id", conversation.ID, "error", err)
		writeError(w, http.StatusBadGateway, "assistant is unavailable")
		return
	}

	assistantMsg, err := h.messages.CreateChatMessage(r.Context(), conversation.ID, "assistant", reply)
	if err != nil {
		slog.Error("storing assistant message", "conversation_id", conversation.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]chatMessageResponse{
		"message": toChatMessageResponse(userMsg),
		"reply":   toChatMessageResponse(assistantMsg),
	})
}

func (h *ConversationHandler) ownedConversation(w http.ResponseWriter, r *http.Request, userID int64) (*models.Conversation, bool) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}

	conversation, err := h.conversations.GetConversationByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "conversation not found")
		} else {
			slog.Error("loading conversation", "conversation_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return nil, false
	}
	if conversation.UserID != userID {
		writeError(w, http.StatusNotFound, "conversation not found")
		return nil, false
	}
	return conversation, true
}
