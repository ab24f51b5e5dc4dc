package postgres

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/domyjob/domyjob/internal/models"
)

type ConversationStore struct {
	db *sql.DB
}

func NewConversationStore(db *sql.DB) *ConversationStore {
	return &ConversationStore{db: db}
}

func (s *ConversationStore) CreateConversation(ctx context.Context, userID int64, title string) (*models.Conversation, error) {
	conv := &models.Conversation{
		PublicID: uuid.New(),
		UserID:   userID,
		Title:    title,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO conversations (public_id, user_id, title)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		conv.PublicID, conv.UserID, conv.Title,
	).Scan(&conv.ID, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return conv, nil
}

func (s *ConversationStore) GetConversationByID(ctx context.Context, id int64) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, public_id, user_id, title, created_at, updated_at
		 FROM conversations WHERE id = $1`,
		id,
	).Scan(&conv.ID, &conv.PublicID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

func (s *ConversationStore) GetConversationsByUserID(ctx context.Context, userID int64) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, public_id, user_id, title, created_at, updated_at
		 FROM conversations WHERE user_id = $1
		 ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.PublicID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

type ChatMessageStore struct {
	db *sql.DB
}

func NewChatMessageStore(db *sql.DB) *ChatMessageStore {
	return &ChatMessageStore{db: db}
}

func (s *ChatMessageStore) CreateChatMessage(ctx context.Context, conversationID int64, role, content string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO chat_messages (conversation_id, role, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		msg.ConversationID, msg.Role, msg.Content,
	).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, err
	}

	return msg, nil
}

func (s *ChatMessageStore) GetChatMessagesByConversationID(ctx context.Context, conversationID int64) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, created_at
		 FROM chat_messages WHERE conversation_id = $1
		 ORDER BY created_at ASC`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
