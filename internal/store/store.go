package store

import (
	"context"
	"errors"
	"time"

	"github.com/domyjob/domyjob/internal/models"
)

// ErrDuplicateMessageID is returned by EmailStore.CreateEmail when an email
// with the same provider message ID already exists. Implementations map their
// unique-constraint violation onto this error so callers can treat a
// re-delivered message as a no-op.
var ErrDuplicateMessageID = errors.New("duplicate message id")

type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash, email, displayName string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

type SessionStore interface {
	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) (*models.Session, error)
	GetSessionByToken(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteExpiredSessions(ctx context.Context) error
}

type EmailSettingsStore interface {
	UpsertEmailSettings(ctx context.Context, userID int64, provider, emailAddress, encryptedCredentials string, isActive bool) (*models.EmailSettings, error)
	GetEmailSettingsByUserID(ctx context.Context, userID int64) (*models.EmailSettings, error)
	UpdateLastSynced(ctx context.Context, userID int64, syncedAt time.Time) error
}

type EmailStore interface {
	CreateEmail(ctx context.Context, params models.EmailCreateParams) (*models.Email, error)
	GetEmailByID(ctx context.Context, id int64) (*models.Email, error)
	GetEmailByMessageID(ctx context.Context, userID int64, messageID string) (*models.Email, error)
	ListEmailsByUserID(ctx context.Context, userID int64, query models.EmailQuery) ([]models.Email, error)
	MarkEmailRead(ctx context.Context, id int64) error
	SetResponseGenerated(ctx context.Context, id int64) error
}

type EmailResponseStore interface {
	CreateEmailResponse(ctx context.Context, emailID, userID int64, draft string, actions []models.SuggestedAction) (*models.EmailResponse, error)
	GetEmailResponseByID(ctx context.Context, id int64) (*models.EmailResponse, error)
	ListEmailResponsesByEmailID(ctx context.Context, emailID int64) ([]models.EmailResponse, error)
	UpdateEmailResponseDraft(ctx context.Context, id int64, draft, status string) error
	MarkEmailResponseSent(ctx context.Context, id int64, sentAt time.Time) error
}

type ContextStore interface {
	CreateContext(ctx context.Context, params models.ContextCreateParams) (*models.Context, error)
	GetContextByID(ctx context.Context, id int64) (*models.Context, error)
	GetContextsByUserID(ctx context.Context, userID int64) ([]models.Context, error)
	GetActiveContextsByUserID(ctx context.Context, userID int64) ([]models.Context, error)
	SetContextActive(ctx context.Context, id int64, active bool) error
	DeleteContext(ctx context.Context, id int64) error
}

type TaskStore interface {
	CreateTask(ctx context.Context, userID int64, title, description, status, priority string, dueDate *time.Time) (*models.Task, error)
	GetTaskByID(ctx context.Context, id int64) (*models.Task, error)
	GetTasksByUserID(ctx context.Context, userID int64) ([]models.Task, error)
	UpdateTask(ctx context.Context, task *models.Task) error
}

type ConversationStore interface {
	CreateConversation(ctx context.Context, userID int64, title string) (*models.Conversation, error)
	GetConversationByID(ctx context.Context, id int64) (*models.Conversation, error)
	GetConversationsByUserID(ctx context.Context, userID int64) ([]models.Conversation, error)
}

type ChatMessageStore interface {
	CreateChatMessage(ctx context.Context, conversationID int64, role, content string) (*models.ChatMessage, error)
	GetChatMessagesByConversationID(ctx context.Context, conversationID int64) ([]models.ChatMessage, error)
}

type LearningProgressStore interface {
	UpsertLearningProgress(ctx context.Context, userID int64, category string, completedCount, totalCount int) (*models.LearningProgress, error)
	GetLearningProgressByUserID(ctx context.Context, userID int64) ([]models.LearningProgress, error)
}
