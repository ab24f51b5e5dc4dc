package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           int64
	PublicID     uuid.UUID
	Username     string
	PasswordHash string
	Email        string
	DisplayName  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Session struct {
	ID        int64
	Token     string
	UserID    int64
	ExpiresAt time.Time
	CreatedAt time.Time
}

// EmailSettings holds one user's mail account configuration. The credential
// blob is encrypted at rest; see the vault package for the wire format.
type EmailSettings struct {
	ID                   int64
	UserID               int64
	Provider             string
	EmailAddress         string
	EncryptedCredentials string
	IsActive             bool
	LastSynced           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Email struct {
	ID                int64
	PublicID          uuid.UUID
	UserID            int64
	MessageID         string
	FromAddress       string
	ToAddress         string
	CCAddress         string
	Subject           string
	TextBody          string
	HTMLBody          string
	ReceivedAt        time.Time
	IsRead            bool
	NeedsResponse     bool
	ResponseGenerated bool
	Folder            string
	CreatedAt         time.Time
}

type EmailCreateParams struct {
	UserID        int64
	MessageID     string
	FromAddress   string
	ToAddress     string
	CCAddress     string
	Subject       string
	TextBody      string
	HTMLBody      string
	ReceivedAt    time.Time
	NeedsResponse bool
	Folder        string
}

type EmailQuery struct {
	NeedsResponse *bool
	Limit         int
	Offset        int
}

// Valid EmailResponse statuses.
const (
	ResponseStatusDraft  = "draft"
	ResponseStatusEdited = "edited"
	ResponseStatusSent   = "sent"
)

type SuggestedAction struct {
	Action   string `json:"action"`
	Priority string `json:"priority"`
}

type EmailResponse struct {
	ID               int64
	PublicID         uuid.UUID
	EmailID          int64
	UserID           int64
	DraftResponse    string
	SuggestedActions []SuggestedAction
	Status           string
	SentAt           *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Context is a stored document or text snippet that can be included in AI
// prompts while it is active.
type Context struct {
	ID          int64
	PublicID    uuid.UUID
	UserID      int64
	Name        string
	ContentType string
	Content     string
	FileSize    *int64
	PageCount   *int
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ContextCreateParams struct {
	UserID      int64
	Name        string
	ContentType string
	Content     string
	FileSize    *int64
	PageCount   *int
}

type Task struct {
	ID          int64
	PublicID    uuid.UUID
	UserID      int64
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Conversation struct {
	ID        int64
	PublicID  uuid.UUID
	UserID    int64
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ChatMessage struct {
	ID             int64
	ConversationID int64
	Role           string
	Content        string
	CreatedAt      time.Time
}

type LearningProgress struct {
	ID             int64
	UserID         int64
	Category       string
	CompletedCount int
	TotalCount     int
	UpdatedAt      time.Time
}
