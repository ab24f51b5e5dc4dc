// Package contextdoc manages the documents and text snippets a user stores
// for inclusion in AI prompts.
package contextdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/domyjob/domyjob/internal/blob"
	"github.com/domyjob/domyjob/internal/models"
	"github.com/domyjob/domyjob/internal/store"
)

var (
	ErrTooLarge        = errors.New("upload exceeds size limit")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyContent    = errors.New("content is empty")
)

type Service struct {
	contexts       store.ContextStore
	blobs          blob.Store
	maxUploadBytes int64
}

func NewService(contexts store.ContextStore, blobs blob.Store, maxUploadBytes int64) *Service {
	return &Service{
		contexts:       contexts,
		blobs:          blobs,
		maxUploadBytes: maxUploadBytes,
	}
}

// CreateFromUpload stores an uploaded file as a context. TXT files have their
// text extracted into the prompt content; PDFs are stored metadata-only with
// a placeholder body since text extraction is not supported. The raw bytes go
// to the blob store keyed by the new context's public ID.
func (s *Service) CreateFromUpload(ctx context.Context, userID int64, filename string, data []byte) (*models.Context, error) {
	if int64(len(data)) > s.maxUploadBytes {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, ErrEmptyContent
	}

	name := filepath.Base(strings.TrimSpace(filename))
	ext := strings.ToLower(filepath.Ext(name))

	var content, contentType string
	var pageCount *int
	switch ext {
	case ".txt", ".md":
		content = string(data)
		contentType = "text/plain"
	case ".pdf":
		content = fmt.Sprintf("[PDF document %q, %d bytes. Text extraction is not available.]", name, len(data))
		contentType = "application/pdf"
		if n := countPDFPages(data); n > 0 {
			pageCount = &n
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	size := int64(len(data))
	created, err := s.contexts.CreateContext(ctx, models.ContextCreateParams{
		UserID:      userID,
		Name:        name,
		ContentType: contentType,
		Content:     content,
		FileSize:    &size,
		PageCount:   pageCount,
	})
	if err != nil {
		return nil, fmt.Errorf("storing context: %w", err)
	}

	// The raw file is a convenience copy; losing it does not break prompts.
	key := blob.UploadKey(userID, created.PublicID.String(), name)
	if err := s.blobs.Put(ctx, key, contentType, data); err != nil {
		slog.Warn("storing upload blob failed", "context_id", created.ID, "error", err)
	}

	return created, nil
}

// CreateFromText stores pasted text or a screenshot analysis result as a
// context. contentType tags the origin ("text/plain", "screenshot").
func (s *Service) CreateFromText(ctx context.Context, userID int64, name, contentType, content string) (*models.Context, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if name = strings.TrimSpace(name); name == "" {
		name = "Untitled"
	}
	if contentType == "" {
		contentType = "text/plain"
	}

	created, err := s.contexts.CreateContext(ctx, models.ContextCreateParams{
		UserID:      userID,
		Name:        name,
		ContentType: contentType,
		Content:     content,
	})
	if err != nil {
		return nil, fmt.Errorf("storing context: %w", err)
	}
	return created, nil
}

// SetActive toggles whether the context is included in AI prompts.
func (s *Service) SetActive(ctx context.Context, c *models.Context, active bool) error {
	if err := s.contexts.SetContextActive(ctx, c.ID, active); err != nil {
		return fmt.Errorf("toggling context: %w", err)
	}
	return nil
}

// Delete removes the context row and its stored upload, if any.
func (s *Service) Delete(ctx context.Context, c *models.Context) error {
	if err := s.contexts.DeleteContext(ctx, c.ID); err != nil {
		return fmt.Errorf("deleting context: %w", err)
	}
	if c.FileSize != nil {
		key := blob.UploadKey(c.UserID, c.PublicID.String(), c.Name)
		if err := s.blobs.Delete(ctx, key); err != nil {
			slog.Warn("deleting upload blob failed", "context_id", c.ID, "error", err)
		}
	}
	return nil
}

// countPDFPages scans the object table for page objects. Crude, but enough
// for the listing metadata without a PDF parser. The /Pages tree node also
// matches the /Page prefix and has to be subtracted.
func countPDFPages(data []byte) int {
	n := bytes.Count(data, []byte("/Type /Page")) + bytes.Count(data, []byte("/Type/Page"))
	n -= bytes.Count(data, []byte("/Type /Pages")) + bytes.Count(data, []byte("/Type/Pages"))
	if n < 0 {
		return 0
	}
	return n
}
