package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/domyjob/domyjob/internal/contextdoc"
	"github.com/domyjob/domyjob/internal/models"
	"github.com/domyjob/domyjob/internal/web/middleware"
)

func setupContextTestRouter(user *models.User, contexts *mockContextStore) *chi.Mux {
	docs := contextdoc.NewService(contexts, newMemBlobStore(), 1024)
	handler := NewContextHandler(docs, contexts, 1024)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Get("/api/contexts", handler.HandleList)
	r.Post("/api/contexts", handler.HandleCreate)
	r.Put("/api/contexts/{id}", handler.HandleUpdate)
	r.Delete("/api/contexts/{id}", handler.HandleDelete)
	r.Post("/api/upload", handler.HandleUpload)

	return r
}

func TestHandleUpdateContext_IDOR_Returns404(t *testing.T) {
	userA := &models.User{ID: 1, Username: "a"}
	userB := &models.User{ID: 2, Username: "b"}

	cs := newMockContextStore()
	owned, _ := cs.CreateContext(context.Background(), models.ContextCreateParams{
		UserID: userB.ID, Name: "b's doc", Content: "secret",
	})

	router := setupContextTestRouter(userA, cs) // requests as user A

	body := strings.NewReader(`{"isActive": false}`)
	req := httptest.NewRequest(http.MethodPut, "/api/contexts/1", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 when toggling another user's context, got %d", rr.Code)
	}
	if !cs.contexts[owned.ID].IsActive {
		t.Error("context must not be modified")
	}
}

func TestHandleDeleteContext_OwnContext_Succeeds(t *testing.T) {
	userA := &models.User{ID: 1, Username: "a"}

	cs := newMockContextStore()
	cs.CreateContext(context.Background(), models.ContextCreateParams{
		UserID: userA.ID, Name: "mine", Content: "text",
	})

	router := setupContextTestRouter(userA, cs)

	req := httptest.NewRequest(http.MethodDelete, "/api/contexts/1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 deleting own context, got %d", rr.Code)
	}
	if len(cs.contexts) != 0 {
		t.Error("expected context deleted")
	}
}

func TestHandleCreateContext_EmptyContentRejected(t *testing.T) {
	userA := &models.User{ID: 1, Username: "a"}
	router := setupContextTestRouter(userA, newMockContextStore())

	body := strings.NewReader(`{"name": "x", "content": "  "}`)
	req := httptest.NewRequest(http.MethodPost, "/api/contexts", body)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty content, got %d", rr.Code)
	}
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	part.Write(content)
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestHandleUpload_TxtFile(t *testing.T) {
	userA := &models.User{ID: 1, Username: "a"}
	cs := newMockContextStore()
	router := setupContextTestRouter(userA, cs)

	body, contentType := multipartUpload(t, "notes.txt", []byte("remember the milk"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp contextResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Content != "remember the milk" {
		t.Errorf("expected extracted content, got %q", resp.Content)
	}
	if !resp.IsActive {
		t.Error("new contexts start active")
	}
}

func TestHandleUpload_UnsupportedExtension(t *testing.T) {
	userA := &models.User{ID: 1, Username: "a"}
	router := setupContextTestRouter(userA, newMockContextStore())

	body, contentType := multipartUpload(t, "tool.exe", []byte("MZ"))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported file type, got %d", rr.Code)
	}
}

func TestHandleUpload_TooLarge(t *testing.T) {
	userA := &models.User{ID: 1, Username: "a"}
	router := setupContextTestRouter(userA, newMockContextStore())

	body, contentType := multipartUpload(t, "big.txt", make([]byte, 8192))
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for oversize upload, got %d", rr.Code)
	}
}
