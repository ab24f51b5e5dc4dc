package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/domyjob/domyjob/internal/metrics"
	"github.com/domyjob/domyjob/internal/models"
)

// Truncation bounds keep prompt size (and cost) in check. A longer document
// is cut, not chunked.
const (
	maxClassifyBodyChars = 2000
	maxDraftBodyChars    = 3000
	maxContextChars      = 1500
	maxPromptContexts    = 5

	// Classification below this confidence is treated as "no response needed".
	classifyConfidenceThreshold = 0.7
)

// Draft is a generated reply candidate with follow-up suggestions.
type Draft struct {
	DraftResponse    string                   `json:"draftResponse"`
	SuggestedActions []models.SuggestedAction `json:"suggestedActions"`
}

// Responder implements the response-generation operations on top of Client.
type Responder struct {
	client *Client
}

func NewResponder(client *Client) *Responder {
	return &Responder{client: client}
}

// complete runs one completion call and records it under the operation label.
func (r *Responder) complete(ctx context.Context, operation string, jsonMode bool, messages []ChatMessage) (string, error) {
	start := time.Now()
	var raw string
	var err error
	if jsonMode {
		raw, err = r.client.CompleteJSON(ctx, messages)
	} else {
		raw, err = r.client.Complete(ctx, messages)
	}
	metrics.ObserveCompletion(operation, err, time.Since(start))
	return raw, err
}

type classification struct {
	NeedsResponse bool    `json:"needsResponse"`
	Confidence    float64 `json:"confidence"`
}

// ClassifyNeedsResponse asks the model whether an email warrants a reply.
// The decision is positive only when the model says so with confidence above
// the threshold. Any failure defaults to false so an upstream outage never
// floods the response queue.
func (r *Responder) ClassifyNeedsResponse(ctx context.Context, subject, body string) bool {
	prompt := fmt.Sprintf(
		"Decide whether this email needs a reply from the recipient.\n\nSubject: %s\n\nBody:\n%s\n\n"+
			`Answer with a JSON object: {"needsResponse": true|false, "confidence": 0.0-1.0}`,
		subject, truncate(body, maxClassifyBodyChars),
	)

	raw, err := r.complete(ctx, "classify", true, []ChatMessage{
		{Role: "system", Content: "You are an email triage assistant. Respond only with JSON."},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		slog.Warn("needs-response classification failed, defaulting to false", "error", err)
		return false
	}

	var result classification
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		slog.Warn("needs-response classification returned invalid JSON, defaulting to false", "error", err)
		return false
	}

	return result.NeedsResponse && result.Confidence > classifyConfidenceThreshold
}

// DraftResponse asks the model for a reply draft plus up to three prioritized
// follow-up actions, grounded on the user's active contexts. Failures are
// returned as errors; there is no partial result.
func (r *Responder) DraftResponse(ctx context.Context, email *models.Email, contexts []models.Context) (Draft, error) {
	var b strings.Builder
	b.WriteString("Draft a professional reply to the email below.\n")

	if len(contexts) > 0 {
		b.WriteString("\nUse these documents as background where relevant:\n")
		for i, c := range contexts {
			if i >= maxPromptContexts {
				break
			}
			fmt.Fprintf(&b, "\n--- %s ---\n%s\n", c.Name, truncate(c.Content, maxContextChars))
		}
	}

	fmt.Fprintf(&b, "\nFrom: %s\nSubject: %s\n\n%s\n", email.FromAddress, email.Subject, truncate(email.TextBody, maxDraftBodyChars))
	b.WriteString("\nAnswer with a JSON object: " +
		`{"draftResponse": "...", "suggestedActions": [{"action": "...", "priority": "high|medium|low"}]}` +
		" with at most three actions.")

	raw, err := r.complete(ctx, "draft_response", true, []ChatMessage{
		{Role: "system", Content: "You are an email writing assistant. Respond only with JSON."},
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		return Draft{}, fmt.Errorf("drafting response: %w", err)
	}

	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return Draft{}, fmt.Errorf("decoding draft response: %w", err)
	}
	if draft.DraftResponse == "" {
		return Draft{}, fmt.Errorf("draft response is empty")
	}
	if len(draft.SuggestedActions) > 3 {
		draft.SuggestedActions = draft.SuggestedActions[:3]
	}

	return draft, nil
}

// Chat continues a conversation, with active contexts injected as background.
func (r *Responder) Chat(ctx context.Context, history []models.ChatMessage, contexts []models.Context) (string, error) {
	messages := []ChatMessage{
		{Role: "system", Content: "You are a helpful work assistant." + contextBlock(contexts)},
	}
	for _, m := range history {
		messages = append(messages, ChatMessage{Role: m.Role, Content: m.Content})
	}

	reply, err := r.complete(ctx, "chat", false, messages)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return reply, nil
}

// Summarize produces a short summary of the given text.
func (r *Responder) Summarize(ctx context.Context, text string, contexts []models.Context) (string, error) {
	summary, err := r.complete(ctx, "summarize", false, []ChatMessage{
		{Role: "system", Content: "Summarize the user's text concisely." + contextBlock(contexts)},
		{Role: "user", Content: truncate(text, maxDraftBodyChars)},
	})
	if err != nil {
		return "", fmt.Errorf("summarize completion: %w", err)
	}
	return summary, nil
}

// DraftEmail composes a fresh email from a short instruction.
func (r *Responder) DraftEmail(ctx context.Context, instruction string, contexts []models.Context) (string, error) {
	draft, err := r.complete(ctx, "draft_email", false, []ChatMessage{
		{Role: "system", Content: "Write a professional email following the user's instruction. Output only the email text." + contextBlock(contexts)},
		{Role: "user", Content: instruction},
	})
	if err != nil {
		return "", fmt.Errorf("draft-email completion: %w", err)
	}
	return draft, nil
}

// AnalyzeImage answers a question about a screenshot. imageDataURL is a
// base64 data URL as produced by the capture extension.
func (r *Responder) AnalyzeImage(ctx context.Context, imageDataURL, question string) (string, error) {
	if question == "" {
		question = "Describe what is on this screenshot and extract any important text."
	}

	analysis, err := r.complete(ctx, "analyze_image", false, []ChatMessage{
		{Role: "user", Content: []ContentPart{
			{Type: "text", Text: question},
			{Type: "image_url", ImageURL: &ImageURL{URL: imageDataURL}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("image analysis: %w", err)
	}
	return analysis, nil
}

func contextBlock(contexts []models.Context) string {
	if len(contexts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nBackground documents:\n")
	for i, c := range contexts {
		if i >= maxPromptContexts {
			break
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", c.Name, truncate(c.Content, maxContextChars))
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
