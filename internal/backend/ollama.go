package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lexfuse/lexfuse/pkg/models"
)

// ollamaAdapter talks to a local Ollama server through its
// OpenAI-compatible chat endpoint. No credentials required.
type ollamaAdapter struct {
	profile *models.BackendProfile
}

func newOllama(profile *models.BackendProfile) *ollamaAdapter {
	return &ollamaAdapter{profile: profile}
}

func (a *ollamaAdapter) endpoint() string {
	if a.profile.Endpoint != "" {
		return a.profile.Endpoint
	}
	return "http://localhost:11434"
}

func (a *ollamaAdapter) Generate(ctx context.Context, req *Request) (*Result, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := postJSON(ctx, a.profile.ID, a.endpoint()+"/v1/chat/completions", nil, openAIRequest{
		Model:       a.profile.Model,
		Messages:    messages,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Backend: a.profile.ID, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return nil, &Error{Backend: a.profile.ID, Err: fmt.Errorf("no choices in response")}
	}

	return &Result{Text: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

// Probe verifies the server is running by listing installed models.
func (a *ollamaAdapter) Probe(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint()+"/api/tags", nil)
	if err != nil {
		return &Error{Backend: a.profile.ID, Err: err}
	}
	resp, err := defaultClient.Do(httpReq)
	if err != nil {
		return &Error{Backend: a.profile.ID, Err: fmt.Errorf("unreachable: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &Error{Backend: a.profile.ID, Status: resp.StatusCode, Err: fmt.Errorf("%s", truncate(respBody, 200))}
	}
	return nil
}
