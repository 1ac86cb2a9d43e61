package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lexfuse/lexfuse/pkg/models"
)

// openAIAdapter speaks the chat-completions API for OpenAI, Azure OpenAI,
// and any OpenAI-compatible gateway.
type openAIAdapter struct {
	profile *models.BackendProfile
}

func newOpenAI(profile *models.BackendProfile) *openAIAdapter {
	return &openAIAdapter{profile: profile}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
}

func (a *openAIAdapter) endpoint() string {
	if a.profile.Endpoint != "" {
		return a.profile.Endpoint
	}
	return "https://api.openai.com/v1"
}

func (a *openAIAdapter) headers() (map[string]string, error) {
	key := apiKey(a.profile)
	if key == "" {
		return nil, &Error{Backend: a.profile.ID, Err: fmt.Errorf("api key not configured")}
	}
	// Azure OpenAI uses a different auth header
	if a.profile.Kind == "azure-openai" {
		return map[string]string{"api-key": key}, nil
	}
	return map[string]string{"Authorization": "Bearer " + key}, nil
}

func (a *openAIAdapter) Generate(ctx context.Context, req *Request) (*Result, error) {
	headers, err := a.headers()
	if err != nil {
		return nil, err
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := postJSON(ctx, a.profile.ID, a.endpoint()+"/chat/completions", headers, openAIRequest{
		Model:       a.profile.Model,
		Messages:    messages,
		MaxTokens:   maxTokens(a.profile, req),
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

	return &Result{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
	}, nil
}

func (a *openAIAdapter) Probe(ctx context.Context) error {
	headers, err := a.headers()
	if err != nil {
		return err
	}
	_, err = postJSON(ctx, a.profile.ID, a.endpoint()+"/chat/completions", headers, openAIRequest{
		Model:     a.profile.Model,
		Messages:  []chatMessage{{Role: "user", Content: "Say OK"}},
		MaxTokens: 1,
	})
	return err
}
