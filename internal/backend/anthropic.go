package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lexfuse/lexfuse/pkg/models"
)

type anthropicAdapter struct {
	profile *models.BackendProfile
}

func newAnthropic(profile *models.BackendProfile) *anthropicAdapter {
	return &anthropicAdapter{profile: profile}
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model string `json:"model"`
}

func (a *anthropicAdapter) endpoint() string {
	if a.profile.Endpoint != "" {
		return a.profile.Endpoint
	}
	return "https://api.anthropic.com"
}

func (a *anthropicAdapter) headers() (map[string]string, error) {
	key := apiKey(a.profile)
	if key == "" {
		return nil, &Error{Backend: a.profile.ID, Err: fmt.Errorf("api key not configured")}
	}
	return map[string]string{
		"x-api-key":         key,
		"anthropic-version": "2023-06-01",
	}, nil
}

func (a *anthropicAdapter) Generate(ctx context.Context, req *Request) (*Result, error) {
	headers, err := a.headers()
	if err != nil {
		return nil, err
	}

	body, err := postJSON(ctx, a.profile.ID, a.endpoint()+"/v1/messages", headers, anthropicRequest{
		Model:       a.profile.Model,
		System:      req.System,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens(a.profile, req),
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Backend: a.profile.ID, Err: fmt.Errorf("decode response: %w", err)}
	}

	text := ""
	for _, c := range resp.Content {
		if c.Type == "text" {
			text += c.Text
		}
	}

	return &Result{Text: text, Model: resp.Model}, nil
}

func (a *anthropicAdapter) Probe(ctx context.Context) error {
	headers, err := a.headers()
	if err != nil {
		return err
	}
	_, err = postJSON(ctx, a.profile.ID, a.endpoint()+"/v1/messages", headers, anthropicRequest{
		Model:     a.profile.Model,
		Messages:  []chatMessage{{Role: "user", Content: "Say OK"}},
		MaxTokens: 1,
	})
	return err
}
