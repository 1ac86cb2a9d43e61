// Package backend defines the adapter boundary between the fusion engine
// and the text-generation providers, plus HTTP drivers for the built-in
// provider kinds (openai, azure-openai, anthropic, ollama).
//
// The engine never talks to a provider directly: it sees only the Adapter
// interface, and every transport/auth/rate-limit problem surfaces as an
// *Error which the dispatcher converts into a failure outcome.
package backend

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/lexfuse/lexfuse/pkg/models"
)

// Request carries one generation call to a provider.
type Request struct {
	Prompt      string
	System      string
	MaxTokens   int
	Temperature float64
}

// Result is a provider's successful response. Confidence is the backend's
// declared confidence in [0,1]; drivers that report nothing leave it 0 and
// the dispatcher substitutes a profile-derived default.
type Result struct {
	Text       string
	Confidence float64
	Model      string
}

// Adapter is one text-generation backend. Implementations must be safe
// for concurrent use.
type Adapter interface {
	// Generate sends a prompt and returns the generated text.
	Generate(ctx context.Context, req *Request) (*Result, error)

	// Probe performs a minimal credential-validating call.
	Probe(ctx context.Context) error
}

// RevisionAdapter merges a new source text into the current draft.
// Used only by sequential fusion.
type RevisionAdapter interface {
	Revise(ctx context.Context, draft, source string) (string, error)
}

// Error is a transport/auth/rate-limit failure from one backend.
type Error struct {
	Backend string
	Status  int // HTTP status, 0 for transport-level failures
	Err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Backend, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Backend, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// defaultClient is shared by all HTTP drivers. Per-call deadlines come
// from the dispatcher's context, so no client timeout here.
var defaultClient = &http.Client{
	Timeout: 0,
	Transport: &http.Transport{
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	},
}

// New builds the driver for a backend profile based on its Kind.
// Unknown kinds get the OpenAI-compatible driver, matching how most
// self-hosted gateways expose themselves.
func New(profile *models.BackendProfile) (Adapter, error) {
	switch profile.Kind {
	case "openai", "azure-openai":
		return newOpenAI(profile), nil
	case "anthropic":
		return newAnthropic(profile), nil
	case "ollama":
		return newOllama(profile), nil
	case "":
		return nil, fmt.Errorf("backend %s: missing driver kind", profile.ID)
	default:
		return newOpenAI(profile), nil
	}
}

// apiKey resolves the credential for a profile: an explicit api_key in
// the profile config wins, otherwise api_key_env names an environment
// variable to read.
func apiKey(profile *models.BackendProfile) string {
	if k, ok := profile.Config["api_key"].(string); ok && k != "" {
		return k
	}
	if env, ok := profile.Config["api_key_env"].(string); ok && env != "" {
		return os.Getenv(env)
	}
	return ""
}

func maxTokens(profile *models.BackendProfile, req *Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if mt, ok := profile.Config["max_tokens"].(float64); ok && mt > 0 {
		return int(mt)
	}
	return 4096
}
