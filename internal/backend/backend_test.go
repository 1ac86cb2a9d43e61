package backend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/lexfuse/lexfuse/internal/backend"
	"github.com/lexfuse/lexfuse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAICompletion(text string) map[string]interface{} {
	return map[string]interface{}{
		"model": "gpt-test",
		"choices": []map[string]interface{}{
			{"message": map[string]string{"role": "assistant", "content": text}},
		},
	}
}

func openAIProfile(endpoint string) *models.BackendProfile {
	return &models.BackendProfile{
		ID:       "test-openai",
		Kind:     "openai",
		Endpoint: endpoint,
		Model:    "gpt-test",
		Config:   map[string]interface{}{"api_key": "sk-test"},
	}
}

func TestNew_DriverSelection(t *testing.T) {
	cases := []struct {
		kind    string
		wantErr bool
	}{
		{kind: "openai"},
		{kind: "azure-openai"},
		{kind: "anthropic"},
		{kind: "ollama"},
		{kind: "some-compatible-gateway"},
		{kind: "", wantErr: true},
	}
	for _, tc := range cases {
		a, err := backend.New(&models.BackendProfile{ID: "x", Kind: tc.kind})
		if tc.wantErr {
			assert.Error(t, err, "kind %q", tc.kind)
			continue
		}
		require.NoError(t, err, "kind %q", tc.kind)
		assert.NotNil(t, a)
	}
}

func TestOpenAI_Generate(t *testing.T) {
	var gotAuth string
	var gotReq map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(openAICompletion("Texte généré."))
	}))
	defer srv.Close()

	a, err := backend.New(openAIProfile(srv.URL))
	require.NoError(t, err)

	res, err := a.Generate(context.Background(), &backend.Request{
		Prompt: "Rédige des conclusions.",
		System: "Tu es un assistant juridique.",
	})
	require.NoError(t, err)

	assert.Equal(t, "Texte généré.", res.Text)
	assert.Equal(t, "gpt-test", res.Model)
	assert.Equal(t, "Bearer sk-test", gotAuth)

	messages := gotReq["messages"].([]interface{})
	require.Len(t, messages, 2)
	first := messages[0].(map[string]interface{})
	assert.Equal(t, "system", first["role"])
}

func TestOpenAI_MissingAPIKey(t *testing.T) {
	a, err := backend.New(&models.BackendProfile{ID: "nokey", Kind: "openai", Model: "gpt-test"})
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), &backend.Request{Prompt: "x"})
	require.Error(t, err)

	var bErr *backend.Error
	require.ErrorAs(t, err, &bErr)
	assert.Contains(t, bErr.Error(), "api key not configured")
}

func TestOpenAI_Non2xxIsPermanent(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"invalid_api_key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	a, err := backend.New(openAIProfile(srv.URL))
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), &backend.Request{Prompt: "x"})
	require.Error(t, err)

	var bErr *backend.Error
	require.ErrorAs(t, err, &bErr)
	assert.Equal(t, http.StatusUnauthorized, bErr.Status)
	// 401 is not retried.
	assert.Equal(t, int64(1), calls.Load())
}

func TestOpenAI_RetriesOn5xx(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "upstream hiccup", http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(openAICompletion("après relance"))
	}))
	defer srv.Close()

	a, err := backend.New(openAIProfile(srv.URL))
	require.NoError(t, err)

	res, err := a.Generate(context.Background(), &backend.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "après relance", res.Text)
	assert.Equal(t, int64(2), calls.Load())
}

func TestAzure_AuthHeader(t *testing.T) {
	var gotAPIKey, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("api-key")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(openAICompletion("ok"))
	}))
	defer srv.Close()

	a, err := backend.New(&models.BackendProfile{
		ID:       "azure",
		Kind:     "azure-openai",
		Endpoint: srv.URL,
		Model:    "gpt-test",
		Config:   map[string]interface{}{"api_key": "az-key"},
	})
	require.NoError(t, err)

	_, err = a.Generate(context.Background(), &backend.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "az-key", gotAPIKey)
	assert.Empty(t, gotAuth)
}

func TestAnthropic_Generate(t *testing.T) {
	var gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotVersion = r.Header.Get("anthropic-version")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "claude-test",
			"content": []map[string]string{
				{"type": "text", "text": "Première partie. "},
				{"type": "text", "text": "Seconde partie."},
			},
		})
	}))
	defer srv.Close()

	a, err := backend.New(&models.BackendProfile{
		ID:       "anthropic",
		Kind:     "anthropic",
		Endpoint: srv.URL,
		Model:    "claude-test",
		Config:   map[string]interface{}{"api_key": "sk-ant"},
	})
	require.NoError(t, err)

	res, err := a.Generate(context.Background(), &backend.Request{Prompt: "x", System: "juriste"})
	require.NoError(t, err)
	assert.Equal(t, "Première partie. Seconde partie.", res.Text)
	assert.NotEmpty(t, gotVersion)
}

func TestOllama_GenerateAndProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/chat/completions":
			json.NewEncoder(w).Encode(openAICompletion("réponse locale"))
		case "/api/tags":
			json.NewEncoder(w).Encode(map[string]interface{}{"models": []string{}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	a, err := backend.New(&models.BackendProfile{
		ID:       "ollama",
		Kind:     "ollama",
		Endpoint: srv.URL,
		Model:    "llama3",
	})
	require.NoError(t, err)

	res, err := a.Generate(context.Background(), &backend.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "réponse locale", res.Text)

	require.NoError(t, a.Probe(context.Background()))
}

func TestLLMReviser_MergesDrafts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		json.NewDecoder(r.Body).Decode(&req)
		messages := req["messages"].([]interface{})
		last := messages[len(messages)-1].(map[string]interface{})
		prompt := last["content"].(string)

		assert.Contains(t, prompt, "Projet actuel")
		assert.Contains(t, prompt, "Nouvelle version")
		json.NewEncoder(w).Encode(openAICompletion("document fusionné"))
	}))
	defer srv.Close()

	a, err := backend.New(openAIProfile(srv.URL))
	require.NoError(t, err)

	r := backend.NewLLMReviser(a)
	got, err := r.Revise(context.Background(), "le brouillon", "la nouvelle version")
	require.NoError(t, err)
	assert.Equal(t, "document fusionné", got)
}

func TestLLMReviser_EmptyRevisionKeepsDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openAICompletion(""))
	}))
	defer srv.Close()

	a, err := backend.New(openAIProfile(srv.URL))
	require.NoError(t, err)

	r := backend.NewLLMReviser(a)
	got, err := r.Revise(context.Background(), "le brouillon", "n'importe quoi")
	require.NoError(t, err)
	assert.Equal(t, "le brouillon", got)
}
