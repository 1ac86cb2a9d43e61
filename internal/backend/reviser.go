package backend

import (
	"context"
	"fmt"
)

const reviserSystemPrompt = "Tu es un expert en synthèse juridique. " +
	"Révise le projet de document en intégrant les meilleurs éléments de la nouvelle version, " +
	"sans perdre de contenu essentiel. Rends uniquement le document révisé."

// LLMReviser implements RevisionAdapter by asking a backend to merge the
// new source into the current draft. Sequential fusion mode uses one of
// these per request; it is the documented higher-latency path.
type LLMReviser struct {
	adapter Adapter
}

// NewLLMReviser wraps an adapter as a revision adapter.
func NewLLMReviser(adapter Adapter) *LLMReviser {
	return &LLMReviser{adapter: adapter}
}

func (r *LLMReviser) Revise(ctx context.Context, draft, source string) (string, error) {
	prompt := fmt.Sprintf(
		"### Projet actuel:\n%s\n\n### Nouvelle version à intégrer:\n%s\n\n### Document révisé:\n",
		draft, source)

	res, err := r.adapter.Generate(ctx, &Request{
		Prompt:      prompt,
		System:      reviserSystemPrompt,
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("revision call: %w", err)
	}
	if res.Text == "" {
		// An empty revision would silently drop the draft; keep it instead.
		return draft, nil
	}
	return res.Text, nil
}
