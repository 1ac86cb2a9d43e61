// Package fusion merges the outcomes of multiple generation backends
// into one document. It provides the four fusion strategies and the
// engine that orchestrates dispatch, extraction, scoring, and merging.
package fusion

import (
	"context"
	"strings"

	"github.com/lexfuse/lexfuse/internal/backend"
	"github.com/lexfuse/lexfuse/pkg/models"
	"github.com/rs/zerolog/log"
)

// strategyInput is everything a fusion strategy consumes. All fields are
// immutable for the duration of the call; strategies are pure apart from
// sequential, which drives the revision adapter.
type strategyInput struct {
	req      *models.GenerationRequest
	docType  *models.DocTypeConfig
	profiles map[string]*models.BackendProfile
	outcomes []models.GenerationOutcome
	sections models.SectionMap
	scores   models.ScoreMap
}

type strategyFunc func(ctx context.Context, in *strategyInput) (*models.FusionResult, error)

// successful returns the successful outcomes in request order.
func (in *strategyInput) successful() []*models.GenerationOutcome {
	var out []*models.GenerationOutcome
	for i := range in.outcomes {
		if in.outcomes[i].Succeeded() {
			out = append(out, &in.outcomes[i])
		}
	}
	return out
}

// distinctNames lists section names ordered by first appearance across
// successful backends, walking backends in request order.
func (in *strategyInput) distinctNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, o := range in.successful() {
		for _, sec := range in.sections[o.BackendID] {
			if !seen[sec.Name] {
				seen[sec.Name] = true
				names = append(names, sec.Name)
			}
		}
	}
	return names
}

// outputOrder arranges names for the final document: canonical sections
// of the document type first, then unknown names in first-seen order.
func (in *strategyInput) outputOrder(names []string) []string {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}

	placed := make(map[string]bool, len(names))
	var out []string
	for _, n := range in.docType.CanonicalSections {
		if present[n] && !placed[n] {
			placed[n] = true
			out = append(out, n)
		}
	}
	for _, n := range names {
		if !placed[n] {
			placed[n] = true
			out = append(out, n)
		}
	}
	return out
}

// findSection returns the named section produced by a backend, or nil.
func (in *strategyInput) findSection(backendID, name string) *models.Section {
	for i, sec := range in.sections[backendID] {
		if sec.Name == name {
			return &in.sections[backendID][i]
		}
	}
	return nil
}

// consensusWinner picks the successful backend with the highest score for
// the section; ties break by earliest position in request.BackendIDs.
// Returns "" if no successful backend produced the section.
func (in *strategyInput) consensusWinner(name string) string {
	winner := ""
	best := -1.0
	for _, o := range in.successful() {
		if in.findSection(o.BackendID, name) == nil {
			continue
		}
		if s := in.scores.Get(o.BackendID, name); s > best {
			best = s
			winner = o.BackendID
		}
	}
	return winner
}

// ── Consensus ────────────────────────────────────────────────

// fuseConsensus selects, for each distinct section name, the backend with
// the highest score for that name, then concatenates the winning sections
// in canonical order.
func fuseConsensus(ctx context.Context, in *strategyInput) (*models.FusionResult, error) {
	if err := requireSuccess(in); err != nil {
		return nil, err
	}

	order := in.outputOrder(in.distinctNames())

	result := &models.FusionResult{
		Mode:             models.FusionConsensus,
		Provenance:       make(map[string]string, len(order)),
		ExcludedBackends: make(map[string]models.ExclusionReason),
	}

	var parts []string
	var confSum float64
	for _, name := range order {
		winner := in.consensusWinner(name)
		if winner == "" {
			continue
		}
		sec := in.findSection(winner, name)
		parts = append(parts, sec.Render())
		result.Provenance[name] = winner
		result.SectionOrder = append(result.SectionOrder, name)
		confSum += in.scores.Get(winner, name)
	}

	result.FinalText = strings.Join(parts, "\n\n")
	if n := len(result.SectionOrder); n > 0 {
		result.AggregateConfidence = confSum / float64(n)
	}
	return result, nil
}

// ── Best-Of ──────────────────────────────────────────────────

// fuseBestOf computes one scalar per backend as the importance-weighted
// mean of its section scores and returns the top backend's raw text
// verbatim, unmodified. Ties break by lowest elapsed time.
func fuseBestOf(ctx context.Context, in *strategyInput) (*models.FusionResult, error) {
	if err := requireSuccess(in); err != nil {
		return nil, err
	}

	var winner *models.GenerationOutcome
	best := -1.0
	for _, o := range in.successful() {
		score := backendScalar(in, o.BackendID)
		switch {
		case score > best:
			best = score
			winner = o
		case score == best && o.Elapsed < winner.Elapsed:
			winner = o
		}
	}

	result := &models.FusionResult{
		Mode:                models.FusionBestOf,
		FinalText:           winner.Text,
		Provenance:          make(map[string]string),
		ExcludedBackends:    make(map[string]models.ExclusionReason),
		AggregateConfidence: best,
	}
	for _, sec := range in.sections[winner.BackendID] {
		if _, ok := result.Provenance[sec.Name]; ok {
			continue
		}
		result.Provenance[sec.Name] = winner.BackendID
		result.SectionOrder = append(result.SectionOrder, sec.Name)
	}
	return result, nil
}

// backendScalar is the importance-weighted mean of one backend's section
// scores, weighted by the document type's section importance.
func backendScalar(in *strategyInput, backendID string) float64 {
	var weighted, weightSum float64
	for _, sec := range in.sections[backendID] {
		w := in.docType.Importance(sec.Name)
		weighted += w * in.scores.Get(backendID, sec.Name)
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return weighted / weightSum
}

// ── Complementary ────────────────────────────────────────────

// fuseComplementary assigns each section to the backend whose declared
// strength tags best match the document type's section→capability map.
// Sections with no matching strength fall back to the consensus rule.
func fuseComplementary(ctx context.Context, in *strategyInput) (*models.FusionResult, error) {
	if err := requireSuccess(in); err != nil {
		return nil, err
	}

	order := in.outputOrder(in.distinctNames())

	result := &models.FusionResult{
		Mode:             models.FusionComplementary,
		Provenance:       make(map[string]string, len(order)),
		ExcludedBackends: make(map[string]models.ExclusionReason),
	}

	var parts []string
	var confSum float64
	for _, name := range order {
		winner := strengthWinner(in, name)
		if winner == "" {
			winner = in.consensusWinner(name)
		}
		if winner == "" {
			continue
		}
		sec := in.findSection(winner, name)
		parts = append(parts, sec.Render())
		result.Provenance[name] = winner
		result.SectionOrder = append(result.SectionOrder, name)
		confSum += in.scores.Get(winner, name)
	}

	result.FinalText = strings.Join(parts, "\n\n")
	if n := len(result.SectionOrder); n > 0 {
		result.AggregateConfidence = confSum / float64(n)
	}
	return result, nil
}

// strengthWinner picks the backend with the most declared capability tags
// for the section; "" when no backend declares any. Ties break by
// earliest position in request.BackendIDs.
func strengthWinner(in *strategyInput, name string) string {
	caps := in.docType.SectionCapabilities[name]
	if len(caps) == 0 {
		return ""
	}

	winner := ""
	best := 0
	for _, o := range in.successful() {
		if in.findSection(o.BackendID, name) == nil {
			continue
		}
		profile := in.profiles[o.BackendID]
		if profile == nil {
			continue
		}
		overlap := 0
		for _, tag := range caps {
			if profile.HasStrength(tag) {
				overlap++
			}
		}
		if overlap > best {
			best = overlap
			winner = o.BackendID
		}
	}
	return winner
}

// ── Sequential ───────────────────────────────────────────────

// fuseSequential treats the backend list as an ordered revision chain:
// the first successful outcome seeds the draft and each subsequent one is
// merged in by the revision adapter. A failed revision call excludes that
// backend and leaves the draft untouched.
func (e *Engine) fuseSequential(ctx context.Context, in *strategyInput, reviser backend.RevisionAdapter) (*models.FusionResult, error) {
	succ := in.successful()
	if len(succ) == 0 {
		return nil, allFailed(in)
	}

	result := &models.FusionResult{
		Mode:             models.FusionSequential,
		Provenance:       map[string]string{"body": models.SequentialChain},
		SectionOrder:     []string{"body"},
		ExcludedBackends: make(map[string]models.ExclusionReason),
	}

	draft := succ[0].Text
	chain := []string{succ[0].BackendID}
	confSum := succ[0].Confidence

	for _, o := range succ[1:] {
		revised, err := reviser.Revise(ctx, draft, o.Text)
		if err != nil {
			log.Warn().
				Str("backend", o.BackendID).
				Err(err).
				Msg("Revision call failed, skipping backend")
			result.ExcludedBackends[o.BackendID] = models.ExcludedTransportError
			continue
		}
		draft = revised
		chain = append(chain, o.BackendID)
		confSum += o.Confidence
	}

	result.FinalText = draft
	result.Chain = chain
	result.AggregateConfidence = confSum / float64(len(chain))
	return result, nil
}

// ── Shared failure semantics ─────────────────────────────────

func requireSuccess(in *strategyInput) error {
	if len(in.successful()) == 0 {
		return allFailed(in)
	}
	return nil
}

func allFailed(in *strategyInput) error {
	reasons := make(map[string]string, len(in.outcomes))
	for _, o := range in.outcomes {
		if !o.Succeeded() {
			reasons[o.BackendID] = o.Err
		}
	}
	return &models.AllBackendsFailedError{Reasons: reasons}
}
