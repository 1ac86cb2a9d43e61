// Package models defines the shared domain types for the LexFuse
// generation engine: requests, backend profiles, per-backend outcomes,
// extracted sections, fusion results, and the error taxonomy.
//
// Everything here is plain data. All values are created inside one
// generation request and discarded with it; nothing is shared mutably
// across requests.
package models

import (
	"fmt"
	"strings"
	"time"
)

// ── Fusion Modes ─────────────────────────────────────────────

// FusionMode selects how multiple backend outcomes are merged.
type FusionMode string

const (
	// FusionConsensus picks the highest-scoring backend per section.
	FusionConsensus FusionMode = "consensus"
	// FusionBestOf returns one backend's raw text verbatim.
	FusionBestOf FusionMode = "best_of"
	// FusionComplementary assigns sections by declared backend strengths.
	FusionComplementary FusionMode = "complementary"
	// FusionSequential chains backends as an ordered revision pipeline.
	// The only mode that issues calls beyond the initial dispatch, and
	// therefore the higher-latency path.
	FusionSequential FusionMode = "sequential"
)

// ValidFusionMode reports whether m is one of the four known modes.
func ValidFusionMode(m FusionMode) bool {
	switch m {
	case FusionConsensus, FusionBestOf, FusionComplementary, FusionSequential:
		return true
	}
	return false
}

// ── Backend Profiles ─────────────────────────────────────────

// SpeedTier is a coarse latency class for a backend.
type SpeedTier string

const (
	SpeedFast     SpeedTier = "fast"
	SpeedStandard SpeedTier = "standard"
	SpeedSlow     SpeedTier = "slow"
)

// CostTier is a coarse price class for a backend.
type CostTier string

const (
	CostLow    CostTier = "low"
	CostMedium CostTier = "medium"
	CostHigh   CostTier = "high"
)

// BackendProfile is the static, read-only registry entry for one
// text-generation backend.
type BackendProfile struct {
	ID          string    `json:"id" yaml:"id"`
	DisplayName string    `json:"display_name" yaml:"display_name"`
	Kind        string    `json:"kind" yaml:"kind"` // driver kind: openai, azure-openai, anthropic, ollama
	Endpoint    string    `json:"endpoint,omitempty" yaml:"endpoint"`
	Model       string    `json:"model,omitempty" yaml:"model"`
	Quality     float64   `json:"quality" yaml:"quality"` // [0,5]
	Speed       SpeedTier `json:"speed" yaml:"speed"`
	Cost        CostTier  `json:"cost" yaml:"cost"`
	Strengths   []string  `json:"strengths,omitempty" yaml:"strengths"` // capability tags, e.g. "argumentation"

	// Config holds driver-specific settings (api_key_env, max_tokens...).
	Config map[string]interface{} `json:"config,omitempty" yaml:"config"`
}

// QualityNorm returns the profile quality normalized to [0,1].
func (p *BackendProfile) QualityNorm() float64 {
	q := p.Quality / 5.0
	if q < 0 {
		return 0
	}
	if q > 1 {
		return 1
	}
	return q
}

// HasStrength reports whether the profile declares the given capability tag.
func (p *BackendProfile) HasStrength(tag string) bool {
	for _, s := range p.Strengths {
		if strings.EqualFold(s, tag) {
			return true
		}
	}
	return false
}

// ── Document-Type Configuration ──────────────────────────────

// LengthBand is the expected word-count range for one section type.
type LengthBand struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// DocTypeConfig is the read-only per-document-type configuration:
// canonical section order, expected length bands, domain keywords, and
// the section→capability mapping used by Complementary fusion.
type DocTypeConfig struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`

	// SystemPrompt is sent as system instructions to every backend.
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt"`

	// PromptTemplate builds the user prompt; {{key}} placeholders are
	// substituted from the request parameters.
	PromptTemplate string `json:"prompt_template,omitempty" yaml:"prompt_template"`

	// CanonicalSections is the output order for fused sections.
	CanonicalSections []string `json:"canonical_sections" yaml:"canonical_sections"`

	// LengthBands maps section name → expected word-count band.
	LengthBands map[string]LengthBand `json:"length_bands,omitempty" yaml:"length_bands"`

	// Keywords is the domain vocabulary used by the scorer's density term.
	Keywords []string `json:"keywords,omitempty" yaml:"keywords"`

	// SectionCapabilities maps section name → capability tags a backend
	// should declare to own that section in Complementary mode.
	SectionCapabilities map[string][]string `json:"section_capabilities,omitempty" yaml:"section_capabilities"`

	// SectionImportance weights each section in Best-Of aggregation.
	// Missing sections default to 1.0.
	SectionImportance map[string]float64 `json:"section_importance,omitempty" yaml:"section_importance"`
}

// Importance returns the Best-Of weight for a section, defaulting to 1.0.
func (c *DocTypeConfig) Importance(section string) float64 {
	if w, ok := c.SectionImportance[section]; ok && w > 0 {
		return w
	}
	return 1.0
}

// ── Generation Request ───────────────────────────────────────

// GenerationRequest is the canonical request sent to the fusion engine.
// Immutable once dispatch starts.
type GenerationRequest struct {
	DocType     string            `json:"doc_type"`
	Params      map[string]string `json:"params,omitempty"`
	TargetWords int               `json:"target_words,omitempty"`
	BackendIDs  []string          `json:"backends"`
	Mode        FusionMode        `json:"fusion_mode"`
}

// ── Generation Outcomes ──────────────────────────────────────

// OutcomeStatus is the terminal state of one backend task.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
	OutcomeTimeout OutcomeStatus = "timeout"
)

// GenerationOutcome is the immutable result of one backend's attempt for
// one request. Text is set only on success.
type GenerationOutcome struct {
	BackendID  string        `json:"backend_id"`
	Status     OutcomeStatus `json:"status"`
	Text       string        `json:"-"`
	Elapsed    time.Duration `json:"elapsed_ms"`
	Confidence float64       `json:"confidence"`
	Err        string        `json:"error,omitempty"`
}

// Succeeded reports whether the outcome carries usable text.
func (o *GenerationOutcome) Succeeded() bool {
	return o.Status == OutcomeSuccess
}

// ── Sections & Scores ────────────────────────────────────────

// Section is one named, ordered substructure of a generated document.
// Heading keeps the backend's original heading line ("" for the implicit
// preamble/body sections); Text is the section body without the heading.
type Section struct {
	Name    string `json:"name"`
	Heading string `json:"heading,omitempty"`
	Text    string `json:"text"`
}

// WordCount returns the number of whitespace-separated words in the body.
func (s *Section) WordCount() int {
	return len(strings.Fields(s.Text))
}

// Render reconstructs the section as it should appear in a document.
func (s *Section) Render() string {
	if s.Heading == "" {
		return s.Text
	}
	if s.Text == "" {
		return s.Heading
	}
	return s.Heading + "\n" + s.Text
}

// SectionMap holds the ordered sections extracted from each successful
// backend, keyed by backend id. Derived per request, never persisted.
type SectionMap map[string][]Section

// ScoreMap holds the scalar score in [0,1] for each (backend, section)
// pair: backend id → section name → score.
type ScoreMap map[string]map[string]float64

// Get returns the score for (backendID, section), or 0 if absent.
func (m ScoreMap) Get(backendID, section string) float64 {
	if s, ok := m[backendID]; ok {
		return s[section]
	}
	return 0
}

// ── Fusion Result ────────────────────────────────────────────

// ExclusionReason explains why a backend contributed nothing to the result.
type ExclusionReason string

const (
	ExcludedTimeout        ExclusionReason = "timeout"
	ExcludedTransportError ExclusionReason = "transport_error"
	ExcludedEmptyResponse  ExclusionReason = "empty_response"
)

// SequentialChain is the provenance value recorded for text produced by
// the sequential revision pipeline rather than a single backend.
const SequentialChain = "sequential-chain"

// FusionResult is the final merged document with its provenance.
//
// Invariant: the key set of Provenance equals exactly the section names
// composing FinalText, and every referenced backend had status=success.
type FusionResult struct {
	FinalText string `json:"final_text"`

	// Provenance maps section name → contributing backend id, or the
	// SequentialChain marker for sequential mode.
	Provenance map[string]string `json:"provenance"`

	// SectionOrder is the order in which provenance sections appear in
	// FinalText.
	SectionOrder []string `json:"section_order"`

	// Chain is the ordered backend revision chain (sequential mode only).
	Chain []string `json:"chain,omitempty"`

	AggregateConfidence float64 `json:"aggregate_confidence"`

	// Outcomes reports each selected backend's terminal status, latency,
	// and confidence. Generated text is never echoed here.
	Outcomes []GenerationOutcome `json:"outcomes,omitempty"`

	// ExcludedBackends maps backend id → reason code for every selected
	// backend that contributed nothing. No silent data loss.
	ExcludedBackends map[string]ExclusionReason `json:"excluded_backends"`

	Mode    FusionMode    `json:"fusion_mode"`
	Elapsed time.Duration `json:"elapsed_ms"`
	TraceID string        `json:"trace_id,omitempty"`
}

// ── Generation Trace (audit log) ─────────────────────────────

// GenerationTrace is the persisted audit record of one engine call.
// It carries request metadata and per-backend statuses, never the
// generated text itself.
type GenerationTrace struct {
	ID         string     `json:"id"`
	DocType    string     `json:"doc_type"`
	Mode       FusionMode `json:"fusion_mode"`
	BackendIDs []string   `json:"backends"`
	Statuses   string     `json:"statuses"` // "openai=success,mistral=timeout"
	Provenance string     `json:"provenance"`
	Confidence float64    `json:"confidence"`
	DurationMs int64      `json:"duration_ms"`
	Status     string     `json:"status"` // completed | failed
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ── Error Taxonomy ───────────────────────────────────────────

// ValidationError reports a request rejected before any backend task
// started.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// AllBackendsFailedError is fatal: every selected backend ended in
// failure or timeout and no FusionResult can be produced.
type AllBackendsFailedError struct {
	// Reasons maps backend id → terminal error string.
	Reasons map[string]string
}

func (e *AllBackendsFailedError) Error() string {
	parts := make([]string, 0, len(e.Reasons))
	for id, reason := range e.Reasons {
		parts = append(parts, id+": "+reason)
	}
	return "all backends failed: " + strings.Join(parts, "; ")
}
