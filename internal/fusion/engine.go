package fusion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lexfuse/lexfuse/internal/backend"
	"github.com/lexfuse/lexfuse/internal/config"
	"github.com/lexfuse/lexfuse/internal/dispatch"
	"github.com/lexfuse/lexfuse/internal/section"
	"github.com/lexfuse/lexfuse/internal/store"
	"github.com/lexfuse/lexfuse/pkg/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AdapterFactory builds the adapter for one backend profile. Swappable
// so tests can substitute in-process fakes for the HTTP drivers.
type AdapterFactory func(*models.BackendProfile) (backend.Adapter, error)

// Engine wires the full generation pipeline: validate → dispatch →
// extract/score → fuse → trace. It holds no per-request state; every
// call loads its own immutable profile and document-type snapshots, so
// the engine is reentrant.
type Engine struct {
	store      store.Store
	dispatcher *dispatch.Dispatcher
	extractor  *section.Extractor
	scorer     *section.Scorer

	adapters AdapterFactory
	reviser  backend.RevisionAdapter // nil: derive from the chain's first backend
	tracer   trace.Tracer
}

// NewEngine creates a fusion engine over the given store and tuning.
func NewEngine(s store.Store, cfg config.EngineConfig) *Engine {
	return &Engine{
		store:      s,
		dispatcher: dispatch.New(cfg.BackendTimeout),
		extractor:  section.NewExtractor(section.ExtractorConfig{MaxHeadingWords: cfg.MaxHeadingWords}),
		scorer: section.NewScorer(section.Weights{
			LengthFit: cfg.WeightLengthFit,
			Density:   cfg.WeightDensity,
			Quality:   cfg.WeightQuality,
		}),
		adapters: backend.New,
		tracer:   otel.Tracer("lexfuse/fusion"),
	}
}

// SetAdapterFactory overrides how adapters are built.
func (e *Engine) SetAdapterFactory(f AdapterFactory) { e.adapters = f }

// SetReviser overrides the sequential-mode revision adapter.
func (e *Engine) SetReviser(r backend.RevisionAdapter) { e.reviser = r }

// Generate runs one full fusion call.
func (e *Engine) Generate(ctx context.Context, req *models.GenerationRequest) (*models.FusionResult, error) {
	return e.GenerateWithProgress(ctx, req, nil)
}

// GenerateWithProgress is Generate with an optional progress sink that is
// invoked as each backend task settles.
func (e *Engine) GenerateWithProgress(ctx context.Context, req *models.GenerationRequest, onProgress dispatch.ProgressFunc) (*models.FusionResult, error) {
	traceID := uuid.New().String()
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "fusion.generate",
		trace.WithAttributes(
			attribute.String("doc_type", req.DocType),
			attribute.String("fusion_mode", string(req.Mode)),
			attribute.Int("backends", len(req.BackendIDs)),
		))
	defer span.End()

	docType, profiles, err := e.loadConfig(ctx, req)
	if err != nil {
		return nil, err
	}

	adapters := make(map[string]backend.Adapter, len(profiles))
	for id, p := range profiles {
		a, err := e.adapters(p)
		if err != nil {
			return nil, &models.ValidationError{Field: "backends", Reason: err.Error()}
		}
		adapters[id] = a
	}

	call := buildCall(docType, req)

	outcomes, err := e.dispatcher.Dispatch(ctx, req, profiles, adapters, call, onProgress)
	if err != nil {
		e.recordTrace(ctx, traceID, req, outcomes, nil, err, time.Since(start))
		return nil, err
	}

	in := &strategyInput{
		req:      req,
		docType:  docType,
		profiles: profiles,
		outcomes: outcomes,
		sections: e.extractSections(outcomes),
	}
	in.scores = e.scorer.ScoreAll(in.sections, profiles, docType)

	result, err := e.fuse(ctx, req.Mode, in, adapters)
	if err != nil {
		e.recordTrace(ctx, traceID, req, outcomes, nil, err, time.Since(start))
		return nil, err
	}

	// Every excluded backend appears with a reason code. Non-fatal:
	// processing continued on the remaining outcomes.
	for i := range outcomes {
		o := &outcomes[i]
		if !o.Succeeded() {
			result.ExcludedBackends[o.BackendID] = dispatch.ExclusionReason(o)
		}
	}

	result.Outcomes = outcomes
	result.TraceID = traceID
	result.Elapsed = time.Since(start)
	e.recordTrace(ctx, traceID, req, outcomes, result, nil, result.Elapsed)

	log.Info().
		Str("trace_id", traceID).
		Str("doc_type", req.DocType).
		Str("mode", string(req.Mode)).
		Int("excluded", len(result.ExcludedBackends)).
		Dur("elapsed", result.Elapsed).
		Msg("Fusion complete")

	return result, nil
}

// loadConfig resolves the immutable per-call snapshots of the document
// type and the selected backend profiles.
func (e *Engine) loadConfig(ctx context.Context, req *models.GenerationRequest) (*models.DocTypeConfig, map[string]*models.BackendProfile, error) {
	if !models.ValidFusionMode(req.Mode) {
		return nil, nil, &models.ValidationError{Field: "fusion_mode", Reason: "unknown mode: " + string(req.Mode)}
	}
	if len(req.BackendIDs) == 0 {
		return nil, nil, &models.ValidationError{Field: "backends", Reason: "no backends selected"}
	}

	docType, err := e.store.GetDocType(ctx, req.DocType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, &models.ValidationError{Field: "doc_type", Reason: "unknown document type: " + req.DocType}
		}
		return nil, nil, fmt.Errorf("load document type: %w", err)
	}

	profiles := make(map[string]*models.BackendProfile, len(req.BackendIDs))
	for _, id := range req.BackendIDs {
		p, err := e.store.GetProfile(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil, &models.ValidationError{Field: "backends", Reason: "unknown backend id: " + id}
			}
			return nil, nil, fmt.Errorf("load backend profile: %w", err)
		}
		profiles[id] = p
	}
	return docType, profiles, nil
}

// extractSections derives the per-backend section lists for every
// successful outcome. A success always yields at least one section.
func (e *Engine) extractSections(outcomes []models.GenerationOutcome) models.SectionMap {
	sections := make(models.SectionMap)
	for i := range outcomes {
		if outcomes[i].Succeeded() {
			sections[outcomes[i].BackendID] = e.extractor.Extract(outcomes[i].Text)
		}
	}
	return sections
}

// fuse dispatches on the fusion mode through a closed table resolved per
// call. Sequential is special-cased: it drives the revision adapter.
func (e *Engine) fuse(ctx context.Context, mode models.FusionMode, in *strategyInput, adapters map[string]backend.Adapter) (*models.FusionResult, error) {
	if mode == models.FusionSequential {
		return e.fuseSequential(ctx, in, e.reviserFor(in, adapters))
	}

	table := map[models.FusionMode]strategyFunc{
		models.FusionConsensus:     fuseConsensus,
		models.FusionBestOf:        fuseBestOf,
		models.FusionComplementary: fuseComplementary,
	}
	strategy, ok := table[mode]
	if !ok {
		return nil, &models.ValidationError{Field: "fusion_mode", Reason: "unknown mode: " + string(mode)}
	}
	return strategy(ctx, in)
}

// reviserFor returns the configured revision adapter, or derives one from
// the first successful backend's own adapter.
func (e *Engine) reviserFor(in *strategyInput, adapters map[string]backend.Adapter) backend.RevisionAdapter {
	if e.reviser != nil {
		return e.reviser
	}
	for _, o := range in.successful() {
		if a, ok := adapters[o.BackendID]; ok {
			return backend.NewLLMReviser(a)
		}
	}
	return nil
}

// ── Prompt building ──────────────────────────────────────────

// buildCall renders the backend request from the document-type template
// and the request parameters. {{key}} placeholders are substituted;
// parameters without a placeholder are appended as a context block.
func buildCall(docType *models.DocTypeConfig, req *models.GenerationRequest) *backend.Request {
	prompt := docType.PromptTemplate
	if prompt == "" {
		prompt = "Rédige un document de type " + docType.DisplayName + "."
	}

	var leftovers []string
	for k, v := range req.Params {
		placeholder := "{{" + k + "}}"
		if strings.Contains(prompt, placeholder) {
			prompt = strings.ReplaceAll(prompt, placeholder, v)
		} else {
			leftovers = append(leftovers, "- "+k+": "+v)
		}
	}
	if len(leftovers) > 0 {
		prompt += "\n\nContexte:\n" + strings.Join(leftovers, "\n")
	}
	if req.TargetWords > 0 {
		prompt += fmt.Sprintf("\n\nLongueur cible: environ %d mots.", req.TargetWords)
	}

	return &backend.Request{
		Prompt:      prompt,
		System:      docType.SystemPrompt,
		Temperature: 0.7,
	}
}

// ── Audit trail ──────────────────────────────────────────────

func (e *Engine) recordTrace(ctx context.Context, traceID string, req *models.GenerationRequest, outcomes []models.GenerationOutcome, result *models.FusionResult, genErr error, elapsed time.Duration) {
	t := &models.GenerationTrace{
		ID:         traceID,
		DocType:    req.DocType,
		Mode:       req.Mode,
		BackendIDs: req.BackendIDs,
		Statuses:   statusSummary(outcomes),
		DurationMs: elapsed.Milliseconds(),
		Status:     "completed",
		CreatedAt:  time.Now().UTC(),
	}
	if genErr != nil {
		t.Status = "failed"
		t.Error = genErr.Error()
	}
	if result != nil {
		t.Provenance = provenanceSummary(result)
		t.Confidence = result.AggregateConfidence
	}

	if err := e.store.CreateTrace(ctx, t); err != nil {
		log.Warn().Err(err).Str("trace_id", traceID).Msg("Failed to record generation trace")
	}
}

func statusSummary(outcomes []models.GenerationOutcome) string {
	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		parts = append(parts, o.BackendID+"="+string(o.Status))
	}
	return strings.Join(parts, ",")
}

func provenanceSummary(result *models.FusionResult) string {
	parts := make([]string, 0, len(result.SectionOrder))
	for _, name := range result.SectionOrder {
		parts = append(parts, name+"="+result.Provenance[name])
	}
	return strings.Join(parts, ",")
}
