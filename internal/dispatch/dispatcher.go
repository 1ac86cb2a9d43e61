// Package dispatch implements the concurrent backend fan-out.
//
// One task per selected backend runs under its own timeout; adapter
// failures are converted into failure outcomes and never abort sibling
// tasks. Outcomes are returned in request order regardless of completion
// order, so downstream tie-breaks are deterministic.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lexfuse/lexfuse/internal/backend"
	"github.com/lexfuse/lexfuse/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// emptyResponseErr marks a success-shaped adapter reply with no text.
// The fusion layer maps it to the empty_response exclusion reason.
const emptyResponseErr = "empty response"

// ProgressFunc is invoked as each backend task settles, with the number
// of settled tasks and the total. It is called from the task goroutines
// and must be safe for concurrent use. Observability only: it has no
// effect on control flow.
type ProgressFunc func(completed, total int)

// Dispatcher fans one generation request out to N backends concurrently.
type Dispatcher struct {
	timeout time.Duration
}

// New creates a dispatcher with the given per-backend timeout.
func New(timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Dispatcher{timeout: timeout}
}

// Dispatch runs one task per backend id in req and collects their
// outcomes in req.BackendIDs order.
//
// It fails fast with *models.ValidationError before any task starts if
// the id list is empty or references an unknown profile. If every task
// ends in failure or timeout it returns *models.AllBackendsFailedError
// and no outcomes. Cancelling ctx propagates to all running tasks.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	req *models.GenerationRequest,
	profiles map[string]*models.BackendProfile,
	adapters map[string]backend.Adapter,
	call *backend.Request,
	onProgress ProgressFunc,
) ([]models.GenerationOutcome, error) {
	if len(req.BackendIDs) == 0 {
		return nil, &models.ValidationError{Field: "backends", Reason: "no backends selected"}
	}
	for _, id := range req.BackendIDs {
		if _, ok := profiles[id]; !ok {
			return nil, &models.ValidationError{Field: "backends", Reason: "unknown backend id: " + id}
		}
		if _, ok := adapters[id]; !ok {
			return nil, &models.ValidationError{Field: "backends", Reason: "no adapter for backend: " + id}
		}
	}

	total := len(req.BackendIDs)
	outcomes := make([]models.GenerationOutcome, total)
	var settled atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range req.BackendIDs {
		i, id := i, id
		g.Go(func() error {
			outcomes[i] = d.runOne(gctx, id, profiles[id], adapters[id], call)
			if onProgress != nil {
				onProgress(int(settled.Add(1)), total)
			}
			// Always nil: one backend's failure must not cancel siblings.
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reasons := make(map[string]string, total)
	for _, o := range outcomes {
		if o.Succeeded() {
			reasons = nil
			break
		}
		reasons[o.BackendID] = o.Err
	}
	if reasons != nil {
		return nil, &models.AllBackendsFailedError{Reasons: reasons}
	}

	return outcomes, nil
}

// runOne executes a single backend task bounded by its own timeout and
// converts any adapter error into a terminal outcome status.
func (d *Dispatcher) runOne(
	ctx context.Context,
	id string,
	profile *models.BackendProfile,
	adapter backend.Adapter,
	call *backend.Request,
) models.GenerationOutcome {
	taskCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	res, err := adapter.Generate(taskCtx, call)
	elapsed := time.Since(start)

	if err != nil {
		status := models.OutcomeFailure
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			status = models.OutcomeTimeout
		}
		log.Warn().
			Str("backend", id).
			Str("status", string(status)).
			Dur("elapsed", elapsed).
			Err(err).
			Msg("Backend task settled without text")
		return models.GenerationOutcome{
			BackendID: id,
			Status:    status,
			Elapsed:   elapsed,
			Err:       err.Error(),
		}
	}

	if strings.TrimSpace(res.Text) == "" {
		return models.GenerationOutcome{
			BackendID: id,
			Status:    models.OutcomeFailure,
			Elapsed:   elapsed,
			Err:       emptyResponseErr,
		}
	}

	confidence := res.Confidence
	if confidence <= 0 {
		confidence = profile.QualityNorm()
	}

	log.Debug().
		Str("backend", id).
		Dur("elapsed", elapsed).
		Int("chars", len(res.Text)).
		Msg("Backend task succeeded")

	return models.GenerationOutcome{
		BackendID:  id,
		Status:     models.OutcomeSuccess,
		Text:       res.Text,
		Elapsed:    elapsed,
		Confidence: confidence,
	}
}

// ExclusionReason maps a non-success outcome to its reason code.
func ExclusionReason(o *models.GenerationOutcome) models.ExclusionReason {
	switch {
	case o.Status == models.OutcomeTimeout:
		return models.ExcludedTimeout
	case o.Err == emptyResponseErr:
		return models.ExcludedEmptyResponse
	default:
		return models.ExcludedTransportError
	}
}
