package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lexfuse/lexfuse/internal/backend"
	"github.com/lexfuse/lexfuse/internal/dispatch"
	"github.com/lexfuse/lexfuse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter is a scriptable test backend.
type fakeAdapter struct {
	text  string
	err   error
	delay time.Duration
}

func (f *fakeAdapter) Generate(ctx context.Context, req *backend.Request) (*backend.Result, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &backend.Result{Text: f.text}, nil
}

func (f *fakeAdapter) Probe(ctx context.Context) error { return f.err }

func testProfiles(ids ...string) map[string]*models.BackendProfile {
	profiles := make(map[string]*models.BackendProfile, len(ids))
	for _, id := range ids {
		profiles[id] = &models.BackendProfile{ID: id, Kind: "openai", Quality: 4.0}
	}
	return profiles
}

func TestDispatch_EmptyBackendList(t *testing.T) {
	d := dispatch.New(time.Second)
	req := &models.GenerationRequest{BackendIDs: nil}

	_, err := d.Dispatch(context.Background(), req, nil, nil, &backend.Request{}, nil)

	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "backends", vErr.Field)
}

func TestDispatch_UnknownBackendID(t *testing.T) {
	d := dispatch.New(time.Second)
	req := &models.GenerationRequest{BackendIDs: []string{"a", "ghost"}}
	adapters := map[string]backend.Adapter{
		"a": &fakeAdapter{text: "ok"},
	}

	_, err := d.Dispatch(context.Background(), req, testProfiles("a"), adapters, &backend.Request{}, nil)

	var vErr *models.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Reason, "ghost")
}

func TestDispatch_OutcomesInRequestOrder(t *testing.T) {
	d := dispatch.New(5 * time.Second)
	req := &models.GenerationRequest{BackendIDs: []string{"slow", "mid", "fast"}}
	adapters := map[string]backend.Adapter{
		"slow": &fakeAdapter{text: "from slow", delay: 60 * time.Millisecond},
		"mid":  &fakeAdapter{text: "from mid", delay: 30 * time.Millisecond},
		"fast": &fakeAdapter{text: "from fast"},
	}

	outcomes, err := d.Dispatch(context.Background(), req, testProfiles("slow", "mid", "fast"), adapters, &backend.Request{}, nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	assert.Equal(t, "slow", outcomes[0].BackendID)
	assert.Equal(t, "mid", outcomes[1].BackendID)
	assert.Equal(t, "fast", outcomes[2].BackendID)
	assert.Equal(t, "from slow", outcomes[0].Text)
}

func TestDispatch_FailureDoesNotAbortSiblings(t *testing.T) {
	d := dispatch.New(5 * time.Second)
	req := &models.GenerationRequest{BackendIDs: []string{"broken", "ok"}}
	adapters := map[string]backend.Adapter{
		"broken": &fakeAdapter{err: errors.New("connection refused")},
		"ok":     &fakeAdapter{text: "still here", delay: 20 * time.Millisecond},
	}

	outcomes, err := d.Dispatch(context.Background(), req, testProfiles("broken", "ok"), adapters, &backend.Request{}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailure, outcomes[0].Status)
	assert.Contains(t, outcomes[0].Err, "connection refused")
	assert.Equal(t, models.OutcomeSuccess, outcomes[1].Status)
	assert.Equal(t, "still here", outcomes[1].Text)
}

func TestDispatch_TimeoutStatus(t *testing.T) {
	d := dispatch.New(20 * time.Millisecond)
	req := &models.GenerationRequest{BackendIDs: []string{"laggard", "ok"}}
	adapters := map[string]backend.Adapter{
		"laggard": &fakeAdapter{text: "too late", delay: 500 * time.Millisecond},
		"ok":      &fakeAdapter{text: "fast enough"},
	}

	outcomes, err := d.Dispatch(context.Background(), req, testProfiles("laggard", "ok"), adapters, &backend.Request{}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeTimeout, outcomes[0].Status)
	assert.Empty(t, outcomes[0].Text)
	assert.Equal(t, models.OutcomeSuccess, outcomes[1].Status)
	assert.Equal(t, models.ExcludedTimeout, dispatch.ExclusionReason(&outcomes[0]))
}

func TestDispatch_AllFailed(t *testing.T) {
	d := dispatch.New(time.Second)
	req := &models.GenerationRequest{BackendIDs: []string{"a", "b"}}
	adapters := map[string]backend.Adapter{
		"a": &fakeAdapter{err: errors.New("boom a")},
		"b": &fakeAdapter{err: errors.New("boom b")},
	}

	_, err := d.Dispatch(context.Background(), req, testProfiles("a", "b"), adapters, &backend.Request{}, nil)

	var allErr *models.AllBackendsFailedError
	require.ErrorAs(t, err, &allErr)
	assert.Len(t, allErr.Reasons, 2)
	assert.Contains(t, allErr.Reasons["a"], "boom a")
	assert.Contains(t, allErr.Reasons["b"], "boom b")
}

func TestDispatch_EmptyResponseIsFailure(t *testing.T) {
	d := dispatch.New(time.Second)
	req := &models.GenerationRequest{BackendIDs: []string{"hollow", "ok"}}
	adapters := map[string]backend.Adapter{
		"hollow": &fakeAdapter{text: "   \n  "},
		"ok":     &fakeAdapter{text: "real text"},
	}

	outcomes, err := d.Dispatch(context.Background(), req, testProfiles("hollow", "ok"), adapters, &backend.Request{}, nil)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeFailure, outcomes[0].Status)
	assert.Equal(t, models.ExcludedEmptyResponse, dispatch.ExclusionReason(&outcomes[0]))
}

func TestDispatch_ConfidenceDefaultsToProfileQuality(t *testing.T) {
	d := dispatch.New(time.Second)
	req := &models.GenerationRequest{BackendIDs: []string{"a"}}
	profiles := map[string]*models.BackendProfile{
		"a": {ID: "a", Kind: "openai", Quality: 4.0},
	}
	adapters := map[string]backend.Adapter{
		"a": &fakeAdapter{text: "hello"},
	}

	outcomes, err := d.Dispatch(context.Background(), req, profiles, adapters, &backend.Request{}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, outcomes[0].Confidence, 1e-9)
}

func TestDispatch_ProgressCallback(t *testing.T) {
	d := dispatch.New(time.Second)
	req := &models.GenerationRequest{BackendIDs: []string{"a", "b", "c"}}
	adapters := map[string]backend.Adapter{
		"a": &fakeAdapter{text: "a"},
		"b": &fakeAdapter{text: "b", delay: 10 * time.Millisecond},
		"c": &fakeAdapter{err: errors.New("down")},
	}

	var mu sync.Mutex
	var seen []int
	onProgress := func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, completed)
		assert.Equal(t, 3, total)
	}

	_, err := d.Dispatch(context.Background(), req, testProfiles("a", "b", "c"), adapters, &backend.Request{}, onProgress)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
	assert.Contains(t, seen, 3)
}

func TestDispatch_ContextCancellation(t *testing.T) {
	d := dispatch.New(5 * time.Second)
	req := &models.GenerationRequest{BackendIDs: []string{"a"}}
	adapters := map[string]backend.Adapter{
		"a": &fakeAdapter{text: "never", delay: time.Second},
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := d.Dispatch(ctx, req, testProfiles("a"), adapters, &backend.Request{}, nil)
	require.ErrorIs(t, err, context.Canceled)
}
