// Package store provides the storage interface and implementations for
// LexFuse. The in-memory store serves zero-configuration deployments and
// tests; the SQLite store adds a persistent generation audit log.
package store

import (
	"context"
	"errors"

	"github.com/lexfuse/lexfuse/pkg/models"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Store is the primary storage interface. Handlers and the fusion engine
// depend on this interface, so the in-memory and SQLite implementations
// are interchangeable.
type Store interface {
	ProfileStore
	DocTypeStore
	TraceStore

	// Ping checks if the store is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ── Backend Profile Store ────────────────────────────────────

// ProfileStore holds the read-mostly backend profile registry.
type ProfileStore interface {
	ListProfiles(ctx context.Context) ([]models.BackendProfile, error)
	GetProfile(ctx context.Context, id string) (*models.BackendProfile, error)
	PutProfile(ctx context.Context, p *models.BackendProfile) error
	DeleteProfile(ctx context.Context, id string) error
}

// ── Document-Type Store ──────────────────────────────────────

// DocTypeStore holds the read-mostly document-type configurations.
type DocTypeStore interface {
	ListDocTypes(ctx context.Context) ([]models.DocTypeConfig, error)
	GetDocType(ctx context.Context, id string) (*models.DocTypeConfig, error)
	PutDocType(ctx context.Context, c *models.DocTypeConfig) error
}

// ── Generation Trace Store ───────────────────────────────────

// TraceStore is the generation audit log. Traces record request metadata
// and per-backend statuses, never generated text.
type TraceStore interface {
	CreateTrace(ctx context.Context, t *models.GenerationTrace) error
	GetTrace(ctx context.Context, id string) (*models.GenerationTrace, error)
	ListTraces(ctx context.Context, limit int) ([]models.GenerationTrace, error)
}
