// Package server provides the public entry point for initializing the
// LexFuse generation server.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(":8080", srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lexfuse/lexfuse/internal/api"
	"github.com/lexfuse/lexfuse/internal/api/handlers"
	"github.com/lexfuse/lexfuse/internal/config"
	"github.com/lexfuse/lexfuse/internal/fusion"
	"github.com/lexfuse/lexfuse/internal/registry"
	"github.com/lexfuse/lexfuse/internal/store"
	"github.com/lexfuse/lexfuse/internal/telemetry"

	"github.com/rs/zerolog/log"
)

// Config is the public configuration for the LexFuse server.
type Config struct {
	Port         int
	Version      string
	DatabasePath string
	OTELEnabled  bool
	OTELEndpoint string
	ServiceName  string
}

// Server holds the initialized LexFuse server.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the data store backing registries and the audit log.
	Store store.Store

	// Engine is the fusion engine, exposed for embedding callers.
	Engine *fusion.Engine

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown to flush telemetry.
	ShutdownFunc func(context.Context) error
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	cfg := config.Load()
	return &Config{
		Port:         cfg.Port,
		Version:      cfg.Version,
		DatabasePath: cfg.Database.Path,
		OTELEnabled:  cfg.Telemetry.Enabled,
		OTELEndpoint: cfg.Telemetry.OTLPEndpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
	}
}

// New initializes all server components and returns a ready Server.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, LoadConfig())
}

// NewWithConfig initializes the server with an explicit configuration.
func NewWithConfig(ctx context.Context, pubCfg *Config) (*Server, error) {
	cfg := config.Load()
	if pubCfg.Port > 0 {
		cfg.Port = pubCfg.Port
	}
	if pubCfg.DatabasePath != "" {
		cfg.Database.Path = pubCfg.DatabasePath
	}

	shutdown, err := telemetry.Init(cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	// SQLite persists the audit trail across restarts; the in-memory
	// store is the zero-config default.
	var dataStore store.Store
	if cfg.Database.Path != "" {
		dataStore, err = store.NewSQLiteStore(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		log.Info().Str("path", cfg.Database.Path).Msg("✅ SQLite store initialized")
	} else {
		dataStore = store.NewMemoryStore()
		log.Info().Msg("✅ In-memory store initialized")
	}

	if err := registry.Seed(ctx, dataStore, cfg.Registry); err != nil {
		return nil, fmt.Errorf("seed registries: %w", err)
	}
	log.Info().Msg("✅ Registries seeded")

	engine := fusion.NewEngine(dataStore, cfg.Engine)
	log.Info().Msg("✅ Fusion engine initialized")

	h := handlers.New(dataStore, engine, cfg.Version)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Store:        dataStore,
		Engine:       engine,
		Port:         cfg.Port,
		ShutdownFunc: shutdown,
	}, nil
}
