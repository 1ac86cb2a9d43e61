// Package registry seeds the backend profile and document-type
// registries: built-in defaults first, then optional YAML overlay files.
// Both registries are read-only for the duration of a request.
package registry

import (
	"context"
	"fmt"
	"os"

	"github.com/lexfuse/lexfuse/internal/config"
	"github.com/lexfuse/lexfuse/internal/store"
	"github.com/lexfuse/lexfuse/pkg/models"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Seed writes the built-in defaults into the store, then applies any
// configured YAML overlays. Overlay entries replace same-id defaults.
func Seed(ctx context.Context, s store.Store, cfg config.RegistryConfig) error {
	for _, p := range DefaultProfiles() {
		if err := s.PutProfile(ctx, &p); err != nil {
			return fmt.Errorf("seed profile %s: %w", p.ID, err)
		}
	}
	for _, d := range DefaultDocTypes() {
		if err := s.PutDocType(ctx, &d); err != nil {
			return fmt.Errorf("seed doc type %s: %w", d.ID, err)
		}
	}

	if cfg.ProfilesFile != "" {
		profiles, err := LoadProfilesFile(cfg.ProfilesFile)
		if err != nil {
			return err
		}
		for _, p := range profiles {
			if err := s.PutProfile(ctx, &p); err != nil {
				return fmt.Errorf("overlay profile %s: %w", p.ID, err)
			}
		}
		log.Info().Str("file", cfg.ProfilesFile).Int("profiles", len(profiles)).Msg("Profile overlay applied")
	}

	if cfg.DocTypesFile != "" {
		docTypes, err := LoadDocTypesFile(cfg.DocTypesFile)
		if err != nil {
			return err
		}
		for _, d := range docTypes {
			if err := s.PutDocType(ctx, &d); err != nil {
				return fmt.Errorf("overlay doc type %s: %w", d.ID, err)
			}
		}
		log.Info().Str("file", cfg.DocTypesFile).Int("doc_types", len(docTypes)).Msg("Document-type overlay applied")
	}

	return nil
}

// LoadProfilesFile parses a YAML file of the form:
//
//	profiles:
//	  - id: openai
//	    kind: openai
//	    ...
func LoadProfilesFile(path string) ([]models.BackendProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles file: %w", err)
	}
	var parsed struct {
		Profiles []models.BackendProfile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse profiles file: %w", err)
	}
	for i, p := range parsed.Profiles {
		if p.ID == "" {
			return nil, fmt.Errorf("profiles file %s: entry %d has no id", path, i)
		}
	}
	return parsed.Profiles, nil
}

// LoadDocTypesFile parses a YAML file with a top-level doc_types list.
func LoadDocTypesFile(path string) ([]models.DocTypeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read doc types file: %w", err)
	}
	var parsed struct {
		DocTypes []models.DocTypeConfig `yaml:"doc_types"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse doc types file: %w", err)
	}
	for i, d := range parsed.DocTypes {
		if d.ID == "" {
			return nil, fmt.Errorf("doc types file %s: entry %d has no id", path, i)
		}
	}
	return parsed.DocTypes, nil
}
