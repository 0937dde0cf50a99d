package db

import (
	"context"
	"log"
	"sync"

	"github.com/MultiX0/dbgate/errs"
	"github.com/MultiX0/dbgate/models"
)

// ConfigService orchestrates descriptor CRUD: validation, connection
// verification, persistence and registry refresh. Writes are serialized.
type ConfigService struct {
	store    *ConfigStore
	registry *Registry
	mu       sync.Mutex
}

func NewConfigService(store *ConfigStore, registry *Registry) *ConfigService {
	return &ConfigService{store: store, registry: registry}
}

func (s *ConfigService) List(ctx context.Context) ([]models.DatabaseConfig, error) {
	return s.store.List(ctx)
}

func (s *ConfigService) GetByID(ctx context.Context, id string) (models.DatabaseConfig, error) {
	return s.store.GetByID(ctx, id)
}

// Create verifies the descriptor against a disposable connection before
// persisting and caching it.
func (s *ConfigService) Create(ctx context.Context, cfg models.DatabaseConfig) (models.DatabaseConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	if _, found, err := s.store.GetByName(ctx, cfg.Name); err != nil {
		return cfg, err
	} else if found {
		return cfg, errs.Newf(errs.KindConflict, "a config with this name already exists: %s", cfg.Name)
	}
	if err := Verify(ctx, cfg); err != nil {
		return cfg, err
	}

	saved, err := s.store.Insert(ctx, cfg)
	if err != nil {
		return cfg, err
	}

	if dbctx, err := Open(ctx, saved); err != nil {
		log.Printf("failed to cache execution context for config %s: %v", saved.ID, err)
	} else {
		s.registry.Install(saved.ID, dbctx)
		log.Printf("execution context cached for config %s", saved.ID)
	}
	return saved, nil
}

// Update verifies and persists, then refreshes the cached context.
func (s *ConfigService) Update(ctx context.Context, id string, cfg models.DatabaseConfig) (models.DatabaseConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	if existing, found, err := s.store.GetByName(ctx, cfg.Name); err != nil {
		return cfg, err
	} else if found && existing.ID != id {
		return cfg, errs.Newf(errs.KindConflict, "a config with this name already exists: %s", cfg.Name)
	}
	if err := Verify(ctx, cfg); err != nil {
		return cfg, err
	}

	saved, err := s.store.Update(ctx, id, cfg)
	if err != nil {
		return cfg, err
	}

	if dbctx, err := Open(ctx, saved); err != nil {
		log.Printf("failed to refresh execution context for config %s: %v", id, err)
		s.registry.Evict(id)
	} else {
		s.registry.Install(id, dbctx)
		log.Printf("execution context refreshed for config %s", id)
	}
	return saved, nil
}

// Delete removes the descriptor and evicts its cached context.
func (s *ConfigService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.registry.Evict(id)
	log.Printf("execution context removed for deleted config %s", id)
	return nil
}

func (s *ConfigService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
