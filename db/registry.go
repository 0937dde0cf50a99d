package db

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MultiX0/dbgate/errs"
	"github.com/MultiX0/dbgate/models"
)

const (
	registryCapacity = 50
	registryIdleTTL  = 15 * time.Minute
)

// Registry caches one live execution context per descriptor. Entries expire
// after 15 minutes without access and the cache holds at most 50 contexts;
// evicted contexts have their pools closed.
type Registry struct {
	store *ConfigStore
	cache *ttlcache.Cache[string, *Context]
	group singleflight.Group
}

func NewRegistry(store *ConfigStore) *Registry {
	cache := ttlcache.New[string, *Context](
		ttlcache.WithTTL[string, *Context](registryIdleTTL),
		ttlcache.WithCapacity[string, *Context](registryCapacity),
	)
	cache.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, *Context]) {
		item.Value().Close()
	})
	go cache.Start()

	return &Registry{store: store, cache: cache}
}

// Resolve returns the execution context and descriptor key for a request.
// directConfig wins when both are present; both absent is invalid.
func (r *Registry) Resolve(ctx context.Context, req models.QueryRequest) (*Context, string, error) {
	if req.DirectConfig != nil {
		key, err := DirectKey(*req.DirectConfig)
		if err != nil {
			return nil, "", err
		}
		dbctx, err := r.contextFor(ctx, key, func() (models.DatabaseConfig, error) {
			return req.DirectConfig.AsConfig(), nil
		})
		return dbctx, key, err
	}

	if req.ConfigID != "" {
		dbctx, err := r.contextFor(ctx, req.ConfigID, func() (models.DatabaseConfig, error) {
			return r.store.GetByID(ctx, req.ConfigID)
		})
		return dbctx, req.ConfigID, err
	}

	return nil, "", errs.InvalidArgf("either configId or directConfig must be provided")
}

// contextFor returns the cached context for key, opening at most one
// connection per key under concurrent first touches.
func (r *Registry) contextFor(ctx context.Context, key string, load func() (models.DatabaseConfig, error)) (*Context, error) {
	if item := r.cache.Get(key); item != nil {
		return item.Value(), nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		if item := r.cache.Get(key); item != nil {
			return item.Value(), nil
		}
		cfg, err := load()
		if err != nil {
			return nil, err
		}
		dbctx, err := Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		r.cache.Set(key, dbctx, ttlcache.DefaultTTL)
		return dbctx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Context), nil
}

// Preload installs a context for every stored descriptor. Failures are logged
// and do not abort startup.
func (r *Registry) Preload(ctx context.Context) {
	log.Printf("Starting preload of execution contexts from config store...")

	configs, err := r.store.List(ctx)
	if err != nil {
		log.Printf("preload: failed to list configs: %v", err)
		return
	}

	for _, cfg := range configs {
		dbctx, err := Open(ctx, cfg)
		if err != nil {
			log.Printf("preload: failed to open context for config %s: %v", cfg.ID, err)
			continue
		}
		r.cache.Set(cfg.ID, dbctx, ttlcache.DefaultTTL)
		log.Printf("preload: cached execution context for config %s", cfg.ID)
	}
}

// Install caches a freshly opened context under the descriptor id, replacing
// (and closing) any previous one.
func (r *Registry) Install(id string, dbctx *Context) {
	r.Evict(id)
	r.cache.Set(id, dbctx, ttlcache.DefaultTTL)
}

// Evict drops the context for a deleted or updated descriptor.
func (r *Registry) Evict(id string) {
	r.cache.Delete(id)
}

func (r *Registry) Stop() {
	r.cache.Stop()
	r.cache.DeleteAll()
}

// DirectKey derives the deterministic cache key for an inline descriptor.
func DirectKey(cfg models.DirectDatabaseConfig) (string, error) {
	if cfg.DbType == "" || cfg.Database == "" {
		return "", errs.InvalidArgf("missing required fields in directConfig")
	}
	if dialect, err := ParseDialect(cfg.DbType); err != nil {
		return "", err
	} else if dialect != DialectSQLite {
		if cfg.Host == "" || cfg.Port == 0 || cfg.Username == "" || cfg.Password == "" {
			return "", errs.InvalidArgf("missing required fields in directConfig")
		}
	}

	return strings.Join([]string{
		cfg.DbType,
		cfg.Host,
		strconv.Itoa(cfg.Port),
		cfg.Database,
		cfg.Username,
		cfg.Password,
		cfg.Schema,
	}, "::"), nil
}
