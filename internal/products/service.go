package products

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/quoteflow/pkg/backend"
	"github.com/angelmondragon/quoteflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
	"github.com/angelmondragon/quoteflow/pkg/redis"
)

const (
	productsPath     = "/api/hero/products"
	productsEndpoint = "hero_products"
	catalogCacheName = "hero_catalog"
)

// Service loads the Hero product catalog. The backend prices the catalog by
// the caller's tier, so cached copies are kept per tier.
type Service interface {
	List(ctx context.Context, session backend.Session, role enums.Role) ([]Product, error)
}

// BackendAPI is the subset of the backend client the catalog needs.
type BackendAPI interface {
	Get(ctx context.Context, session backend.Session, endpoint, path string) (*backend.Envelope, error)
}

// Cache stores the normalized catalog.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(name string) string
}

type service struct {
	api    BackendAPI
	cache  Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewService builds the catalog service. cache may be nil to disable caching.
func NewService(api BackendAPI, cache Cache, ttl time.Duration, logg *logger.Logger) (Service, error) {
	if api == nil {
		return nil, fmt.Errorf("backend client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{api: api, cache: cache, ttl: ttl, logger: logg}, nil
}

func (s *service) List(ctx context.Context, session backend.Session, role enums.Role) ([]Product, error) {
	key := catalogKey(role)
	if cached, ok := s.readCache(ctx, key); ok {
		return cached, nil
	}

	env, err := s.api.Get(ctx, session, productsEndpoint, productsPath)
	if err != nil {
		return nil, err
	}
	var resp catalogResponse
	if err := env.Decode(&resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode product catalog")
	}
	if !env.OK() {
		msg := env.FailureMessage()
		if msg == "" {
			msg = "failed to load products"
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, msg)
	}

	out := Normalize(resp.Products)
	s.writeCache(ctx, key, out)
	return out, nil
}

// catalogKey names the cache entry for the pricing tier implied by role.
// Anonymous callers share the retail entry.
func catalogKey(role enums.Role) string {
	return catalogCacheName + ":" + string(role.CustomerType())
}

func (s *service) readCache(ctx context.Context, key string) ([]Product, bool) {
	if s.cache == nil || s.ttl <= 0 {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey(key))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "catalog cache read failed")
		}
		return nil, false
	}
	var out []Product
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.logger.Warn(ctx, "catalog cache entry unreadable")
		return nil, false
	}
	return out, true
}

func (s *service) writeCache(ctx context.Context, key string, products []Product) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	payload, err := json.Marshal(products)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.CacheKey(key), string(payload), s.ttl); err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "catalog cache write failed")
	}
}
