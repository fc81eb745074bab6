package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/redis"
)

const lockScope = "flow"

// Store persists pages between requests.
type Store interface {
	Load(ctx context.Context, id string) (*Page, error)
	Save(ctx context.Context, page *Page) error
}

// KV is the Redis surface the page store needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	FlowKey(flowID string) string
}

type redisStore struct {
	kv  KV
	ttl time.Duration
}

// NewRedisStore keeps pages as JSON under the flow namespace. Every save
// refreshes the TTL.
func NewRedisStore(kv KV, ttl time.Duration) (Store, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &redisStore{kv: kv, ttl: ttl}, nil
}

func (s *redisStore) Load(ctx context.Context, id string) (*Page, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "flow id is required")
	}
	raw, err := s.kv.Get(ctx, s.kv.FlowKey(id))
	if err != nil {
		if redis.IsNil(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Quote session expired or not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load quote session")
	}
	var page Page
	if err := json.Unmarshal([]byte(raw), &page); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode quote session")
	}
	return &page, nil
}

func (s *redisStore) Save(ctx context.Context, page *Page) error {
	if err := page.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "inconsistent quote session")
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode quote session")
	}
	if err := s.kv.Set(ctx, s.kv.FlowKey(page.ID), string(raw), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save quote session")
	}
	return nil
}

// Locker guards a flow against overlapping mutations.
type Locker interface {
	Acquire(ctx context.Context, flowID, action string) (release func(), err error)
}

// LockKV is the Redis surface the locker needs.
type LockKV interface {
	redis.LockStore
	LockKey(scope, id string) string
}

type redisLocker struct {
	kv  LockKV
	ttl time.Duration
}

// NewRedisLocker builds a SETNX locker. The TTL bounds how long a crashed
// request can block its flow.
func NewRedisLocker(kv LockKV, ttl time.Duration) (Locker, error) {
	if kv == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &redisLocker{kv: kv, ttl: ttl}, nil
}

func (l *redisLocker) Acquire(ctx context.Context, flowID, action string) (func(), error) {
	lock, err := redis.NewLock(l.kv, l.kv.LockKey(lockScope, flowID), l.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build flow lock")
	}
	ok, err := lock.WithLabel(action).Acquire(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire flow lock")
	}
	if !ok {
		holder, _ := lock.Holder(ctx)
		msg := "Another request is already in progress for this quote"
		if holder != "" {
			msg = fmt.Sprintf("A %s request is already in progress for this quote", holder)
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, msg).WithDetails(map[string]any{
			"action":     action,
			"in_flight":  holder,
			"retry_hint": "wait for the current request to finish",
		})
	}
	return func() {
		_ = lock.Release(context.WithoutCancel(ctx))
	}, nil
}
