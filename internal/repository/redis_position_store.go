package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"AlphaFuse/internal/domain/models"
	drepo "AlphaFuse/internal/domain/repository"
	"AlphaFuse/pkg/cache"
)

const (
	positionKeyPrefix = "position:"
	positionIndexKey  = "positions:index"
	positionIndexLock = "positions:index:lock"
	indexLockTTL      = 2 * time.Second
	closedRetention   = 24 * time.Hour
)

// RedisPositionStore keeps live positions in the shared cache so the
// execution side and this core see the same state. Positions are JSON values
// keyed by ID; an index key tracks the known IDs.
type RedisPositionStore struct {
	cache cache.Service
}

func NewRedisPositionStore(c cache.Service) drepo.PositionStore {
	return &RedisPositionStore{cache: c}
}

func (s *RedisPositionStore) Open(ctx context.Context) ([]models.Position, error) {
	ids, err := s.index(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = positionKeyPrefix + id
	}
	raw, err := s.cache.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}

	var open []models.Position
	for _, v := range raw {
		var p models.Position
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			continue
		}
		if p.Status == models.PositionOpen {
			open = append(open, p)
		}
	}
	return open, nil
}

func (s *RedisPositionStore) Get(ctx context.Context, id string) (models.Position, error) {
	var raw string
	if err := s.cache.Get(ctx, positionKeyPrefix+id, &raw); err != nil {
		return models.Position{}, fmt.Errorf("position %s: %w", id, err)
	}
	var p models.Position
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return models.Position{}, fmt.Errorf("decode position %s: %w", id, err)
	}
	return p, nil
}

func (s *RedisPositionStore) Put(ctx context.Context, p models.Position) error {
	if p.ID == "" {
		return fmt.Errorf("position without id")
	}
	if p.Status == "" {
		p.Status = models.PositionOpen
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode position %s: %w", p.ID, err)
	}
	ttl := time.Duration(0)
	if p.Status == models.PositionClosed {
		ttl = closedRetention
	}
	if err := s.cache.Set(ctx, positionKeyPrefix+p.ID, string(raw), ttl); err != nil {
		return fmt.Errorf("store position %s: %w", p.ID, err)
	}
	return s.addToIndex(ctx, p.ID)
}

func (s *RedisPositionStore) MarkClosed(ctx context.Context, id, reason string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.Status == models.PositionClosed {
		return nil // already closed, keep the first reason
	}
	p.Status = models.PositionClosed
	p.ExitReason = reason
	return s.Put(ctx, p)
}

func (s *RedisPositionStore) index(ctx context.Context) ([]string, error) {
	var raw string
	if err := s.cache.Get(ctx, positionIndexKey, &raw); err != nil {
		if err == cache.ErrCacheMiss {
			return nil, nil
		}
		return nil, fmt.Errorf("position index: %w", err)
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("decode position index: %w", err)
	}
	return ids, nil
}

func (s *RedisPositionStore) addToIndex(ctx context.Context, id string) error {
	locked, err := s.cache.TryLock(ctx, positionIndexLock, indexLockTTL)
	if err != nil {
		return fmt.Errorf("lock position index: %w", err)
	}
	if !locked {
		// Brief contention from another writer; one retry after backoff.
		time.Sleep(50 * time.Millisecond)
		if locked, err = s.cache.TryLock(ctx, positionIndexLock, indexLockTTL); err != nil || !locked {
			return fmt.Errorf("position index busy")
		}
	}
	defer func() { _ = s.cache.Unlock(ctx, positionIndexLock) }()

	ids, err := s.index(ctx)
	if err != nil {
		return err
	}
	for _, existing := range ids {
		if existing == id {
			return nil
		}
	}
	ids = append(ids, id)
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, positionIndexKey, string(raw), 0); err != nil {
		return fmt.Errorf("store position index: %w", err)
	}
	return nil
}
