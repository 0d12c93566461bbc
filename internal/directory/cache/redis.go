package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"consentbroker/internal/consent/models"
	"consentbroker/internal/sentinel"
	id "consentbroker/pkg/domain"
)

const (
	redisItemKeyPrefix  = "directory:item:"
	redisPartyKeyPrefix = "directory:party:"
)

// RedisBackend shares cached directory records across replicas with
// TTL-based eviction.
type RedisBackend struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisBackend(client redis.UniversalClient, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

func (b *RedisBackend) LoadItem(ctx context.Context, itemID id.ItemID) (*models.Item, error) {
	var item models.Item
	if err := b.load(ctx, itemKey(itemID), &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (b *RedisBackend) StoreItem(ctx context.Context, item *models.Item) error {
	if item == nil {
		return fmt.Errorf("item is required")
	}
	return b.store(ctx, itemKey(item.ID), item)
}

func (b *RedisBackend) LoadParty(ctx context.Context, partyID string) (*models.Party, error) {
	var party models.Party
	if err := b.load(ctx, partyKey(partyID), &party); err != nil {
		return nil, err
	}
	return &party, nil
}

func (b *RedisBackend) StoreParty(ctx context.Context, party *models.Party) error {
	if party == nil {
		return fmt.Errorf("party is required")
	}
	return b.store(ctx, partyKey(party.ID), party)
}

func (b *RedisBackend) DeleteParty(ctx context.Context, partyID string) error {
	if err := b.client.Del(ctx, partyKey(partyID)).Err(); err != nil {
		return fmt.Errorf("delete party cache: %w", err)
	}
	return nil
}

func (b *RedisBackend) load(ctx context.Context, key string, dst any) error {
	data, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("read directory cache: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode directory cache: %w", err)
	}
	return nil
}

func (b *RedisBackend) store(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode directory cache: %w", err)
	}
	if err := b.client.Set(ctx, key, payload, b.ttl).Err(); err != nil {
		return fmt.Errorf("write directory cache: %w", err)
	}
	return nil
}

func itemKey(itemID id.ItemID) string {
	return redisItemKeyPrefix + itemID.String()
}

func partyKey(partyID string) string {
	return redisPartyKeyPrefix + partyID
}

var _ Backend = (*RedisBackend)(nil)
