package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"consentbroker/internal/consent/models"
	"consentbroker/internal/directory"
	"consentbroker/internal/directory/metrics"
	"consentbroker/internal/sentinel"
	fixtures "consentbroker/pkg/testutil"
)

type CachedStoreSuite struct {
	suite.Suite
	ctx        context.Context
	source     *directory.InMemoryStore
	metrics    *metrics.Metrics
	newBackend func() Backend
}

func (s *CachedStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.source = directory.NewInMemoryStore()
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
}

func (s *CachedStoreSuite) store() *Store {
	return New(s.source, s.newBackend(), WithMetrics(s.metrics))
}

func (s *CachedStoreSuite) TestItemReadThrough() {
	item := fixtures.NewItemBuilder().Build()
	s.source.PutItem(item)
	cached := s.store()

	first, err := cached.GetItem(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(item.Name, first.Name)

	// The source changes but the cache still serves the first read.
	renamed := *item
	renamed.Name = "renamed"
	s.source.PutItem(&renamed)

	second, err := cached.GetItem(s.ctx, item.ID)
	s.Require().NoError(err)
	s.Equal(item.Name, second.Name)
	s.Equal(item.OwnerID, second.OwnerID)

	s.InDelta(1, testutil.ToFloat64(s.metrics.CacheMissesTotal.WithLabelValues(recordItem)), 0)
	s.InDelta(1, testutil.ToFloat64(s.metrics.CacheHitsTotal.WithLabelValues(recordItem)), 0)
}

func (s *CachedStoreSuite) TestMissingRecordsAreNotCached() {
	party := fixtures.NewPartyBuilder(models.RoleSeeker).Build()
	cached := s.store()

	_, err := cached.GetParty(s.ctx, party.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.source.PutParty(party)
	got, err := cached.GetParty(s.ctx, party.ID)
	s.Require().NoError(err)
	s.Equal(party.ID, got.ID)
}

func (s *CachedStoreSuite) TestSetPartyActiveInvalidates() {
	party := fixtures.NewPartyBuilder(models.RoleProvider).Build()
	s.source.PutParty(party)
	cached := s.store()

	got, err := cached.GetParty(s.ctx, party.ID)
	s.Require().NoError(err)
	s.True(got.Active)

	s.Require().NoError(cached.SetPartyActive(s.ctx, party.ID, false))

	got, err = cached.GetParty(s.ctx, party.ID)
	s.Require().NoError(err)
	s.False(got.Active)
	s.InDelta(1, testutil.ToFloat64(s.metrics.CacheInvalidationsTotal.WithLabelValues(recordParty)), 0)
}

func (s *CachedStoreSuite) TestSetPartyActiveUnknown() {
	s.Require().ErrorIs(s.store().SetPartyActive(s.ctx, "nobody", false), sentinel.ErrNotFound)
}

func TestCachedStoreWithLRU(t *testing.T) {
	suite.Run(t, &CachedStoreSuite{newBackend: func() Backend {
		return NewLRUBackend(16, time.Minute)
	}})
}

func TestCachedStoreWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	suite.Run(t, &CachedStoreSuite{newBackend: func() Backend {
		mr.FlushAll()
		return NewRedisBackend(client, time.Minute)
	}})
}

func TestLRUBackendExpires(t *testing.T) {
	ctx := context.Background()
	b := NewLRUBackend(4, 20*time.Millisecond)
	party := fixtures.NewPartyBuilder(models.RoleSeeker).Build()
	require.NoError(t, b.StoreParty(ctx, party))

	_, err := b.LoadParty(ctx, party.ID)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := b.LoadParty(ctx, party.ID)
		return err != nil
	}, time.Second, 10*time.Millisecond)
}

func TestRedisBackendTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	b := NewRedisBackend(client, time.Minute)

	item := fixtures.NewItemBuilder().Build()
	require.NoError(t, b.StoreItem(ctx, item))
	assert.True(t, mr.Exists(itemKey(item.ID)))

	mr.FastForward(2 * time.Minute)
	_, err := b.LoadItem(ctx, item.ID)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestRedisBackendUnavailableFallsThrough(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	source := directory.NewInMemoryStore()
	item := fixtures.NewItemBuilder().Build()
	source.PutItem(item)
	mr.Close()

	got, err := New(source, NewRedisBackend(client, time.Minute)).GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
}
