//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"domus/internal/regulation/models"
	"domus/internal/regulation/store"
	id "domus/pkg/domain"
	"domus/pkg/testutil/containers"
)

type ActiveCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *store.ActiveCache
}

func TestActiveCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(ActiveCacheSuite))
}

func (s *ActiveCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = store.NewActiveCache(s.redis.Client, time.Minute)
}

func (s *ActiveCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func newCachedRegulation(residenceID id.ResidenceID) *models.Regulation {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	return &models.Regulation{
		ID:          id.NewRegulationID(),
		ResidenceID: residenceID,
		Version:     "1.0",
		FileName:    "house-rules.pdf",
		IsActive:    true,
		PublishedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *ActiveCacheSuite) TestMissThenHit() {
	ctx := context.Background()
	residenceID := id.NewResidenceID()

	_, ok, err := s.cache.Get(ctx, residenceID)
	s.Require().NoError(err)
	s.False(ok)

	regulation := newCachedRegulation(residenceID)
	s.Require().NoError(s.cache.Set(ctx, residenceID, regulation))

	cached, ok, err := s.cache.Get(ctx, residenceID)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(regulation.ID, cached.ID)
	s.Equal("1.0", cached.Version)
	s.True(cached.PublishedAt.Equal(regulation.PublishedAt))
}

func (s *ActiveCacheSuite) TestInvalidate() {
	ctx := context.Background()
	residenceID := id.NewResidenceID()

	s.Require().NoError(s.cache.Set(ctx, residenceID, newCachedRegulation(residenceID)))
	s.Require().NoError(s.cache.Invalidate(ctx, residenceID))

	_, ok, err := s.cache.Get(ctx, residenceID)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *ActiveCacheSuite) TestSetIfAbsent() {
	ctx := context.Background()
	residenceID := id.NewResidenceID()

	first := newCachedRegulation(residenceID)
	s.Require().NoError(s.cache.SetIfAbsent(ctx, residenceID, first))

	cached, ok, err := s.cache.Get(ctx, residenceID)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(first.ID, cached.ID)

	// A present value is kept; only Set replaces it.
	second := newCachedRegulation(residenceID)
	s.Require().NoError(s.cache.SetIfAbsent(ctx, residenceID, second))

	cached, ok, err = s.cache.Get(ctx, residenceID)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(first.ID, cached.ID)

	s.Require().NoError(s.cache.Set(ctx, residenceID, second))
	cached, ok, err = s.cache.Get(ctx, residenceID)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(second.ID, cached.ID)
}

func (s *ActiveCacheSuite) TestKeysAreResidenceScoped() {
	ctx := context.Background()
	residenceID := id.NewResidenceID()

	s.Require().NoError(s.cache.Set(ctx, residenceID, newCachedRegulation(residenceID)))

	_, ok, err := s.cache.Get(ctx, id.NewResidenceID())
	s.Require().NoError(err)
	s.False(ok)
}

func (s *ActiveCacheSuite) TestCorruptEntryReadsAsMiss() {
	ctx := context.Background()
	residenceID := id.NewResidenceID()

	key := "regulation:active:" + residenceID.String()
	s.Require().NoError(s.redis.Client.Set(ctx, key, "not json", time.Minute).Err())

	_, ok, err := s.cache.Get(ctx, residenceID)
	s.Require().NoError(err)
	s.False(ok)
}
