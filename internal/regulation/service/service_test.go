package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"domus/internal/auditlog"
	"domus/internal/directory"
	"domus/internal/regulation/models"
	"domus/internal/regulation/store"
	id "domus/pkg/domain"
	dErrors "domus/pkg/domain-errors"
	"domus/pkg/requestcontext"
)

type RegulationServiceSuite struct {
	suite.Suite

	store       *store.InMemory
	audit       *auditlog.InMemoryStore
	directory   *directory.InMemory
	service     *Service
	residenceID id.ResidenceID
	actor       requestcontext.ActorInfo
	now         time.Time
}

func TestRegulationServiceSuite(t *testing.T) {
	suite.Run(t, new(RegulationServiceSuite))
}

func (s *RegulationServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.audit = auditlog.NewInMemoryStore()
	s.directory = directory.NewInMemory()
	s.residenceID = id.NewResidenceID()
	s.directory.AddResidence(directory.Residence{ID: s.residenceID, Name: "Casa Norte"})
	s.actor = requestcontext.ActorInfo{
		ID:    "admin-1",
		Email: "admin@example.com",
		Name:  "Admin One",
	}
	s.now = time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	s.service = New(s.store, auditlog.NewService(s.audit), s.directory)
}

func (s *RegulationServiceSuite) ctx() context.Context {
	ctx := requestcontext.WithActor(context.Background(), s.actor)
	return requestcontext.WithTime(ctx, s.now)
}

func (s *RegulationServiceSuite) ctxAt(t time.Time) context.Context {
	ctx := requestcontext.WithActor(context.Background(), s.actor)
	return requestcontext.WithTime(ctx, t)
}

func (s *RegulationServiceSuite) createRegulation(version string, activate bool) *models.Regulation {
	regulation, err := s.service.Create(s.ctx(), models.CreateRequest{
		ResidenceID: s.residenceID,
		Version:     version,
		FileName:    version + ".pdf",
		FileRef:     "files/" + version + ".pdf",
		FileSize:    2048,
		Activate:    activate,
	})
	s.Require().NoError(err)
	return regulation
}

func (s *RegulationServiceSuite) auditEntries(regulationID id.RegulationID) []auditlog.Entry {
	entries, err := s.audit.ListByRegulation(context.Background(), regulationID)
	s.Require().NoError(err)
	return entries
}

func (s *RegulationServiceSuite) TestCreate() {
	s.Run("creates an archived regulation with a CREATED audit entry", func() {
		s.SetupTest()
		regulation := s.createRegulation("2026-v1", false)

		s.Equal(s.residenceID, regulation.ResidenceID)
		s.Equal("2026-v1", regulation.Version)
		s.False(regulation.IsActive)
		s.Equal(s.actor.ID, regulation.CreatedBy)
		s.Equal(s.now, regulation.PublishedAt)

		entries := s.auditEntries(regulation.ID)
		s.Require().Len(entries, 1)
		s.Equal(auditlog.ActionCreated, entries[0].Action)
		s.Equal(s.actor.Email, entries[0].PerformedByEmail)
	})

	s.Run("create with activate promotes immediately", func() {
		s.SetupTest()
		regulation := s.createRegulation("2026-v2", true)

		s.True(regulation.IsActive)
		s.Equal(s.now, regulation.PublishedAt)
	})

	s.Run("create with activate archives the previous active regulation", func() {
		s.SetupTest()
		first := s.createRegulation("2026-v3", true)
		second := s.createRegulation("2026-v4", true)

		stored, err := s.store.FindByID(context.Background(), first.ID)
		s.Require().NoError(err)
		s.False(stored.IsActive)

		active, err := s.service.GetActive(context.Background(), s.residenceID)
		s.Require().NoError(err)
		s.Equal(second.ID, active.ID)

		entries := s.auditEntries(first.ID)
		s.Require().NotEmpty(entries)
		s.Equal(auditlog.ActionDeactivated, entries[0].Action)
		meta, ok := entries[0].Metadata.(auditlog.DeactivatedMetadata)
		s.Require().True(ok)
		s.Equal(second.ID, meta.SuccessorID)
	})

	s.Run("rejects an unknown residence", func() {
		s.SetupTest()
		_, err := s.service.Create(s.ctx(), models.CreateRequest{
			ResidenceID: id.NewResidenceID(),
			Version:     "2026-v5",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects a blank version", func() {
		s.SetupTest()
		_, err := s.service.Create(s.ctx(), models.CreateRequest{
			ResidenceID: s.residenceID,
			Version:     "   ",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *RegulationServiceSuite) TestSetActive() {
	s.Run("activates the target and archives the previous active", func() {
		s.SetupTest()
		first := s.createRegulation("v1", true)
		second := s.createRegulation("v2", false)

		result, err := s.service.SetActive(s.ctx(), s.residenceID, second.ID)
		s.Require().NoError(err)
		s.False(result.NoOp)
		s.Equal(second.ID, result.NewActiveID)
		s.Require().NotNil(result.PreviousActiveID)
		s.Equal(first.ID, *result.PreviousActiveID)

		active, err := s.service.GetActive(context.Background(), s.residenceID)
		s.Require().NoError(err)
		s.Equal(second.ID, active.ID)

		demoted, err := s.store.FindByID(context.Background(), first.ID)
		s.Require().NoError(err)
		s.False(demoted.IsActive)
	})

	s.Run("writes DEACTIVATED then ACTIVATED for a swap", func() {
		s.SetupTest()
		first := s.createRegulation("v1", true)
		second := s.createRegulation("v2", false)

		before, err := s.audit.ListByResidence(context.Background(), s.residenceID, auditlog.QueryFilters{})
		s.Require().NoError(err)

		_, err = s.service.SetActive(s.ctx(), s.residenceID, second.ID)
		s.Require().NoError(err)

		after, err := s.audit.ListByResidence(context.Background(), s.residenceID, auditlog.QueryFilters{})
		s.Require().NoError(err)
		s.Require().Len(after, len(before)+2)

		// Newest first: the ACTIVATED entry precedes the DEACTIVATED one.
		s.Equal(auditlog.ActionActivated, after[0].Action)
		s.Equal(second.ID, after[0].RegulationID)
		activatedMeta, ok := after[0].Metadata.(auditlog.ActivatedMetadata)
		s.Require().True(ok)
		s.Require().NotNil(activatedMeta.PreviousActiveID)
		s.Equal(first.ID, *activatedMeta.PreviousActiveID)

		s.Equal(auditlog.ActionDeactivated, after[1].Action)
		s.Equal(first.ID, after[1].RegulationID)
	})

	s.Run("activating the active regulation is a no-op with no audit entries", func() {
		s.SetupTest()
		regulation := s.createRegulation("v1", true)

		before := s.auditEntries(regulation.ID)

		result, err := s.service.SetActive(s.ctx(), s.residenceID, regulation.ID)
		s.Require().NoError(err)
		s.True(result.NoOp)
		s.Nil(result.PreviousActiveID)

		after := s.auditEntries(regulation.ID)
		s.Len(after, len(before))
	})

	s.Run("activates when the residence has no active regulation", func() {
		s.SetupTest()
		regulation := s.createRegulation("v1", false)

		result, err := s.service.SetActive(s.ctx(), s.residenceID, regulation.ID)
		s.Require().NoError(err)
		s.Nil(result.PreviousActiveID)

		entries := s.auditEntries(regulation.ID)
		s.Require().NotEmpty(entries)
		s.Equal(auditlog.ActionActivated, entries[0].Action)
		meta, ok := entries[0].Metadata.(auditlog.ActivatedMetadata)
		s.Require().True(ok)
		s.Nil(meta.PreviousActiveID)
	})

	s.Run("rejects a regulation from another residence", func() {
		s.SetupTest()
		otherResidence := id.NewResidenceID()
		s.directory.AddResidence(directory.Residence{ID: otherResidence, Name: "Casa Sur"})
		foreign, err := s.service.Create(s.ctx(), models.CreateRequest{
			ResidenceID: otherResidence,
			Version:     "v1",
		})
		s.Require().NoError(err)

		_, err = s.service.SetActive(s.ctx(), s.residenceID, foreign.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects an unknown regulation", func() {
		s.SetupTest()
		_, err := s.service.SetActive(s.ctx(), s.residenceID, id.NewRegulationID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RegulationServiceSuite) TestSetActiveConcurrent() {
	s.Run("concurrent activations leave exactly one active regulation", func() {
		s.SetupTest()
		regulations := make([]*models.Regulation, 8)
		for i := range regulations {
			regulations[i] = s.createRegulation(fmt.Sprintf("v%d", i), false)
		}

		var wg sync.WaitGroup
		for i, regulation := range regulations {
			wg.Add(1)
			go func(offset int, target *models.Regulation) {
				defer wg.Done()
				ctx := s.ctxAt(s.now.Add(time.Duration(offset) * time.Millisecond))
				_, err := s.service.SetActive(ctx, s.residenceID, target.ID)
				s.NoError(err)
			}(i, regulation)
		}
		wg.Wait()

		all, err := s.store.ListByResidence(context.Background(), s.residenceID)
		s.Require().NoError(err)
		activeCount := 0
		for _, regulation := range all {
			if regulation.IsActive {
				activeCount++
			}
		}
		s.Equal(1, activeCount)
	})
}

func (s *RegulationServiceSuite) TestUpdate() {
	s.Run("patches only the provided fields", func() {
		s.SetupTest()
		regulation := s.createRegulation("v1", false)

		newName := "house-rules.pdf"
		updated, err := s.service.Update(s.ctx(), regulation.ID, models.UpdateRequest{
			FileName: &newName,
		})
		s.Require().NoError(err)
		s.Equal("house-rules.pdf", updated.FileName)
		s.Equal("v1", updated.Version)
		s.False(updated.IsActive)
	})

	s.Run("activating through update runs the full swap", func() {
		s.SetupTest()
		first := s.createRegulation("v1", true)
		second := s.createRegulation("v2", false)

		activate := true
		updated, err := s.service.Update(s.ctx(), second.ID, models.UpdateRequest{
			Activate: &activate,
		})
		s.Require().NoError(err)
		s.True(updated.IsActive)

		demoted, err := s.store.FindByID(context.Background(), first.ID)
		s.Require().NoError(err)
		s.False(demoted.IsActive)

		entries := s.auditEntries(second.ID)
		s.Require().NotEmpty(entries)
		s.Equal(auditlog.ActionActivated, entries[0].Action)
	})

	s.Run("rejects a blank version", func() {
		s.SetupTest()
		regulation := s.createRegulation("v1", false)

		blank := "  "
		_, err := s.service.Update(s.ctx(), regulation.ID, models.UpdateRequest{
			Version: &blank,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects an unknown regulation", func() {
		s.SetupTest()
		version := "v2"
		_, err := s.service.Update(s.ctx(), id.NewRegulationID(), models.UpdateRequest{
			Version: &version,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RegulationServiceSuite) TestDelete() {
	s.Run("deletes an archived regulation and records it", func() {
		s.SetupTest()
		regulation := s.createRegulation("v1", false)

		err := s.service.Delete(s.ctx(), regulation.ID)
		s.Require().NoError(err)

		_, err = s.store.FindByID(context.Background(), regulation.ID)
		s.Require().Error(err)

		entries := s.auditEntries(regulation.ID)
		s.Require().NotEmpty(entries)
		s.Equal(auditlog.ActionDeleted, entries[0].Action)
		meta, ok := entries[0].Metadata.(auditlog.DeletedMetadata)
		s.Require().True(ok)
		s.Equal("v1", meta.Version)
	})

	s.Run("refuses to delete the active regulation", func() {
		s.SetupTest()
		regulation := s.createRegulation("v1", true)

		err := s.service.Delete(s.ctx(), regulation.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		stored, err := s.store.FindByID(context.Background(), regulation.ID)
		s.Require().NoError(err)
		s.True(stored.IsActive)
	})

	s.Run("rejects an unknown regulation", func() {
		s.SetupTest()
		err := s.service.Delete(s.ctx(), id.NewRegulationID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *RegulationServiceSuite) TestGetActive() {
	s.Run("returns nil when the residence has no active regulation", func() {
		s.SetupTest()
		s.createRegulation("v1", false)

		active, err := s.service.GetActive(context.Background(), s.residenceID)
		s.Require().NoError(err)
		s.Nil(active)
	})
}

// interceptStore wraps a Store with one-shot hooks that fire after a read,
// simulating a competing mutation committed between a caller's pre-read and
// its transaction.
type interceptStore struct {
	Store
	afterFindByID   func()
	afterFindActive func()
}

func (s *interceptStore) FindByID(ctx context.Context, regulationID id.RegulationID) (*models.Regulation, error) {
	regulation, err := s.Store.FindByID(ctx, regulationID)
	if s.afterFindByID != nil {
		hook := s.afterFindByID
		s.afterFindByID = nil
		hook()
	}
	return regulation, err
}

func (s *interceptStore) FindActiveByResidence(ctx context.Context, residenceID id.ResidenceID) (*models.Regulation, error) {
	regulation, err := s.Store.FindActiveByResidence(ctx, residenceID)
	if s.afterFindActive != nil {
		hook := s.afterFindActive
		s.afterFindActive = nil
		hook()
	}
	return regulation, err
}

// memoryActiveCache implements ActiveCache for tests.
type memoryActiveCache struct {
	mu      sync.Mutex
	entries map[id.ResidenceID]*models.Regulation
}

func newMemoryActiveCache() *memoryActiveCache {
	return &memoryActiveCache{entries: make(map[id.ResidenceID]*models.Regulation)}
}

func (c *memoryActiveCache) Get(_ context.Context, residenceID id.ResidenceID) (*models.Regulation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	regulation, ok := c.entries[residenceID]
	return regulation, ok, nil
}

func (c *memoryActiveCache) Set(_ context.Context, residenceID id.ResidenceID, regulation *models.Regulation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[residenceID] = regulation
	return nil
}

func (c *memoryActiveCache) SetIfAbsent(_ context.Context, residenceID id.ResidenceID, regulation *models.Regulation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[residenceID]; !ok {
		c.entries[residenceID] = regulation
	}
	return nil
}

func (c *memoryActiveCache) Invalidate(_ context.Context, residenceID id.ResidenceID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, residenceID)
	return nil
}

func (s *RegulationServiceSuite) activeCount() int {
	regulations, err := s.store.ListByResidence(context.Background(), s.residenceID)
	s.Require().NoError(err)
	count := 0
	for _, regulation := range regulations {
		if regulation.IsActive {
			count++
		}
	}
	return count
}

func (s *RegulationServiceSuite) TestUpdateAgainstConcurrentSwap() {
	s.Run("a patch cannot resurrect a concurrently archived regulation", func() {
		s.SetupTest()
		first := s.createRegulation("1.0", true)
		second := s.createRegulation("2.0", false)

		intercepted := &interceptStore{Store: s.store}
		svc := New(intercepted, auditlog.NewService(s.audit), s.directory)
		intercepted.afterFindByID = func() {
			// A swap commits between the pre-read and the update transaction.
			_, err := s.service.SetActive(s.ctx(), s.residenceID, second.ID)
			s.Require().NoError(err)
		}

		version := "1.1"
		updated, err := svc.Update(s.ctx(), first.ID, models.UpdateRequest{Version: &version})
		s.Require().NoError(err)
		s.Equal("1.1", updated.Version)
		s.False(updated.IsActive)

		s.Equal(1, s.activeCount())
		active, err := s.service.GetActive(context.Background(), s.residenceID)
		s.Require().NoError(err)
		s.Require().NotNil(active)
		s.Equal(second.ID, active.ID)
	})
}

func (s *RegulationServiceSuite) TestDeleteAgainstConcurrentSwap() {
	s.Run("refuses to delete a concurrently activated regulation", func() {
		s.SetupTest()
		first := s.createRegulation("1.0", true)
		second := s.createRegulation("2.0", false)

		intercepted := &interceptStore{Store: s.store}
		svc := New(intercepted, auditlog.NewService(s.audit), s.directory)
		intercepted.afterFindByID = func() {
			// A swap activates the delete target between the pre-read and
			// the delete transaction.
			_, err := s.service.SetActive(s.ctx(), s.residenceID, second.ID)
			s.Require().NoError(err)
		}

		err := svc.Delete(s.ctx(), second.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))

		s.Equal(1, s.activeCount())
		active, err := s.service.GetActive(context.Background(), s.residenceID)
		s.Require().NoError(err)
		s.Require().NotNil(active)
		s.Equal(second.ID, active.ID)

		stored, err := s.store.FindByID(context.Background(), first.ID)
		s.Require().NoError(err)
		s.False(stored.IsActive)
	})
}

func (s *RegulationServiceSuite) TestActiveCacheConsistency() {
	s.Run("a swap writes the new active through to the cache", func() {
		s.SetupTest()
		cache := newMemoryActiveCache()
		svc := New(s.store, auditlog.NewService(s.audit), s.directory, WithActiveCache(cache))

		s.createRegulation("1.0", true)
		second := s.createRegulation("2.0", false)

		_, err := svc.SetActive(s.ctx(), s.residenceID, second.ID)
		s.Require().NoError(err)

		cached, hit, err := cache.Get(context.Background(), s.residenceID)
		s.Require().NoError(err)
		s.Require().True(hit)
		s.Equal(second.ID, cached.ID)
	})

	s.Run("an in-flight reader cannot pin the superseded regulation", func() {
		s.SetupTest()
		cache := newMemoryActiveCache()
		intercepted := &interceptStore{Store: s.store}
		reader := New(intercepted, auditlog.NewService(s.audit), s.directory, WithActiveCache(cache))
		swapper := New(s.store, auditlog.NewService(s.audit), s.directory, WithActiveCache(cache))

		first := s.createRegulation("1.0", true)
		second := s.createRegulation("2.0", false)

		intercepted.afterFindActive = func() {
			// The swap commits after the reader fetched the old active from
			// the store but before it repopulates the cache.
			_, err := swapper.SetActive(s.ctx(), s.residenceID, second.ID)
			s.Require().NoError(err)
		}

		stale, err := reader.GetActive(context.Background(), s.residenceID)
		s.Require().NoError(err)
		s.Require().NotNil(stale)
		s.Equal(first.ID, stale.ID)

		// The committed swap's cache write wins over the reader's.
		cached, hit, err := cache.Get(context.Background(), s.residenceID)
		s.Require().NoError(err)
		s.Require().True(hit)
		s.Equal(second.ID, cached.ID)

		after, err := reader.GetActive(context.Background(), s.residenceID)
		s.Require().NoError(err)
		s.Require().NotNil(after)
		s.Equal(second.ID, after.ID)
	})
}
