//go:build integration

package acceptance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"domus/internal/acceptance"
	id "domus/pkg/domain"
	"domus/pkg/platform/sentinel"
	"domus/pkg/testutil/containers"
)

type AcceptancePostgresSuite struct {
	suite.Suite
	postgres    *containers.PostgresContainer
	store       *acceptance.PostgresStore
	studentID   id.StudentID
	residenceID id.ResidenceID
	now         time.Time
}

func TestAcceptancePostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AcceptancePostgresSuite))
}

func (s *AcceptancePostgresSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = acceptance.NewPostgresStore(s.postgres.DB)
}

func (s *AcceptancePostgresSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "regulation_acceptances"))
	s.studentID = id.NewStudentID()
	s.residenceID = id.NewResidenceID()
	s.now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
}

func (s *AcceptancePostgresSuite) newAcceptance(regulationID id.RegulationID, version string, at time.Time) acceptance.Acceptance {
	return acceptance.Acceptance{
		ID:                id.NewAcceptanceID(),
		StudentID:         s.studentID,
		RegulationID:      regulationID,
		RegulationVersion: version,
		ResidenceID:       s.residenceID,
		AcceptedAt:        at,
	}
}

func (s *AcceptancePostgresSuite) TestInsertAndFind() {
	ctx := context.Background()
	record := s.newAcceptance(id.NewRegulationID(), "1.0", s.now)
	s.Require().NoError(s.store.Insert(ctx, record))

	found, err := s.store.FindByStudentAndRegulation(ctx, s.studentID, record.RegulationID)
	s.Require().NoError(err)
	s.Equal(record.ID, found.ID)
	s.Equal("1.0", found.RegulationVersion)
	s.True(found.AcceptedAt.Equal(s.now))
}

func (s *AcceptancePostgresSuite) TestDuplicatePairIsRejected() {
	ctx := context.Background()
	regulationID := id.NewRegulationID()
	first := s.newAcceptance(regulationID, "1.0", s.now)
	s.Require().NoError(s.store.Insert(ctx, first))

	retry := s.newAcceptance(regulationID, "1.0", s.now.Add(time.Minute))
	s.ErrorIs(s.store.Insert(ctx, retry), sentinel.ErrDuplicate)

	// The retry row must not have replaced the original.
	found, err := s.store.FindByStudentAndRegulation(ctx, s.studentID, regulationID)
	s.Require().NoError(err)
	s.Equal(first.ID, found.ID)
	s.True(found.AcceptedAt.Equal(s.now))
}

func (s *AcceptancePostgresSuite) TestListByStudentNewestFirst() {
	ctx := context.Background()
	older := s.newAcceptance(id.NewRegulationID(), "1.0", s.now)
	newer := s.newAcceptance(id.NewRegulationID(), "2.0", s.now.Add(time.Hour))
	s.Require().NoError(s.store.Insert(ctx, older))
	s.Require().NoError(s.store.Insert(ctx, newer))

	records, err := s.store.ListByStudent(ctx, s.studentID)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal("2.0", records[0].RegulationVersion)
	s.Equal("1.0", records[1].RegulationVersion)
}

func (s *AcceptancePostgresSuite) TestListByRegulation() {
	ctx := context.Background()
	regulationID := id.NewRegulationID()
	record := s.newAcceptance(regulationID, "1.0", s.now)
	s.Require().NoError(s.store.Insert(ctx, record))

	other := s.newAcceptance(id.NewRegulationID(), "1.0", s.now)
	other.StudentID = id.NewStudentID()
	s.Require().NoError(s.store.Insert(ctx, other))

	records, err := s.store.ListByRegulation(ctx, regulationID)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(record.ID, records[0].ID)
}

func (s *AcceptancePostgresSuite) TestFindLatestForResidence() {
	ctx := context.Background()

	_, err := s.store.FindLatestForResidence(ctx, s.studentID, s.residenceID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	older := s.newAcceptance(id.NewRegulationID(), "1.0", s.now)
	newer := s.newAcceptance(id.NewRegulationID(), "2.0", s.now.Add(time.Hour))
	s.Require().NoError(s.store.Insert(ctx, older))
	s.Require().NoError(s.store.Insert(ctx, newer))

	elsewhere := s.newAcceptance(id.NewRegulationID(), "9.0", s.now.Add(2*time.Hour))
	elsewhere.ResidenceID = id.NewResidenceID()
	s.Require().NoError(s.store.Insert(ctx, elsewhere))

	latest, err := s.store.FindLatestForResidence(ctx, s.studentID, s.residenceID)
	s.Require().NoError(err)
	s.Equal(newer.ID, latest.ID)
	s.Equal("2.0", latest.RegulationVersion)
}
