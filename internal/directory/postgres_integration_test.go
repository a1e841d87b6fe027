//go:build integration

package directory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"domus/internal/directory"
	id "domus/pkg/domain"
	"domus/pkg/platform/sentinel"
	"domus/pkg/testutil/containers"
)

type DirectoryPostgresSuite struct {
	suite.Suite
	postgres    *containers.PostgresContainer
	dir         *directory.Postgres
	residenceID id.ResidenceID
}

func TestDirectoryPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(DirectoryPostgresSuite))
}

func (s *DirectoryPostgresSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.dir = directory.NewPostgres(s.postgres.DB)
}

func (s *DirectoryPostgresSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "contracts", "students", "residences"))
	s.residenceID = id.NewResidenceID()
	s.insertResidence(s.residenceID, "Casa Norte")
}

func (s *DirectoryPostgresSuite) insertResidence(residenceID id.ResidenceID, name string) {
	_, err := s.postgres.DB.Exec(
		`INSERT INTO residences (id, name) VALUES ($1, $2)`,
		uuid.UUID(residenceID), name,
	)
	s.Require().NoError(err)
}

func (s *DirectoryPostgresSuite) insertStudent(name, email string) id.StudentID {
	studentID := id.NewStudentID()
	_, err := s.postgres.DB.Exec(
		`INSERT INTO students (id, residence_id, name, email) VALUES ($1, $2, $3, $4)`,
		uuid.UUID(studentID), uuid.UUID(s.residenceID), name, email,
	)
	s.Require().NoError(err)
	return studentID
}

func (s *DirectoryPostgresSuite) insertContract(studentID id.StudentID, status, roomType string, endDate *time.Time) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	_, err := s.postgres.DB.Exec(
		`INSERT INTO contracts (id, student_id, residence_id, room_type_name, status, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New(), uuid.UUID(studentID), uuid.UUID(s.residenceID), roomType, status, start, endDate,
	)
	s.Require().NoError(err)
}

func (s *DirectoryPostgresSuite) TestGetResidenceByID() {
	residence, err := s.dir.GetResidenceByID(context.Background(), s.residenceID)
	s.Require().NoError(err)
	s.Equal("Casa Norte", residence.Name)

	_, err = s.dir.GetResidenceByID(context.Background(), id.NewResidenceID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *DirectoryPostgresSuite) TestGetStudentsByResidenceSortedByName() {
	s.insertStudent("Marta", "marta@example.com")
	s.insertStudent("Alba", "alba@example.com")

	students, err := s.dir.GetStudentsByResidence(context.Background(), s.residenceID)
	s.Require().NoError(err)
	s.Require().Len(students, 2)
	s.Equal("Alba", students[0].Name)
	s.Equal("Marta", students[1].Name)
}

func (s *DirectoryPostgresSuite) TestActiveContractByStudent() {
	studentID := s.insertStudent("Marta", "marta@example.com")
	s.insertContract(studentID, "ended", "Single Room", nil)
	s.insertContract(studentID, "active", "Double Room", nil)

	contract, err := s.dir.GetActiveContractByStudent(context.Background(), studentID)
	s.Require().NoError(err)
	s.Equal(s.residenceID, contract.ResidenceID)
	s.Equal("Casa Norte", contract.ResidenceName)
	s.Equal("Double Room", contract.RoomTypeName)
	s.True(contract.EndDate.IsZero())
}

func (s *DirectoryPostgresSuite) TestActiveContractByStudentNone() {
	studentID := s.insertStudent("Marta", "marta@example.com")
	s.insertContract(studentID, "ended", "Single Room", nil)

	_, err := s.dir.GetActiveContractByStudent(context.Background(), studentID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *DirectoryPostgresSuite) TestActiveContractsByResidence() {
	first := s.insertStudent("Marta", "marta@example.com")
	second := s.insertStudent("Alba", "alba@example.com")
	third := s.insertStudent("Joan", "joan@example.com")

	end := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	s.insertContract(first, "active", "Single Room", &end)
	s.insertContract(second, "active", "Double Room", nil)
	s.insertContract(third, "ended", "Single Room", nil)

	contracts, err := s.dir.GetActiveContractsByResidence(context.Background(), s.residenceID)
	s.Require().NoError(err)
	s.Require().Len(contracts, 2)
	s.Equal("Single Room", contracts[first].RoomTypeName)
	s.True(contracts[first].EndDate.Equal(end))
	s.Equal("Double Room", contracts[second].RoomTypeName)
	_, ok := contracts[third]
	s.False(ok)
}
