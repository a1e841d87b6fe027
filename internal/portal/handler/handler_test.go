package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"domus/internal/acceptance"
	"domus/internal/auditlog"
	"domus/internal/directory"
	"domus/internal/platform/middleware"
	"domus/internal/portal"
	"domus/internal/regulation/models"
	regservice "domus/internal/regulation/service"
	regstore "domus/internal/regulation/store"
	id "domus/pkg/domain"
	dErrors "domus/pkg/domain-errors"
	"domus/pkg/requestcontext"
)

type stubValidator struct {
	claims *middleware.Claims
}

func (v *stubValidator) ValidateToken(string) (*middleware.Claims, error) {
	if v.claims == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return v.claims, nil
}

type PortalHandlerSuite struct {
	suite.Suite

	router      http.Handler
	directory   *directory.InMemory
	regulations *regservice.Service
	residenceID id.ResidenceID
	studentID   id.StudentID
	now         time.Time
}

func TestPortalHandlerSuite(t *testing.T) {
	suite.Run(t, new(PortalHandlerSuite))
}

func (s *PortalHandlerSuite) SetupTest() {
	s.directory = directory.NewInMemory()
	s.residenceID = id.NewResidenceID()
	s.studentID = id.NewStudentID()
	s.now = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

	s.directory.AddResidence(directory.Residence{ID: s.residenceID, Name: "Casa Norte"})
	s.directory.AddContract(directory.Contract{
		StudentID:     s.studentID,
		ResidenceID:   s.residenceID,
		ResidenceName: "Casa Norte",
		StartDate:     s.now.AddDate(0, -1, 0),
	})

	s.regulations = regservice.New(
		regstore.NewInMemory(),
		auditlog.NewService(auditlog.NewInMemoryStore()),
		s.directory,
	)
	service := portal.NewService(
		s.regulations,
		acceptance.NewService(acceptance.NewInMemoryStore()),
		s.directory,
	)

	validator := &stubValidator{claims: &middleware.Claims{
		Subject: s.studentID.String(),
		Email:   "maria@example.com",
		Name:    "Maria Silva",
		Role:    middleware.RoleStudent,
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := chi.NewRouter()
	New(service, logger, validator).Register(r)
	s.router = r
}

func (s *PortalHandlerSuite) activateRegulation(version string) *models.Regulation {
	ctx := requestcontext.WithActor(context.Background(), requestcontext.ActorInfo{ID: "admin-1"})
	ctx = requestcontext.WithTime(ctx, s.now)
	regulation, err := s.regulations.Create(ctx, models.CreateRequest{
		ResidenceID: s.residenceID,
		Version:     version,
		Activate:    true,
	})
	s.Require().NoError(err)
	return regulation
}

func (s *PortalHandlerSuite) request(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *PortalHandlerSuite) TestGetMyRegulationPending() {
	regulation := s.activateRegulation("2026-v1")

	w := s.request(http.MethodGet, "/me/regulation")
	s.Equal(http.StatusOK, w.Code)

	var status portal.Status
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &status))
	s.Require().NotNil(status.Regulation)
	s.Equal(regulation.ID, status.Regulation.ID)
	s.False(status.HasAccepted)
	s.Equal("Casa Norte", status.ResidenceName)
}

func (s *PortalHandlerSuite) TestGetMyRegulationNothingActive() {
	w := s.request(http.MethodGet, "/me/regulation")
	s.Equal(http.StatusOK, w.Code)

	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Nil(resp["regulation"])
	s.Equal(false, resp["hasAccepted"])
}

func (s *PortalHandlerSuite) TestAcceptThenStatus() {
	regulation := s.activateRegulation("2026-v1")

	w := s.request(http.MethodPost, "/me/regulation/accept")
	s.Equal(http.StatusCreated, w.Code)

	var accepted portal.Status
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &accepted))
	s.True(accepted.HasAccepted)
	s.Require().NotNil(accepted.Acceptance)
	s.Equal(regulation.ID, accepted.Acceptance.RegulationID)

	w = s.request(http.MethodGet, "/me/regulation")
	s.Equal(http.StatusOK, w.Code)
	var status portal.Status
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &status))
	s.True(status.HasAccepted)
}

func (s *PortalHandlerSuite) TestAcceptWithoutActiveRegulation() {
	w := s.request(http.MethodPost, "/me/regulation/accept")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *PortalHandlerSuite) TestRequiresStudentRole() {
	admin := &stubValidator{claims: &middleware.Claims{
		Subject: "admin-1",
		Role:    middleware.RoleAdmin,
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := portal.NewService(
		s.regulations,
		acceptance.NewService(acceptance.NewInMemoryStore()),
		s.directory,
	)
	r := chi.NewRouter()
	New(service, logger, admin).Register(r)

	req := httptest.NewRequest(http.MethodGet, "/me/regulation", nil)
	req.Header.Set("Authorization", "Bearer token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *PortalHandlerSuite) TestAcceptanceHistory() {
	s.activateRegulation("1.0")
	w := s.request(http.MethodPost, "/me/regulation/accept")
	s.Require().Equal(http.StatusCreated, w.Code)

	s.activateRegulation("2.0")
	w = s.request(http.MethodPost, "/me/regulation/accept")
	s.Require().Equal(http.StatusCreated, w.Code)

	w = s.request(http.MethodGet, "/me/regulation/history")
	s.Equal(http.StatusOK, w.Code)

	var resp struct {
		Acceptances []acceptance.Acceptance `json:"acceptances"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Require().Len(resp.Acceptances, 2)
	s.Equal("2.0", resp.Acceptances[0].RegulationVersion)
	s.Equal("1.0", resp.Acceptances[1].RegulationVersion)
	s.Equal(s.studentID, resp.Acceptances[0].StudentID)
}

func (s *PortalHandlerSuite) TestAcceptanceHistoryEmpty() {
	w := s.request(http.MethodGet, "/me/regulation/history")
	s.Equal(http.StatusOK, w.Code)

	var resp map[string]json.RawMessage
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.JSONEq(`[]`, string(resp["acceptances"]))
}
