package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"seriosity/internal/evidence/models"
	"seriosity/internal/evidence/service"
	"seriosity/internal/evidence/store"
	"seriosity/internal/media"
	id "seriosity/pkg/domain"
	dErrors "seriosity/pkg/domain-errors"
	"seriosity/pkg/requestcontext"
	"seriosity/pkg/testutil"
)

type EvidenceHandlerSuite struct {
	suite.Suite
	router   chi.Router
	service  *service.Service
	tenantID id.TenantID
	operator id.UserID
}

func TestEvidenceHandlerSuite(t *testing.T) {
	suite.Run(t, new(EvidenceHandlerSuite))
}

func (s *EvidenceHandlerSuite) SetupTest() {
	st := store.NewInMemoryStore()
	s.service = service.New(st, st, service.WithMediaStore(media.NewInMemoryStore()))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, logger).Register(s.router)
	s.tenantID = id.NewTenantID()
	s.operator = id.UserID(id.NewTenantID())
}

func (s *EvidenceHandlerSuite) asOperator(req *http.Request) *http.Request {
	return testutil.WithActor(req, s.operator, requestcontext.RoleOperator)
}

func (s *EvidenceHandlerSuite) scorePath() string {
	return "/tenants/" + s.tenantID.String() + "/score"
}

func (s *EvidenceHandlerSuite) TestGetScoreForNewTenant() {
	req := testutil.AsTenant(testutil.NewRequest(s.T(), http.MethodGet, s.scorePath()), s.tenantID)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[map[string]any](s.T(), rr)
	s.Equal(float64(0), (*resp)["total"])
}

func (s *EvidenceHandlerSuite) TestGetScoreAccess() {
	other := testutil.AsTenant(testutil.NewRequest(s.T(), http.MethodGet, s.scorePath()), id.NewTenantID())
	testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, other), http.StatusForbidden)

	landlord := testutil.AsLandlord(testutil.NewRequest(s.T(), http.MethodGet, s.scorePath()), id.NewLandlordID())
	testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, landlord), http.StatusOK)

	anonymous := testutil.NewRequest(s.T(), http.MethodGet, s.scorePath())
	testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, anonymous), http.StatusUnauthorized)
}

func (s *EvidenceHandlerSuite) TestSetIdentityRequiresOperator() {
	path := "/tenants/" + s.tenantID.String() + "/identity"
	body := map[string]bool{"verified": true}

	asTenant := testutil.AsTenant(testutil.NewJSONRequest(s.T(), http.MethodPut, path, body), s.tenantID)
	rr := testutil.DoRequest(s.router, asTenant)
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)

	rr = testutil.DoRequest(s.router, s.asOperator(testutil.NewJSONRequest(s.T(), http.MethodPut, path, body)))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONContains(s.T(), rr, "identity_verified", true)

	stored, err := s.service.GetScore(context.Background(), s.tenantID)
	s.Require().NoError(err)
	s.Equal(15, stored.Breakdown.Total())
}

func (s *EvidenceHandlerSuite) TestSetIdentityValidatesBody() {
	path := "/tenants/" + s.tenantID.String() + "/identity"
	rr := testutil.DoRequest(s.router, s.asOperator(testutil.NewJSONRequest(s.T(), http.MethodPut, path, map[string]any{})))

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertErrorCode(s.T(), rr, dErrors.CodeValidation)
}

func (s *EvidenceHandlerSuite) TestUploadAndRemoveDocument() {
	path := "/tenants/" + s.tenantID.String() + "/documents?kind=income&filename=payslip.pdf"
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte("%PDF-1.7")))
	req.Header.Set("Content-Type", "application/pdf")
	rr := testutil.DoRequest(s.router, testutil.AsTenant(req, s.tenantID))

	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	doc := testutil.UnmarshalResponse[models.Document](s.T(), rr)
	s.Equal(models.DocumentKindIncome, doc.Kind)
	s.False(doc.Verified)

	verifyPath := "/tenants/" + s.tenantID.String() + "/documents/" + doc.ID.String() + "/verification"
	rr = testutil.DoRequest(s.router, s.asOperator(testutil.NewJSONRequest(s.T(), http.MethodPut, verifyPath, map[string]bool{"verified": true})))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	stored, err := s.service.GetScore(context.Background(), s.tenantID)
	s.Require().NoError(err)
	s.Equal(20, stored.Breakdown.Total())

	del := testutil.NewRequest(s.T(), http.MethodDelete, "/tenants/"+s.tenantID.String()+"/documents/"+doc.ID.String())
	rr = testutil.DoRequest(s.router, testutil.AsTenant(del, s.tenantID))
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
}

func (s *EvidenceHandlerSuite) TestUploadRejectsUnknownKind() {
	req := httptest.NewRequest(http.MethodPost, "/tenants/"+s.tenantID.String()+"/documents?kind=selfie", bytes.NewReader([]byte("x")))
	req.Header.Set("Content-Type", "image/png")
	rr := testutil.DoRequest(s.router, testutil.AsTenant(req, s.tenantID))

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertErrorCode(s.T(), rr, dErrors.CodeValidation)
}

func (s *EvidenceHandlerSuite) TestInvalidTenantID() {
	req := testutil.AsTenant(testutil.NewRequest(s.T(), http.MethodGet, "/tenants/not-a-uuid/score"), s.tenantID)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertErrorCode(s.T(), rr, dErrors.CodeInvalidInput)
}

func (s *EvidenceHandlerSuite) TestReconcileEndpoint() {
	_, err := s.service.TouchProfile(context.Background(), s.tenantID)
	s.Require().NoError(err)

	req := s.asOperator(testutil.NewRequest(s.T(), http.MethodGet, s.scorePath()+"/reconcile"))
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONContains(s.T(), rr, "status", "consistent")
}
