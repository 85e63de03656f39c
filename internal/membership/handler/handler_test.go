package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	jwttoken "orgapi/internal/jwt_token"
	"orgapi/internal/membership/models"
	"orgapi/internal/membership/retention"
	"orgapi/internal/membership/service"
	"orgapi/internal/membership/store"
	"orgapi/pkg/platform/middleware/auth"
	"orgapi/pkg/platform/middleware/request"
	"orgapi/pkg/testutil"
)

// =============================================================================
// Membership Handler Test Suite
// =============================================================================
// Justification: handlers run against the real engine and in-memory store so
// status mapping, routing and admin protection are exercised end to end
// without a database.

const testFee = 300

type HandlerSuite struct {
	suite.Suite
	router     http.Handler
	store      *store.InMemory
	adminToken string
	now        time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.store = store.NewInMemory()
	s.now = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	svc, err := service.New(s.store, service.Config{MembershipFee: testFee, DefaultRetentionDays: 365},
		service.WithLogger(logger),
		service.WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)
	sweeper, err := retention.New(s.store, retention.WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)

	jwtService := jwttoken.NewJWTService("handler-test-key", "orgapi", "orgapi-admin")
	s.adminToken, err = jwtService.GenerateToken("admin-1", jwttoken.RoleAdmin, time.Hour)
	s.Require().NoError(err)

	r := chi.NewRouter()
	r.Use(request.RequestID)
	New(svc, sweeper, logger).Register(r, auth.RequireAdmin(jwttoken.NewMiddlewareValidator(jwtService), logger))
	s.router = r
}

func (s *HandlerSuite) applyBody(email, personalNr string) map[string]any {
	return map[string]any{
		"first_name":        "Ola",
		"last_name":         "Nordmann",
		"personal_nr":       personalNr,
		"email":             email,
		"date_of_birth":     "1990-05-17",
		"payment_reference": "VIPPS-1",
		"payment_amount":    testFee,
	}
}

func (s *HandlerSuite) do(method, path string, body any, admin bool) *httptest.ResponseRecorder {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	if admin {
		testutil.WithBearer(req, s.adminToken)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) apply(email, personalNr string) *models.Applicant {
	res := s.do(http.MethodPost, "/api/membership/apply", s.applyBody(email, personalNr), false)
	testutil.AssertStatus(s.T(), res, http.StatusCreated)
	return testutil.UnmarshalResponse[models.Applicant](s.T(), res)
}

func (s *HandlerSuite) TestApply() {
	testutil.Given(s.T(), "a valid paid application", func(t *testing.T) {
		a := s.apply("Ola@X.com", "123")
		s.Equal(models.StatusPending, a.Status)
		s.Equal("ola@x.com", a.Email)
		s.Require().NotNil(a.DateOfBirth)
		s.Equal("1990-05-17", a.DateOfBirth.String())
	})

	testutil.When(s.T(), "the same email applies again", func(t *testing.T) {
		res := s.do(http.MethodPost, "/api/membership/apply", s.applyBody("ola@x.com", "456"), false)
		testutil.AssertStatusAndError(t, res, http.StatusConflict, "conflict")
	})

	testutil.And(s.T(), "a wrong amount is a validation error", func(t *testing.T) {
		body := s.applyBody("kari@x.com", "789")
		body["payment_amount"] = 250
		res := s.do(http.MethodPost, "/api/membership/apply", body, false)
		testutil.AssertStatusAndError(t, res, http.StatusBadRequest, "validation_error")
	})
}

func (s *HandlerSuite) TestApplyBadBodies() {
	res := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/membership/apply", "{"))
	testutil.AssertStatusAndError(s.T(), res, http.StatusBadRequest, "bad_request")

	body := s.applyBody("a@x.com", "1")
	body["unexpected"] = true
	res = s.do(http.MethodPost, "/api/membership/apply", body, false)
	testutil.AssertStatus(s.T(), res, http.StatusBadRequest)

	body = s.applyBody("a@x.com", "1")
	delete(body, "first_name")
	res = s.do(http.MethodPost, "/api/membership/apply", body, false)
	testutil.AssertStatusAndError(s.T(), res, http.StatusBadRequest, "validation_error")
}

func (s *HandlerSuite) TestAdminRoutesRequireToken() {
	res := s.do(http.MethodGet, "/api/admin/membership/applications", nil, false)
	testutil.AssertStatusAndError(s.T(), res, http.StatusUnauthorized, "unauthorized")

	req := testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/api/admin/membership"), "not-a-token")
	testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, req), http.StatusUnauthorized)
}

func (s *HandlerSuite) TestReviewFlow() {
	a := s.apply("flow@x.com", "1")
	base := "/api/admin/membership/applications/" + a.ID.String()

	res := s.do(http.MethodGet, "/api/admin/membership/applications?status=pending", nil, true)
	testutil.AssertStatusOK(s.T(), res)
	page := testutil.UnmarshalResponse[models.ApplicantPage](s.T(), res)
	s.Equal(1, page.Total)

	res = s.do(http.MethodPatch, base+"/reject", map[string]any{"days_to_keep": 30, "reason": "missing payment"}, true)
	testutil.AssertStatusOK(s.T(), res)
	rejected := testutil.UnmarshalResponse[models.Applicant](s.T(), res)
	s.Equal(models.StatusRejected, rejected.Status)
	s.Require().NotNil(rejected.DeleteAt)
	s.Equal(s.now.Add(30*24*time.Hour), rejected.DeleteAt.UTC())

	res = s.do(http.MethodPatch, base+"/accept", nil, true)
	testutil.AssertStatusAndError(s.T(), res, http.StatusConflict, "conflict")

	res = s.do(http.MethodPatch, base+"/pending", nil, true)
	testutil.AssertStatusOK(s.T(), res)

	res = s.do(http.MethodPatch, base+"/accept", nil, true)
	testutil.AssertStatusOK(s.T(), res)
	testutil.AssertJSONContains(s.T(), res, "status", "ACCEPTED")

	res = s.do(http.MethodGet, "/api/admin/membership/"+a.ID.String(), nil, true)
	testutil.AssertStatusOK(s.T(), res)

	res = s.do(http.MethodDelete, base, nil, true)
	testutil.AssertStatus(s.T(), res, http.StatusNoContent)

	res = s.do(http.MethodGet, base, nil, true)
	testutil.AssertStatusAndError(s.T(), res, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestRejectWithoutBodyUsesDefault() {
	a := s.apply("nobody@x.com", "1")
	req := testutil.NewRequest(s.T(), http.MethodPatch, "/api/admin/membership/applications/"+a.ID.String()+"/reject")
	req.Header.Set("Authorization", "Bearer "+s.adminToken)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
	rejected := testutil.UnmarshalResponse[models.Applicant](s.T(), rr)
	s.Equal(s.now.Add(365*24*time.Hour), rejected.DeleteAt.UTC())
}

func (s *HandlerSuite) TestInvalidInputs() {
	res := s.do(http.MethodPatch, "/api/admin/membership/applications/not-a-uuid/accept", nil, true)
	testutil.AssertStatus(s.T(), res, http.StatusBadRequest)

	res = s.do(http.MethodGet, "/api/admin/membership/applications?status=archived", nil, true)
	testutil.AssertStatusAndError(s.T(), res, http.StatusBadRequest, "validation_error")

	res = s.do(http.MethodGet, "/api/admin/membership?page=-1", nil, true)
	testutil.AssertStatusAndError(s.T(), res, http.StatusBadRequest, "validation_error")

	res = s.do(http.MethodGet, "/api/admin/membership?size=abc", nil, true)
	testutil.AssertStatusAndError(s.T(), res, http.StatusBadRequest, "validation_error")

	res = s.do(http.MethodPatch, "/api/admin/membership/applications/00000000-0000-4000-8000-000000000001/accept", nil, true)
	testutil.AssertStatusAndError(s.T(), res, http.StatusNotFound, "not_found")
}

func (s *HandlerSuite) TestMembersCRUD() {
	member := map[string]any{
		"first_name":  "Kari",
		"last_name":   "Nordmann",
		"personal_nr": "m-1",
		"email":       "kari@x.com",
	}
	res := s.do(http.MethodPost, "/api/admin/membership", member, true)
	testutil.AssertStatus(s.T(), res, http.StatusCreated)
	created := testutil.UnmarshalResponse[models.Applicant](s.T(), res)
	s.Equal(models.StatusAccepted, created.Status)

	res = s.do(http.MethodPost, "/api/admin/membership", member, true)
	testutil.AssertStatusAndError(s.T(), res, http.StatusConflict, "conflict")

	member["city"] = "Bergen"
	res = s.do(http.MethodPut, "/api/admin/membership/"+created.ID.String(), member, true)
	testutil.AssertStatusOK(s.T(), res)
	testutil.AssertJSONContains(s.T(), res, "city", "Bergen")

	res = s.do(http.MethodPost, "/api/admin/membership", map[string]any{"first_name": "x"}, true)
	testutil.AssertStatusAndError(s.T(), res, http.StatusBadRequest, "validation_error")

	res = s.do(http.MethodGet, "/api/admin/membership?size=1", nil, true)
	testutil.AssertStatusOK(s.T(), res)
	page := testutil.UnmarshalResponse[models.ApplicantPage](s.T(), res)
	s.Equal(1, page.Total)
	s.Equal(1, page.Size)

	pending := s.apply("pending@x.com", "p-1")
	res = s.do(http.MethodGet, "/api/admin/membership/"+pending.ID.String(), nil, true)
	testutil.AssertStatusAndError(s.T(), res, http.StatusNotFound, "not_found")

	res = s.do(http.MethodDelete, "/api/admin/membership/"+created.ID.String(), nil, true)
	testutil.AssertStatus(s.T(), res, http.StatusNoContent)
}

func (s *HandlerSuite) TestManualSweep() {
	for i := 0; i < 2; i++ {
		a := s.apply(fmt.Sprintf("sweep%d@x.com", i), fmt.Sprintf("s-%d", i))
		res := s.do(http.MethodPatch, "/api/admin/membership/applications/"+a.ID.String()+"/reject", map[string]any{"days_to_keep": 1}, true)
		testutil.AssertStatusOK(s.T(), res)
	}
	s.now = s.now.Add(48 * time.Hour)

	res := s.do(http.MethodPost, "/api/admin/membership/retention/sweep", nil, true)
	testutil.AssertStatusOK(s.T(), res)
	sweep := testutil.UnmarshalResponse[SweepResponse](s.T(), res)
	s.Equal(2, sweep.Purged)

	res = s.do(http.MethodPost, "/api/admin/membership/retention/sweep", nil, true)
	s.Equal(0, testutil.UnmarshalResponse[SweepResponse](s.T(), res).Purged)

	s.apply("sweep0@x.com", "s-0")
}
