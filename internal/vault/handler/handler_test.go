package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"vestry/internal/platform/token"
	"vestry/internal/treasury/memory"
	"vestry/internal/vault/handler"
	"vestry/internal/vault/models"
	"vestry/internal/vault/service"
	"vestry/internal/vault/store/ledger"
	"vestry/pkg/domain"
	"vestry/pkg/platform/audit"
	"vestry/pkg/platform/audit/publisher"
	auditmemory "vestry/pkg/platform/audit/store/memory"
	adminmw "vestry/pkg/platform/middleware/admin"
	authmw "vestry/pkg/platform/middleware/auth"
)

const adminToken = "test-admin-token"

// HandlerSuite drives the vault surface through the real middleware chain
// with in-memory components: real token service, real registry, real
// treasury, real audit store. No mocks.
type HandlerSuite struct {
	suite.Suite

	router     chi.Router
	tokens     *token.Service
	treasury   *memory.Treasury
	auditStore *auditmemory.InMemoryStore
	custody    domain.AccountID
	owner      domain.AccountID
	now        time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.custody = domain.AccountID(uuid.New())
	s.owner = domain.AccountID(uuid.New())
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s.tokens = token.NewService("test-signing-key", "vestry-test")
	s.treasury = memory.New(s.custody)
	s.treasury.Credit(s.owner, 1_000)

	s.auditStore = auditmemory.NewInMemoryStore()
	pub := publisher.NewPublisher(s.auditStore)

	svc, err := service.New(ledger.NewRegistry(), s.treasury, s.custody,
		service.WithLogger(logger),
		service.WithPublisher(pub),
		service.WithClock(func() time.Time { return s.now }),
	)
	s.Require().NoError(err)

	h := handler.NewHandler(svc, logger)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(s.tokens, logger))
		h.Register(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(s.tokens, logger))
		r.Use(adminmw.RequireAdminToken(adminToken, logger))
		h.RegisterAdmin(r)
	})
	s.router = r
}

func (s *HandlerSuite) request(method, path string, body any, decorate ...func(*http.Request)) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)

	accessToken, err := s.tokens.GenerateAccessToken(s.owner, time.Hour)
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+accessToken)

	for _, d := range decorate {
		d(req)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(v))
}

func (s *HandlerSuite) createLock(amount uint64, durationSeconds int64) models.LockResponse {
	rec := s.request(http.MethodPost, "/vault/locks", models.CreateLockRequest{
		Amount:          amount,
		DurationSeconds: durationSeconds,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var resp models.LockResponse
	s.decode(rec, &resp)
	return resp
}

func (s *HandlerSuite) TestCreateAndListLocks() {
	lock := s.createLock(400, 3600)
	s.Equal(uint64(1), lock.LockID)
	s.Equal(uint64(400), lock.Amount)
	s.Equal(s.now.Add(time.Hour).Format(time.RFC3339), lock.UnlockTime)

	rec := s.request(http.MethodGet, "/vault/locks", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var list models.ListLocksResponse
	s.decode(rec, &list)
	s.Require().Len(list.Locks, 1)
	s.Equal(uint64(400), list.TotalLocked)
}

func (s *HandlerSuite) TestCreateLock_Rejections() {
	cases := []struct {
		name string
		body models.CreateLockRequest
	}{
		{"zero amount", models.CreateLockRequest{Amount: 0, DurationSeconds: 3600}},
		{"zero duration", models.CreateLockRequest{Amount: 100, DurationSeconds: 0}},
		{"negative duration", models.CreateLockRequest{Amount: 100, DurationSeconds: -5}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			rec := s.request(http.MethodPost, "/vault/locks", tc.body)
			s.Equal(http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func (s *HandlerSuite) TestCreateLock_InsufficientFunds() {
	rec := s.request(http.MethodPost, "/vault/locks", models.CreateLockRequest{
		Amount:          5_000,
		DurationSeconds: 3600,
	})
	s.Equal(http.StatusBadGateway, rec.Code, rec.Body.String())
}

func (s *HandlerSuite) TestReleaseLock() {
	lock := s.createLock(400, 3600)
	s.now = s.now.Add(2 * time.Hour)

	rec := s.request(http.MethodPost, fmt.Sprintf("/vault/locks/%d/release", lock.LockID), nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp models.ReleaseResponse
	s.decode(rec, &resp)
	s.Equal(uint64(400), resp.Released)

	balance, err := s.treasury.BalanceOf(context.Background(), s.owner)
	s.Require().NoError(err)
	s.Equal(uint64(1_000), balance)
}

func (s *HandlerSuite) TestReleaseLock_StillLocked() {
	lock := s.createLock(400, 3600)

	rec := s.request(http.MethodPost, fmt.Sprintf("/vault/locks/%d/release", lock.LockID), nil)
	s.Require().Equal(http.StatusLocked, rec.Code, rec.Body.String())

	var body map[string]any
	s.decode(rec, &body)
	// The rejection tells the caller when to retry.
	s.Equal(s.now.Add(time.Hour).Format(time.RFC3339), body["unlock_time"])
}

func (s *HandlerSuite) TestReleaseLock_NotFound() {
	rec := s.request(http.MethodPost, "/vault/locks/42/release", nil)
	s.Equal(http.StatusNotFound, rec.Code, rec.Body.String())
}

func (s *HandlerSuite) TestReleaseLock_BadLockID() {
	rec := s.request(http.MethodPost, "/vault/locks/abc/release", nil)
	s.Equal(http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = s.request(http.MethodPost, "/vault/locks/0/release", nil)
	s.Equal(http.StatusBadRequest, rec.Code, rec.Body.String())
}

func (s *HandlerSuite) TestPartialRelease() {
	lock := s.createLock(400, 3600)
	s.now = s.now.Add(2 * time.Hour)

	rec := s.request(http.MethodPost,
		fmt.Sprintf("/vault/locks/%d/release-partial", lock.LockID),
		models.PartialReleaseRequest{Amount: 150})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp models.PartialReleaseResponse
	s.decode(rec, &resp)
	s.Equal(uint64(150), resp.Released)
	s.Equal(uint64(250), resp.Remaining)
}

func (s *HandlerSuite) TestExtendLock() {
	lock := s.createLock(400, 3600)

	rec := s.request(http.MethodPost,
		fmt.Sprintf("/vault/locks/%d/extend", lock.LockID),
		models.ExtendLockRequest{AdditionalSeconds: 1800})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp models.ExtendLockResponse
	s.decode(rec, &resp)
	s.Equal(s.now.Add(90*time.Minute).Format(time.RFC3339), resp.UnlockTime)
}

func (s *HandlerSuite) TestEmergencyRelease() {
	lock := s.createLock(400, 86_400)

	rec := s.request(http.MethodPost,
		fmt.Sprintf("/vault/locks/%d/emergency-release", lock.LockID), nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp models.ReleaseResponse
	s.decode(rec, &resp)
	s.Equal(uint64(400), resp.Released)
}

func (s *HandlerSuite) TestUnauthorized() {
	req := httptest.NewRequest(http.MethodGet, "/vault/locks", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/vault/locks", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestRecoverExcess() {
	s.createLock(400, 3600)
	s.treasury.Credit(s.custody, 100)

	withAdmin := func(r *http.Request) { r.Header.Set("X-Admin-Token", adminToken) }

	rec := s.request(http.MethodPost, "/admin/vault/recover-excess",
		models.RecoverExcessRequest{Amount: 100}, withAdmin)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	// Nothing unencumbered remains.
	rec = s.request(http.MethodPost, "/admin/vault/recover-excess",
		models.RecoverExcessRequest{Amount: 1}, withAdmin)
	s.Equal(http.StatusConflict, rec.Code, rec.Body.String())
}

func (s *HandlerSuite) TestRecoverExcess_RequiresAdminToken() {
	rec := s.request(http.MethodPost, "/admin/vault/recover-excess",
		models.RecoverExcessRequest{Amount: 1})
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.request(http.MethodPost, "/admin/vault/recover-excess",
		models.RecoverExcessRequest{Amount: 1},
		func(r *http.Request) { r.Header.Set("X-Admin-Token", "wrong") })
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestAuditTrail() {
	lock := s.createLock(400, 3600)
	s.now = s.now.Add(2 * time.Hour)

	rec := s.request(http.MethodPost,
		fmt.Sprintf("/vault/locks/%d/release-partial", lock.LockID),
		models.PartialReleaseRequest{Amount: 150})
	s.Require().Equal(http.StatusOK, rec.Code)

	events, err := s.auditStore.ListByAccount(context.Background(), s.owner)
	s.Require().NoError(err)
	s.Require().Len(events, 2)

	s.Equal(audit.EventLockCreated.String(), events[0].Action)
	s.Equal(audit.EventLockPartiallyReleased.String(), events[1].Action)
	s.Equal(uint64(150), events[1].Amount)
	s.Equal(uint64(250), events[1].Remaining)
	s.Equal(audit.CategoryCompliance, events[1].Category)
}

func TestNewHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	custody := domain.AccountID(uuid.New())
	svc, err := service.New(ledger.NewRegistry(), memory.New(custody), custody)
	require.NoError(t, err)
	require.NotNil(t, handler.NewHandler(svc, logger))
}
