package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jekabolt/delivery-analytics/internal/auth"
	"github.com/jekabolt/delivery-analytics/internal/auth/jwt"
	"github.com/jekabolt/delivery-analytics/internal/entity"
	gerr "github.com/jekabolt/delivery-analytics/internal/errors"
	"github.com/jekabolt/delivery-analytics/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type analyticsMock struct {
	mock.Mock
}

func (m *analyticsMock) CustomerMetrics(ctx context.Context, f entity.OrderFilters) (*entity.CustomerMetrics, error) {
	args := m.Called(ctx, f)
	res, _ := args.Get(0).(*entity.CustomerMetrics)
	return res, args.Error(1)
}

func (m *analyticsMock) CompareCustomerMetrics(ctx context.Context, f entity.OrderFilters) (*entity.CustomerMetricsComparison, error) {
	args := m.Called(ctx, f)
	res, _ := args.Get(0).(*entity.CustomerMetricsComparison)
	return res, args.Error(1)
}

func (m *analyticsMock) Cohorts(ctx context.Context, f entity.OrderFilters, g entity.CohortGranularity) ([]entity.CohortData, error) {
	args := m.Called(ctx, f, g)
	res, _ := args.Get(0).([]entity.CohortData)
	return res, args.Error(1)
}

func (m *analyticsMock) ChurnRisk(ctx context.Context, f entity.OrderFilters, limit int) ([]entity.CustomerChurnRisk, error) {
	args := m.Called(ctx, f, limit)
	res, _ := args.Get(0).([]entity.CustomerChurnRisk)
	return res, args.Error(1)
}

func (m *analyticsMock) SpendDistribution(ctx context.Context, f entity.OrderFilters) (*entity.SpendDistribution, error) {
	args := m.Called(ctx, f)
	res, _ := args.Get(0).(*entity.SpendDistribution)
	return res, args.Error(1)
}

func (m *analyticsMock) MultiPlatform(ctx context.Context, f entity.OrderFilters) (*entity.MultiPlatformAnalysis, error) {
	args := m.Called(ctx, f)
	res, _ := args.Get(0).(*entity.MultiPlatformAnalysis)
	return res, args.Error(1)
}

func (m *analyticsMock) Snapshot(ctx context.Context, f entity.OrderFilters, g entity.CohortGranularity, churnLimit int) (*entity.AnalyticsSnapshot, error) {
	args := m.Called(ctx, f, g, churnLimit)
	res, _ := args.Get(0).(*entity.AnalyticsSnapshot)
	return res, args.Error(1)
}

type usersMock struct {
	mock.Mock
}

func (m *usersMock) GetUserByEmail(ctx context.Context, email string) (*entity.PortalUser, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*entity.PortalUser)
	return u, args.Error(1)
}

func (m *usersMock) AddUser(ctx context.Context, u *entity.PortalUser) (int, error) {
	args := m.Called(ctx, u)
	return args.Int(0), args.Error(1)
}

type filesMock struct {
	mock.Mock
}

func (m *filesMock) UploadSnapshot(ctx context.Context, snap *entity.AnalyticsSnapshot) (*entity.SnapshotObject, error) {
	args := m.Called(ctx, snap)
	res, _ := args.Get(0).(*entity.SnapshotObject)
	return res, args.Error(1)
}

type testServer struct {
	handler   http.Handler
	auth      *auth.Auth
	analytics *analyticsMock
	users     *usersMock
	files     *filesMock
}

func newTestServer(t *testing.T, withFiles bool) *testServer {
	t.Helper()
	users := &usersMock{}
	a, err := auth.New(&auth.Config{JWTSecret: "test-secret", JWTTTL: "1h", BcryptCost: bcrypt.MinCost}, users)
	require.NoError(t, err)

	limiter, err := ratelimit.NewLoginLimiter(ratelimit.Config{LoginPerIP: 100, LoginPerEmail: 2, Window: "1m"})
	require.NoError(t, err)
	t.Cleanup(limiter.Stop)

	ts := &testServer{auth: a, analytics: &analyticsMock{}, users: users, files: &filesMock{}}
	d := Deps{
		Analytics: ts.analytics,
		Auth:      a,
		Limiter:   limiter,
		Health:    func(context.Context) error { return nil },
	}
	if withFiles {
		d.Files = ts.files
	}
	s, err := New(&Config{AllowedOrigins: []string{"https://portal.example.com"}}, d)
	require.NoError(t, err)
	ts.handler = s.Handler()
	return ts
}

func (ts *testServer) token(t *testing.T, p entity.Principal) string {
	t.Helper()
	token, err := jwt.NewToken(ts.auth.JwtAuth, time.Hour, p)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

var (
	internalUser = entity.Principal{Email: "staff@agency.example", Role: entity.RoleInternal}
	merchantUser = entity.Principal{Email: "owner@merchant.example", Role: entity.RoleExternal, CompanyIds: []int{3, 4}}
)

const januaryQuery = "start_date=2025-01-01&end_date=2025-01-31"

func januaryFilters(companies ...int) entity.OrderFilters {
	f := entity.OrderFilters{StartDate: "2025-01-01", EndDate: "2025-01-31"}
	if len(companies) > 0 {
		f.CompanyIds = companies
	}
	return f
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t, false)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	ts.users.On("GetUserByEmail", mock.Anything, "owner@merchant.example").Return(&entity.PortalUser{
		Email:        "owner@merchant.example",
		PasswordHash: string(hash),
		Role:         entity.RoleExternal,
		CompanyIds:   "3,4",
	}, nil)

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"owner@merchant.example","password":"hunter2"}`)), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	p, err := jwt.VerifyToken(ts.auth.JwtAuth, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, p.CompanyIds)

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"owner@merchant.example","password":"wrong"}`)), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// the per email limit of 2 is used up by the two attempts above
	rec = ts.do(httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"owner@merchant.example","password":"hunter2"}`)), "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLogin_UserLookupFails(t *testing.T) {
	ts := newTestServer(t, false)
	ts.users.On("GetUserByEmail", mock.Anything, "owner@merchant.example").Return(nil, errors.New("connection refused"))
	ts.users.On("GetUserByEmail", mock.Anything, "nobody@merchant.example").Return(nil, fmt.Errorf("user %w", gerr.ErrNotFound))

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"owner@merchant.example","password":"hunter2"}`)), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"nobody@merchant.example","password":"hunter2"}`)), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_BadRequest(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{`)), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"not-an-email","password":""}`)), "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Fields, "email")
	assert.Contains(t, resp.Fields, "password")
	ts.users.AssertNotCalled(t, "GetUserByEmail", mock.Anything, mock.Anything)
}

func TestAnalytics_RequiresToken(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/customers?"+januaryQuery, nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/customers?"+januaryQuery, nil), "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	ts.analytics.AssertNotCalled(t, "CustomerMetrics", mock.Anything, mock.Anything)
}

func TestCustomers(t *testing.T) {
	ts := newTestServer(t, false)
	ts.analytics.On("CustomerMetrics", mock.Anything, januaryFilters(7)).
		Return(&entity.CustomerMetrics{TotalCustomers: 3, RetentionRate: 66.67}, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/customers?company_id=7&"+januaryQuery, nil),
		ts.token(t, internalUser))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.EqualValues(t, 3, body["totalCustomers"])
	assert.EqualValues(t, 66.67, body["retentionRate"])
	ts.analytics.AssertExpectations(t)
}

func TestCustomers_Compare(t *testing.T) {
	ts := newTestServer(t, false)
	change := 50.0
	ts.analytics.On("CompareCustomerMetrics", mock.Anything, januaryFilters()).
		Return(&entity.CustomerMetricsComparison{ChangePct: map[string]*float64{"totalCustomers": &change}}, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/customers?compare=true&"+januaryQuery, nil),
		ts.token(t, internalUser))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"changePct":{"totalCustomers":50}`)
	ts.analytics.AssertNotCalled(t, "CustomerMetrics", mock.Anything, mock.Anything)
}

func TestScope(t *testing.T) {
	ts := newTestServer(t, false)
	token := ts.token(t, merchantUser)

	ts.analytics.On("MultiPlatform", mock.Anything, januaryFilters(3, 4)).
		Return(&entity.MultiPlatformAnalysis{TotalCustomers: 1}, nil).Once()
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/platforms?"+januaryQuery, nil), token)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/platforms?company_id=3,5&"+januaryQuery, nil), token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	ts.analytics.AssertNumberOfCalls(t, "MultiPlatform", 1)
}

func TestValidation(t *testing.T) {
	ts := newTestServer(t, false)
	token := ts.token(t, internalUser)

	tests := []struct {
		name  string
		query string
		field string
	}{
		{"missing dates", "", "start_date"},
		{"end before start", "start_date=2025-02-01&end_date=2025-01-01", "end_date"},
		{"unknown channel", "channel=deliveroo&" + januaryQuery, "channel"},
		{"bad company", "company_id=abc&" + januaryQuery, "company_id"},
		{"bad granularity", "granularity=year&" + januaryQuery, "granularity"},
		{"limit too high", "limit=5000&" + januaryQuery, "limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/cohorts?"+tt.query, nil), token)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			var resp errorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Contains(t, resp.Fields, tt.field)
		})
	}
	ts.analytics.AssertNotCalled(t, "Cohorts", mock.Anything, mock.Anything, mock.Anything)
}

func TestCohortsAndChurn(t *testing.T) {
	ts := newTestServer(t, false)
	token := ts.token(t, internalUser)

	f := januaryFilters()
	f.ChannelIds = []entity.ChannelId{entity.ChannelGlovo, entity.ChannelUberEats}
	ts.analytics.On("Cohorts", mock.Anything, f, entity.CohortWeek).Return(nil, nil)
	ts.analytics.On("ChurnRisk", mock.Anything, januaryFilters(), 5).Return([]entity.CustomerChurnRisk{
		{CustomerId: "c1", Risk: entity.ChurnRiskHigh},
	}, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet,
		"/api/analytics/cohorts?granularity=week&channel=glovo&channel=UberEats&"+januaryQuery, nil), token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/churn?limit=5&"+januaryQuery, nil), token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var entries []entity.CustomerChurnRisk
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, entity.ChurnRiskHigh, entries[0].Risk)
	ts.analytics.AssertExpectations(t)
}

func TestDataFetchError(t *testing.T) {
	ts := newTestServer(t, false)
	ts.analytics.On("SpendDistribution", mock.Anything, januaryFilters()).
		Return(nil, fmt.Errorf("%w: connection refused", gerr.ErrDataFetch))

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/api/analytics/distribution?"+januaryQuery, nil),
		ts.token(t, internalUser))
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestSnapshot(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(httptest.NewRequest(http.MethodPost, "/api/analytics/snapshots?"+januaryQuery, nil),
		ts.token(t, internalUser))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ts = newTestServer(t, true)
	snap := &entity.AnalyticsSnapshot{Filters: januaryFilters(), OrdersCount: 4}
	ts.analytics.On("Snapshot", mock.Anything, januaryFilters(), entity.CohortMonth, 0).Return(snap, nil)
	ts.files.On("UploadSnapshot", mock.Anything, snap).Return(&entity.SnapshotObject{
		Key: "reports/2025/02/01/abc.json",
		URL: "https://files.example.com/reports/2025/02/01/abc.json",
	}, nil)

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/api/analytics/snapshots?"+januaryQuery, nil),
		ts.token(t, internalUser))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var obj entity.SnapshotObject
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&obj))
	assert.Equal(t, "reports/2025/02/01/abc.json", obj.Key)
	ts.files.AssertExpectations(t)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	s, err := New(&Config{}, Deps{
		Auth:   ts.auth,
		Health: func(context.Context) error { return errors.New("db down") },
	})
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://portal.example.com")
	rec := ts.do(req, "")
	assert.Equal(t, "https://portal.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = ts.do(req, "")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestIsOriginAllowed(t *testing.T) {
	assert.True(t, isOriginAllowed("http://localhost:3000", nil))
	assert.True(t, isOriginAllowed("https://a.example", []string{"https://a.example"}))
	assert.False(t, isOriginAllowed("https://b.example", []string{"https://a.example"}))
}

func TestNew_BadTimeout(t *testing.T) {
	_, err := New(&Config{RequestTimeout: "eventually"}, Deps{})
	assert.Error(t, err)
}
