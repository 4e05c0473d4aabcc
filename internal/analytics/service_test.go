package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jekabolt/delivery-analytics/internal/entity"
	gerr "github.com/jekabolt/delivery-analytics/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type orderSourceMock struct {
	mock.Mock
}

func (m *orderSourceMock) FetchCustomerOrders(ctx context.Context, f entity.OrderFilters) ([]entity.Order, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]entity.Order)
	return orders, args.Error(1)
}

func newTestService(t *testing.T, source *orderSourceMock) *Service {
	t.Helper()
	s, err := New(&Config{Timezone: "UTC"}, source)
	require.NoError(t, err)
	s.now = func() time.Time { return day("2025-04-01") }
	return s
}

func TestService_New(t *testing.T) {
	_, err := New(&Config{Timezone: "Mars/Olympus"}, &orderSourceMock{})
	assert.Error(t, err)

	s, err := New(&Config{}, &orderSourceMock{})
	require.NoError(t, err)
	assert.Equal(t, time.UTC, s.Location())
	assert.Equal(t, DefaultChurnLimit, s.churnLimit)
}

func TestService_CompareCustomerMetrics(t *testing.T) {
	ctx := context.Background()
	source := &orderSourceMock{}
	s := newTestService(t, source)

	f := entity.OrderFilters{CompanyIds: []int{7}, StartDate: "2025-02-01", EndDate: "2025-02-28"}
	prev := entity.OrderFilters{CompanyIds: []int{7}, StartDate: "2025-01-04", EndDate: "2025-01-31"}

	source.On("FetchCustomerOrders", mock.Anything, f).Return([]entity.Order{
		order("A", "2025-02-03", 20, true, entity.ChannelGlovo),
		order("B", "2025-02-04", 20, true, entity.ChannelGlovo),
	}, nil).Once()
	source.On("FetchCustomerOrders", mock.Anything, prev).Return([]entity.Order{
		order("A", "2025-01-10", 20, true, entity.ChannelGlovo),
	}, nil).Once()

	cmp, err := s.CompareCustomerMetrics(ctx, f)
	require.NoError(t, err)
	source.AssertExpectations(t)

	assert.Equal(t, 2, cmp.Current.TotalCustomers)
	assert.Equal(t, 1, cmp.Previous.TotalCustomers)
	require.NotNil(t, cmp.ChangePct["totalCustomers"])
	assert.Equal(t, 100.0, *cmp.ChangePct["totalCustomers"])
	assert.Equal(t, day("2025-02-01"), cmp.Period.From)
	assert.Equal(t, day("2025-03-01"), cmp.Period.To)
	assert.Equal(t, day("2025-01-04"), cmp.ComparePeriod.From)
	assert.Equal(t, day("2025-02-01"), cmp.ComparePeriod.To)
}

func TestService_FetchError(t *testing.T) {
	ctx := context.Background()
	source := &orderSourceMock{}
	s := newTestService(t, source)

	f := entity.OrderFilters{StartDate: "2025-01-01", EndDate: "2025-01-31"}
	source.On("FetchCustomerOrders", mock.Anything, mock.Anything).
		Return(nil, errors.Join(gerr.ErrDataFetch, errors.New("connection refused")))

	_, err := s.SpendDistribution(ctx, f)
	assert.ErrorIs(t, err, gerr.ErrDataFetch)

	_, err = s.CompareCustomerMetrics(ctx, f)
	assert.ErrorIs(t, err, gerr.ErrDataFetch)
}

func TestService_InvalidDates(t *testing.T) {
	ctx := context.Background()
	source := &orderSourceMock{}
	s := newTestService(t, source)

	_, err := s.CustomerMetrics(ctx, entity.OrderFilters{StartDate: "2025-02-01", EndDate: "2025-01-01"})
	assert.ErrorIs(t, err, gerr.ErrInvalidRequest)

	_, err = s.MultiPlatform(ctx, entity.OrderFilters{StartDate: "yesterday", EndDate: "2025-01-01"})
	assert.ErrorIs(t, err, gerr.ErrInvalidRequest)

	source.AssertNotCalled(t, "FetchCustomerOrders", mock.Anything, mock.Anything)
}

func TestService_ChurnRiskUsesClock(t *testing.T) {
	ctx := context.Background()
	source := &orderSourceMock{}
	s := newTestService(t, source)

	f := entity.OrderFilters{StartDate: "2025-01-01", EndDate: "2025-03-31"}
	source.On("FetchCustomerOrders", mock.Anything, f).Return([]entity.Order{
		order("A", "2025-01-01", 10, true, entity.ChannelGlovo),
		order("A", "2025-01-11", 10, false, entity.ChannelGlovo),
	}, nil)

	risks, err := s.ChurnRisk(ctx, f, 0)
	require.NoError(t, err)
	require.Len(t, risks, 1)
	// 2025-01-11 to 2025-04-01
	assert.Equal(t, 80, risks[0].DaysSinceLastOrder)
	assert.Equal(t, entity.ChurnRiskHigh, risks[0].Risk)
}

func TestService_Snapshot(t *testing.T) {
	ctx := context.Background()
	source := &orderSourceMock{}
	s := newTestService(t, source)

	f := entity.OrderFilters{StartDate: "2025-01-01", EndDate: "2025-03-31"}
	source.On("FetchCustomerOrders", mock.Anything, f).Return([]entity.Order{
		order("A", "2025-01-01", 10, true, entity.ChannelGlovo),
		order("A", "2025-01-11", 10, false, entity.ChannelUberEats),
		order("B", "2025-02-01", 30, true, entity.ChannelJustEat),
	}, nil).Once()

	snap, err := s.Snapshot(ctx, f, entity.CohortMonth, 0)
	require.NoError(t, err)
	source.AssertExpectations(t)

	assert.Equal(t, f, snap.Filters)
	assert.Equal(t, day("2025-04-01"), snap.GeneratedAt)
	assert.Equal(t, 3, snap.OrdersCount)
	assert.Equal(t, 2, snap.Customers.TotalCustomers)
	assert.Len(t, snap.Cohorts, 2)
	assert.Len(t, snap.ChurnRisk, 1)
	assert.Equal(t, 2, snap.Distribution.TotalCustomers)
	assert.Equal(t, 1, snap.MultiPlatform.MultiPlatform)
	assert.Equal(t, 1, snap.MultiPlatform.JustEatOnly)
}
