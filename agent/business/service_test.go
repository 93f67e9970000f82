package business

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ricmunrom/botAtencionClientes/agent/catalog"
	contractx "github.com/ricmunrom/botAtencionClientes/agent/contract"
	"github.com/ricmunrom/botAtencionClientes/agent/finance"
	"github.com/ricmunrom/botAtencionClientes/agent/knowledge"
	"github.com/ricmunrom/botAtencionClientes/agent/search"
	statex "github.com/ricmunrom/botAtencionClientes/agent/state"
)

func ptr[T any](v T) *T { return &v }

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestService(t *testing.T, clk *clock) *Service {
	t.Helper()

	rows := []catalog.Row{
		{"stock_id": "101", "make": "Toyota", "model": "Corolla", "year": "2019", "price": "300000", "km": "40000"},
		{"stock_id": "102", "make": "Toyota", "model": "Yaris", "year": "2021", "price": "250000", "km": "20000"},
		{"stock_id": "103", "make": "Honda", "model": "Civic", "year": "2020", "price": "320000", "km": "30000"},
	}
	cat, err := catalog.New("test", rows)
	require.NoError(t, err)

	var opts []statex.StoreOption
	if clk != nil {
		opts = append(opts, statex.WithClock(clk.Now))
	}
	svc, err := New(search.New(cat), finance.New(), statex.NewStore(opts...), knowledge.MustLoad(), Config{})
	require.NoError(t, err)
	return svc
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := New(nil, finance.New(), statex.NewStore(), knowledge.MustLoad(), Config{})
	assert.Error(t, err)

	cat, _ := catalog.New("t", []catalog.Row{{"stock_id": "1", "make": "a", "model": "b", "year": "2020", "price": "1"}})
	_, err = New(search.New(cat), finance.New(), statex.NewStore(), knowledge.MustLoad(), Config{MaxResults: -1})
	assert.ErrorIs(t, err, contractx.ErrValidation)
}

func TestSearchThenSelectByOrdinal(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t, nil)

	res, err := svc.SearchVehicles(ctx, "u1", search.Criteria{Brand: ptr("toyota")})
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())
	assert.Equal(t, int64(102), res.Vehicles[0].ID)

	v, err := svc.SelectVehicle(ctx, "u1", contractx.Selection{Position: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, int64(101), v.ID)

	st, err := svc.GetUserState(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, statex.PhaseFocused, st.Phase())
	assert.Equal(t, int64(101), st.SelectedVehicle.ID)

	_, err = svc.SelectVehicle(ctx, "u1", contractx.Selection{Position: ptr(3)})
	var oor *search.OutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, 2, oor.Available)
}

func TestSelectDistinguishesNoSearchAndEmptyResults(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t, nil)

	_, err := svc.SelectVehicle(ctx, "u1", contractx.Selection{Position: ptr(1)})
	assert.ErrorIs(t, err, ErrNoSearch)

	res, err := svc.SearchVehicles(ctx, "u1", search.Criteria{Brand: ptr("Ferrari")})
	require.NoError(t, err)
	assert.Zero(t, res.Len())

	_, err = svc.SelectVehicle(ctx, "u1", contractx.Selection{Position: ptr(1)})
	var oor *search.OutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.True(t, oor.Empty())
}

func TestSelectByStockID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t, nil)

	v, err := svc.SelectVehicle(ctx, "u1", contractx.Selection{StockID: ptr(int64(103))})
	require.NoError(t, err)
	assert.Equal(t, "Honda", v.Brand)

	_, err = svc.SelectVehicle(ctx, "u1", contractx.Selection{StockID: ptr(int64(999))})
	assert.ErrorIs(t, err, ErrVehicleNotFound)

	_, err = svc.SelectVehicle(ctx, "u1", contractx.Selection{})
	assert.ErrorIs(t, err, contractx.ErrValidation)
	_, err = svc.SelectVehicle(ctx, "u1", contractx.Selection{Position: ptr(1), StockID: ptr(int64(1))})
	assert.ErrorIs(t, err, contractx.ErrValidation)
}

func TestFinancingRequiresSelection(t *testing.T) {
	t.Parallel()

	_, err := newTestService(t, nil).GetFinancingOptions(context.Background(), "u1", contractx.FinancingRequest{})
	assert.ErrorIs(t, err, ErrNoVehicleSelected)
}

func TestFinancingDispatch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t, nil)
	_, err := svc.SelectVehicle(ctx, "u1", contractx.Selection{StockID: ptr(int64(101))})
	require.NoError(t, err)

	tests := []struct {
		name string
		req  contractx.FinancingRequest
		want int
	}{
		{name: "grid", req: contractx.FinancingRequest{}, want: 12},
		{name: "down only", req: contractx.FinancingRequest{DownPayment: ptr(30000.0)}, want: 4},
		{name: "pct only", req: contractx.FinancingRequest{DownPaymentPct: ptr(0.2)}, want: 4},
		{name: "term only", req: contractx.FinancingRequest{TermYears: ptr(4)}, want: 3},
		{name: "both", req: contractx.FinancingRequest{TermYears: ptr(4), DownPayment: ptr(30000.0)}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans, err := svc.GetFinancingOptions(ctx, "u1", tt.req)
			require.NoError(t, err)
			assert.Len(t, plans, tt.want)
		})
	}

	st, err := svc.GetUserState(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, st.LastPlan)
	assert.Equal(t, 270000.0, st.LastPlan.FinancedAmount)
	assert.Equal(t, 4, st.LastPlan.TermYears)
}

func TestFinancingInvalidInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t, nil)
	_, err := svc.SelectVehicle(ctx, "u1", contractx.Selection{StockID: ptr(int64(101))})
	require.NoError(t, err)

	cases := map[string]contractx.FinancingRequest{
		"down_payment":     {DownPayment: ptr(300000.0), TermYears: ptr(3)},
		"term_years":       {TermYears: ptr(10)},
		"down_payment_pct": {DownPaymentPct: ptr(1.5)},
	}
	for field, req := range cases {
		_, err := svc.GetFinancingOptions(ctx, "u1", req)
		var inv *finance.InvalidInputError
		require.ErrorAs(t, err, &inv, field)
		assert.Equal(t, field, inv.Field)
	}
}

func TestLifecycleAndSweep(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := &clock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clk)

	_, err := svc.SearchVehicles(ctx, "old", search.Criteria{})
	require.NoError(t, err)
	clk.now = clk.now.Add(24 * time.Hour)
	_, err = svc.SearchVehicles(ctx, "new", search.Criteria{})
	require.NoError(t, err)

	require.NoError(t, svc.ResetUser(ctx, "new"))
	st, err := svc.GetUserState(ctx, "new")
	require.NoError(t, err)
	assert.Nil(t, st.LastFilters)
	assert.Nil(t, st.LastResults)
	assert.Nil(t, st.SelectedVehicle)

	clk.now = clk.now.Add(2 * time.Hour)
	assert.Equal(t, 1, svc.SweepInactiveUsers(ctx, 24*time.Hour))

	users := svc.ListActiveUsers(ctx)
	require.Len(t, users, 1)
	assert.Equal(t, "new", users[0].UserID)

	require.NoError(t, svc.DeleteUser(ctx, "new"))
	require.NoError(t, svc.DeleteUser(ctx, "new"))
	assert.Empty(t, svc.ListActiveUsers(ctx))
}

func TestCompanyInfoRecordsHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc := newTestService(t, nil)

	m, err := svc.CompanyInfo(ctx, "u1", "¿tienen garantía y periodo de prueba?")
	require.NoError(t, err)
	assert.Equal(t, "periodo_prueba", m.Section.ID)

	st, _ := svc.GetUserState(ctx, "u1")
	require.Len(t, st.History, 1)
	assert.Equal(t, statex.ActionInfo, st.History[0].Type)

	_, err = svc.CompanyInfo(ctx, " ", "hola")
	assert.ErrorIs(t, err, statex.ErrInvalidUser)
}

func TestMaxResultsAndCancelledContext(t *testing.T) {
	t.Parallel()

	cat, err := catalog.New("t", []catalog.Row{
		{"stock_id": "1", "make": "a", "model": "b", "year": "2020", "price": "1"},
		{"stock_id": "2", "make": "a", "model": "b", "year": "2020", "price": "2"},
	})
	require.NoError(t, err)
	svc, err := New(search.New(cat), finance.New(), statex.NewStore(), knowledge.MustLoad(), Config{MaxResults: 1})
	require.NoError(t, err)

	res, err := svc.SearchVehicles(context.Background(), "u1", search.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Len())
	assert.Equal(t, 2, svc.CatalogStats(context.Background()).Total)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.SearchVehicles(ctx, "u1", search.Criteria{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCapabilitiesReflectCalculatorAndKnowledge(t *testing.T) {
	t.Parallel()

	cat, err := catalog.New("t", []catalog.Row{{"stock_id": "1", "make": "a", "model": "b", "year": "2020", "price": "1"}})
	require.NoError(t, err)
	svc, err := New(search.New(cat), finance.New(finance.WithTerms(2, 3)), statex.NewStore(), knowledge.MustLoad(), Config{})
	require.NoError(t, err)

	caps := svc.Capabilities(context.Background())
	assert.Equal(t, []int{2, 3}, caps.TermYears)
	assert.Len(t, caps.DownPaymentPcts, 3)
	assert.Equal(t, knowledge.MustLoad().Topics(), caps.Topics)
	assert.InDelta(t, finance.AnnualRate, caps.AnnualRate, 1e-12)
}
