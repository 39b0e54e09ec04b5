package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/foodcart/internal/domain/payment"
)

// --- Mock implementations ---

type mockGateway struct {
	result *payment.Result
	err    error
	calls  int
	last   payment.Intent
}

func (m *mockGateway) CreateAuthorization(_ context.Context, intent payment.Intent) (*payment.Result, error) {
	m.calls++
	m.last = intent
	return m.result, m.err
}

type mockOrderRepo struct {
	created []*Order
	err     error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, o)
	return nil
}

func (m *mockOrderRepo) ListByOwner(_ context.Context, owner string) ([]Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []Order
	for _, o := range m.created {
		if o.Owner == owner {
			out = append(out, *o)
		}
	}
	return out, nil
}

// --- Helpers ---

func newTestService(t *testing.T, gw payment.Gateway, repo Repository) *Service {
	t.Helper()
	svc, err := NewService(payment.NewAuthorizer(gw, "RSD"), repo, "RSD", noop.NewMeterProvider())
	require.NoError(t, err)
	return svc
}

func validRequest() PlaceRequest {
	return PlaceRequest{
		Address: "Bulevar Oslobodjenja 12",
		Amount:  decimal.RequireFromString("12.50"),
		Dishes:  []string{"7", "3", "7"},
	}
}

// --- Tests ---

func TestPlace_NoGatewayPersistsWithoutToken(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newTestService(t, nil, repo)

	o, err := svc.Place(context.Background(), "u1", PlaceRequest{
		Address: "addr",
		Amount:  decimal.RequireFromString("10.0"),
		Dishes:  []string{"1", "2"},
	})

	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Empty(t, o.Token)
	assert.False(t, o.Authorized())
	assert.Equal(t, []string{"1", "2"}, o.Dishes)
	assert.Equal(t, "u1", o.Owner)
}

func TestPlace_TokenIsPartOfCreationPayload(t *testing.T) {
	gw := &mockGateway{result: &payment.Result{ID: "pi_1", ClientSecret: "pi_1_secret"}}
	repo := &mockOrderRepo{}
	svc := newTestService(t, gw, repo)

	o, err := svc.Place(context.Background(), "u1", validRequest())

	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "pi_1_secret", repo.created[0].Token)
	assert.Equal(t, "pi_1_secret", o.Token)
	assert.Equal(t, int64(1250), gw.last.AmountMinor)
	assert.Equal(t, []string{"7", "3", "7"}, o.Dishes, "dishes keep order and duplicates")
	assert.True(t, decimal.RequireFromString("12.50").Equal(o.Amount))
	assert.Equal(t, "RSD", o.Currency)
}

func TestPlace_AuthorizationFailurePersistsNothing(t *testing.T) {
	tests := []struct {
		name    string
		gwErr   error
		wantErr error
	}{
		{name: "rejected", gwErr: payment.ErrGatewayRejected, wantErr: payment.ErrGatewayRejected},
		{name: "unavailable", gwErr: errors.New("timeout"), wantErr: payment.ErrGatewayUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &mockGateway{err: tt.gwErr}
			repo := &mockOrderRepo{}
			svc := newTestService(t, gw, repo)

			_, err := svc.Place(context.Background(), "u1", validRequest())

			require.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), "checkout")
			assert.Empty(t, repo.created)
			assert.Equal(t, 1, gw.calls)
		})
	}
}

func TestPlace_Validation(t *testing.T) {
	tests := []struct {
		name    string
		owner   string
		mutate  func(*PlaceRequest)
		wantErr error
	}{
		{name: "missing owner", owner: "", mutate: func(*PlaceRequest) {}, wantErr: ErrOwnerRequired},
		{name: "blank address", owner: "u1", mutate: func(r *PlaceRequest) { r.Address = "  " }, wantErr: ErrAddressRequired},
		{name: "zero amount", owner: "u1", mutate: func(r *PlaceRequest) { r.Amount = decimal.Zero }, wantErr: payment.ErrInvalidAmount},
		{name: "rounds to zero", owner: "u1", mutate: func(r *PlaceRequest) { r.Amount = decimal.RequireFromString("0.004") }, wantErr: payment.ErrInvalidAmount},
		{name: "no dishes", owner: "u1", mutate: func(r *PlaceRequest) { r.Dishes = nil }, wantErr: ErrEmptyDishes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &mockGateway{result: &payment.Result{ClientSecret: "s"}}
			svc := newTestService(t, gw, &mockOrderRepo{})
			req := validRequest()
			tt.mutate(&req)

			_, err := svc.Place(context.Background(), tt.owner, req)

			require.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, gw.calls)
		})
	}
}

func TestPlace_NoGatewayRejectsSubCentAmount(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newTestService(t, nil, repo)

	_, err := svc.Place(context.Background(), "u1", PlaceRequest{
		Address: "addr",
		Amount:  decimal.RequireFromString("0.004"),
		Dishes:  []string{"1"},
	})
	require.ErrorIs(t, err, payment.ErrInvalidAmount)
	assert.Empty(t, repo.created)

	o, err := svc.Place(context.Background(), "u1", PlaceRequest{
		Address: "addr",
		Amount:  decimal.RequireFromString("0.005"),
		Dishes:  []string{"1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "0.01", o.Amount.StringFixed(2))
}

func TestPlace_StoreFailure(t *testing.T) {
	gw := &mockGateway{result: &payment.Result{ClientSecret: "s"}}
	svc := newTestService(t, gw, &mockOrderRepo{err: errors.New("db write failed")})

	_, err := svc.Place(context.Background(), "u1", validRequest())

	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "create order")
}

func TestListByOwner(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newTestService(t, nil, repo)
	ctx := context.Background()

	_, err := svc.Place(ctx, "u1", validRequest())
	require.NoError(t, err)
	_, err = svc.Place(ctx, "u2", validRequest())
	require.NoError(t, err)

	orders, err := svc.ListByOwner(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "u1", orders[0].Owner)
}
