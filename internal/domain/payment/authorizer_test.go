package payment

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock implementations ---

type mockGateway struct {
	result *Result
	err    error

	calls   int
	intents []Intent
}

func (m *mockGateway) CreateAuthorization(_ context.Context, intent Intent) (*Result, error) {
	m.calls++
	m.intents = append(m.intents, intent)
	return m.result, m.err
}

// --- Tests ---

func TestMinorUnits(t *testing.T) {
	tests := []struct {
		amount  string
		want    int64
		wantErr error
	}{
		{amount: "12.50", want: 1250},
		{amount: "10", want: 1000},
		{amount: "0.01", want: 1},
		{amount: "19.999", want: 2000},
		{amount: "0.004", wantErr: ErrInvalidAmount},
		{amount: "0", wantErr: ErrInvalidAmount},
		{amount: "-3.20", wantErr: ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			got, err := MinorUnits(decimal.RequireFromString(tt.amount))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthorize_NoGatewaySkips(t *testing.T) {
	a := NewAuthorizer(nil, "RSD")

	auth, err := a.Authorize(context.Background(), Request{
		Address: "Knez Mihailova 1",
		Amount:  decimal.RequireFromString("10.0"),
		Dishes:  []string{"1", "2"},
	})

	require.NoError(t, err)
	assert.Equal(t, StateSkipped, auth.State)
	assert.Empty(t, auth.Token)
	assert.False(t, a.Enabled())
}

func TestAuthorize_GatewayReceivesMinorUnitsAndMetadata(t *testing.T) {
	gw := &mockGateway{result: &Result{ID: "pi_1", ClientSecret: "pi_1_secret_abc"}}
	a := NewAuthorizer(gw, "RSD")
	a.newKey = func() string { return "idem-1" }

	auth, err := a.Authorize(context.Background(), Request{
		Address: "Knez Mihailova 1",
		Amount:  decimal.RequireFromString("12.50"),
		Dishes:  []string{"1", "2", "2"},
	})

	require.NoError(t, err)
	assert.Equal(t, StateAuthorized, auth.State)
	assert.Equal(t, "pi_1_secret_abc", auth.Token)
	assert.Equal(t, int64(1250), auth.AmountMinor)

	require.Equal(t, 1, gw.calls)
	intent := gw.intents[0]
	assert.Equal(t, int64(1250), intent.AmountMinor)
	assert.Equal(t, "RSD", intent.Currency)
	assert.Equal(t, "idem-1", intent.IdempotencyKey)
	assert.Equal(t, "Knez Mihailova 1", intent.Metadata[MetadataAddress])
	assert.JSONEq(t, `["1","2","2"]`, intent.Metadata[MetadataDishes])
}

func TestAuthorize_GatewayFailures(t *testing.T) {
	tests := []struct {
		name    string
		gw      *mockGateway
		wantErr error
	}{
		{
			name:    "declined",
			gw:      &mockGateway{err: errors.Wrap(ErrGatewayRejected, "card_declined")},
			wantErr: ErrGatewayRejected,
		},
		{
			name:    "network error",
			gw:      &mockGateway{err: errors.New("dial tcp: i/o timeout")},
			wantErr: ErrGatewayUnavailable,
		},
		{
			name:    "empty secret",
			gw:      &mockGateway{result: &Result{ID: "pi_2"}},
			wantErr: ErrGatewayUnavailable,
		},
		{
			name:    "nil result",
			gw:      &mockGateway{},
			wantErr: ErrGatewayUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAuthorizer(tt.gw, "RSD")

			auth, err := a.Authorize(context.Background(), Request{
				Address: "addr",
				Amount:  decimal.NewFromInt(5),
				Dishes:  []string{"1"},
			})

			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, StateAuthorizationFailed, auth.State)
			assert.Empty(t, auth.Token)
			assert.Equal(t, 1, tt.gw.calls)
		})
	}
}

func TestAuthorize_InvalidAmountSkipsGateway(t *testing.T) {
	gw := &mockGateway{result: &Result{ClientSecret: "s"}}
	a := NewAuthorizer(gw, "RSD")

	_, err := a.Authorize(context.Background(), Request{
		Address: "addr",
		Amount:  decimal.Zero,
	})

	require.ErrorIs(t, err, ErrInvalidAmount)
	assert.Zero(t, gw.calls)
}
