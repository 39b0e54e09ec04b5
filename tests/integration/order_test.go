//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"slices"
	"testing"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestPlaceOrder_NoAuth(t *testing.T) {
	resp := do(t, http.MethodPost, "/api/orders", map[string]any{
		"address": "Knez Mihailova 1", "amount": 10, "dishes": []int{1},
	}, "")
	defer resp.Body.Close()

	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestPlaceOrder_InvalidKey(t *testing.T) {
	resp := do(t, http.MethodPost, "/api/orders", map[string]any{
		"address": "Knez Mihailova 1", "amount": 10, "dishes": []int{1},
	}, "wrong-key")
	defer resp.Body.Close()

	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestPlaceOrder_Validation(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{name: "missing address", body: map[string]any{"amount": 10, "dishes": []int{1}}},
		{name: "zero amount", body: map[string]any{"address": "a", "amount": 0, "dishes": []int{1}}},
		{name: "no dishes", body: map[string]any{"address": "a", "amount": 10, "dishes": []int{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodPost, "/api/orders", tt.body, testUserKey)
			defer resp.Body.Close()

			expectStatus(t, resp, http.StatusBadRequest)
		})
	}
}

// The compose stack runs without a Stripe key, so orders are placed in
// degraded mode with an empty token.
func TestPlaceOrder_WithoutGateway(t *testing.T) {
	resp := do(t, http.MethodPost, "/api/orders", map[string]any{
		"address": "Knez Mihailova 1",
		"amount":  "12.50",
		"dishes":  []int{3, 1, 3},
	}, testUserKey)
	defer resp.Body.Close()

	expectStatus(t, resp, http.StatusCreated)
	order := decodeJSON[orderResponse](t, resp)

	if !uuidPattern.MatchString(order.ID) {
		t.Errorf("order ID %q is not a UUID", order.ID)
	}
	if order.Amount != 12.5 {
		t.Errorf("amount: got %v, want 12.5", order.Amount)
	}
	if order.Currency != "RSD" {
		t.Errorf("currency: got %q, want RSD", order.Currency)
	}
	if order.Token != "" || order.Authorized {
		t.Errorf("expected unauthorized order, got token %q", order.Token)
	}
	if !slices.Equal(order.Dishes, []string{"3", "1", "3"}) {
		t.Errorf("dishes: got %v, want [3 1 3]", order.Dishes)
	}

	list := do(t, http.MethodGet, "/api/me/orders", nil, testUserKey)
	defer list.Body.Close()
	expectStatus(t, list, http.StatusOK)

	orders := decodeJSON[[]orderResponse](t, list)
	if len(orders) == 0 || orders[0].ID != order.ID {
		t.Fatalf("newest order should be listed first, got %+v", orders)
	}
}
