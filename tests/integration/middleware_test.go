//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestRequestID_Generated(t *testing.T) {
	resp := doGet(t, "/livez")
	defer resp.Body.Close()

	requestID := resp.Header.Get("X-Request-ID")
	if requestID == "" {
		t.Fatal("X-Request-ID header not present")
	}
}

func TestRequestID_Echoed(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, baseURL+"/livez", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("X-Request-ID", "custom-request-id-12345")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	got := resp.Header.Get("X-Request-ID")
	if got != "custom-request-id-12345" {
		t.Errorf("X-Request-ID: got %q, want %q", got, "custom-request-id-12345")
	}
}

func TestCORS_Preflight(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodOptions, baseURL+"/api/restaurants", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	if acao := resp.Header.Get("Access-Control-Allow-Origin"); acao == "" {
		t.Error("Access-Control-Allow-Origin header not present")
	}
	if acam := resp.Header.Get("Access-Control-Allow-Methods"); acam == "" {
		t.Error("Access-Control-Allow-Methods header not present")
	}
}

func TestCORS_SimpleRequest(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, baseURL+"/api/restaurants", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Origin", "http://example.com")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if acao := resp.Header.Get("Access-Control-Allow-Origin"); acao == "" {
		t.Error("Access-Control-Allow-Origin header not present")
	}
}

func TestRateLimit_Headers(t *testing.T) {
	resp := doGet(t, "/api/restaurants")
	defer resp.Body.Close()

	if limit := resp.Header.Get("X-RateLimit-Limit"); limit == "" {
		t.Error("X-RateLimit-Limit header not present")
	}
	if remaining := resp.Header.Get("X-RateLimit-Remaining"); remaining == "" {
		t.Error("X-RateLimit-Remaining header not present")
	}
}

func rateLimitRemaining(t *testing.T, resp *http.Response) (remaining, limit int) {
	t.Helper()
	remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining"))
	if err != nil {
		t.Fatalf("parse X-RateLimit-Remaining: %v", err)
	}
	limit, err = strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))
	if err != nil {
		t.Fatalf("parse X-RateLimit-Limit: %v", err)
	}
	return remaining, limit
}

func TestRateLimit_KeyedByAPIKey(t *testing.T) {
	key := fmt.Sprintf("unregistered-key-%d", time.Now().UnixNano())

	first := do(t, http.MethodGet, "/api/me/cart", nil, key)
	defer first.Body.Close()
	expectStatus(t, first, http.StatusUnauthorized)

	remaining, limit := rateLimitRemaining(t, first)
	if remaining != limit-1 {
		t.Errorf("fresh key: remaining %d, want %d", remaining, limit-1)
	}

	// The same key in a Bearer header draws from the same budget.
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, baseURL+"/api/me/cart", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+key)
	second, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer second.Body.Close()

	remaining, _ = rateLimitRemaining(t, second)
	if remaining != limit-2 {
		t.Errorf("same key as bearer: remaining %d, want %d", remaining, limit-2)
	}

	other := do(t, http.MethodGet, "/api/me/cart", nil, key+"-other")
	defer other.Body.Close()
	remaining, _ = rateLimitRemaining(t, other)
	if remaining != limit-1 {
		t.Errorf("different key: remaining %d, want %d", remaining, limit-1)
	}
}

func TestUnauthenticated_PassesThroughMiddleware(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodDelete, baseURL+"/api/cart", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("X-Request-ID", "unauthenticated-cart-clear")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnauthorized)

	if got := resp.Header.Get("X-Request-ID"); got != "unauthenticated-cart-clear" {
		t.Errorf("X-Request-ID: got %q", got)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") == "" {
		t.Error("Access-Control-Allow-Origin missing on 401")
	}
	if resp.Header.Get("X-RateLimit-Remaining") == "" {
		t.Error("X-RateLimit-Remaining missing on 401")
	}

	body := decodeJSON[errorResponse](t, resp)
	if body.Code != http.StatusUnauthorized || body.Message != "authentication required" {
		t.Errorf("unexpected error body: %+v", body)
	}
}

func TestCORS_PreflightAllowsAPIKeyHeader(t *testing.T) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodOptions, baseURL+"/api/cart/dishes", nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "api_key, content-type")

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNoContent)

	allowed := strings.ToLower(resp.Header.Get("Access-Control-Allow-Headers"))
	for _, h := range []string{"api_key", "authorization", "x-request-id"} {
		if !strings.Contains(allowed, h) {
			t.Errorf("Access-Control-Allow-Headers %q lacks %s", allowed, h)
		}
	}
}
