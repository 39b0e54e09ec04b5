//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"testing"
	"time"

	tcexec "github.com/testcontainers/testcontainers-go/exec"
	tc "github.com/testcontainers/testcontainers-go/modules/compose"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testUserKey  = "integration-user-key"
	testAdminKey = "integration-admin-key"
	seededUser   = "integration-user"
)

var (
	baseURL    string
	httpClient *http.Client
)

// Response types are defined locally to keep tests black-box.

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type cartResponse struct {
	ID     string   `json:"id"`
	Owner  string   `json:"owner"`
	Dishes []string `json:"dishes"`
}

type orderResponse struct {
	ID         string   `json:"id"`
	Address    string   `json:"address"`
	Amount     float64  `json:"amount"`
	Currency   string   `json:"currency"`
	Dishes     []string `json:"dishes"`
	Token      string   `json:"token"`
	Authorized bool     `json:"authorized"`
}

type dishResponse struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type restaurantResponse struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Slug   string         `json:"slug"`
	Dishes []dishResponse `json:"dishes"`
}

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Create coverage output directory for the instrumented binary.
	if err := os.MkdirAll("coverdir", 0o777); err != nil {
		log.Fatalf("create coverdir: %v", err)
	}

	dc, err := tc.NewDockerCompose("docker-compose.test.yml")
	if err != nil {
		log.Fatalf("compose init: %v", err)
	}

	// Start postgres, redis and the api; wait until the API reports ready.
	err = dc.
		WaitForService("api", wait.ForHTTP("/readyz").WithPort("8080/tcp")).
		Up(ctx, tc.Wait(true))
	if err != nil {
		log.Fatalf("compose up: %v", err)
	}

	apiContainer, err := dc.ServiceContainer(ctx, "api")
	if err != nil {
		log.Fatalf("api container: %v", err)
	}

	host, err := apiContainer.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}

	mappedPort, err := apiContainer.MappedPort(ctx, "8080/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}

	baseURL = fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
	httpClient = &http.Client{Timeout: 10 * time.Second}
	log.Printf("API available at %s", baseURL)

	// The image ships seed-db next to the server; run it in place so it
	// reaches postgres over the compose network.
	exitCode, output, err := apiContainer.Exec(ctx, []string{"/app/seed-db"},
		tcexec.WithEnv([]string{
			"FOODCART_API_KEY_PEPPER=test-pepper-for-integration",
			"FOODCART_SEED_USER_ID=" + seededUser,
			"FOODCART_SEED_USER_KEY=" + testUserKey,
			"FOODCART_SEED_ADMIN_KEY=" + testAdminKey,
			"FOODCART_MENU_FILE=/app/db/seed/restaurants.json",
		}),
	)
	if err != nil {
		log.Fatalf("seed exec: %v", err)
	}
	if exitCode != 0 {
		out, _ := io.ReadAll(output)
		log.Fatalf("seed-db exited %d: %s", exitCode, out)
	}
	log.Printf("seed-db completed")

	if err := waitForSeededData(ctx); err != nil {
		log.Fatalf("wait for seed: %v", err)
	}

	result := m.Run()

	// Stop the API container gracefully so the coverage-instrumented binary
	// flushes coverage data to GOCOVERDIR (bind-mounted to ./coverdir).
	// The compose file sets stop_signal: SIGINT because app.Run handles
	// SIGINT (not SIGTERM) for graceful shutdown.
	stopTimeout := 30 * time.Second
	if err := apiContainer.Stop(ctx, &stopTimeout); err != nil {
		log.Printf("stop api container: %v", err)
	}

	if err := dc.Down(context.Background(), tc.RemoveOrphans(true)); err != nil {
		log.Printf("compose down: %v", err)
	}

	return result
}

// waitForSeededData polls the catalog until the three seeded restaurants
// appear.
func waitForSeededData(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	var lastErr string
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for seeded data (last: %s): %w", lastErr, ctx.Err())
		case <-ticker.C:
			resp, err := httpClient.Get(baseURL + "/api/restaurants")
			if err != nil {
				lastErr = err.Error()
				continue
			}

			var restaurants []restaurantResponse
			if err := json.NewDecoder(resp.Body).Decode(&restaurants); err != nil {
				lastErr = fmt.Sprintf("decode: %v (status: %d)", err, resp.StatusCode)
				resp.Body.Close()
				continue
			}
			resp.Body.Close()

			if len(restaurants) >= 3 {
				log.Printf("seed data ready: %d restaurants", len(restaurants))
				return nil
			}
			lastErr = fmt.Sprintf("got %d restaurants, want 3", len(restaurants))
		}
	}
}

// HTTP helpers.

func do(t *testing.T, method, path string, body any, apiKey string) *http.Response {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, baseURL+path, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("api_key", apiKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}

	return resp
}

func doGet(t *testing.T, path string) *http.Response {
	t.Helper()
	return do(t, http.MethodGet, path, nil, "")
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected %d, got %d: %s", want, resp.StatusCode, body)
	}
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	return v
}
