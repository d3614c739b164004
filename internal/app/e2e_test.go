//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-commerce/internal/domain/auth"
	"github.com/xenking/kart-commerce/internal/domain/customer"
	"github.com/xenking/kart-commerce/internal/storage/postgres"
)

const (
	adminUsername = "root"
	adminPassword = "root-secret"
)

// Response types are defined locally to keep the test black-box.

type errorResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Available int    `json:"available"`
}

type sessionResponse struct {
	Token    string `json:"token"`
	Customer struct {
		ID int64 `json:"id"`
	} `json:"customer"`
}

type productResponse struct {
	ID int64 `json:"id"`
}

type stockResponse struct {
	Available int `json:"available"`
}

type orderResponse struct {
	ID            int64   `json:"id"`
	Status        string  `json:"status"`
	Subtotal      float64 `json:"subtotal"`
	DiscountTotal float64 `json:"discountTotal"`
	Total         float64 `json:"total"`
	Discounts     []struct {
		Kind string `json:"kind"`
	} `json:"discounts"`
}

type apiClient struct {
	t       *testing.T
	baseURL string
	token   string
}

func (c *apiClient) do(method, path string, body any) *http.Response {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequestWithContext(context.Background(), method, c.baseURL+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err, "%s %s", method, path)
	c.t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func startServer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "kart",
				"POSTGRES_PASSWORD": "kart",
				"POSTGRES_DB":       "kart",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, fmt.Sprintf("postgres://kart:kart@%s:%s/kart?sslmode=disable", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.RunMigrations(ctx, pool))

	hash, err := auth.BcryptHasher{Cost: 4}.Hash(adminPassword)
	require.NoError(t, err)
	require.NoError(t, postgres.NewCustomerRepository(postgres.NewDB(pool)).Create(ctx, &customer.Customer{
		Username:     adminUsername,
		Email:        "root@kart.local",
		PasswordHash: hash,
		Roles:        []customer.Role{customer.RoleAdmin, customer.RoleUser},
	}))

	now := time.Now().UTC()
	cfg := &Config{
		Auth: AuthConfig{JWTSecret: "integration-secret", TokenTTL: time.Hour, BcryptCost: 4},
		Discount: DiscountConfig{
			WindowStart:        now.Add(-time.Hour).Format(time.RFC3339),
			WindowEnd:          now.Add(time.Hour).Format(time.RFC3339),
			RandomProbability:  0.5,
			RandomSeed:         1,
			FrequentMinOrders:  1,
			FrequentWindowDays: 30,
		},
		CORS: CORSConfig{Origins: []string{"*"}},
	}
	srvCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)

	srv, err := build(srvCtx, zap.NewNop(), cfg, pool, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	t.Cleanup(srv.close)
	srv.health.SetReady(true)

	ts := httptest.NewServer(srv.handler)
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestEndToEnd_OrderFlow(t *testing.T) {
	baseURL := startServer(t)
	c := &apiClient{t: t, baseURL: baseURL}

	resp := c.do(http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = c.do(http.MethodPost, "/api/auth/login", map[string]string{
		"username": adminUsername, "password": adminPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	admin := &apiClient{t: t, baseURL: baseURL, token: decodeJSON[sessionResponse](t, resp).Token}

	resp = c.do(http.MethodPost, "/api/auth/register", map[string]string{
		"username": "ana", "email": "ana@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sess := decodeJSON[sessionResponse](t, resp)
	require.NotEmpty(t, sess.Token)
	c.token = sess.Token

	productBody := map[string]any{
		"name": "Monitor", "sku": "MN-1", "category": "displays", "price": "100.00",
	}
	resp = c.do(http.MethodPost, "/api/products", productBody)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = admin.do(http.MethodPost, "/api/products", productBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	p := decodeJSON[productResponse](t, resp)

	resp = admin.do(http.MethodPost, "/api/inventory", map[string]any{"productId": p.ID, "available": 3, "minimum": 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = c.do(http.MethodGet, "/api/products?name=moni", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeJSON[[]productResponse](t, resp), 1)

	place := func(qty int) *http.Response {
		return c.do(http.MethodPost, "/api/orders", map[string]any{
			"customerId": sess.Customer.ID,
			"items":      []map[string]any{{"productId": p.ID, "quantity": qty}},
		})
	}

	// Inside the window, no prior orders: time window discount only.
	resp = place(1)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decodeJSON[orderResponse](t, resp)
	assert.Equal(t, "PENDING", first.Status)
	assert.InDelta(t, 100.0, first.Subtotal, 1e-9)
	assert.InDelta(t, 90.0, first.Total, 1e-9)
	require.Len(t, first.Discounts, 1)

	// One prior order makes the customer frequent: 100 -> 90 -> 85.50.
	resp = place(1)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	second := decodeJSON[orderResponse](t, resp)
	assert.InDelta(t, 85.5, second.Total, 1e-9)
	assert.InDelta(t, 14.5, second.DiscountTotal, 1e-9)
	require.Len(t, second.Discounts, 2)
	assert.Equal(t, "frequent_customer", second.Discounts[1].Kind)

	// One unit left: asking for two is rejected and leaves stock alone.
	resp = place(2)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 1, decodeJSON[errorResponse](t, resp).Available)

	resp = c.do(http.MethodGet, fmt.Sprintf("/api/inventory/product/%d", p.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, decodeJSON[stockResponse](t, resp).Available)

	statusPath := fmt.Sprintf("/api/orders/%d/status?status=shipped", first.ID)
	resp = c.do(http.MethodPut, statusPath, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp = admin.do(http.MethodPut, statusPath, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SHIPPED", decodeJSON[orderResponse](t, resp).Status)

	resp = c.do(http.MethodGet, fmt.Sprintf("/api/orders/customer/%d", sess.Customer.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeJSON[[]orderResponse](t, resp), 2)

	resp = admin.do(http.MethodDelete, fmt.Sprintf("/api/products/%d", p.ID), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = c.do(http.MethodGet, "/api/orders/999999", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEndToEnd_Probes(t *testing.T) {
	c := &apiClient{t: t, baseURL: startServer(t)}

	resp := c.do(http.MethodGet, "/livez", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
