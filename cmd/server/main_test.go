package main

import (
	"database/sql"
	"database/sql/driver"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gst-checkout/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		AppPort:       "8080",
		AppEnv:        "test",
		WebhookSecret: "whsec",
		JWTSecret:     "jwt",
		OrderTimezone: "Asia/Kolkata",
	}
}

func TestNewServer(t *testing.T) {
	db, err := sql.Open("mock_driver_main", "")
	require.NoError(t, err)
	defer db.Close()

	a, err := newServer(testConfig(), db)
	require.NoError(t, err)
	require.NotNil(t, a.handler)
	assert.Empty(t, a.closers)

	t.Run("Health Check", func(t *testing.T) {
		rr := httptest.NewRecorder()
		a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "ok")
	})

	t.Run("Readiness Pings DB", func(t *testing.T) {
		rr := httptest.NewRecorder()
		a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Tax Quote Needs No DB", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/tax/quote",
			strings.NewReader(`{"base_price":"50","gst_percentage":5,"quantity":2}`))
		a.handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"gst_amount":"5"`)
	})

	t.Run("Metrics Exposed", func(t *testing.T) {
		rr := httptest.NewRecorder()
		a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "http_requests_total")
	})

	t.Run("Orders Require Auth", func(t *testing.T) {
		rr := httptest.NewRecorder()
		a.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/orders", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestNewServer_BadTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.OrderTimezone = "Mars/Olympus"

	_, err := newServer(cfg, nil)
	assert.ErrorContains(t, err, "ORDER_TIMEZONE")
}

func TestNewServer_RedisCache(t *testing.T) {
	cfg := testConfig()
	cfg.RedisAddr = "127.0.0.1:6399"

	a, err := newServer(cfg, nil)
	require.NoError(t, err)
	assert.Len(t, a.closers, 1)
	for _, c := range a.closers {
		assert.NoError(t, c())
	}
}

// --- Mock Driver for Testing ---
type mockDriver struct{}

func (m *mockDriver) Open(name string) (driver.Conn, error)         { return &mockConn{}, nil }
func (c *mockConn) Prepare(query string) (driver.Stmt, error)       { return &mockStmt{}, nil }
func (c *mockConn) Close() error                                    { return nil }
func (c *mockConn) Begin() (driver.Tx, error)                       { return nil, nil }
func (s *mockStmt) Close() error                                    { return nil }
func (s *mockStmt) NumInput() int                                   { return 0 }
func (s *mockStmt) Exec(args []driver.Value) (driver.Result, error) { return nil, nil }
func (s *mockStmt) Query(args []driver.Value) (driver.Rows, error)  { return nil, nil }

type mockConn struct{}
type mockStmt struct{}

func init() {
	sql.Register("mock_driver_main", &mockDriver{})
}

func TestRun(t *testing.T) {
	origInitDB := initDBFunc
	defer func() { initDBFunc = origInitDB }()
	initDBFunc = func(cfg *config.Config) *sql.DB {
		db, _ := sql.Open("mock_driver_main", "")
		return db
	}

	origStartServer := startServerFunc
	defer func() { startServerFunc = origStartServer }()
	var addr string
	startServerFunc = func(srv *http.Server) error {
		addr = srv.Addr
		return nil
	}

	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DB_USER", "user")
	t.Setenv("DB_PASSWORD", "pass")
	t.Setenv("DB_NAME", "db")
	t.Setenv("WEBHOOK_SECRET", "whsec")

	assert.NoError(t, run())
	assert.Equal(t, ":9090", addr)
}
