package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/mailpipe/internal/config"
	deliveryDomain "github.com/allisson/mailpipe/internal/delivery/domain"
	deliveryHTTP "github.com/allisson/mailpipe/internal/delivery/http"
	"github.com/allisson/mailpipe/internal/delivery/usecase/mocks"
	"github.com/allisson/mailpipe/internal/metrics"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func createTestServer() *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewServer(nil, "localhost", 8080, logger)
}

// newRoutedServer builds a server through SetupRouter, without a database
// and without metrics.
func newRoutedServer(cfg *config.Config) (*Server, *mocks.MockCircuitBreaker) {
	server := createTestServer()
	breaker := &mocks.MockCircuitBreaker{}
	server.SetupRouter(
		cfg,
		breaker,
		deliveryHTTP.NewCircuitBreakerHandler(breaker, server.logger),
		deliveryHTTP.NewDeliveryLogHandler(&mocks.MockDeliveryLogUseCase{}, server.logger),
		nil,
		"",
	)
	return server, breaker
}

type healthResponse struct {
	Status         string `json:"status"`
	CircuitBreaker string `json:"circuit_breaker"`
	Failures       int    `json:"failures"`
}

func TestHealthHandler_WithoutBreaker(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	server.healthHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestRouter_HealthReportsBreaker(t *testing.T) {
	tests := []struct {
		name     string
		snapshot deliveryDomain.CircuitSnapshot
	}{
		{name: "Closed", snapshot: deliveryDomain.CircuitSnapshot{State: deliveryDomain.CircuitClosed}},
		{name: "OpenStillHealthy", snapshot: deliveryDomain.CircuitSnapshot{State: deliveryDomain.CircuitOpen, FailureCount: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, breaker := newRoutedServer(&config.Config{})
			breaker.On("Snapshot").Return(tt.snapshot).Once()

			w := httptest.NewRecorder()
			server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, http.StatusOK, w.Code)
			var response healthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, "healthy", response.Status)
			assert.Equal(t, string(tt.snapshot.State), response.CircuitBreaker)
			assert.Equal(t, tt.snapshot.FailureCount, response.Failures)
			breaker.AssertExpectations(t)
		})
	}
}

func TestRouter_ReadyWithoutDatabase(t *testing.T) {
	server, _ := newRoutedServer(&config.Config{})

	w := httptest.NewRecorder()
	server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"not_ready","components":{"database":"error"}}`, w.Body.String())
}

func TestRouter_NotFoundEndpoint(t *testing.T) {
	server, _ := newRoutedServer(&config.Config{})

	w := httptest.NewRecorder()
	server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/unknown", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_RequestIDIsUUIDv7(t *testing.T) {
	server, breaker := newRoutedServer(&config.Config{})
	breaker.On("Snapshot").Return(deliveryDomain.CircuitSnapshot{State: deliveryDomain.CircuitClosed})

	w := httptest.NewRecorder()
	server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	id, err := uuid.Parse(w.Header().Get("X-Request-Id"))
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestRouter_RateLimitCoversAdminRoutesOnly(t *testing.T) {
	server, breaker := newRoutedServer(&config.Config{
		RateLimitEnabled:        true,
		RateLimitRequestsPerSec: 1,
		RateLimitBurst:          1,
	})
	breaker.On("Snapshot").Return(deliveryDomain.CircuitSnapshot{State: deliveryDomain.CircuitClosed})

	adminCall := func() int {
		w := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/circuit-breaker", nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, adminCall())
	assert.Equal(t, http.StatusTooManyRequests, adminCall())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(logger))
	router.PUT("/v1/circuit-breaker", func(c *gin.Context) {
		panic("handler bug")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/v1/circuit-breaker", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestServer_StartAndShutdown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewServer(nil, "127.0.0.1", 0, logger)
	server.SetupRouter(
		&config.Config{},
		nil,
		deliveryHTTP.NewCircuitBreakerHandler(&mocks.MockCircuitBreaker{}, logger),
		deliveryHTTP.NewDeliveryLogHandler(&mocks.MockDeliveryLogUseCase{}, logger),
		nil,
		"",
	)

	done := make(chan error, 1)
	go func() {
		done <- server.Start(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(shutdownCtx))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestMetricsServer_Endpoints(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	provider, err := metrics.NewProvider("mailpipe_metrics_server")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	metricsServer := NewMetricsServer("localhost", 8081, logger, provider)

	w := httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	w = httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_NoMetricsEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	provider, err := metrics.NewProvider("mailpipe_no_metrics")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	server := NewServer(nil, "localhost", 8080, logger)
	breaker := &mocks.MockCircuitBreaker{}
	server.SetupRouter(
		&config.Config{},
		breaker,
		deliveryHTTP.NewCircuitBreakerHandler(breaker, logger),
		deliveryHTTP.NewDeliveryLogHandler(&mocks.MockDeliveryLogUseCase{}, logger),
		provider,
		"mailpipe_no_metrics",
	)

	w := httptest.NewRecorder()
	server.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
