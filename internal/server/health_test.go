package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"askbox/internal/config"
	"askbox/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func TestReadiness_Healthy(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON[healthBody](t, resp)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"])
	assert.Equal(t, "healthy", body.Checks["redis"])
	assert.Equal(t, "redis", body.Checks["events"])
}

func TestReadiness_RedisDownIsDegraded(t *testing.T) {
	env := newTestEnv(t)
	env.mr.Close()

	resp := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeJSON[healthBody](t, resp)
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "unhealthy", body.Checks["redis"])
}

func TestReadiness_DatabaseDown(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	srv, err := NewServerWithDeps(&config.Config{JWTSecret: testJWTSecret}, db, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, srv.feedHub)

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	body := decodeJSON[healthBody](t, resp)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "unavailable", body.Checks["redis"])
	assert.Equal(t, events.Noop{}.Backend(), body.Checks["events"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLiveness(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
