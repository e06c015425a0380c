package platform

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSONRetries5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer srv.Close()

	c := NewHTTPClient(2, time.Second, zerolog.Nop())
	resp, err := c.PostJSON(context.Background(), srv.URL, []byte(`{"ok":true}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, `{"ok":true}`, string(body))
}

func TestPostJSONReturnsLast5xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(0, time.Second, zerolog.Nop()).PostJSON(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestPostJSONTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPClient(0, time.Second, zerolog.Nop()).PostJSON(context.Background(), url, nil)
	assert.Error(t, err)
}

func TestGetEnv(t *testing.T) {
	t.Setenv("EFLCOST_TEST_STR", "x")
	t.Setenv("EFLCOST_TEST_INT", "7")
	t.Setenv("EFLCOST_TEST_BAD_INT", "seven")
	t.Setenv("EFLCOST_TEST_BOOL", "TRUE")
	t.Setenv("EFLCOST_TEST_DUR", "3s")
	t.Setenv("EFLCOST_TEST_DEC", " 0.1 ")

	assert.Equal(t, "x", GetEnv("EFLCOST_TEST_STR", "d"))
	assert.Equal(t, "d", GetEnv("EFLCOST_TEST_UNSET", "d"))
	assert.Equal(t, 7, GetEnvInt("EFLCOST_TEST_INT", 1))
	assert.Equal(t, 1, GetEnvInt("EFLCOST_TEST_BAD_INT", 1))
	assert.True(t, GetEnvBool("EFLCOST_TEST_BOOL", false))
	assert.True(t, GetEnvBool("EFLCOST_TEST_UNSET", true))
	assert.Equal(t, 3*time.Second, GetEnvDuration("EFLCOST_TEST_DUR", time.Second))
	assert.Equal(t, "0.1", GetEnvDecimal("EFLCOST_TEST_DEC", decimal.Zero).String())
	assert.Equal(t, "0.05", GetEnvDecimal("EFLCOST_TEST_UNSET", decimal.NewFromFloat(0.05)).String())
}

func TestInitLogger(t *testing.T) {
	prev := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(prev)

	InitLogger("warn", false)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	InitLogger("nonsense", false)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
