package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		client := New(nil)
		assert.Equal(t, DefaultTimeout, client.defaultTimeout)
		assert.Equal(t, defaultUserAgent, client.userAgent)
	})

	t.Run("custom config", func(t *testing.T) {
		cfg := Config{DefaultTimeout: 3 * time.Second, UserAgent: "f1predict-test/1.0"}
		client := New(&cfg)
		assert.Equal(t, 3*time.Second, client.defaultTimeout)
		assert.Equal(t, "f1predict-test/1.0", client.userAgent)
		assert.Zero(t, cfg.MaxIdleConns, "caller config is not mutated")
	})
}

func TestDoInjectsUserAgentAndRunsHooks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "f1predict", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	client := New(nil)
	t.Cleanup(client.Close)

	var before, after atomic.Int32
	client.SetBeforeRequestHook(func(*http.Request) { before.Add(1) })
	client.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, err error) {
		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		after.Add(1)
	})

	resp, err := client.Get(t.Context(), server.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.EqualValues(t, 1, before.Load())
	assert.EqualValues(t, 1, after.Load())
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestDoStripsQueryFromTransportErrors(t *testing.T) {
	client := New(&Config{Transport: failingTransport{}})
	t.Cleanup(client.Close)

	resp, err := client.Get(t.Context(), "http://127.0.0.1:1/data/2.5/weather?lat=43.7&appid=SUPERSECRETKEY")
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.NotContains(t, err.Error(), "SUPERSECRETKEY")
	assert.Contains(t, err.Error(), "http://127.0.0.1:1/data/2.5/weather")
	assert.Contains(t, err.Error(), "connection refused")

	var ue *url.Error
	require.ErrorAs(t, err, &ue)
	assert.NotContains(t, ue.URL, "?")
}

func TestDoAppliesDefaultTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(server.Close)

	client := New(&Config{DefaultTimeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGetJSON(t *testing.T) {
	transport := httpmock.NewMockTransport()
	client := New(&Config{Transport: transport})

	transport.RegisterResponder(http.MethodGet, "https://api.test/ok",
		httpmock.NewStringResponder(http.StatusOK, `{"name":"Monza","round":16}`))
	transport.RegisterResponder(http.MethodGet, "https://api.test/missing",
		httpmock.NewStringResponder(http.StatusNotFound, `not here`))
	transport.RegisterResponder(http.MethodGet, "https://api.test/garbage",
		httpmock.NewStringResponder(http.StatusOK, `{"name":`))
	transport.RegisterResponder(http.MethodGet, "https://api.test/down",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	var out struct {
		Name  string `json:"name"`
		Round int    `json:"round"`
	}

	require.NoError(t, client.GetJSON(t.Context(), "https://api.test/ok", &out))
	assert.Equal(t, "Monza", out.Name)
	assert.Equal(t, 16, out.Round)

	err := client.GetJSON(t.Context(), "https://api.test/missing", &out)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	assert.Error(t, client.GetJSON(t.Context(), "https://api.test/garbage", &out))
	assert.Error(t, client.GetJSON(t.Context(), "https://api.test/down", &out))

	assert.Equal(t, 4, transport.GetTotalCallCount())
}
