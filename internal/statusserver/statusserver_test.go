package statusserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"gotest.tools/v3/assert"
)

type fakeRegistry struct {
	connected []string
}

func (f fakeRegistry) Connected() []string { return f.connected }

func TestHealthReturnsOK(t *testing.T) {
	r := New("v1.2.3", fakeRegistry{}, prometheus.NewRegistry(), "http://127.0.0.1:7280", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, rr.Code, http.StatusOK)
	assert.Equal(t, rr.Body.String(), "OK")
}

func TestVersionReturnsConfiguredVersion(t *testing.T) {
	r := New("v1.2.3", fakeRegistry{}, prometheus.NewRegistry(), "http://127.0.0.1:7280", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, rr.Body.String(), "v1.2.3")
}

func TestConnectedShippersListsEachOnItsOwnLine(t *testing.T) {
	r := New("v1", fakeRegistry{connected: []string{"host-a", "host-b"}}, prometheus.NewRegistry(), "http://127.0.0.1:7280", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/connected-shippers", nil))
	assert.Equal(t, rr.Body.String(), "host-a\nhost-b")
}

func TestMetricsServesPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "rlog_test_total"})
	counter.Inc()
	reg.MustRegister(counter)

	r := New("v1", fakeRegistry{}, reg, "http://127.0.0.1:7280", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, rr.Code, http.StatusOK)
	assert.Check(t, len(rr.Body.String()) > 0)
}

func TestQuickwitMetricsProxyForwardsUpstreamBody(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, req.URL.Path, "/metrics")
		w.Write([]byte("quickwit_up 1\n"))
	}))
	defer upstream.Close()

	r := New("v1", fakeRegistry{}, prometheus.NewRegistry(), upstream.URL, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/quickwit/metrics", nil))
	assert.Equal(t, rr.Code, http.StatusOK)
	assert.Equal(t, rr.Body.String(), "quickwit_up 1\n")
}

func TestQuickwitMetricsProxyReturnsBadGatewayWhenUnreachable(t *testing.T) {
	r := New("v1", fakeRegistry{}, prometheus.NewRegistry(), "http://127.0.0.1:1", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/quickwit/metrics", nil))
	assert.Equal(t, rr.Code, http.StatusBadGateway)
}
