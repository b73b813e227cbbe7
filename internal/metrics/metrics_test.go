package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("GET", "/api/months", 200, 10*time.Millisecond)
	m.ObserveRequest("GET", "/api/months", 200, 20*time.Millisecond)
	m.ObserveRequest("POST", "/api/expense", 0, time.Millisecond)

	out := scrape(t, m)
	assert.Contains(t, out, `passbook_api_requests_total{code="200",endpoint="/api/months",method="GET"} 2`)
	assert.Contains(t, out, `passbook_api_requests_total{code="error",endpoint="/api/expense",method="POST"} 1`)
	assert.Contains(t, out, `passbook_api_request_duration_seconds_count{endpoint="/api/months",method="GET"} 2`)
}

func TestObserveSync(t *testing.T) {
	m := New()
	m.ObserveSync("expense", nil)
	m.ObserveSync("expense", errors.New("boom"))
	m.ObserveSync("funds", nil)
	m.SetPending(3)
	m.SessionExpired()

	out := scrape(t, m)
	assert.Contains(t, out, `passbook_outbox_processed_total{kind="expense",result="failure"} 1`)
	assert.Contains(t, out, `passbook_outbox_processed_total{kind="funds",result="success"} 1`)
	assert.Contains(t, out, "passbook_outbox_pending 3")
	assert.Contains(t, out, "passbook_session_expired_total 1")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("GET", "/", 200, time.Second)
		m.ObserveSync("expense", nil)
		m.SetPending(1)
		m.SessionExpired()
	})
}

func TestRegistryGathers(t *testing.T) {
	m := New()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
