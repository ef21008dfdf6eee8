package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New()

	m.MessagesSentTotal.Inc()
	m.MessagesSentTotal.Inc()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesSentTotal))

	m.DeliveriesTotal.WithLabelValues("completed").Inc()
	m.DeliveriesTotal.WithLabelValues("cancelled").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues("completed")))

	m.SessionsActive.Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsActive))
}

func TestObserveEvent(t *testing.T) {
	m := New()
	m.ObserveEvent("callback", 120*time.Millisecond)

	count := testutil.CollectAndCount(m.EventDuration)
	assert.Equal(t, 1, count)
}

func TestHandler(t *testing.T) {
	m := New()
	m.FilesTotal.WithLabelValues("sent").Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := make([]byte, 64*1024)
	n, _ := resp.Body.Read(body)
	assert.Contains(t, string(body[:n]), "delivery_files_total")
}
