package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/crewchat/internal/bus"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserverCounters(t *testing.T) {
	m := New(nil)

	m.MessageSent(20 * time.Millisecond)
	m.MessageSent(30 * time.Millisecond)
	m.MessageFailed(message.KindTransient)
	m.MessageRetried()
	m.SubscriptionOpened()
	m.SubscriptionOpened()
	m.SubscriptionClosed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.sent))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("transient")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.failures.WithLabelValues("validation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.subscriptions))
}

func TestHandlerExposesMetrics(t *testing.T) {
	b := bus.New()
	_, unsub := b.Subscribe("message.", 1)
	defer unsub()

	m := New(b)
	m.MessageSent(time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{
		"crewchat_messages_sent_total 1",
		"crewchat_bus_subscribers 1",
		"crewchat_delivery_seconds_bucket",
		"go_goroutines",
	} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
