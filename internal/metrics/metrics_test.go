package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveBlogCreation(t *testing.T) {
	before := testutil.ToFloat64(BlogCreations.WithLabelValues("created"))
	ObserveBlogCreation("created")
	ObserveBlogCreation("created")
	assert.Equal(t, before+2, testutil.ToFloat64(BlogCreations.WithLabelValues("created")))
}

func TestObserveMailSend(t *testing.T) {
	before := testutil.ToFloat64(MailsTotal.WithLabelValues("mail-server-1", "DELIVERY_FAILED"))
	ObserveMailSend("mail-server-1", "DELIVERY_FAILED", time.Now().Add(-time.Second))
	assert.Equal(t, before+1, testutil.ToFloat64(MailsTotal.WithLabelValues("mail-server-1", "DELIVERY_FAILED")))
	assert.Equal(t, 1, testutil.CollectAndCount(MailSendDuration))
}

func TestTimer(t *testing.T) {
	timer := NewTimer()
	timer.ObserveDuration(HTTPRequestDuration.WithLabelValues("GET", "/timer"))
	assert.GreaterOrEqual(t, testutil.CollectAndCount(HTTPRequestDuration), 1)
}
