package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	Register()

	before := testutil.ToFloat64(httpRequests.WithLabelValues("queue"))
	IncHTTP("queue")
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("queue")))

	before = testutil.ToFloat64(customersAdded.WithLabelValues("seated"))
	IncCustomerAdded("seated")
	assert.Equal(t, before+1, testutil.ToFloat64(customersAdded.WithLabelValues("seated")))

	before = testutil.ToFloat64(promotions)
	IncPromotion()
	assert.Equal(t, before+1, testutil.ToFloat64(promotions))

	before = testutil.ToFloat64(pushSent.WithLabelValues("ok"))
	IncPushSent("ok")
	assert.Equal(t, before+1, testutil.ToFloat64(pushSent.WithLabelValues("ok")))
}
