package resilience_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/order-financials/internal/resilience"
)

func TestBreakerMetricsTransitions(t *testing.T) {
	resilience.MustRegisterMetrics("test", prometheus.NewRegistry())

	breaker := resilience.NewBreaker("redis", 1, 0.5, 20*time.Millisecond)
	ctx := context.Background()
	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("redis")))

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("redis")))

	require.Eventually(t, func() bool {
		return breaker.Allow(ctx)
	}, 200*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, 2.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("redis")))

	breaker.Report(ctx, true)
	require.Equal(t, 0.0, testutil.ToFloat64(resilience.BreakerState.WithLabelValues("redis")))

	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("redis", "closed", "open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("redis", "open", "half_open")))
	require.Equal(t, 1.0, testutil.ToFloat64(resilience.BreakerTransitions.WithLabelValues("redis", "half_open", "closed")))
}
