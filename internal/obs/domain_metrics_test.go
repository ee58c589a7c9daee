package obs

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDomainMetrics(t *testing.T) {
	MustRegisterDomainMetrics("orderfin_test", prometheus.NewRegistry())

	before := testutil.ToFloat64(GSTClassificationsTotal.WithLabelValues("INTRA"))
	ObserveClassification("INTRA")
	require.Equal(t, before+1, testutil.ToFloat64(GSTClassificationsTotal.WithLabelValues("INTRA")))

	beforeLines := testutil.ToFloat64(LineRecalculationsTotal.WithLabelValues("jurisdiction"))
	ObserveRecalculation("jurisdiction", 3)
	ObserveRecalculation("jurisdiction", 0)
	require.Equal(t, beforeLines+3, testutil.ToFloat64(LineRecalculationsTotal.WithLabelValues("jurisdiction")))

	beforeErr := testutil.ToFloat64(DraftOperationsTotal.WithLabelValues("add_item", "error"))
	ObserveDraftOperation("add_item", errors.New("boom"))
	require.Equal(t, beforeErr+1, testutil.ToFloat64(DraftOperationsTotal.WithLabelValues("add_item", "error")))
}

func TestParseBucketsCSV(t *testing.T) {
	require.Nil(t, ParseBucketsCSV("  "))
	require.Equal(t, []float64{1, 5.5, 20}, ParseBucketsCSV("1, 5.5,x,-3,,20"))
}

func TestNewHTTPMetricsReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewHTTPMetrics("orderfin_reuse", nil, reg)
	second := NewHTTPMetrics("orderfin_reuse", nil, reg)
	require.Same(t, first.ReqTotal, second.ReqTotal)
}
