package obs_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/pos-terminal/internal/obs"
)

func TestDomainMetrics(t *testing.T) {
	obs.MustRegisterDomainMetrics("pos_test", prometheus.NewRegistry())

	before := testutil.ToFloat64(obs.PromotionInstancesTotal.WithLabelValues("pair"))
	obs.ObservePricingRun("add_item", 0.4, []string{"pair", "pair"})
	require.Equal(t, before+2, testutil.ToFloat64(obs.PromotionInstancesTotal.WithLabelValues("pair")))

	linked := testutil.ToFloat64(obs.NotificationsTotal.WithLabelValues("gift_linked"))
	obs.CountNotification("gift_linked", 3)
	obs.CountNotification("gift_linked", 0)
	require.Equal(t, linked+3, testutil.ToFloat64(obs.NotificationsTotal.WithLabelValues("gift_linked")))
}
