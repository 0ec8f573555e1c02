package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetyard/provisioning-server/common"
)

func TestCountersCarryServiceLabel(t *testing.T) {
	SpecRequests.WithLabelValues("ok").Inc()
	ResolveCache.WithLabelValues("miss").Inc()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	found := map[string]bool{}
	for _, family := range families {
		name := family.GetName()
		if name != "provisioning_spec_requests_total" && name != "provisioning_resolve_cache_total" {
			continue
		}
		found[name] = true
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			assert.Equal(t, common.PackageName, labels["service"], "family %s", name)
		}
	}
	assert.True(t, found["provisioning_spec_requests_total"])
	assert.True(t, found["provisioning_resolve_cache_total"])
}
