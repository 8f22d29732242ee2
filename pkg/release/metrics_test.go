package release

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promdto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// releaseCount reads how many releases have been observed with the
// given labels; zero if there have been none.
func releaseCount(t *testing.T, labels ...string) uint64 {
	m, err := findMetric("ecsdeploy_release_duration_seconds", promdto.MetricType_HISTOGRAM, labels...)
	require.NoError(t, err)
	if m == nil {
		return 0
	}
	return m.Histogram.GetSampleCount()
}

func findMetric(name string, metricType promdto.MetricType, labels ...string) (*promdto.Metric, error) {
	if len(labels)%2 != 0 {
		return nil, fmt.Errorf("expected an even number of labels, got %d", len(labels))
	}
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return nil, err
	}
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		if family.GetType() != metricType {
			return nil, fmt.Errorf("metric %s has type %s, not %s", name, family.GetType(), metricType)
		}
	metrics:
		for _, m := range family.Metric {
			have := map[string]string{}
			for _, pair := range m.Label {
				have[pair.GetName()] = pair.GetValue()
			}
			for i := 0; i < len(labels); i += 2 {
				if have[labels[i]] != labels[i+1] {
					continue metrics
				}
			}
			return m, nil
		}
	}
	return nil, nil
}

func TestReleaseMetrics(t *testing.T) {
	stable := []string{"release_kind", "release", "outcome", "stable", "success", "true"}
	refused := []string{"release_kind", "rollback", "outcome", "none", "success", "false"}
	beforeStable, beforeRefused := releaseCount(t, stable...), releaseCount(t, refused...)

	f := setup(t, Options{})
	_, err := f.releaser.Release(context.Background(), spec("new1"))
	require.NoError(t, err)
	_, err = f.releaser.Rollback(context.Background(), spec(""))
	require.Error(t, err)

	assert.Equal(t, beforeStable+1, releaseCount(t, stable...))
	assert.Equal(t, beforeRefused+1, releaseCount(t, refused...))
}
