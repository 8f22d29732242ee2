package release

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	deploymetrics "github.com/fluxcd/ecsdeploy/pkg/metrics"
	"github.com/fluxcd/ecsdeploy/pkg/rollout"
)

var (
	releaseDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "ecsdeploy",
		Subsystem: "release",
		Name:      "duration_seconds",
		Help:      "Release duration in seconds, including waiting for the service to stabilise.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{deploymetrics.LabelReleaseKind, deploymetrics.LabelOutcome, deploymetrics.LabelSuccess})
	stageDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "ecsdeploy",
		Subsystem: "release",
		Name:      "stage_duration_seconds",
		Help:      "Duration in seconds of each stage of a release.",
		Buckets:   stdprometheus.DefBuckets,
	}, []string{deploymetrics.LabelStage})
)

func NewStageTimer(stage string) *metrics.Timer {
	return metrics.NewTimer(stageDuration.With(deploymetrics.LabelStage, stage))
}

func ObserveRelease(start time.Time, success bool, kind Kind, outcome rollout.Outcome) {
	if outcome == "" {
		outcome = "none"
	}
	releaseDuration.With(
		deploymetrics.LabelSuccess, fmt.Sprint(success),
		deploymetrics.LabelReleaseKind, string(kind),
		deploymetrics.LabelOutcome, string(outcome),
	).Observe(time.Since(start).Seconds())
}
