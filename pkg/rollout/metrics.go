package rollout

import (
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	deploymetrics "github.com/fluxcd/ecsdeploy/pkg/metrics"
)

var (
	applyAttempts = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "ecsdeploy",
		Subsystem: "rollout",
		Name:      "update_attempts_total",
		Help:      "Service update attempts, by whether replacement was forced.",
	}, []string{deploymetrics.LabelForced, deploymetrics.LabelSuccess})
	awaitDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "ecsdeploy",
		Subsystem: "rollout",
		Name:      "await_duration_seconds",
		Help:      "Time spent waiting for a service to stabilise.",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{})
)

func observeAttempt(forced, success bool) {
	applyAttempts.With(
		deploymetrics.LabelForced, fmt.Sprint(forced),
		deploymetrics.LabelSuccess, fmt.Sprint(success),
	).Add(1)
}

func observeAwait(start time.Time) {
	awaitDuration.Observe(time.Since(start).Seconds())
}
