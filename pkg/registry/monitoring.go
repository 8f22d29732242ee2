package registry

// Monitoring middleware for the registry interface

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	"github.com/fluxcd/ecsdeploy/pkg/image"
	deploymetrics "github.com/fluxcd/ecsdeploy/pkg/metrics"
)

const (
	LabelRequestKind      = "kind"
	RequestKindRepository = "repository"
	RequestKindExists     = "exists"
	RequestKindImages     = "images"
)

var registryDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
	Namespace: "ecsdeploy",
	Subsystem: "registry",
	Name:      "request_duration_seconds",
	Help:      "Duration of image registry requests, in seconds.",
	Buckets:   stdprometheus.DefBuckets,
}, []string{LabelRequestKind, deploymetrics.LabelSuccess})

type instrumentedRegistry struct {
	next Registry
}

func NewInstrumentedRegistry(next Registry) Registry {
	return &instrumentedRegistry{
		next: next,
	}
}

func observe(kind string, start time.Time, err error) {
	registryDuration.With(
		LabelRequestKind, kind,
		deploymetrics.LabelSuccess, strconv.FormatBool(err == nil),
	).Observe(time.Since(start).Seconds())
}

func (m *instrumentedRegistry) Repository(ctx context.Context, name string) (res image.Name, err error) {
	start := time.Now()
	res, err = m.next.Repository(ctx, name)
	observe(RequestKindRepository, start, err)
	return
}

func (m *instrumentedRegistry) ImageExists(ctx context.Context, repo image.Name, tag string) (ok bool, err error) {
	start := time.Now()
	ok, err = m.next.ImageExists(ctx, repo, tag)
	observe(RequestKindExists, start, err)
	return
}

func (m *instrumentedRegistry) Images(ctx context.Context, repo image.Name) (res []image.Info, err error) {
	start := time.Now()
	res, err = m.next.Images(ctx, repo)
	observe(RequestKindImages, start, err)
	return
}
