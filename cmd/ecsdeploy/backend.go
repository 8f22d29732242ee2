package main

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	awsecr "github.com/aws/aws-sdk-go/service/ecr"
	"github.com/aws/aws-sdk-go/service/ecr/ecriface"
	awsecs "github.com/aws/aws-sdk-go/service/ecs"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/fluxcd/ecsdeploy/pkg/cluster/ecs"
	"github.com/fluxcd/ecsdeploy/pkg/config"
	"github.com/fluxcd/ecsdeploy/pkg/descriptor"
	"github.com/fluxcd/ecsdeploy/pkg/image"
	"github.com/fluxcd/ecsdeploy/pkg/registry"
	"github.com/fluxcd/ecsdeploy/pkg/registry/cache/memcached"
	"github.com/fluxcd/ecsdeploy/pkg/release"
	"github.com/fluxcd/ecsdeploy/pkg/rollout"
)

// Releaser is what the commands drive.
type Releaser interface {
	Release(ctx context.Context, spec release.Spec) (release.Result, error)
	Rollback(ctx context.Context, spec release.Spec) (release.Result, error)
	Status(ctx context.Context, family string, service rollout.ServiceID) (release.Status, error)
	ListVersions(ctx context.Context, repository string) ([]image.Info, error)
}

var _ Releaser = &release.Releaser{}

type backend struct {
	releaser Releaser
	ecr      ecriface.ECRAPI
	// looks up the revision to release when no tag is given
	revision func(ctx context.Context) (string, error)
	stop     func()
}

func newAWSBackend(cfg config.Config, logger log.Logger) (*backend, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            aws.Config{Region: aws.String(cfg.Region)},
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}

	cluster := ecs.NewCluster(awsecs.New(sess), cfg.StagingDir, logger)
	ecrClient := awsecr.New(sess)

	var reg registry.Registry = registry.NewInstrumentedRegistry(registry.NewECR(ecrClient, logger))
	stop := func() {}
	if cfg.Memcached.Hostname != "" {
		mc := newMemcacheClient(cfg.Memcached, logger)
		reg = memcached.NewCache(reg, mc, cfg.Memcached.Expiry, logger)
		stop = mc.Stop
	}

	releaser := release.NewReleaser(descriptor.Instrument(cluster, logger), reg, cluster, release.Options{
		Container:    cfg.Container,
		Timeout:      cfg.Timeout,
		PollInterval: cfg.PollInterval,
	}, logger)

	return &backend{
		releaser: releaser,
		ecr:      ecrClient,
		revision: shortRevision,
		stop:     stop,
	}, nil
}

func newMemcacheClient(cfg config.MemcachedConfig, logger log.Logger) *memcached.Memcache {
	return memcached.New(memcached.Config{
		Hostname:       cfg.Hostname,
		Service:        cfg.Service,
		Timeout:        cfg.Timeout,
		UpdateInterval: time.Minute,
		MaxIdleConns:   2,
		Logger:         log.With(logger, "component", "memcached"),
	})
}
