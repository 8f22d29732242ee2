// Package release puts an image into service: it makes a new task
// definition revision pointing at the image, rolls the service over
// to it, and waits for the service to settle.
package release

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/fluxcd/ecsdeploy/pkg/descriptor"
	"github.com/fluxcd/ecsdeploy/pkg/image"
	"github.com/fluxcd/ecsdeploy/pkg/registry"
	"github.com/fluxcd/ecsdeploy/pkg/rollout"
)

const DefaultTimeout = 10 * time.Minute

// Kind of release. Both go through the same steps; they differ in
// whether replacement is always forced.
type Kind string

const (
	KindRelease  Kind = "release"
	KindRollback Kind = "rollback"
)

// Spec says what to release, and where.
type Spec struct {
	Family  string
	Service rollout.ServiceID
	// Repository is the image repository name, bare or qualified with
	// the registry host.
	Repository string
	Tag        string
	// Force replacement of running tasks. Releases always force it.
	Force bool
}

// Result of a release that got as far as updating the service.
type Result struct {
	Kind     Kind
	Revision descriptor.Ref
	Image    image.Ref
	Outcome  rollout.Outcome
	Snapshot rollout.Snapshot
	// update attempts made; 2 means the update was retried
	Attempts int
	Forced   bool
}

// Status of a service relative to its task definition family.
type Status struct {
	Snapshot rollout.Snapshot
	Latest   descriptor.Ref
}

// Current is true if the service has been told to run the latest
// registered revision.
func (s Status) Current() bool {
	return s.Snapshot.TaskDefinition == s.Latest
}

// Options for a Releaser.
type Options struct {
	// Container names the container whose image is replaced; empty
	// means the first.
	Container    string
	Timeout      time.Duration
	PollInterval time.Duration
}

type Releaser struct {
	store      descriptor.Store
	registry   registry.Registry
	platform   rollout.Platform
	controller *rollout.Controller
	selector   descriptor.Selector
	timeout    time.Duration
	logger     log.Logger
}

func NewReleaser(store descriptor.Store, reg registry.Registry, platform rollout.Platform, opts Options, logger log.Logger) *Releaser {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Releaser{
		store:      store,
		registry:   reg,
		platform:   platform,
		controller: rollout.NewController(platform, opts.PollInterval, logger),
		selector:   descriptor.Selector{Container: opts.Container},
		timeout:    opts.Timeout,
		logger:     logger,
	}
}

// Release puts the tagged image into service, forcing replacement of
// the running tasks.
func (r *Releaser) Release(ctx context.Context, spec Spec) (Result, error) {
	return r.run(ctx, KindRelease, spec, true)
}

// Rollback puts a previously released image back into service. It
// registers a new revision rather than reusing the old one, so that
// the family's latest revision is always what is running.
func (r *Releaser) Rollback(ctx context.Context, spec Spec) (Result, error) {
	return r.run(ctx, KindRollback, spec, spec.Force)
}

func (r *Releaser) run(ctx context.Context, kind Kind, spec Spec, force bool) (result Result, err error) {
	defer func(start time.Time) {
		ObserveRelease(start, err == nil, kind, result.Outcome)
	}(time.Now())

	logger := log.With(r.logger, "type", kind, "family", spec.Family, "service", spec.Service)
	result = Result{Kind: kind}

	if err := checkTag(spec.Tag); err != nil {
		return result, MakeReleaseError(StageCheckTag, err)
	}

	timer := NewStageTimer(StageResolveImage)
	ref, err := r.resolve(ctx, spec.Repository, spec.Tag)
	timer.ObserveDuration()
	if err != nil {
		return result, MakeReleaseError(StageResolveImage, err)
	}
	result.Image = ref
	logger = log.With(logger, "image", ref)

	timer = NewStageTimer(StageFetchDescriptor)
	base, err := r.store.FetchLatest(ctx, spec.Family)
	timer.ObserveDuration()
	if err != nil {
		return result, MakeReleaseError(StageFetchDescriptor, err)
	}

	candidate, err := descriptor.WithImage(base, ref, r.selector)
	if err != nil {
		return result, MakeReleaseError(StagePrepare, errors.Wrapf(err, "updating %s", base))
	}

	timer = NewStageTimer(StageRegister)
	rev, err := r.store.Register(ctx, candidate)
	timer.ObserveDuration()
	if err != nil {
		return result, MakeReleaseError(StageRegister, err)
	}
	result.Revision = rev
	level.Info(logger).Log("registered", rev, "from", base.Ref())

	timer = NewStageTimer(StageApply)
	pending, err := r.controller.Apply(ctx, spec.Service, rev, force)
	timer.ObserveDuration()
	if err != nil {
		// there is no undoing a registration
		level.Warn(logger).Log("orphaned", rev, "err", err)
		return result, MakeReleaseError(StageApply, err)
	}
	result.Attempts = pending.Attempts
	result.Forced = pending.Forced

	timer = NewStageTimer(StageAwait)
	outcome, snap, err := r.controller.AwaitStable(ctx, spec.Service, r.timeout)
	timer.ObserveDuration()
	if err != nil {
		return result, MakeReleaseError(StageAwait, err)
	}
	result.Outcome = outcome
	result.Snapshot = snap
	level.Info(logger).Log("revision", rev, "outcome", outcome, "attempts", pending.Attempts)
	return result, nil
}

func checkTag(tag string) error {
	switch tag {
	case "":
		return ErrTagNotSpecified
	case image.LatestTag:
		return errors.Wrapf(ErrMutableTag, "tag %q", tag)
	}
	return nil
}

// resolve qualifies the repository name and makes sure the tag has
// been pushed to it.
func (r *Releaser) resolve(ctx context.Context, repository, tag string) (image.Ref, error) {
	repo, err := r.registry.Repository(ctx, repository)
	if err != nil {
		return image.Ref{}, err
	}
	ref := repo.ToRef(tag)
	exists, err := r.registry.ImageExists(ctx, repo, tag)
	if err != nil {
		return image.Ref{}, err
	}
	if !exists {
		return image.Ref{}, errors.Wrapf(ErrImageNotFound, "%s", ref)
	}
	return ref, nil
}

// Status reports what the service is running, and the latest revision
// of its family. It changes nothing.
func (r *Releaser) Status(ctx context.Context, family string, service rollout.ServiceID) (Status, error) {
	snap, err := r.platform.DescribeService(ctx, service)
	if err != nil {
		return Status{}, MakeReleaseError(StageStatus, err)
	}
	latest, err := r.store.FetchLatest(ctx, family)
	if err != nil {
		return Status{}, MakeReleaseError(StageStatus, err)
	}
	return Status{Snapshot: snap, Latest: latest.Ref()}, nil
}

// ListVersions lists the tags pushed to the repository, oldest first.
func (r *Releaser) ListVersions(ctx context.Context, repository string) ([]image.Info, error) {
	repo, err := r.registry.Repository(ctx, repository)
	if err != nil {
		return nil, err
	}
	return registry.Versions(ctx, r.registry, repo)
}
