package mock

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/fluxcd/ecsdeploy/pkg/descriptor"
	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
	"github.com/fluxcd/ecsdeploy/pkg/rollout"
)

// Update is a call made to UpdateService.
type Update struct {
	Service  rollout.ServiceID
	Revision descriptor.Ref
	Force    bool
}

type service struct {
	rev     descriptor.Ref
	desired int64
	// describes left before the latest update has converged; < 0
	// means never
	converging int
}

// Platform is an in-memory rollout.Platform. Services converge a
// fixed number of describes after each update.
type Platform struct {
	mu       sync.Mutex
	services map[rollout.ServiceID]*service

	// ConvergeAfter is how many describes report an update as still in
	// progress; with NeverConverge, it stays in progress.
	ConvergeAfter int
	NeverConverge bool
	// UpdateErrs are returned by successive updates, before any
	// succeed.
	UpdateErrs []error

	Updates   []Update
	Describes int
}

var _ rollout.Platform = &Platform{}

func NewPlatform() *Platform {
	return &Platform{services: map[rollout.ServiceID]*service{}}
}

// AddService creates a stable service running rev.
func (p *Platform) AddService(id rollout.ServiceID, rev descriptor.Ref, desired int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.services == nil {
		p.services = map[rollout.ServiceID]*service{}
	}
	p.services[id] = &service{rev: rev, desired: desired}
}

// Running returns the revision the service has been told to run.
func (p *Platform) Running(id rollout.ServiceID) descriptor.Ref {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.services[id]; ok {
		return s.rev
	}
	return descriptor.Ref{}
}

func (p *Platform) DescribeService(ctx context.Context, id rollout.ServiceID) (rollout.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Describes++
	s, ok := p.services[id]
	if !ok {
		return rollout.Snapshot{}, errors.Wrapf(rollout.ErrServiceNotFound, "describing service %s", id)
	}
	snap := rollout.Snapshot{
		Service:        id,
		TaskDefinition: s.rev,
		DesiredCount:   s.desired,
		RunningCount:   s.desired,
		Deployments:    1,
		Active:         true,
	}
	if s.converging != 0 {
		snap.Deployments = 2
		snap.RunningCount = 0
		snap.PendingCount = s.desired
		if s.converging > 0 {
			s.converging--
		}
	}
	return snap, nil
}

func (p *Platform) UpdateService(ctx context.Context, id rollout.ServiceID, rev descriptor.Ref, force bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Updates = append(p.Updates, Update{Service: id, Revision: rev, Force: force})
	s, ok := p.services[id]
	if !ok {
		return errors.Wrapf(rollout.ErrServiceNotFound, "updating service %s", id)
	}
	if len(p.UpdateErrs) > 0 {
		err := p.UpdateErrs[0]
		p.UpdateErrs = p.UpdateErrs[1:]
		return deployerr.WithKind(deployerr.UpdateFailed, err)
	}
	s.rev = rev
	s.converging = p.ConvergeAfter
	if p.NeverConverge {
		s.converging = -1
	}
	return nil
}
