package rollout

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/fluxcd/ecsdeploy/pkg/descriptor"
	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
)

var ErrServiceNotFound = errors.Wrap(deployerr.NotFound, "service not found")

// ServiceID names a service within a cluster.
type ServiceID struct {
	Cluster string
	Name    string
}

func (s ServiceID) String() string {
	return s.Cluster + "/" + s.Name
}

// Platform is what the controller needs from the orchestrator.
type Platform interface {
	// DescribeService reports the current state of the service; it
	// fails with ErrServiceNotFound if there is no such (active)
	// service.
	DescribeService(ctx context.Context, service ServiceID) (Snapshot, error)
	// UpdateService points the service at the given revision. With
	// force, running tasks are replaced even if the revision is the
	// one already in use.
	UpdateService(ctx context.Context, service ServiceID, rev descriptor.Ref, force bool) error
}

// Status is the stability of a service as observed in a snapshot.
type Status string

const (
	StatusStable     Status = "stable"
	StatusConverging Status = "converging"
	StatusFailed     Status = "failed"
)

// Snapshot is the observed state of a service at one point in time.
type Snapshot struct {
	Service        ServiceID
	TaskDefinition descriptor.Ref
	DesiredCount   int64
	RunningCount   int64
	PendingCount   int64
	// number of deployments not yet finished, including the primary one
	Deployments int
	// false once the service is draining or inactive
	Active bool
	// most recent service events, newest first
	Events []string
}

// Stable is true when a single deployment remains and all its desired
// tasks are running.
func (s Snapshot) Stable() bool {
	return s.Active && s.Deployments == 1 && s.RunningCount == s.DesiredCount
}

func (s Snapshot) Status() Status {
	switch {
	case !s.Active:
		return StatusFailed
	case s.Stable():
		return StatusStable
	default:
		return StatusConverging
	}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%s revision=%s running=%d desired=%d pending=%d deployments=%d status=%s",
		s.Service, s.TaskDefinition, s.RunningCount, s.DesiredCount, s.PendingCount, s.Deployments, s.Status())
}

// Outcome of waiting for a service to converge. Neither is an error:
// a timed-out rollout may still be converging.
type Outcome string

const (
	Stable   Outcome = "stable"
	TimedOut Outcome = "timed-out"
)

// Pending describes an accepted update that the service has been told
// to converge to.
type Pending struct {
	Service  ServiceID
	Revision descriptor.Ref
	// whether replacement of running tasks was forced on the accepted
	// attempt
	Forced bool
	// 1, or 2 if the update had to be retried
	Attempts int
}

// State of one apply-and-wait cycle.
type State string

const (
	Requested   State = "requested"
	Applying    State = "applying"
	Applied     State = "applied"
	ApplyFailed State = "apply-failed"
	Waiting     State = "waiting"
	Converged   State = "stable"
	Expired     State = "timed-out"
)
