package rollout

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/fluxcd/ecsdeploy/pkg/descriptor"
	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
)

const DefaultPollInterval = 15 * time.Second

// Controller applies revisions to services and waits for them to
// converge.
type Controller struct {
	platform     Platform
	pollInterval time.Duration
	logger       log.Logger
}

func NewController(platform Platform, pollInterval time.Duration, logger log.Logger) *Controller {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Controller{
		platform:     platform,
		pollInterval: pollInterval,
		logger:       log.With(logger, "component", "rollout"),
	}
}

// Apply tells the service to adopt rev. The service must exist; this
// is checked before any update is attempted. If the update fails for
// any other reason it is retried once, with replacement forced; if
// that fails too, the error is of kind UpdateFailed.
func (c *Controller) Apply(ctx context.Context, service ServiceID, rev descriptor.Ref, force bool) (Pending, error) {
	logger := log.With(c.logger, "service", service, "revision", rev)
	transition(logger, Requested, "force", force)

	if _, err := c.platform.DescribeService(ctx, service); err != nil {
		if errors.Is(err, ErrServiceNotFound) {
			return Pending{}, err
		}
		return Pending{}, errors.Wrapf(err, "describing service %s before update", service)
	}

	pending := Pending{Service: service, Revision: rev, Forced: force}
	var firstErr error
	for {
		pending.Attempts++
		transition(logger, Applying, "attempt", pending.Attempts, "force", pending.Forced)
		err := c.platform.UpdateService(ctx, service, rev, pending.Forced)
		observeAttempt(pending.Forced, err == nil)
		if err == nil {
			transition(logger, Applied, "attempts", pending.Attempts)
			return pending, nil
		}
		transition(logger, ApplyFailed, "attempt", pending.Attempts, "err", err)

		if errors.Is(err, ErrServiceNotFound) {
			return Pending{}, err
		}
		if firstErr != nil {
			return Pending{}, deployerr.WithKind(deployerr.UpdateFailed,
				errors.Wrapf(err, "updating service %s to %s, retried with forced replacement (first attempt: %v)", service, rev, firstErr))
		}
		if ctx.Err() != nil {
			return Pending{}, deployerr.WithKind(deployerr.UpdateFailed,
				errors.Wrapf(err, "updating service %s to %s", service, rev))
		}
		firstErr = err
		pending.Forced = true
	}
}

// AwaitStable polls the service until it is stable or the timeout
// elapses. Timing out is not an error: the result is TimedOut with a
// snapshot taken at the deadline, so the caller can judge whether the
// rollout is still making progress. Cancelling ctx abandons the wait
// and returns the context's error; the update already applied stands.
func (c *Controller) AwaitStable(ctx context.Context, service ServiceID, timeout time.Duration) (Outcome, Snapshot, error) {
	logger := log.With(c.logger, "service", service)
	transition(logger, Waiting, "timeout", timeout)
	defer observeAwait(time.Now())

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	limiter := rate.NewLimiter(rate.Every(c.pollInterval), 1)

	for {
		if err := limiter.Wait(waitCtx); err != nil {
			// Not enough time left for another poll; take the last
			// look at the deadline.
			<-waitCtx.Done()
			break
		}
		snap, err := c.platform.DescribeService(waitCtx, service)
		if err != nil {
			if waitCtx.Err() != nil {
				break
			}
			return "", Snapshot{}, errors.Wrapf(err, "describing service %s", service)
		}
		if snap.Stable() {
			transition(logger, Converged, "running", snap.RunningCount, "desired", snap.DesiredCount)
			return Stable, snap, nil
		}
		level.Debug(logger).Log("running", snap.RunningCount, "desired", snap.DesiredCount,
			"pending", snap.PendingCount, "deployments", snap.Deployments)
	}

	if err := ctx.Err(); err != nil {
		return "", Snapshot{}, errors.Wrapf(err, "waiting for service %s to stabilise", service)
	}

	snap, err := c.platform.DescribeService(ctx, service)
	if err != nil {
		return "", Snapshot{}, errors.Wrapf(err, "describing service %s after waiting %s", service, timeout)
	}
	if snap.Stable() {
		transition(logger, Converged, "running", snap.RunningCount, "desired", snap.DesiredCount)
		return Stable, snap, nil
	}
	transition(logger, Expired, "running", snap.RunningCount, "desired", snap.DesiredCount)
	return TimedOut, snap, nil
}

func transition(logger log.Logger, state State, keyvals ...interface{}) {
	level.Debug(logger).Log(append([]interface{}{"state", state}, keyvals...)...)
}
