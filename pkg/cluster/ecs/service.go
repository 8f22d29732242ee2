package ecs

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ecs"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/fluxcd/ecsdeploy/pkg/descriptor"
	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
	"github.com/fluxcd/ecsdeploy/pkg/rollout"
)

const (
	serviceActive   = "ACTIVE"
	serviceInactive = "INACTIVE"
)

// DescribeService reads the service's counts and deployments. ECS
// keeps deleted services around as INACTIVE for a while; those are
// reported as not found.
func (c *Cluster) DescribeService(ctx context.Context, service rollout.ServiceID) (rollout.Snapshot, error) {
	out, err := c.client.DescribeServicesWithContext(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(service.Cluster),
		Services: aws.StringSlice([]string{service.Name}),
	})
	if err != nil {
		return rollout.Snapshot{}, errors.Wrapf(classify(err, nil), "describing service %s", service)
	}
	if len(out.Services) == 0 {
		reason := "no such service"
		if len(out.Failures) > 0 {
			reason = aws.StringValue(out.Failures[0].Reason)
		}
		return rollout.Snapshot{}, errors.Wrapf(rollout.ErrServiceNotFound, "describing service %s: %s", service, reason)
	}

	svc := out.Services[0]
	if aws.StringValue(svc.Status) == serviceInactive {
		return rollout.Snapshot{}, errors.Wrapf(rollout.ErrServiceNotFound, "describing service %s: service is %s", service, serviceInactive)
	}
	return snapshot(service, svc), nil
}

func snapshot(id rollout.ServiceID, svc *ecs.Service) rollout.Snapshot {
	snap := rollout.Snapshot{
		Service:      id,
		DesiredCount: aws.Int64Value(svc.DesiredCount),
		RunningCount: aws.Int64Value(svc.RunningCount),
		PendingCount: aws.Int64Value(svc.PendingCount),
		Deployments:  len(svc.Deployments),
		Active:       aws.StringValue(svc.Status) == serviceActive,
	}
	if ref, err := descriptor.ParseRef(aws.StringValue(svc.TaskDefinition)); err == nil {
		snap.TaskDefinition = ref
	}
	for i, ev := range svc.Events {
		if i == maxEvents {
			break
		}
		snap.Events = append(snap.Events, aws.StringValue(ev.Message))
	}
	return snap
}

// UpdateService points the service at the revision, optionally
// forcing a new deployment.
func (c *Cluster) UpdateService(ctx context.Context, service rollout.ServiceID, rev descriptor.Ref, force bool) error {
	out, err := c.client.UpdateServiceWithContext(ctx, &ecs.UpdateServiceInput{
		Cluster:            aws.String(service.Cluster),
		Service:            aws.String(service.Name),
		TaskDefinition:     aws.String(rev.String()),
		ForceNewDeployment: aws.Bool(force),
	})
	if err != nil {
		return errors.Wrapf(classify(err, deployerr.UpdateFailed), "updating service %s to %s", service, rev)
	}
	if out.Service != nil {
		level.Info(c.logger).Log("updated", service, "revision", rev, "force", force,
			"deployments", len(out.Service.Deployments))
	}
	return nil
}
