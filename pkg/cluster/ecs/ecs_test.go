package ecs

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ecs"
	"github.com/aws/aws-sdk-go/service/ecs/ecsiface"
	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxcd/ecsdeploy/pkg/descriptor"
	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
	"github.com/fluxcd/ecsdeploy/pkg/rollout"
)

type mockECSClient struct {
	ecsiface.ECSAPI

	taskDefinition *ecs.TaskDefinition
	describeTDErr  error

	registered  []*ecs.RegisterTaskDefinitionInput
	registerErr error

	services    []*ecs.Service
	failures    []*ecs.Failure
	describeErr error

	updates   []*ecs.UpdateServiceInput
	updateErr error
}

func (m *mockECSClient) DescribeTaskDefinitionWithContext(ctx aws.Context, in *ecs.DescribeTaskDefinitionInput, _ ...request.Option) (*ecs.DescribeTaskDefinitionOutput, error) {
	if m.describeTDErr != nil {
		return nil, m.describeTDErr
	}
	return &ecs.DescribeTaskDefinitionOutput{TaskDefinition: m.taskDefinition}, nil
}

func (m *mockECSClient) RegisterTaskDefinitionWithContext(ctx aws.Context, in *ecs.RegisterTaskDefinitionInput, _ ...request.Option) (*ecs.RegisterTaskDefinitionOutput, error) {
	m.registered = append(m.registered, in)
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return &ecs.RegisterTaskDefinitionOutput{
		TaskDefinition: &ecs.TaskDefinition{
			Family:            in.Family,
			Revision:          aws.Int64(6),
			TaskDefinitionArn: aws.String("arn:aws:ecs:eu-west-1:123456789012:task-definition/web:6"),
		},
	}, nil
}

func (m *mockECSClient) DescribeServicesWithContext(ctx aws.Context, in *ecs.DescribeServicesInput, _ ...request.Option) (*ecs.DescribeServicesOutput, error) {
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	return &ecs.DescribeServicesOutput{Services: m.services, Failures: m.failures}, nil
}

func (m *mockECSClient) UpdateServiceWithContext(ctx aws.Context, in *ecs.UpdateServiceInput, _ ...request.Option) (*ecs.UpdateServiceOutput, error) {
	m.updates = append(m.updates, in)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &ecs.UpdateServiceOutput{Service: &ecs.Service{}}, nil
}

func webTaskDefinition() *ecs.TaskDefinition {
	return &ecs.TaskDefinition{
		TaskDefinitionArn: aws.String("arn:aws:ecs:eu-west-1:123456789012:task-definition/web:5"),
		Family:            aws.String("web"),
		Revision:          aws.Int64(5),
		Status:            aws.String("ACTIVE"),
		NetworkMode:       aws.String("awsvpc"),
		Cpu:               aws.String("256"),
		Memory:            aws.String("512"),
		Compatibilities:   aws.StringSlice([]string{"EC2", "FARGATE"}),
		RequiresAttributes: []*ecs.Attribute{
			{Name: aws.String("com.amazonaws.ecs.capability.docker-remote-api.1.18")},
		},
		RequiresCompatibilities: aws.StringSlice([]string{"FARGATE"}),
		RegisteredAt:            aws.Time(time.Unix(1578800000, 0)),
		RegisteredBy:            aws.String("arn:aws:iam::123456789012:user/ci"),
		ContainerDefinitions: []*ecs.ContainerDefinition{
			{
				Name:      aws.String("app"),
				Image:     aws.String("123456789012.dkr.ecr.eu-west-1.amazonaws.com/web:old"),
				Essential: aws.Bool(true),
				Cpu:       aws.Int64(128),
				Memory:    aws.Int64(256),
				PortMappings: []*ecs.PortMapping{
					{ContainerPort: aws.Int64(8080), Protocol: aws.String("tcp")},
				},
			},
		},
	}
}

func newTestCluster(t *testing.T, client ecsiface.ECSAPI) (*Cluster, string) {
	dir, err := ioutil.TempDir("", "ecsdeploy-staging")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return NewCluster(client, dir, log.NewNopLogger()), dir
}

func assertNothingStaged(t *testing.T, dir string) {
	entries, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged payloads should be removed")
}

func TestFetchLatest(t *testing.T) {
	c, _ := newTestCluster(t, &mockECSClient{taskDefinition: webTaskDefinition()})
	d, err := c.FetchLatest(context.Background(), "web")
	require.NoError(t, err)

	assert.Equal(t, descriptor.Ref{Family: "web", Revision: 5}, d.Ref())
	specs := d.Containers()
	require.Len(t, specs, 1)
	assert.Equal(t, "app", specs[0].Name)
	assert.Equal(t, "123456789012.dkr.ecr.eu-west-1.amazonaws.com/web:old", specs[0].Image)
	assert.Equal(t, int64(256), specs[0].Memory)
	assert.Contains(t, d.Scoped(), "taskDefinitionArn")
	assert.Contains(t, d.Scoped(), "registeredAt")
}

func TestFetchLatestUnknownFamily(t *testing.T) {
	apiErr := awserr.New(ecs.ErrCodeClientException, "Unable to describe task definition.", nil)
	c, _ := newTestCluster(t, &mockECSClient{describeTDErr: apiErr})
	_, err := c.FetchLatest(context.Background(), "nope")

	assert.True(t, errors.Is(err, descriptor.ErrFamilyNotFound), "got %v", err)
	assert.True(t, errors.Is(err, deployerr.NotFound))
	var aerr awserr.Error
	require.True(t, errors.As(err, &aerr), "the API error is kept")
	assert.Equal(t, ecs.ErrCodeClientException, aerr.Code())
}

func TestFetchLatestAccessDenied(t *testing.T) {
	apiErr := awserr.New(ecs.ErrCodeAccessDeniedException, "not authorized to perform ecs:DescribeTaskDefinition", nil)
	c, _ := newTestCluster(t, &mockECSClient{describeTDErr: apiErr})
	_, err := c.FetchLatest(context.Background(), "web")
	assert.True(t, errors.Is(err, deployerr.AccessDenied), "got %v", err)
	assert.Contains(t, err.Error(), "ecs:DescribeTaskDefinition")
}

func TestFetchLatestRequestError(t *testing.T) {
	apiErr := awserr.New(request.ErrCodeRequestError, "send request failed", errors.New("dial tcp: i/o timeout"))
	c, _ := newTestCluster(t, &mockECSClient{describeTDErr: apiErr})
	_, err := c.FetchLatest(context.Background(), "web")
	require.Error(t, err)
	assert.False(t, errors.Is(err, deployerr.NotFound), "got %v", err)
	assert.Nil(t, deployerr.KindOf(err))
	var aerr awserr.Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, request.ErrCodeRequestError, aerr.Code())
	assert.Contains(t, err.Error(), "i/o timeout")
}

func TestRegisterRoundTrip(t *testing.T) {
	client := &mockECSClient{taskDefinition: webTaskDefinition()}
	c, dir := newTestCluster(t, client)

	base, err := c.FetchLatest(context.Background(), "web")
	require.NoError(t, err)
	candidate := base.Copy()
	descriptor.Strip(candidate)

	ref, err := c.Register(context.Background(), candidate)
	require.NoError(t, err)
	assert.Equal(t, descriptor.Ref{Family: "web", Revision: 6}, ref)

	require.Len(t, client.registered, 1)
	in := client.registered[0]
	assert.Equal(t, "web", aws.StringValue(in.Family))
	assert.Equal(t, "awsvpc", aws.StringValue(in.NetworkMode))
	assert.Equal(t, "256", aws.StringValue(in.Cpu))
	assert.Equal(t, []string{"FARGATE"}, aws.StringValueSlice(in.RequiresCompatibilities))
	require.Len(t, in.ContainerDefinitions, 1)
	assert.Equal(t, "123456789012.dkr.ecr.eu-west-1.amazonaws.com/web:old", aws.StringValue(in.ContainerDefinitions[0].Image))
	assert.Equal(t, int64(8080), aws.Int64Value(in.ContainerDefinitions[0].PortMappings[0].ContainerPort))

	assertNothingStaged(t, dir)
}

func TestRegisterRejectsBeforeCallingAPI(t *testing.T) {
	client := &mockECSClient{}
	c, dir := newTestCluster(t, client)

	_, err := c.Register(context.Background(), descriptor.MustParse(`{"family": "web", "containerDefinitions": []}`))
	assert.True(t, errors.Is(err, descriptor.ErrNoContainers), "got %v", err)

	_, err = c.Register(context.Background(), descriptor.MustParse(`{"family": "web", "revision": 5, "containerDefinitions": [{"name": "app", "image": "app:1"}]}`))
	assert.True(t, errors.Is(err, descriptor.ErrRegistrationScoped), "got %v", err)

	assert.Empty(t, client.registered)
	assertNothingStaged(t, dir)
}

func TestRegisterFailures(t *testing.T) {
	candidate := descriptor.MustParse(`{"family": "web", "containerDefinitions": [{"name": "app", "image": "app:1"}]}`)

	for _, x := range []struct {
		err  error
		kind error
	}{
		{awserr.New(ecs.ErrCodeClientException, "Container.image should not be null or empty.", nil), deployerr.InvalidDescriptor},
		{awserr.New(ecs.ErrCodeInvalidParameterException, "Invalid setting for container 'app'", nil), deployerr.InvalidDescriptor},
		{awserr.New(ecs.ErrCodeAccessDeniedException, "not authorized to perform ecs:RegisterTaskDefinition", nil), deployerr.RegistrationFailed},
		{awserr.New(request.ErrCodeSerialization, "failed decoding response", nil), deployerr.RegistrationFailed},
	} {
		client := &mockECSClient{registerErr: x.err}
		c, dir := newTestCluster(t, client)
		_, err := c.Register(context.Background(), candidate)
		assert.True(t, errors.Is(err, x.kind), "%v: got %v", x.err, err)
		assert.True(t, errors.Is(err, x.err), "the API error is kept as the cause")
		assertNothingStaged(t, dir)
	}
}

func TestDescribeService(t *testing.T) {
	client := &mockECSClient{services: []*ecs.Service{{
		Status:         aws.String("ACTIVE"),
		DesiredCount:   aws.Int64(3),
		RunningCount:   aws.Int64(2),
		PendingCount:   aws.Int64(1),
		TaskDefinition: aws.String("arn:aws:ecs:eu-west-1:123456789012:task-definition/web:6"),
		Deployments:    []*ecs.Deployment{{Status: aws.String("PRIMARY")}, {Status: aws.String("ACTIVE")}},
		Events: []*ecs.ServiceEvent{
			{Message: aws.String("(service web) has started 1 tasks")},
		},
	}}}
	c, _ := newTestCluster(t, client)
	snap, err := c.DescribeService(context.Background(), rollout.ServiceID{Cluster: "prod", Name: "web"})
	require.NoError(t, err)
	assert.Equal(t, rollout.Snapshot{
		Service:        rollout.ServiceID{Cluster: "prod", Name: "web"},
		TaskDefinition: descriptor.Ref{Family: "web", Revision: 6},
		DesiredCount:   3,
		RunningCount:   2,
		PendingCount:   1,
		Deployments:    2,
		Active:         true,
		Events:         []string{"(service web) has started 1 tasks"},
	}, snap)
	assert.Equal(t, rollout.StatusConverging, snap.Status())
}

func TestDescribeServiceMissing(t *testing.T) {
	for _, client := range []*mockECSClient{
		{failures: []*ecs.Failure{{Arn: aws.String("arn:aws:ecs:eu-west-1:123456789012:service/web"), Reason: aws.String("MISSING")}}},
		{services: []*ecs.Service{{Status: aws.String("INACTIVE")}}},
		{describeErr: awserr.New(ecs.ErrCodeClusterNotFoundException, "Cluster not found.", nil)},
	} {
		c, _ := newTestCluster(t, client)
		_, err := c.DescribeService(context.Background(), rollout.ServiceID{Cluster: "prod", Name: "web"})
		assert.True(t, errors.Is(err, rollout.ErrServiceNotFound), "got %v", err)
	}
}

func TestDescribeServiceRequestError(t *testing.T) {
	for _, apiErr := range []error{
		awserr.New(request.ErrCodeRequestError, "send request failed", errors.New("dial tcp: i/o timeout")),
		awserr.New(ecs.ErrCodeServerException, "Service Unavailable", nil),
	} {
		c, _ := newTestCluster(t, &mockECSClient{describeErr: apiErr})
		_, err := c.DescribeService(context.Background(), rollout.ServiceID{Cluster: "prod", Name: "web"})
		require.Error(t, err)
		assert.False(t, errors.Is(err, rollout.ErrServiceNotFound), "got %v", err)
		assert.False(t, errors.Is(err, deployerr.NotFound), "got %v", err)
		assert.True(t, errors.Is(err, apiErr))
	}
}

func TestUpdateService(t *testing.T) {
	client := &mockECSClient{}
	c, _ := newTestCluster(t, client)
	err := c.UpdateService(context.Background(), rollout.ServiceID{Cluster: "prod", Name: "web"}, descriptor.Ref{Family: "web", Revision: 6}, true)
	require.NoError(t, err)
	require.Len(t, client.updates, 1)
	in := client.updates[0]
	assert.Equal(t, "prod", aws.StringValue(in.Cluster))
	assert.Equal(t, "web", aws.StringValue(in.Service))
	assert.Equal(t, "web:6", aws.StringValue(in.TaskDefinition))
	assert.True(t, aws.BoolValue(in.ForceNewDeployment))
}

func TestUpdateServiceErrors(t *testing.T) {
	svc := rollout.ServiceID{Cluster: "prod", Name: "web"}
	rev := descriptor.Ref{Family: "web", Revision: 6}

	c, _ := newTestCluster(t, &mockECSClient{updateErr: awserr.New(ecs.ErrCodeServiceNotActiveException, "Service was not ACTIVE.", nil)})
	err := c.UpdateService(context.Background(), svc, rev, false)
	assert.True(t, errors.Is(err, rollout.ErrServiceNotFound), "got %v", err)

	c, _ = newTestCluster(t, &mockECSClient{updateErr: awserr.New(ecs.ErrCodeInvalidParameterException, "Unable to assume role", nil)})
	err = c.UpdateService(context.Background(), svc, rev, false)
	assert.True(t, errors.Is(err, deployerr.UpdateFailed), "got %v", err)
}
