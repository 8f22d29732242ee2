package ecs

import (
	"context"
	"io/ioutil"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/private/protocol/json/jsonutil"
	"github.com/aws/aws-sdk-go/service/ecs"
	"github.com/go-kit/kit/log/level"
	"github.com/pkg/errors"

	"github.com/fluxcd/ecsdeploy/pkg/descriptor"
	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
)

// FetchLatest describes the family by name, which gets the latest
// ACTIVE revision.
func (c *Cluster) FetchLatest(ctx context.Context, family string) (descriptor.Descriptor, error) {
	out, err := c.client.DescribeTaskDefinitionWithContext(ctx, &ecs.DescribeTaskDefinitionInput{
		TaskDefinition: aws.String(family),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == ecs.ErrCodeClientException {
			// ECS reports an unknown family as "Unable to describe task definition."
			return descriptor.Descriptor{}, errors.Wrapf(deployerr.WithKind(descriptor.ErrFamilyNotFound, err), "describing task definition %q", family)
		}
		return descriptor.Descriptor{}, errors.Wrapf(classify(err, nil), "describing task definition %q", family)
	}
	if out.TaskDefinition == nil {
		return descriptor.Descriptor{}, errors.Wrapf(descriptor.ErrFamilyNotFound, "describing task definition %q: empty response", family)
	}

	body, err := jsonutil.BuildJSON(out.TaskDefinition)
	if err != nil {
		return descriptor.Descriptor{}, errors.Wrapf(err, "encoding task definition %q", family)
	}
	return descriptor.Parse(body)
}

// Register validates the candidate locally, stages it as a JSON
// document, and registers it. The staged payload is removed whatever
// the result.
func (c *Cluster) Register(ctx context.Context, candidate descriptor.Descriptor) (descriptor.Ref, error) {
	if err := descriptor.Validate(candidate); err != nil {
		return descriptor.Ref{}, err
	}

	input, err := c.stage(candidate)
	if err != nil {
		return descriptor.Ref{}, err
	}

	out, err := c.client.RegisterTaskDefinitionWithContext(ctx, input)
	if err != nil {
		return descriptor.Ref{}, errors.Wrapf(registrationError(err), "registering task definition for family %q", candidate.Family())
	}
	if out.TaskDefinition == nil || out.TaskDefinition.Revision == nil {
		return descriptor.Ref{}, errors.Wrapf(deployerr.RegistrationFailed, "registering task definition for family %q: no revision in response", candidate.Family())
	}
	ref := descriptor.Ref{
		Family:   aws.StringValue(out.TaskDefinition.Family),
		Revision: aws.Int64Value(out.TaskDefinition.Revision),
	}
	level.Info(c.logger).Log("registered", ref, "arn", aws.StringValue(out.TaskDefinition.TaskDefinitionArn))
	return ref, nil
}

// stage writes the candidate to a file under the staging directory
// and decodes the registration input from it.
func (c *Cluster) stage(candidate descriptor.Descriptor) (*ecs.RegisterTaskDefinitionInput, error) {
	f, err := ioutil.TempFile(c.stagingDir, "taskdef-"+candidate.Family()+"-*.json")
	if err != nil {
		return nil, errors.Wrap(err, "staging task definition")
	}
	defer os.Remove(f.Name())
	defer f.Close()
	level.Debug(c.logger).Log("staged", f.Name())

	if _, err := f.Write(candidate.Bytes()); err != nil {
		return nil, errors.Wrapf(err, "writing staged task definition %s", f.Name())
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, errors.Wrapf(err, "rewinding staged task definition %s", f.Name())
	}

	input := &ecs.RegisterTaskDefinitionInput{}
	if err := jsonutil.UnmarshalJSON(input, f); err != nil {
		return nil, errors.Wrapf(deployerr.WithKind(deployerr.InvalidDescriptor, err), "decoding staged task definition %s", f.Name())
	}
	if err := input.Validate(); err != nil {
		return nil, errors.Wrapf(deployerr.WithKind(deployerr.InvalidDescriptor, err), "validating task definition for family %q", candidate.Family())
	}
	return input, nil
}

func registrationError(err error) error {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case ecs.ErrCodeClientException, ecs.ErrCodeInvalidParameterException:
			return deployerr.WithKind(deployerr.InvalidDescriptor, err)
		}
	}
	return deployerr.WithKind(deployerr.RegistrationFailed, err)
}
