// Package ecs is the Amazon ECS backend: task definitions are the
// descriptors, and ECS services are what gets rolled over.
package ecs

import (
	"os"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ecs"
	"github.com/aws/aws-sdk-go/service/ecs/ecsiface"
	"github.com/go-kit/kit/log"

	"github.com/fluxcd/ecsdeploy/pkg/descriptor"
	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
	"github.com/fluxcd/ecsdeploy/pkg/rollout"
)

// How many of the most recent service events to keep in a snapshot.
const maxEvents = 5

// Cluster talks to the ECS API. It is both the descriptor.Store and
// the rollout.Platform.
type Cluster struct {
	client     ecsiface.ECSAPI
	stagingDir string
	logger     log.Logger
}

var (
	_ descriptor.Store = &Cluster{}
	_ rollout.Platform = &Cluster{}
)

// NewCluster wraps an ECS client. Registration payloads are staged
// under stagingDir, or the OS temp dir if it's empty.
func NewCluster(client ecsiface.ECSAPI, stagingDir string, logger log.Logger) *Cluster {
	if stagingDir == "" {
		stagingDir = os.TempDir()
	}
	return &Cluster{
		client:     client,
		stagingDir: stagingDir,
		logger:     log.With(logger, "component", "ecs"),
	}
}

// classify gives an ECS API error its kind, falling back to the
// supplied kind for anything not recognised. With no fallback, an
// unrecognised error is returned as it is. The API error is kept as
// the cause.
func classify(err error, fallback error) error {
	if err == nil {
		return nil
	}
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case ecs.ErrCodeAccessDeniedException, "AccessDenied", "UnrecognizedClientException", "ExpiredTokenException":
			return deployerr.WithKind(deployerr.AccessDenied, err)
		case ecs.ErrCodeServiceNotFoundException, ecs.ErrCodeServiceNotActiveException, ecs.ErrCodeClusterNotFoundException:
			return deployerr.WithKind(rollout.ErrServiceNotFound, err)
		case request.CanceledErrorCode:
			return err
		}
	}
	if fallback == nil {
		return err
	}
	return deployerr.WithKind(fallback, err)
}
