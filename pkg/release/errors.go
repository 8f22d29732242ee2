package release

import (
	"github.com/pkg/errors"

	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
)

var (
	ErrImageNotFound   = errors.Wrap(deployerr.NotFound, "image not found in registry")
	ErrTagNotSpecified = errors.Wrap(deployerr.PreconditionFailed, "no image tag given")
	ErrMutableTag      = errors.Wrap(deployerr.PreconditionFailed, "refusing to release a mutable tag")
)

// Stages of a release, used to say where it failed and to time it.
const (
	StageCheckTag        = "check_tag"
	StageResolveImage    = "resolve_image"
	StageFetchDescriptor = "fetch_descriptor"
	StagePrepare         = "prepare_descriptor"
	StageRegister        = "register"
	StageApply           = "apply"
	StageAwait           = "await"
	StageStatus          = "status"
)

var stageDescriptions = map[string]string{
	StageCheckTag:        "checking the image tag",
	StageResolveImage:    "looking up the image in the registry",
	StageFetchDescriptor: "fetching the latest task definition",
	StagePrepare:         "preparing the new task definition",
	StageRegister:        "registering the new task definition",
	StageApply:           "updating the service",
	StageAwait:           "waiting for the service to stabilise",
	StageStatus:          "reading the service status",
}

var kindHelp = map[error]string{
	deployerr.NotFound: `Check that the names given (repository, tag, task definition family,
cluster and service) are right, and that you are using the right AWS
region and account.
`,
	deployerr.AccessDenied: `The AWS credentials in use are not allowed to do this. Check which
identity you are using (e.g., with 'aws sts get-caller-identity') and
the policies attached to it.
`,
	deployerr.InvalidDescriptor: `The task definition could not be used as the template for a new
revision. Check the latest revision of the family in the ECS console,
and that --container names one of its containers.
`,
	deployerr.RegistrationFailed: `ECS did not accept the new task definition. Nothing has changed in the
service; it is safe to try again.
`,
	deployerr.UpdateFailed: `A new task definition revision was registered, but the service could
not be updated to use it, even when forcing a new deployment. The
service is still running its previous revision.
`,
	deployerr.PreconditionFailed: `Give an immutable image tag with --tag, e.g., the short git revision
the image was built from. 'latest' cannot be released, since it can
be moved to a different build at any time.
`,
}

// MakeReleaseError wraps a failure for presentation, naming the stage
// it happened at. The original error stays reachable with errors.Is
// and errors.As.
func MakeReleaseError(stage string, err error) *deployerr.Error {
	if e, ok := err.(*deployerr.Error); ok {
		return e
	}
	what, ok := stageDescriptions[stage]
	if !ok {
		what = stage
	}
	typ := deployerr.Server
	kind := deployerr.KindOf(err)
	switch kind {
	case deployerr.NotFound:
		typ = deployerr.Missing
	case deployerr.AccessDenied, deployerr.InvalidDescriptor, deployerr.PreconditionFailed:
		typ = deployerr.User
	}
	help := `The release failed while ` + what + `, with this message:

    ` + err.Error() + `

`
	if hint, ok := kindHelp[kind]; ok {
		help += hint
	}
	return &deployerr.Error{
		Type: typ,
		Help: help,
		Err:  err,
	}
}
