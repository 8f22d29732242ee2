package git

import (
	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
)

func NotARevisionError(dir string, actual error) error {
	if dir == "" {
		dir = "the current directory"
	}
	return &deployerr.Error{
		Type: deployerr.User,
		Err:  actual,
		Help: `Could not work out which revision to release

Without --tag, the image tag is taken to be the short hash of the
commit checked out in ` + dir + `, but git could not
tell us what that is. This may be because it is not a git
repository, has no commits yet, or git is not installed.

Either run the command from the checkout the image was built from,
or give the tag explicitly:

    ecsdeploy release --tag <tag>

`,
	}
}
