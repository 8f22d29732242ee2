// Package registry looks up the images a release can point at.
package registry

import (
	"context"

	"github.com/pkg/errors"

	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
	"github.com/fluxcd/ecsdeploy/pkg/image"
)

var ErrRepositoryNotFound = errors.Wrap(deployerr.NotFound, "image repository not found")

// Registry is the read-only view of an image registry used when
// releasing.
type Registry interface {
	// Repository resolves a repository name (e.g., `app`) to the fully
	// qualified name images are pulled by.
	Repository(ctx context.Context, name string) (image.Name, error)
	// ImageExists reports whether the tag has been pushed to the
	// repository.
	ImageExists(ctx context.Context, repo image.Name, tag string) (bool, error)
	// Images lists every tagged image in the repository, one entry per
	// tag, in no particular order.
	Images(ctx context.Context, repo image.Name) ([]image.Info, error)
}

// Versions lists the repository's tagged images, oldest push first.
func Versions(ctx context.Context, reg Registry, repo image.Name) ([]image.Info, error) {
	infos, err := reg.Images(ctx, repo)
	if err != nil {
		return nil, err
	}
	image.Sort(infos, image.OlderByPushed)
	return infos, nil
}
