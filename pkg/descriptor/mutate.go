package descriptor

import (
	"strings"

	"github.com/pkg/errors"

	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
	"github.com/fluxcd/ecsdeploy/pkg/image"
)

// Selector designates the one container whose image a release
// replaces. With Container set, the container of that name is used;
// with it empty, the first container definition is used. Other
// containers (sidecars, log routers) are never touched.
type Selector struct {
	Container string
}

func (s Selector) String() string {
	if s.Container == "" {
		return "<first container>"
	}
	return s.Container
}

// index finds the designated container in specs.
func (s Selector) index(specs []ContainerSpec) (int, error) {
	if len(specs) == 0 {
		return -1, ErrNoContainers
	}
	if s.Container == "" {
		return 0, nil
	}
	for i, c := range specs {
		if c.Name == s.Container {
			return i, nil
		}
	}
	return -1, errors.Wrapf(ErrContainerNotFound, "no container named %q", s.Container)
}

// WithImage produces a candidate for registration from base: a deep
// copy with the designated container's image set to ref, and all
// registration-scoped fields removed. base is not modified.
func WithImage(base Descriptor, ref image.Ref, sel Selector) (Descriptor, error) {
	idx, err := sel.index(base.Containers())
	if err != nil {
		return Descriptor{}, errors.Wrapf(err, "updating image in %s", base)
	}

	candidate := base.Copy()
	Strip(candidate)
	if _, err := candidate.containers()[idx].Set(ref.String(), "image"); err != nil {
		return Descriptor{}, errors.Wrapf(err, "setting image of container %d in %s", idx, base)
	}
	return candidate, nil
}

// Strip deletes the registration-scoped fields from d, in place.
func Strip(d Descriptor) {
	if d.doc == nil {
		return
	}
	for _, f := range RegistrationFields {
		if d.doc.Exists(f) {
			d.doc.Delete(f)
		}
	}
}

// Validate checks a candidate for the problems the orchestrator would
// reject it for, so they are reported without a round trip.
func Validate(candidate Descriptor) error {
	if candidate.Family() == "" {
		return errors.Wrap(deployerr.InvalidDescriptor, "descriptor has no family")
	}
	specs := candidate.Containers()
	if len(specs) == 0 {
		return errors.Wrapf(ErrNoContainers, "validating %s", candidate)
	}
	for i, c := range specs {
		if c.Name == "" || c.Image == "" {
			return errors.Wrapf(deployerr.InvalidDescriptor, "container %d in %s needs both a name and an image", i, candidate)
		}
	}
	if scoped := candidate.Scoped(); len(scoped) > 0 {
		return errors.Wrapf(ErrRegistrationScoped, "%s has %s", candidate, strings.Join(scoped, ", "))
	}
	return nil
}
