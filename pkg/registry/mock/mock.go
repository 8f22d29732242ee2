package mock

import (
	"context"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"

	"github.com/fluxcd/ecsdeploy/pkg/image"
	"github.com/fluxcd/ecsdeploy/pkg/registry"
)

// Registry serves a fixed set of images from one repository, and
// counts the calls made to it.
type Registry struct {
	Repo  image.Name
	Infos []image.Info
	Err   error

	RepositoryCalls int
	ExistsCalls     int
	ImagesCalls     int
}

var _ registry.Registry = &Registry{}

var epoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// NewRegistry makes a registry for the repo, holding an image for each
// tag with push times one minute apart, in the order given.
func NewRegistry(repo image.Name, tags ...string) *Registry {
	r := &Registry{Repo: repo}
	for _, tag := range tags {
		r.Push(tag)
	}
	return r
}

// Push adds an image for the tag, pushed a minute after the last one.
func (m *Registry) Push(tag string) image.Info {
	info := image.Info{
		ID:       m.Repo.ToRef(tag),
		Digest:   digest.FromString(tag).String(),
		PushedAt: epoch.Add(time.Duration(len(m.Infos)) * time.Minute),
	}
	m.Infos = append(m.Infos, info)
	return info
}

func (m *Registry) Repository(ctx context.Context, name string) (image.Name, error) {
	m.RepositoryCalls++
	if m.Err != nil {
		return image.Name{}, m.Err
	}
	if name != m.Repo.Image && name != m.Repo.String() {
		return image.Name{}, errors.Wrapf(registry.ErrRepositoryNotFound, "describing repository %q", name)
	}
	return m.Repo, nil
}

func (m *Registry) ImageExists(ctx context.Context, repo image.Name, tag string) (bool, error) {
	m.ExistsCalls++
	if m.Err != nil {
		return false, m.Err
	}
	for _, i := range m.Infos {
		if i.ID.Name == repo && i.ID.Tag == tag {
			return true, nil
		}
	}
	return false, nil
}

func (m *Registry) Images(ctx context.Context, repo image.Name) ([]image.Info, error) {
	m.ImagesCalls++
	if m.Err != nil {
		return nil, m.Err
	}
	var result []image.Info
	for _, i := range m.Infos {
		// include only if it's the same repository in the same place
		if i.ID.Name == repo {
			result = append(result, i)
		}
	}
	return result, nil
}
