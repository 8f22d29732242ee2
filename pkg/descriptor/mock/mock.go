package mock

import (
	"context"
	"sync"

	"github.com/Jeffail/gabs"
	"github.com/pkg/errors"

	"github.com/fluxcd/ecsdeploy/pkg/descriptor"
	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
)

// Store is an in-memory descriptor.Store. Registered revisions are
// kept per family, in order, the way the orchestrator keeps them.
type Store struct {
	mu        sync.Mutex
	families  map[string][]descriptor.Descriptor
	Fetches   int
	Registers int

	FetchErr    error
	RegisterErr error
}

var _ descriptor.Store = &Store{}

func NewStore() *Store {
	return &Store{families: map[string][]descriptor.Descriptor{}}
}

// Seed registers a descriptor as-is, bypassing validation, e.g., to
// set up history. The revision is taken from the position in the
// family's history.
func (s *Store) Seed(d descriptor.Descriptor) descriptor.Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.add(d.Copy())
}

// History returns the registered descriptors of a family, oldest first.
func (s *Store) History(family string) []descriptor.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]descriptor.Descriptor(nil), s.families[family]...)
}

func (s *Store) FetchLatest(ctx context.Context, family string) (descriptor.Descriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Fetches++
	if s.FetchErr != nil {
		return descriptor.Descriptor{}, s.FetchErr
	}
	revs := s.families[family]
	if len(revs) == 0 {
		return descriptor.Descriptor{}, errors.Wrapf(descriptor.ErrFamilyNotFound, "family %q", family)
	}
	return revs[len(revs)-1].Copy(), nil
}

func (s *Store) Register(ctx context.Context, candidate descriptor.Descriptor) (descriptor.Ref, error) {
	if err := descriptor.Validate(candidate); err != nil {
		return descriptor.Ref{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Registers++
	if s.RegisterErr != nil {
		return descriptor.Ref{}, deployerr.WithKind(deployerr.RegistrationFailed, s.RegisterErr)
	}
	return s.add(candidate.Copy()), nil
}

func (s *Store) add(d descriptor.Descriptor) descriptor.Ref {
	if s.families == nil {
		s.families = map[string][]descriptor.Descriptor{}
	}
	family := d.Family()
	rev := int64(len(s.families[family]) + 1)
	doc, err := gabs.ParseJSON(d.Bytes())
	if err != nil {
		panic(err)
	}
	doc.Set(float64(rev), "revision")
	doc.Set("ACTIVE", "status")
	registered, err := descriptor.Parse(doc.Bytes())
	if err != nil {
		panic(err)
	}
	s.families[family] = append(s.families[family], registered)
	return registered.Ref()
}
