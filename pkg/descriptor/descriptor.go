// Package descriptor models task definitions: the immutable, versioned
// configuration a service runs. A descriptor is kept as the JSON
// document the orchestrator returns, so fields this package knows
// nothing about survive a fetch, mutate and register round trip.
package descriptor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs"
	"github.com/pkg/errors"

	deployerr "github.com/fluxcd/ecsdeploy/pkg/errors"
)

const (
	fieldFamily     = "family"
	fieldRevision   = "revision"
	fieldContainers = "containerDefinitions"
)

// RegistrationFields are assigned by the orchestrator when a
// descriptor is registered, or bind it to where it was placed. They
// must be stripped before a registered descriptor is used as the
// template for a new one.
var RegistrationFields = []string{
	"taskDefinitionArn",
	"revision",
	"status",
	"requiresAttributes",
	"compatibilities",
	"registeredAt",
	"registeredBy",
	"deregisteredAt",
	"placementConstraints",
}

var (
	ErrNoContainers       = errors.Wrap(deployerr.InvalidDescriptor, "descriptor has no container definitions")
	ErrContainerNotFound  = errors.Wrap(deployerr.InvalidDescriptor, "container not found in descriptor")
	ErrRegistrationScoped = errors.Wrap(deployerr.InvalidDescriptor, "descriptor carries registration-scoped fields")
	ErrFamilyNotFound     = errors.Wrap(deployerr.NotFound, "task definition family not found")
)

// Ref identifies one registered revision of a family.
type Ref struct {
	Family   string
	Revision int64
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%d", r.Family, r.Revision)
}

// ParseRef accepts `family:revision`, or a task definition ARN ending
// in it.
func ParseRef(s string) (Ref, error) {
	if i := strings.LastIndex(s, "/"); i >= 0 && strings.HasPrefix(s, "arn:") {
		s = s[i+1:]
	}
	i := strings.LastIndex(s, ":")
	if i <= 0 || i == len(s)-1 {
		return Ref{}, fmt.Errorf("expected <family>:<revision>, got %q", s)
	}
	rev, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil || rev <= 0 {
		return Ref{}, fmt.Errorf("invalid revision in %q", s)
	}
	return Ref{Family: s[:i], Revision: rev}, nil
}

// ContainerSpec is the part of a container definition we look at.
type ContainerSpec struct {
	Name              string
	Image             string
	CPU               int64
	Memory            int64
	MemoryReservation int64
	Essential         bool
}

// Descriptor is one task definition, registered or candidate.
type Descriptor struct {
	doc *gabs.Container
}

// Parse reads a task definition document.
func Parse(data []byte) (Descriptor, error) {
	doc, err := gabs.ParseJSON(data)
	if err != nil {
		return Descriptor{}, errors.Wrap(err, "parsing task definition")
	}
	if _, ok := doc.Data().(map[string]interface{}); !ok {
		return Descriptor{}, errors.New("parsing task definition: expected a JSON object")
	}
	return Descriptor{doc: doc}, nil
}

// MustParse is Parse for documents known to be well-formed, e.g., in
// tests.
func MustParse(data string) Descriptor {
	d, err := Parse([]byte(data))
	if err != nil {
		panic(err)
	}
	return d
}

func (d Descriptor) Family() string {
	s, _ := d.field(fieldFamily).(string)
	return s
}

// Revision is zero for a candidate that has not been registered.
func (d Descriptor) Revision() int64 {
	f, _ := d.field(fieldRevision).(float64)
	return int64(f)
}

func (d Descriptor) Ref() Ref {
	return Ref{Family: d.Family(), Revision: d.Revision()}
}

// Containers lists the container definitions in order.
func (d Descriptor) Containers() []ContainerSpec {
	var specs []ContainerSpec
	for _, c := range d.containers() {
		m, _ := c.Data().(map[string]interface{})
		spec := ContainerSpec{}
		spec.Name, _ = m["name"].(string)
		spec.Image, _ = m["image"].(string)
		spec.CPU = asInt(m["cpu"])
		spec.Memory = asInt(m["memory"])
		spec.MemoryReservation = asInt(m["memoryReservation"])
		spec.Essential, _ = m["essential"].(bool)
		specs = append(specs, spec)
	}
	return specs
}

// Scoped returns the registration-scoped fields present in d.
func (d Descriptor) Scoped() []string {
	var present []string
	if d.doc == nil {
		return nil
	}
	for _, f := range RegistrationFields {
		if d.doc.Exists(f) {
			present = append(present, f)
		}
	}
	return present
}

// Copy returns a deep copy; changes to it do not affect d.
func (d Descriptor) Copy() Descriptor {
	if d.doc == nil {
		return Descriptor{}
	}
	doc, err := gabs.ParseJSON(d.doc.Bytes())
	if err != nil {
		// d.doc was itself parsed from JSON
		panic(err)
	}
	return Descriptor{doc: doc}
}

// Bytes is the JSON document.
func (d Descriptor) Bytes() []byte {
	if d.doc == nil {
		return []byte("{}")
	}
	return d.doc.Bytes()
}

// Document exposes the decoded document, for comparison.
func (d Descriptor) Document() map[string]interface{} {
	if d.doc == nil {
		return nil
	}
	m, _ := d.doc.Data().(map[string]interface{})
	return m
}

func (d Descriptor) String() string {
	if d.doc == nil {
		return "<empty descriptor>"
	}
	if rev := d.Revision(); rev > 0 {
		return d.Ref().String()
	}
	return d.Family() + " (unregistered)"
}

func (d Descriptor) field(name string) interface{} {
	if d.doc == nil {
		return nil
	}
	return d.doc.Search(name).Data()
}

func (d Descriptor) containers() []*gabs.Container {
	if d.doc == nil || !d.doc.Exists(fieldContainers) {
		return nil
	}
	children, err := d.doc.Search(fieldContainers).Children()
	if err != nil {
		return nil
	}
	return children
}

func asInt(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}
