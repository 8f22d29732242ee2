// Package image names container images: repositories (Name), tagged
// images in them (Ref), and what the registry knows about each tag
// (Info).
package image

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// LatestTag is the floating tag every build is also pushed under. It
// moves with each push, so it never identifies a build.
const LatestTag = "latest"

var (
	ErrInvalidReference   = errors.New("invalid image reference")
	ErrBlankReference     = errors.Wrap(ErrInvalidReference, "blank image reference")
	ErrMalformedReference = errors.Wrap(ErrInvalidReference, "expected [<registry>/]<repository>[:<tag>]")
	ErrDigestReference    = errors.Wrap(ErrInvalidReference, "references by digest are not supported; use a tag")
)

var domainRegexp = func() *regexp.Regexp {
	component := `([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9-]*[a-zA-Z0-9])`
	return regexp.MustCompile(fmt.Sprintf(`^(localhost|(%s([.]%s)+))(:[0-9]+)?$`, component, component))
}()

// Name is an image repository, e.g.,
//
//	app
//	123456789012.dkr.ecr.eu-west-1.amazonaws.com/team/app
//	localhost:5000/app
//
// Domain is empty when the repository is given bare; the registry
// resolves it to a qualified name.
type Name struct {
	Domain, Image string
}

func (n Name) String() string {
	if n.Image == "" {
		return ""
	}
	if n.Domain == "" {
		return n.Image
	}
	return n.Domain + "/" + n.Image
}

// Qualified is true if the name carries a registry domain, i.e., it
// can be put in a task definition as-is.
func (n Name) Qualified() bool {
	return n.Domain != ""
}

func (n Name) ToRef(tag string) Ref {
	return Ref{Name: n, Tag: tag}
}

// ParseName parses a repository name, which must not have a tag.
func ParseName(s string) (Name, error) {
	ref, err := ParseRef(s)
	if err != nil {
		return Name{}, err
	}
	if ref.Tag != "" {
		return Name{}, errors.Wrapf(ErrMalformedReference, "%q: a repository name has no tag", s)
	}
	return ref.Name, nil
}

// Ref is a tagged image, e.g., `app:3f2a9c1`. An empty Tag means the
// registry's default, i.e., `latest`.
type Ref struct {
	Name
	Tag string
}

func (r Ref) String() string {
	if r.Tag == "" {
		return r.Name.String()
	}
	return r.Name.String() + ":" + r.Tag
}

// Mutable is true if the tag can be moved to a different build by a
// later push: an empty tag (implicitly `latest`) or `latest` itself.
func (r Ref) Mutable() bool {
	return r.Tag == "" || r.Tag == LatestTag
}

// ParseRef parses an image reference. Only the parts of the docker
// reference grammar that task definitions use are accepted: an
// optional registry domain, a repository path, and an optional tag.
func ParseRef(s string) (Ref, error) {
	if s == "" {
		return Ref{}, ErrBlankReference
	}
	if strings.Contains(s, "@") {
		return Ref{}, errors.Wrapf(ErrDigestReference, "%q", s)
	}
	if strings.HasPrefix(s, "/") || strings.HasSuffix(s, "/") || strings.Contains(s, "//") {
		return Ref{}, errors.Wrapf(ErrMalformedReference, "%q", s)
	}

	var ref Ref
	path := s
	if i := strings.Index(s, "/"); i > 0 {
		// the first element is a domain if it looks like one, or if
		// there are more than two elements
		first := s[:i]
		if domainRegexp.MatchString(first) || strings.Count(s, "/") > 1 {
			ref.Domain, path = first, s[i+1:]
		}
	}

	switch parts := strings.Split(path, ":"); len(parts) {
	case 1:
		ref.Image = path
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Ref{}, errors.Wrapf(ErrMalformedReference, "%q", s)
		}
		ref.Image, ref.Tag = parts[0], parts[1]
	default:
		return Ref{}, errors.Wrapf(ErrMalformedReference, "%q", s)
	}
	return ref, nil
}

// A Ref is encoded as its string form, in JSON and elsewhere.
func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Ref) UnmarshalText(text []byte) (err error) {
	*r, err = ParseRef(string(text))
	return err
}

// Info is what the registry reports about one tag.
type Info struct {
	ID Ref
	// manifest digest; tags of the same build share it
	Digest    string
	PushedAt  time.Time
	SizeBytes int64
}

type infoJSON struct {
	Ref       Ref        `json:"ref"`
	Digest    string     `json:"digest,omitempty"`
	PushedAt  *time.Time `json:"pushedAt,omitempty"`
	SizeBytes int64      `json:"sizeBytes,omitempty"`
}

// MarshalJSON leaves out an unknown push time, rather than writing
// the zero time.
func (i Info) MarshalJSON() ([]byte, error) {
	enc := infoJSON{Ref: i.ID, Digest: i.Digest, SizeBytes: i.SizeBytes}
	if !i.PushedAt.IsZero() {
		t := i.PushedAt.UTC()
		enc.PushedAt = &t
	}
	return json.Marshal(enc)
}

func (i *Info) UnmarshalJSON(b []byte) error {
	var dec infoJSON
	if err := json.Unmarshal(b, &dec); err != nil {
		return err
	}
	*i = Info{ID: dec.Ref, Digest: dec.Digest, SizeBytes: dec.SizeBytes}
	if dec.PushedAt != nil {
		i.PushedAt = *dec.PushedAt
	}
	return nil
}

// OlderByPushed orders by push time, earliest first. Tags pushed at
// the same time are ordered by tag, so the order is total.
func OlderByPushed(a, b Info) bool {
	if a.PushedAt.Equal(b.PushedAt) {
		return a.ID.Tag < b.ID.Tag
	}
	return a.PushedAt.Before(b.PushedAt)
}

// OlderBySemver orders by version, lowest first. Tags that are not
// versions come before all that are, in tag order. Of two tags for
// the same version, e.g., `1.10` and `1.10.0`, the longer comes last.
func OlderBySemver(a, b Info) bool {
	return compareVersions(a.ID.Tag, b.ID.Tag) < 0
}

func compareVersions(a, b string) int {
	av, aerr := semver.NewVersion(a)
	bv, berr := semver.NewVersion(b)
	switch {
	case aerr != nil && berr != nil:
		return strings.Compare(a, b)
	case aerr != nil:
		return -1
	case berr != nil:
		return 1
	}
	if c := av.Compare(bv); c != 0 {
		return c
	}
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// Sort orders infos in place by less; by push time if less is nil.
func Sort(infos []Info, less func(a, b Info) bool) {
	if less == nil {
		less = OlderByPushed
	}
	sort.SliceStable(infos, func(i, j int) bool {
		return less(infos[i], infos[j])
	})
}
