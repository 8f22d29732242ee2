package errors

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestAs(t *testing.T) {
	presented := &Error{Type: Missing, Help: "check the repository name", Err: WithKind(NotFound, errors.New("RepositoryNotFoundException"))}
	wrapped := pkgerrors.Wrap(presented, "release")

	e, ok := As(wrapped)
	assert.True(t, ok)
	assert.True(t, e == presented)
	assert.True(t, IsMissing(wrapped))
	assert.True(t, errors.Is(wrapped, NotFound), "kind survives presentation")

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, IsMissing(&Error{Type: Server, Err: errors.New("throttled")}))
}

func TestWithKindKeepsCause(t *testing.T) {
	cause := fmt.Errorf("ClientException: Unable to describe task definition")
	err := WithKind(NotFound, cause)

	assert.True(t, errors.Is(err, NotFound))
	assert.False(t, errors.Is(err, AccessDenied))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, cause, pkgerrors.Cause(err))
	assert.Contains(t, err.Error(), "Unable to describe task definition")
}

func TestWithKindNil(t *testing.T) {
	assert.NoError(t, WithKind(NotFound, nil))
}

func TestKindThroughWrapping(t *testing.T) {
	specific := pkgerrors.Wrap(PreconditionFailed, "no target tag specified")
	err := &Error{
		Type: User,
		Err:  pkgerrors.Wrapf(specific, "rolling back %q", "web"),
	}

	assert.True(t, errors.Is(err, specific))
	assert.Equal(t, PreconditionFailed, KindOf(err))
	assert.Nil(t, KindOf(errors.New("unclassified")))
}

func TestKindOfOutermost(t *testing.T) {
	denied := WithKind(AccessDenied, errors.New("AccessDeniedException: not authorized to perform ecs:UpdateService"))
	err := WithKind(UpdateFailed, pkgerrors.Wrap(denied, "updating service prod/web"))
	assert.Equal(t, UpdateFailed, KindOf(pkgerrors.Wrap(err, "release")))
	assert.True(t, errors.Is(err, AccessDenied), "the cause's kind is still reachable")

	missing := WithKind(UpdateFailed, pkgerrors.Wrap(NotFound, "no such service"))
	assert.Equal(t, UpdateFailed, KindOf(missing))

	specific := pkgerrors.Wrap(NotFound, "task definition family not found")
	assert.Equal(t, NotFound, KindOf(WithKind(specific, errors.New("ClientException"))))
}
