package descriptor

import (
	"context"
)

// Store reads and registers task definitions. Registration is
// append-only: nothing here edits or removes a registered revision.
type Store interface {
	// FetchLatest returns the highest registered revision of the
	// family. It fails with a NotFound kind if the family has never
	// been registered, and AccessDenied without permission.
	FetchLatest(ctx context.Context, family string) (Descriptor, error)
	// Register submits a candidate (with no registration-scoped
	// fields) and returns the revision assigned to it. It fails with
	// InvalidDescriptor if the candidate is rejected as malformed, and
	// RegistrationFailed otherwise; the platform's own error is kept as
	// the cause.
	Register(ctx context.Context, candidate Descriptor) (Ref, error)
}
