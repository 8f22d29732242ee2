package main

import (
	"errors"
	"fmt"

	"github.com/fluxcd/ecsdeploy/pkg/rollout"
)

// Exit statuses.
const (
	exitOK        = 0
	exitFailure   = 1
	exitUsage     = 2
	exitUncertain = 3
)

type usageError struct {
	error
}

func newUsageError(msg string) usageError {
	return usageError{error: errors.New(msg)}
}

var errorWantedNoArgs = newUsageError("expected no (non-flag) arguments")
var errorInvalidOutputFormat = newUsageError("invalid output format specified")

// timedOutError means the service was updated, but had not settled by
// the deadline. It may yet.
type timedOutError struct {
	snapshot rollout.Snapshot
}

func (e *timedOutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s to stabilise; last seen: %s", e.snapshot.Service, e.snapshot)
}
