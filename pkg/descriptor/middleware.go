package descriptor

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// Instrument returns a Store that logs every call to next, including
// parameters, result, and duration.
func Instrument(next Store, logger log.Logger) Store {
	return &loggingStore{
		next:   next,
		logger: logger,
	}
}

type loggingStore struct {
	next   Store
	logger log.Logger
}

func (mw *loggingStore) FetchLatest(ctx context.Context, family string) (d Descriptor, err error) {
	defer func(begin time.Time) {
		level.Debug(mw.logger).Log(
			"method", "FetchLatest",
			"family", family,
			"revision", d.Revision(),
			"err", err,
			"took", time.Since(begin),
		)
	}(time.Now())
	return mw.next.FetchLatest(ctx, family)
}

func (mw *loggingStore) Register(ctx context.Context, candidate Descriptor) (ref Ref, err error) {
	defer func(begin time.Time) {
		level.Debug(mw.logger).Log(
			"method", "Register",
			"family", candidate.Family(),
			"containers", len(candidate.Containers()),
			"revision", ref.Revision,
			"err", err,
			"took", time.Since(begin),
		)
	}(time.Now())
	return mw.next.Register(ctx, candidate)
}
