package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// step is one unit of a multi-write operation. There is no transaction
// spanning the backend calls, so each step that can be undone carries a
// compensate func; on failure the runner walks the completed steps
// backwards and undoes them.
type step struct {
	name       string
	apply      func(ctx context.Context) error
	compensate func(ctx context.Context) error // nil when the step cannot be undone
}

func runSteps(ctx context.Context, logger *slog.Logger, steps []step) error {
	var done []step
	for _, st := range steps {
		if err := st.apply(ctx); err != nil {
			err = fmt.Errorf("%s: %w", st.name, err)
			if comp := compensate(ctx, logger, done); comp != nil {
				return errors.Join(err, comp)
			}
			return err
		}
		done = append(done, st)
	}
	return nil
}

func compensate(ctx context.Context, logger *slog.Logger, done []step) error {
	var errs []error
	for i := len(done) - 1; i >= 0; i-- {
		st := done[i]
		if st.compensate == nil {
			continue
		}
		if err := st.compensate(ctx); err != nil {
			logger.ErrorContext(ctx, "compensation failed, manual cleanup needed",
				"step", st.name, "error", err)
			errs = append(errs, fmt.Errorf("undo %s: %w", st.name, err))
		}
	}
	return errors.Join(errs...)
}
