package deploy

import (
	"context"
	"errors"
	"time"

	ferrors "git.home.luguber.info/inful/docdeploy/internal/foundation/errors"
	"git.home.luguber.info/inful/docdeploy/internal/logfields"
	"git.home.luguber.info/inful/docdeploy/internal/metrics"
)

// runStages executes stages in order, recording timing and stopping on the
// first error.
func runStages(ctx context.Context, rs *runState, stages []StageDef) error {
	for _, st := range stages {
		if ctxErr := ctx.Err(); ctxErr != nil {
			rs.report.recordStage(st.Name, 0, metrics.ResultCanceled, rs.recorder)
			return classifyStageError(st.Name, ctxErr)
		}

		logger := rs.logger.With(logfields.Stage(string(st.Name)))
		logger.Debug("Stage started")
		t0 := time.Now()
		err := st.Fn(ctx, rs)
		dur := time.Since(t0)

		if err != nil {
			classified := classifyStageError(st.Name, err)
			result := metrics.ResultFatal
			if classified.IsCategory(ferrors.CategoryCanceled) {
				result = metrics.ResultCanceled
			}
			rs.report.recordStage(st.Name, dur, result, rs.recorder)
			logger.Debug("Stage failed", logfields.Duration(dur), logfields.Error(err))
			return classified
		}

		rs.report.recordStage(st.Name, dur, metrics.ResultSuccess, rs.recorder)
		logger.Debug("Stage completed", logfields.Duration(dur))
	}
	return nil
}

func isCanceled(err error) bool {
	return ferrors.HasCategory(err, ferrors.CategoryCanceled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
