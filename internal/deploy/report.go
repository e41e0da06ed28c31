package deploy

import (
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docdeploy/internal/logfields"
	"git.home.luguber.info/inful/docdeploy/internal/metrics"
)

// Report is the per-run record of stage timings and results.
type Report struct {
	RunID          string
	Started        time.Time
	Finished       time.Time
	Stages         []StageName
	StageDurations map[StageName]time.Duration
	StageResults   map[StageName]metrics.ResultLabel
	Outcome        metrics.OutcomeLabel
	TargetExisted  bool
	Err            error
}

func newReport(runID string, now time.Time) *Report {
	return &Report{
		RunID:          runID,
		Started:        now,
		StageDurations: make(map[StageName]time.Duration),
		StageResults:   make(map[StageName]metrics.ResultLabel),
	}
}

func (r *Report) recordStage(stage StageName, d time.Duration, result metrics.ResultLabel, recorder metrics.Recorder) {
	r.Stages = append(r.Stages, stage)
	r.StageDurations[stage] = d
	r.StageResults[stage] = result
	recorder.ObserveStageDuration(string(stage), d)
	recorder.IncStageResult(string(stage), result)
}

func (r *Report) finish(err error, now time.Time, recorder metrics.Recorder) {
	r.Finished = now
	r.Err = err
	switch {
	case err == nil:
		r.Outcome = metrics.OutcomeSuccess
	case isCanceled(err):
		r.Outcome = metrics.OutcomeCanceled
	default:
		r.Outcome = metrics.OutcomeFailed
	}
	recorder.ObserveRunDuration(r.Duration())
	recorder.IncRunOutcome(r.Outcome)
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.Finished.IsZero() {
		return 0
	}
	return r.Finished.Sub(r.Started)
}

// LogValue summarizes the run for structured logs.
func (r *Report) LogValue() slog.Value {
	attrs := []slog.Attr{
		logfields.RunID(r.RunID),
		slog.String("outcome", string(r.Outcome)),
		logfields.Duration(r.Duration()),
	}
	for _, stage := range r.Stages {
		attrs = append(attrs, slog.Group(string(stage),
			slog.String("result", string(r.StageResults[stage])),
			logfields.Duration(r.StageDurations[stage])))
	}
	return slog.GroupValue(attrs...)
}
