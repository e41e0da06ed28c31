package deploy

import "context"

// StageName identifies one step of a run.
type StageName string

// Canonical stage names.
const (
	StageBuildSite         StageName = "build_site"
	StageOpenSessions      StageName = "open_sessions"
	StagePrepareTarget     StageName = "prepare_target"
	StageTransfer          StageName = "transfer"
	StageFinalizeOwnership StageName = "finalize_ownership"
	StageInspectTarget     StageName = "inspect_target"
)

// Stage is the function executed for a stage.
type Stage func(ctx context.Context, rs *runState) error

// StageDef pairs a stage name with its executing function.
type StageDef struct {
	Name StageName
	Fn   Stage
}
