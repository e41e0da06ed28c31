package deploy

import (
	"context"
	"errors"

	ferrors "git.home.luguber.info/inful/docdeploy/internal/foundation/errors"
)

var stageClasses = map[StageName]func() *ferrors.ErrorBuilder{
	StageBuildSite:         func() *ferrors.ErrorBuilder { return ferrors.BuildError("site build failed") },
	StageOpenSessions:      func() *ferrors.ErrorBuilder { return ferrors.RemoteError("could not open remote sessions") },
	StagePrepareTarget:     func() *ferrors.ErrorBuilder { return ferrors.RemoteError("could not prepare remote target directory") },
	StageTransfer:          func() *ferrors.ErrorBuilder { return ferrors.TransferError("file transfer failed") },
	StageFinalizeOwnership: func() *ferrors.ErrorBuilder { return ferrors.RemoteError("could not apply serving ownership") },
	StageInspectTarget:     func() *ferrors.ErrorBuilder { return ferrors.RemoteError("could not inspect remote target directory") },
}

// classifyStageError turns a stage failure into a fatal ClassifiedError
// carrying the stage name. Already classified errors keep their category.
func classifyStageError(stage StageName, err error) *ferrors.ClassifiedError {
	if err == nil {
		return nil
	}
	if classified, ok := ferrors.AsClassified(err); ok {
		if classified.Stage() == "" {
			return classified.WithContext(ferrors.ContextKeyStage, string(stage))
		}
		return classified
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ferrors.CanceledError("run canceled").
			WithCause(err).
			WithStage(string(stage)).
			Build()
	}
	builder := ferrors.InternalError("stage failed")
	if class, ok := stageClasses[stage]; ok {
		builder = class()
	}
	return builder.WithCause(err).WithStage(string(stage)).Build()
}
