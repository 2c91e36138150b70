package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"guidora/internal/logging"
	"guidora/internal/pipeline"
	"guidora/internal/stage"
)

// errAssetPending signals that an externally produced artifact has not
// appeared yet; the unit simply waits for a later poll.
var errAssetPending = errors.New("external asset not yet available")

// AssetWatcher advances a unit once an external collaborator drops the
// expected artifact file into the unit's artifact directory. Video and
// thumbnail production happen outside this process; the watcher is the
// ingestion point.
type AssetWatcher struct {
	name         string
	artifactsDir string
	artifactKey  string
	filenames    []string
	target       pipeline.Stage
	store        *pipeline.Store
	logger       *slog.Logger
}

// NewVideoWatcher ingests rendered videos, moving units from
// SynthesizedAudio to VideoReady.
func NewVideoWatcher(store *pipeline.Store, artifactsDir string, logger *slog.Logger) *AssetWatcher {
	return &AssetWatcher{
		name:         "video",
		artifactsDir: artifactsDir,
		artifactKey:  stage.ArtifactVideo,
		filenames:    []string{"video.mp4", "video.webm"},
		target:       pipeline.StageVideoReady,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "video-watcher"),
	}
}

// NewThumbnailWatcher ingests thumbnails, moving units from VideoReady to
// ThumbnailReady.
func NewThumbnailWatcher(store *pipeline.Store, artifactsDir string, logger *slog.Logger) *AssetWatcher {
	return &AssetWatcher{
		name:         "thumbnail",
		artifactsDir: artifactsDir,
		artifactKey:  stage.ArtifactThumbnail,
		filenames:    []string{"thumbnail.jpg", "thumbnail.png"},
		target:       pipeline.StageThumbnailReady,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "thumbnail-watcher"),
	}
}

// Target implements stage.Handler.
func (w *AssetWatcher) Target() pipeline.Stage { return w.target }

// Prepare implements stage.Handler.
func (w *AssetWatcher) Prepare(_ context.Context, _ *pipeline.Unit) error { return nil }

// Execute records the artifact when present and reports errAssetPending
// otherwise.
func (w *AssetWatcher) Execute(ctx context.Context, unit *pipeline.Unit) error {
	path := w.find(unit.ID)
	if path == "" {
		return errAssetPending
	}
	encoded, _, err := stage.SetArtifact(unit, w.artifactKey, path)
	if err != nil {
		return err
	}
	if err := w.store.SetArtifacts(ctx, unit.ID, encoded); err != nil {
		return err
	}
	unit.ArtifactsJSON = encoded
	w.logger.Info("external asset ingested",
		logging.String(logging.FieldUnitID, unit.ID),
		logging.String("asset", w.name),
		logging.String("path", path),
	)
	return nil
}

// HealthCheck implements stage.Handler.
func (w *AssetWatcher) HealthCheck(_ context.Context) stage.Health {
	if info, err := os.Stat(w.artifactsDir); err != nil || !info.IsDir() {
		return stage.Unhealthy(w.name+"-watcher", fmt.Sprintf("artifacts dir %s unavailable", w.artifactsDir))
	}
	return stage.Healthy(w.name + "-watcher")
}

func (w *AssetWatcher) find(unitID string) string {
	for _, name := range w.filenames {
		path := filepath.Join(w.artifactsDir, unitID, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() && info.Size() > 0 {
			return path
		}
	}
	return ""
}

// ReadinessChecker moves units from ThumbnailReady to ReadyToPublish once
// every required artifact reference is recorded.
type ReadinessChecker struct {
	logger *slog.Logger
}

// NewReadinessChecker builds the final pre-publish gate.
func NewReadinessChecker(logger *slog.Logger) *ReadinessChecker {
	return &ReadinessChecker{logger: logging.NewComponentLogger(logger, "readiness")}
}

// Target implements stage.Handler.
func (r *ReadinessChecker) Target() pipeline.Stage { return pipeline.StageReadyToPublish }

// Prepare implements stage.Handler.
func (r *ReadinessChecker) Prepare(_ context.Context, _ *pipeline.Unit) error { return nil }

// Execute verifies the artifact set is complete.
func (r *ReadinessChecker) Execute(_ context.Context, unit *pipeline.Unit) error {
	refs, err := stage.Artifacts(unit)
	if err != nil {
		return err
	}
	for _, key := range []string{stage.ArtifactAudio, stage.ArtifactVideo, stage.ArtifactThumbnail} {
		if refs[key] == "" {
			return fmt.Errorf("unit %s missing %s artifact before publish", unit.ID, key)
		}
	}
	return nil
}

// HealthCheck implements stage.Handler.
func (r *ReadinessChecker) HealthCheck(_ context.Context) stage.Health {
	return stage.Healthy("readiness")
}
