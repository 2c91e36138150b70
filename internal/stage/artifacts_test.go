package stage_test

import (
	"testing"

	"guidora/internal/pipeline"
	"guidora/internal/stage"
)

func TestArtifactsEmptyUnit(t *testing.T) {
	refs, err := stage.Artifacts(&pipeline.Unit{ID: "u1"})
	if err != nil {
		t.Fatalf("Artifacts: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("refs = %v, want empty map", refs)
	}
}

func TestSetArtifactAccumulates(t *testing.T) {
	unit := &pipeline.Unit{ID: "u1"}

	encoded, refs, err := stage.SetArtifact(unit, stage.ArtifactScript, "/tmp/script.txt")
	if err != nil {
		t.Fatalf("SetArtifact: %v", err)
	}
	if refs[stage.ArtifactScript] != "/tmp/script.txt" {
		t.Fatalf("refs = %v", refs)
	}

	unit.ArtifactsJSON = encoded
	_, refs, err = stage.SetArtifact(unit, stage.ArtifactAudio, "/tmp/narration.mp3")
	if err != nil {
		t.Fatalf("SetArtifact: %v", err)
	}
	if refs[stage.ArtifactScript] != "/tmp/script.txt" || refs[stage.ArtifactAudio] != "/tmp/narration.mp3" {
		t.Fatalf("refs = %v, want both artifacts", refs)
	}
}

func TestArtifactsRejectsMalformedJSON(t *testing.T) {
	unit := &pipeline.Unit{ID: "u1", ArtifactsJSON: "{not json"}
	if _, err := stage.Artifacts(unit); err == nil {
		t.Fatal("expected decode error")
	}
}
