package stage

import (
	"encoding/json"
	"fmt"
	"strings"

	"guidora/internal/pipeline"
)

// Artifact keys shared by the stage handlers and operator tooling.
const (
	ArtifactSource      = "source"
	ArtifactScript      = "script"
	ArtifactTranslation = "translation"
	ArtifactAudio       = "audio"
	ArtifactVideo       = "video"
	ArtifactThumbnail   = "thumbnail"
)

// Artifacts decodes the unit's artifact references. A unit with no
// artifacts yet yields an empty map.
func Artifacts(unit *pipeline.Unit) (map[string]string, error) {
	if strings.TrimSpace(unit.ArtifactsJSON) == "" {
		return map[string]string{}, nil
	}
	refs := make(map[string]string)
	if err := json.Unmarshal([]byte(unit.ArtifactsJSON), &refs); err != nil {
		return nil, fmt.Errorf("decode artifacts for unit %s: %w", unit.ID, err)
	}
	return refs, nil
}

// EncodeArtifacts serializes artifact references for storage.
func EncodeArtifacts(refs map[string]string) (string, error) {
	encoded, err := json.Marshal(refs)
	if err != nil {
		return "", fmt.Errorf("encode artifacts: %w", err)
	}
	return string(encoded), nil
}

// SetArtifact decodes the unit's artifacts, sets one key, and returns the
// updated JSON along with the updated map.
func SetArtifact(unit *pipeline.Unit, key, ref string) (string, map[string]string, error) {
	refs, err := Artifacts(unit)
	if err != nil {
		return "", nil, err
	}
	refs[key] = ref
	encoded, err := EncodeArtifacts(refs)
	if err != nil {
		return "", nil, err
	}
	return encoded, refs, nil
}
