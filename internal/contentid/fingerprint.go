package contentid

import (
	"crypto/sha256"
	"encoding/hex"

	"guidora/internal/textutil"
)

// Signature is a deterministic uniqueness fingerprint for one text.
type Signature struct {
	// Hash is the short identity used for exact-match lookups.
	Hash string
	// Normalized is the normalized text the hash was computed from; kept so
	// new candidates can be compared for near-duplicate similarity.
	Normalized string
}

// ComputeFingerprint derives a signature from text. Identical normalized
// input always produces an identical signature; the function reads no
// external state.
func ComputeFingerprint(text string) Signature {
	normalized := textutil.Normalize(text)
	sum := sha256.Sum256([]byte(normalized))
	return Signature{
		Hash:       hex.EncodeToString(sum[:])[:16],
		Normalized: normalized,
	}
}
