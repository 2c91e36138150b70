// Package language maps language codes and word forms to the normalized
// 2-letter codes used throughout the pipeline, and carries per-language
// narration pacing used for speech cost estimation.
package language
