// Package textutil provides the text processing primitives behind content
// fingerprinting: normalization (case folding, stopword stripping,
// whitespace collapse), token-frequency fingerprints, and the similarity
// measures used for near-duplicate detection.
//
// Two measures are combined: cosine similarity over token frequency vectors
// catches reordered or partially rewritten text, while character-bigram Dice
// similarity catches small inflection changes that token comparison misses
// ("learned" vs "learns"). Duplicate detection uses the maximum of the two.
package textutil
