// Package contentid enforces content uniqueness.
//
// Every candidate content unit gets a deterministic fingerprint over its
// normalized text. Registration checks the candidate against every live
// corpus signature and rejects near-duplicates above the configured
// similarity threshold. The check and the registration are one critical
// section, so two concurrent near-duplicates can never both be accepted:
// whichever completes registration first wins.
package contentid
