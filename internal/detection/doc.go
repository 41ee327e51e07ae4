// Package detection decides whether OCR output for a variant matches the
// known text of its source image.
//
// # Validation tiers
//
// Validate applies increasingly permissive rules and stops at the first
// match:
//
//  1. Exact: the lowercased ground truth is one of the tokens.
//  2. Subset: every word of the ground truth is one of the tokens.
//  3. Partial: the tokens that occur inside the ground truth, joined with
//     spaces, have the same word set as the ground truth.
//
// Tokens are compared as given; callers lowercase them when they come off
// the OCR service. Words are split on Unicode whitespace.
//
// Subset and partial matches compare sets, so duplicated or reordered words
// do not matter. Partial matching is substring based: the token "exp"
// counts as present in "exp. date: 02-2023" but contributes the word "exp",
// which is not the ground-truth word "exp.", so that example does not match.
//
// # Missing ground truth
//
// When no ground truth is known for a source, Validate reports
// Detected=false with TierNoGroundTruth. Aggregated reports count such
// variants as failures; the tier lets callers tell "wrong" from "untested".
//
// # Lookup keys
//
// Ground truth is keyed by source file name. GroundTruthKey recovers that
// name from a variant's object key, "{base}_{suffix}/{op}_{param}.{ext}".
package detection
