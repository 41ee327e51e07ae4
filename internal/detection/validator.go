package detection

import "strings"

// Tier names the rule that produced a verdict.
type Tier string

const (
	// TierExact: the whole ground truth is one of the tokens.
	TierExact Tier = "exact"
	// TierSubset: every ground-truth word is one of the tokens.
	TierSubset Tier = "subset"
	// TierPartial: the tokens contained in the ground truth spell out
	// exactly its word set.
	TierPartial Tier = "partial"
	// TierNone: ground truth was available but no rule matched.
	TierNone Tier = "none"
	// TierNoGroundTruth: nothing to compare against; reported as not
	// detected.
	TierNoGroundTruth Tier = "no_ground_truth"
)

// Verdict is the outcome of validating one variant's OCR output.
type Verdict struct {
	Detected bool `json:"detected"`
	Tier     Tier `json:"tier"`
	// Accumulated is the partial-match accumulator, kept for diagnostics.
	// It is only set when the partial rule was evaluated.
	Accumulated string `json:"accumulated,omitempty"`
}

// Validate scores OCR tokens against a ground-truth string.
//
// Tokens are expected to be lowercased already. The rules are tried in
// order and the first match wins:
//
//  1. exact: lower(groundTruth) equals some token
//  2. subset: every whitespace-separated word of lower(groundTruth) is a token
//  3. partial: every token that is a substring of lower(groundTruth) is
//     appended, space-separated, to an accumulator; the result matches if the
//     accumulator is non-empty and its word set equals the ground truth's
//
// A nil, empty or blank ground truth yields Detected=false with
// TierNoGroundTruth and no rule is attempted.
func Validate(tokens []string, groundTruth *string) Verdict {
	if groundTruth == nil || strings.TrimSpace(*groundTruth) == "" {
		return Verdict{Tier: TierNoGroundTruth}
	}
	gt := strings.ToLower(*groundTruth)

	tokenSet := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		if tok == gt {
			return Verdict{Detected: true, Tier: TierExact}
		}
		tokenSet[tok] = struct{}{}
	}

	gtWords := wordSet(gt)
	if isSubset(gtWords, tokenSet) {
		return Verdict{Detected: true, Tier: TierSubset}
	}

	var acc strings.Builder
	for _, tok := range tokens {
		if strings.Contains(gt, tok) {
			acc.WriteByte(' ')
			acc.WriteString(tok)
		}
	}
	accumulated := acc.String()
	if accumulated != "" && equalSets(wordSet(accumulated), gtWords) {
		return Verdict{Detected: true, Tier: TierPartial, Accumulated: accumulated}
	}
	return Verdict{Tier: TierNone, Accumulated: accumulated}
}

// Detected is shorthand for Validate(tokens, groundTruth).Detected.
func Detected(tokens []string, groundTruth *string) bool {
	return Validate(tokens, groundTruth).Detected
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func isSubset(sub, super map[string]struct{}) bool {
	for w := range sub {
		if _, ok := super[w]; !ok {
			return false
		}
	}
	return true
}

func equalSets(a, b map[string]struct{}) bool {
	return len(a) == len(b) && isSubset(a, b)
}
