package perturb

import (
	"hash/fnv"
	"math/rand/v2"
)

// RandFactory returns the random source used for one noise unit. It is
// called once per unit, so a factory that derives a fresh source from its
// arguments keeps concurrent units independent and repeatable.
type RandFactory func(sourceID string, s Spec) *rand.Rand

// SeededRand derives each unit's source from seed, the source image id and
// the spec. The same inputs always yield the same noise regardless of how
// many units run at once or in which order they finish.
func SeededRand(seed uint64) RandFactory {
	return func(sourceID string, s Spec) *rand.Rand {
		h := fnv.New64a()
		h.Write([]byte(sourceID))
		stream := uint64(s.Kind.ordinal()+1)<<32 | uint64(s.StepIndex)
		return rand.New(rand.NewPCG(seed^h.Sum64(), stream))
	}
}

// UnseededRand gives every unit an independently seeded source.
func UnseededRand() RandFactory {
	return func(string, Spec) *rand.Rand {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}
