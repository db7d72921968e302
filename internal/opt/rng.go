package opt

import (
	"hash/fnv"
	"math/rand"
	"time"
)

// NewRand returns a run-local generator. Seed 0 picks a time-based seed; the
// effective seed is returned so the run can be replayed.
func NewRand(seed int64) (*rand.Rand, int64) {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed)), seed
}

// DeriveSeed mixes a stream name into a base seed so parallel runs get
// independent, reproducible generators.
func DeriveSeed(seed int64, stream string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(stream))
	derived := seed ^ int64(h.Sum64())
	if derived == 0 {
		derived = 1
	}
	return derived
}
