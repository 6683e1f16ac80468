package quiz

import (
	"math/rand"
	"time"
)

// NewRand returns a generator seeded from the clock.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Shuffle returns a shuffled copy of items, leaving the input untouched.
func Shuffle[T any](r *rand.Rand, items []T) []T {
	if r == nil {
		r = NewRand()
	}

	shuffled := make([]T, len(items))
	copy(shuffled, items)

	// Fisher-Yates
	for i := len(shuffled) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}

	return shuffled
}

// ShuffleWithLimit shuffles items and keeps at most limit of them.
// A non-positive limit keeps everything.
func ShuffleWithLimit[T any](r *rand.Rand, items []T, limit int) []T {
	shuffled := Shuffle(r, items)

	if limit <= 0 || limit > len(shuffled) {
		limit = len(shuffled)
	}

	return shuffled[:limit]
}

func ShuffleOptions(r *rand.Rand, options []string) []string {
	return Shuffle(r, options)
}
