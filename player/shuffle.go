package player

import "math/rand"

// Shuffle returns a Fisher-Yates permutation of items without touching the input.
// A nil source falls back to the auto-seeded global generator.
func Shuffle[T any](items []T, r *rand.Rand) []T {
	out := make([]T, len(items))
	copy(out, items)

	intn := randIntn(r)
	for i := len(out) - 1; i > 0; i-- {
		j := intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func randIntn(r *rand.Rand) func(int) int {
	if r != nil {
		return r.Intn
	}
	return rand.Intn
}
