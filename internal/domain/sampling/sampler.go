package sampling

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/forPelevin/clipforge/internal/types"
)

// Sampler draws clip windows uniformly at random from a probed source.
type Sampler struct {
	rng *rand.Rand
}

func New(rng *rand.Rand) *Sampler {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Sampler{rng: rng}
}

// NewSeeded returns a deterministic sampler; seed 0 means random.
func NewSeeded(seed uint64) *Sampler {
	if seed == 0 {
		return New(nil)
	}
	return New(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Sample draws count independent start times in [0, duration-clipLength).
// Draws are with replacement: windows may repeat or overlap.
func (s *Sampler) Sample(duration, clipLength time.Duration, count int) ([]types.ClipWindow, error) {
	if clipLength <= 0 {
		return nil, fmt.Errorf("clip length must be > 0, got %s", clipLength)
	}
	if count <= 0 {
		return nil, fmt.Errorf("clip count must be > 0, got %d", count)
	}
	if clipLength >= duration {
		return nil, fmt.Errorf("%w: clip length %s >= source duration %s", types.ErrInsufficientDuration, clipLength, duration)
	}

	maxStart := int64(duration - clipLength)
	out := make([]types.ClipWindow, 0, count)
	for i := 0; i < count; i++ {
		start := time.Duration(s.rng.Int64N(maxStart))
		out = append(out, types.ClipWindow{Start: start, Length: clipLength})
	}
	return out, nil
}
