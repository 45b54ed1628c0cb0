package dsp

// Noise is a multiplicative congruential white noise generator. It is
// deterministic for a given seed, which keeps renders reproducible.
type Noise struct {
	seed uint32
}

// NewNoise returns a generator with the given seed; a zero seed is replaced
// by 1 since the generator would otherwise be stuck at zero.
func NewNoise(seed uint32) Noise {
	if seed == 0 {
		seed = 1
	}
	return Noise{seed: seed}
}

// Next returns the next sample in [-1,1].
func (n *Noise) Next() float64 {
	if n.seed == 0 {
		n.seed = 1
	}
	n.seed *= 16007
	return float64(int32(n.seed)) / -2147483648.0
}
