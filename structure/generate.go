package structure

import "math/rand/v2"

// NewGenerator creates a reproducible random generator for Generate
func NewGenerator(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Generate draws ensembleSize random structures. Every attribute below numFeatures
// except the class gets up to maxParents parents drawn without replacement from
// the lower non-class attributes, and the class as an additional parent. The
// class attribute itself is not modeled.
func Generate(rng *rand.Rand, ensembleSize, numFeatures, maxParents, classIndex int) Ensemble {
	var e = make(Ensemble, 0, ensembleSize)
	var candidates []int
	for k := 0; k < ensembleSize; k++ {
		var s = make(Structure, numFeatures+1)
		for i := 0; i < numFeatures; i++ {
			if i == classIndex {
				continue
			}
			candidates = candidates[:0]
			for j := 0; j < i; j++ {
				if j != classIndex {
					candidates = append(candidates, j)
				}
			}
			n := max(0, min(len(candidates), maxParents))
			// partial Fisher-Yates, the first n candidates are the sample
			for j := 0; j < n; j++ {
				r := j + rng.IntN(len(candidates)-j)
				candidates[j], candidates[r] = candidates[r], candidates[j]
			}
			s[i] = Modeled(append(candidates[:n:n], classIndex)...)
		}
		s[classIndex] = NotModeled()
		e = append(e, s)
	}
	return e
}
