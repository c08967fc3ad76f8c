package metad

import (
	"fmt"
	"math"
	"math/rand"
)

// SimCounts generates a synthetic count table from the generative meta-d
// model. d and c set the type-1 level, metaD the confidence level; cS1
// and cS2 are the type-2 criteria of the two response classes, ascending,
// strictly below and above c. Half of nTrials are S1 stimuli. Response
// totals per class are rounded expectations under the type-1 model;
// rating cells within each class are multinomial draws from the
// confidence-level bin masses. A nil rng draws a fresh seed from the
// global source.
func SimCounts(d, metaD, c float64, cS1, cS2 []float64, nTrials int, rng *rand.Rand) (Counts, error) {
	if len(cS1) == 0 || len(cS1) != len(cS2) {
		return Counts{}, fmt.Errorf("%w: criteria lengths %d and %d", ErrInvalidInput, len(cS1), len(cS2))
	}
	for k := 0; k+1 < len(cS1); k++ {
		if cS1[k] >= cS1[k+1] || cS2[k] >= cS2[k+1] {
			return Counts{}, fmt.Errorf("%w: criteria not ascending", ErrInvalidInput)
		}
	}
	if cS1[len(cS1)-1] >= c || cS2[0] <= c {
		return Counts{}, fmt.Errorf("%w: criteria cross the type-1 criterion", ErrInvalidInput)
	}
	if nTrials < 2 {
		return Counts{}, fmt.Errorf("%w: need at least 2 trials, got %d", ErrInvalidInput, nTrials)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	nS1 := nTrials / 2
	nS2 := nTrials - nS1
	cRS1 := int(math.Round(stdNormal.CDF(c+d/2) * float64(nS1)))
	iRS2 := nS1 - cRS1
	cRS2 := int(math.Round((1 - stdNormal.CDF(c-d/2)) * float64(nS2)))
	iRS1 := nS2 - cRS2

	prCRS1 := branchProbs(stdNormal.CDF, c, cS1, -metaD/2, false)
	prIRS1 := branchProbs(stdNormal.CDF, c, cS1, metaD/2, false)
	prCRS2 := branchProbs(stdNormal.CDF, c, cS2, metaD/2, true)
	prIRS2 := branchProbs(stdNormal.CDF, c, cS2, -metaD/2, true)
	if prCRS1 == nil || prIRS1 == nil || prCRS2 == nil || prIRS2 == nil {
		return Counts{}, fmt.Errorf("%w: response area vanished", ErrDomain)
	}

	r := len(cS1) + 1
	out := Counts{
		NRS1: make([]int, 2*r),
		NRS2: make([]int, 2*r),
	}
	drawMultinomial(rng, cRS1, prCRS1, out.NRS1[:r])
	drawMultinomial(rng, iRS2, prIRS2, out.NRS1[r:])
	drawMultinomial(rng, iRS1, prIRS1, out.NRS2[:r])
	drawMultinomial(rng, cRS2, prCRS2, out.NRS2[r:])
	return out, nil
}

func drawMultinomial(rng *rand.Rand, n int, p []float64, cells []int) {
	for t := 0; t < n; t++ {
		u := rng.Float64()
		cum := 0.0
		k := len(p) - 1
		for j, pj := range p {
			cum += pj
			if u < cum {
				k = j
				break
			}
		}
		cells[k]++
	}
}
