package metad

import "fmt"

// observedT2 computes the observed type-2 rates of one response branch.
// correct and incorrect are the branch's rating histograms from lowest
// to highest confidence; entry i-2 of the returned slices is the rate of
// rating at level i or above, for i = 2..R. Empty groups are reported
// as ErrDivisionByZero, raw zero cells are expected here.
func observedT2(correct, incorrect []int) (hr, far []float64, err error) {
	cTot := sumInts(correct)
	iTot := sumInts(incorrect)
	if cTot == 0 {
		return nil, nil, fmt.Errorf("%w: no correct trials in response class", ErrDivisionByZero)
	}
	if iTot == 0 {
		return nil, nil, fmt.Errorf("%w: no incorrect trials in response class", ErrDivisionByZero)
	}
	n := len(correct)
	hr = make([]float64, n-1)
	far = make([]float64, n-1)
	for i := 2; i <= n; i++ {
		hr[i-2] = float64(sumInts(correct[i-1:])) / float64(cTot)
		far[i-2] = float64(sumInts(incorrect[i-1:])) / float64(iTot)
	}
	return hr, far, nil
}

// estimatedT2 computes the model-implied type-2 rates of one response
// branch from its own sensitivity. crit holds the branch's type-2
// criteria in ascending order; c1 is the type-1 criterion. For "S1"
// responses the rating regions extend downward from c1, for "S2"
// responses upward. Tail masses at each criterion are normalized by the
// branch's correct or incorrect response area at c1, so the outputs
// align index by index with observedT2.
func estimatedT2(cdf func(float64) float64, metaD, c1 float64, crit []float64, rS2 bool) (hr, far []float64) {
	if cdf == nil {
		cdf = stdNormal.CDF
	}
	s1mu := -metaD / 2
	s2mu := metaD / 2
	n := len(crit)
	hr = make([]float64, n)
	far = make([]float64, n)
	if !rS2 {
		cArea := cdf(c1 - s1mu)
		iArea := cdf(c1 - s2mu)
		for i := 1; i <= n; i++ {
			lower := crit[n-i]
			hr[i-1] = cdf(lower-s1mu) / cArea
			far[i-1] = cdf(lower-s2mu) / iArea
		}
		return hr, far
	}
	cArea := 1 - cdf(c1-s2mu)
	iArea := 1 - cdf(c1-s1mu)
	for i := 1; i <= n; i++ {
		upper := crit[i-1]
		hr[i-1] = (1 - cdf(upper-s2mu)) / cArea
		far[i-1] = (1 - cdf(upper-s1mu)) / iArea
	}
	return hr, far
}

// observedBranches splits a count table into its two response classes
// and computes each class's observed type-2 rates.
func observedBranches(c Counts) (hrRS1, farRS1, hrRS2, farRS2 []float64, err error) {
	r := c.NRatings()
	hrRS1, farRS1, err = observedT2(reversedInts(c.NRS1[:r]), reversedInts(c.NRS2[:r]))
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("response S1: %w", err)
	}
	hrRS2, farRS2, err = observedT2(c.NRS2[r:], c.NRS1[r:])
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("response S2: %w", err)
	}
	return hrRS1, farRS1, hrRS2, farRS2, nil
}

func reversedInts(xs []int) []int {
	out := make([]int, len(xs))
	for i, v := range xs {
		out[len(xs)-1-i] = v
	}
	return out
}

func sumInts(xs []int) int {
	s := 0
	for _, v := range xs {
		s += v
	}
	return s
}
