package metad

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// stdNormal is the default evidence distribution for both decision levels.
var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// Counts is one observer's response-count table for a two-alternative
// discrimination task with confidence ratings. NRS1[i] counts trials where
// stimulus S1 was shown and the observer gave response category i: the
// first R categories are "responded S1" ordered from highest to lowest
// confidence, the last R are "responded S2" from lowest to highest
// confidence. NRS2 mirrors this for S2 trials.
type Counts struct {
	NRS1 []int `json:"nR_S1"`
	NRS2 []int `json:"nR_S2"`
}

// NRatings returns the number of confidence ratings R.
func (c Counts) NRatings() int { return len(c.NRS1) / 2 }

// Validate checks the count-table invariants.
func (c Counts) Validate() error {
	if len(c.NRS1) != len(c.NRS2) {
		return fmt.Errorf("%w: nR_S1 has %d cells, nR_S2 has %d", ErrInvalidInput, len(c.NRS1), len(c.NRS2))
	}
	if len(c.NRS1)%2 != 0 {
		return fmt.Errorf("%w: odd cell count %d", ErrInvalidInput, len(c.NRS1))
	}
	if len(c.NRS1) < 4 {
		return fmt.Errorf("%w: need at least 2 ratings, got %d cells", ErrInvalidInput, len(c.NRS1))
	}
	for i := range c.NRS1 {
		if c.NRS1[i] < 0 || c.NRS2[i] < 0 {
			return fmt.Errorf("%w: negative count in cell %d", ErrInvalidInput, i+1)
		}
	}
	return nil
}

// TypeOne is the type-1 signal-detection point estimate at the S1/S2
// response boundary, together with the padded cumulative rating rates it
// was derived from. HR[k-2] and FAR[k-2] hold the probability of rating a
// trial at decision boundary k or above, for boundaries k = 2..2R; the
// entry at index R-1 sits on the response boundary.
type TypeOne struct {
	D1  float64
	C1  float64
	HR  []float64
	FAR []float64
}

// TypeOneFromCounts converts a count table into cumulative hit and
// false-alarm rates and the type-1 d'/criterion point estimate. Every
// cell is padded with 1/(2R) before the rates are formed, so ordinary
// zero cells never degenerate the rates. quantile may be nil, in which
// case the standard normal quantile is used.
func TypeOneFromCounts(c Counts, quantile func(float64) float64) (*TypeOne, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if quantile == nil {
		quantile = stdNormal.Quantile
	}

	n := len(c.NRS1)
	adj := 1.0 / float64(n)
	adjS1 := make([]float64, n)
	adjS2 := make([]float64, n)
	for i := 0; i < n; i++ {
		adjS1[i] = float64(c.NRS1[i]) + adj
		adjS2[i] = float64(c.NRS2[i]) + adj
	}
	totS1 := floats.Sum(adjS1)
	totS2 := floats.Sum(adjS2)

	hr := make([]float64, n-1)
	far := make([]float64, n-1)
	for k := 1; k < n; k++ {
		hr[k-1] = floats.Sum(adjS2[k:]) / totS2
		far[k-1] = floats.Sum(adjS1[k:]) / totS1
		if hr[k-1] == 0 || hr[k-1] == 1 || far[k-1] == 0 || far[k-1] == 1 {
			return nil, fmt.Errorf("%w: rate at boundary %d is 0 or 1", ErrDomain, k+1)
		}
	}

	t1 := c.NRatings() - 1
	zHR := quantile(hr[t1])
	zFAR := quantile(far[t1])
	return &TypeOne{
		D1:  zHR - zFAR,
		C1:  -0.5 * (zHR + zFAR),
		HR:  hr,
		FAR: far,
	}, nil
}

// CountsFromTrials builds a response-count table from per-trial vectors.
// stimID and response code the two alternatives as 0 (S1) and 1 (S2);
// rating runs from 1 (lowest confidence) to nRatings. padCells adds one
// observation to every cell, which keeps later fits away from empty
// response classes when a design produces sparse tables.
func CountsFromTrials(stimID, response, rating []int, nRatings int, padCells bool) (Counts, error) {
	if len(stimID) != len(response) || len(stimID) != len(rating) {
		return Counts{}, fmt.Errorf("%w: trial vectors differ in length (%d, %d, %d)",
			ErrInvalidInput, len(stimID), len(response), len(rating))
	}
	if nRatings < 2 {
		return Counts{}, fmt.Errorf("%w: need at least 2 ratings, got %d", ErrInvalidInput, nRatings)
	}

	c := Counts{
		NRS1: make([]int, 2*nRatings),
		NRS2: make([]int, 2*nRatings),
	}
	for t := range stimID {
		if stimID[t] != 0 && stimID[t] != 1 {
			return Counts{}, fmt.Errorf("%w: stimID[%d] = %d", ErrInvalidInput, t, stimID[t])
		}
		if response[t] != 0 && response[t] != 1 {
			return Counts{}, fmt.Errorf("%w: response[%d] = %d", ErrInvalidInput, t, response[t])
		}
		if rating[t] < 1 || rating[t] > nRatings {
			return Counts{}, fmt.Errorf("%w: rating[%d] = %d", ErrInvalidInput, t, rating[t])
		}
		var cell int
		if response[t] == 0 {
			cell = nRatings - rating[t]
		} else {
			cell = nRatings + rating[t] - 1
		}
		if stimID[t] == 0 {
			c.NRS1[cell]++
		} else {
			c.NRS2[cell]++
		}
	}

	if padCells {
		for i := range c.NRS1 {
			c.NRS1[i]++
			c.NRS2[i]++
		}
	}
	return c, nil
}
