package mcmc

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Result holds the posterior draws and summaries of one sampling run.
// Samples maps each monitored parameter to a chain-by-draw array.
type Result struct {
	Params  []string
	Samples map[string][][]float64
	Mean    map[string]float64
	Rhat    map[string]float64
	DIC     float64
}

// Draws returns every retained draw of one parameter, chains
// concatenated in order.
func (r *Result) Draws(param string) []float64 {
	chains := r.Samples[param]
	if chains == nil {
		return nil
	}
	flat := make([]float64, 0, len(chains)*len(chains[0]))
	for _, draws := range chains {
		flat = append(flat, draws...)
	}
	return flat
}

func summarize(model Model, cfg Config, names []string, states []*chainState) *Result {
	res := &Result{
		Params:  names,
		Samples: make(map[string][][]float64, len(names)),
		Mean:    make(map[string]float64, len(names)),
		Rhat:    make(map[string]float64, len(names)),
		DIC:     math.NaN(),
	}
	for pi, name := range names {
		chains := make([][]float64, len(states))
		for c, st := range states {
			draws := make([]float64, len(st.tracked))
			for k := range st.tracked {
				draws[k] = st.tracked[k][pi]
			}
			chains[c] = draws
		}
		res.Samples[name] = chains
		res.Mean[name] = stat.Mean(res.Draws(name), nil)
		res.Rhat[name] = gelmanRubin(chains)
	}

	if cfg.DIC {
		total := float64(len(states) * cfg.NSamples)
		thetaBar := make([]float64, model.Dim())
		dBar := 0.0
		for _, st := range states {
			dBar += st.sumDev
			for j := range thetaBar {
				thetaBar[j] += st.sumTheta[j]
			}
		}
		dBar /= total
		for j := range thetaBar {
			thetaBar[j] /= total
		}
		dHat := -2 * model.LogLikelihood(thetaBar)
		pD := dBar - dHat
		res.DIC = dBar + pD
	}
	return res
}

// gelmanRubin computes the potential scale reduction factor over two or
// more chains. With a single chain the diagnostic is undefined and NaN
// is returned.
func gelmanRubin(chains [][]float64) float64 {
	m := len(chains)
	if m < 2 || len(chains[0]) < 2 {
		return math.NaN()
	}
	n := float64(len(chains[0]))
	chainMeans := make([]float64, m)
	w := 0.0
	for c, draws := range chains {
		chainMeans[c] = stat.Mean(draws, nil)
		w += stat.Variance(draws, nil)
	}
	w /= float64(m)
	b := n * stat.Variance(chainMeans, nil)
	varPlus := (n-1)/n*w + b/n
	if w == 0 {
		if varPlus == 0 {
			return 1
		}
		return math.Inf(1)
	}
	return math.Sqrt(varPlus / w)
}
