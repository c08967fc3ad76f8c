package mcmc

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/cheggaaa/pb/v3"
)

const (
	adaptWindow    = 50
	targetAccept   = 0.44
	initialScale   = 0.1
	minScale       = 1e-4
	maxScale       = 50.0
	defaultChains  = 3
	defaultBurnin  = 3000
	defaultSamples = 10000
)

// Config controls one sampling run. Zero values fall back to the
// defaults: 3 chains, 3000 burn-in sweeps, 10000 retained draws per
// chain, no thinning.
type Config struct {
	NChains  int
	NBurnin  int
	NSamples int
	NThin    int
	Parallel bool
	DIC      bool
	Progress bool
	Seed     int64
}

func (cfg Config) withDefaults() Config {
	if cfg.NChains <= 0 {
		cfg.NChains = defaultChains
	}
	if cfg.NBurnin <= 0 {
		cfg.NBurnin = defaultBurnin
	}
	if cfg.NSamples <= 0 {
		cfg.NSamples = defaultSamples
	}
	if cfg.NThin <= 0 {
		cfg.NThin = 1
	}
	return cfg
}

type chainState struct {
	tracked  [][]float64
	sumTheta []float64
	sumDev   float64
	err      error
}

// Run samples the posterior of model with componentwise random-walk
// Metropolis chains. Proposal scales adapt during burn-in toward an
// acceptance rate of 0.44 and stay fixed afterwards. Chains run
// concurrently when cfg.Parallel is set; each chain owns a rand.Rand
// seeded from cfg.Seed, so runs with equal seeds are reproducible.
func Run(model Model, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()
	names := model.ParamNames()

	var bar *pb.ProgressBar
	if cfg.Progress {
		bar = pb.StartNew(cfg.NChains * (cfg.NBurnin + cfg.NSamples*cfg.NThin))
	}

	threadsNum := 1
	if cfg.Parallel {
		threadsNum = cfg.NChains
	}
	states := make([]*chainState, cfg.NChains)
	ch := make(chan int, threadsNum)
	wg := sync.WaitGroup{}
	for c := 0; c < cfg.NChains; c++ {
		ch <- 1
		wg.Add(1)
		go func(c int) {
			states[c] = runChain(model, cfg, c, bar)
			<-ch
			wg.Done()
		}(c)
	}
	wg.Wait()
	if bar != nil {
		bar.Finish()
	}

	for c, st := range states {
		if st.err != nil {
			return nil, fmt.Errorf("chain %d: %w", c+1, st.err)
		}
	}
	return summarize(model, cfg, names, states), nil
}

func runChain(model Model, cfg Config, chain int, bar *pb.ProgressBar) *chainState {
	rng := rand.New(rand.NewSource(cfg.Seed + int64(chain)))
	dim := model.Dim()

	theta := model.InitialState(chain, rng)
	if len(theta) != dim {
		return &chainState{err: fmt.Errorf("initial state has %d parameters, model declares %d", len(theta), dim)}
	}
	lp := model.LogPosterior(theta)
	if math.IsNaN(lp) || math.IsInf(lp, 0) {
		return &chainState{err: fmt.Errorf("non-finite log posterior at initial state")}
	}

	scale := make([]float64, dim)
	for j := range scale {
		scale[j] = initialScale
	}
	accepted := make([]int, dim)

	sweep := func() error {
		for j := 0; j < dim; j++ {
			old := theta[j]
			theta[j] = old + scale[j]*rng.NormFloat64()
			lpNew := model.LogPosterior(theta)
			if math.IsNaN(lpNew) {
				return fmt.Errorf("NaN log posterior at parameter %d", j+1)
			}
			if math.Log(rng.Float64()) < lpNew-lp {
				lp = lpNew
				accepted[j]++
			} else {
				theta[j] = old
			}
		}
		if bar != nil {
			bar.Add(1)
		}
		return nil
	}

	st := &chainState{
		tracked:  make([][]float64, 0, cfg.NSamples),
		sumTheta: make([]float64, dim),
	}
	for it := 0; it < cfg.NBurnin; it++ {
		if err := sweep(); err != nil {
			st.err = err
			return st
		}
		if (it+1)%adaptWindow == 0 {
			for j := range scale {
				rate := float64(accepted[j]) / adaptWindow
				scale[j] *= math.Exp((rate - targetAccept) / 2)
				if scale[j] < minScale {
					scale[j] = minScale
				}
				if scale[j] > maxScale {
					scale[j] = maxScale
				}
				accepted[j] = 0
			}
		}
	}
	for k := 0; k < cfg.NSamples; k++ {
		for t := 0; t < cfg.NThin; t++ {
			if err := sweep(); err != nil {
				st.err = err
				return st
			}
		}
		st.tracked = append(st.tracked, model.Track(theta))
		for j := 0; j < dim; j++ {
			st.sumTheta[j] += theta[j]
		}
		if cfg.DIC {
			st.sumDev += -2 * model.LogLikelihood(theta)
		}
	}
	return st
}
