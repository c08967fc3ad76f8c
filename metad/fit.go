package metad

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/cogneuro/HMeta-d/mcmc"
)

// zeroD1 replaces an exact-zero d' draw in ratio statistics.
const zeroD1 = 1e-4

// Sampler draws posterior samples for a declared model. The built-in
// engine satisfies it; tests substitute deterministic stubs.
type Sampler interface {
	Sample(model mcmc.Model, cfg mcmc.Config) (*mcmc.Result, error)
}

type defaultSampler struct{}

func (defaultSampler) Sample(model mcmc.Model, cfg mcmc.Config) (*mcmc.Result, error) {
	return mcmc.Run(model, cfg)
}

// FitConfig controls a fit call. The zero value is not the default
// configuration; use DefaultFitConfig as the base and override fields.
type FitConfig struct {
	ResponseConditional bool
	EstimateDPrime      bool
	NChains             int
	NBurnin             int
	NSamples            int
	NThin               int
	Parallel            bool
	DIC                 bool
	Progress            bool
	Seed                int64

	// Fncdf and Fninv replace the standard normal CDF and quantile as
	// the evidence distribution pair.
	Fncdf func(float64) float64
	Fninv func(float64) float64

	// Sampler replaces the built-in posterior engine.
	Sampler Sampler

	// Logger receives stage progress. Nil disables logging.
	Logger *zap.Logger
}

// DefaultFitConfig returns the standard settings: pooled model with
// jointly estimated type-1 parameters, 3 chains, 3000 burn-in sweeps,
// 10000 retained draws per chain, DIC on, sequential chains.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		EstimateDPrime: true,
		NChains:        3,
		NBurnin:        3000,
		NSamples:       10000,
		NThin:          1,
		DIC:            true,
	}
}

// MCMCSummary carries the posterior draws and diagnostics of one fit.
// Samples maps each monitored parameter to a chain-by-draw array.
type MCMCSummary struct {
	DIC     float64
	Rhat    map[string]float64
	Samples map[string][][]float64
	Params  []string
}

// FitResult is the complete outcome of one meta-d fit. The pooled model
// fills MetaD/MRatio/MDiff and leaves the response-conditional fields
// NaN; the response-conditional model does the reverse. All other fields
// are filled in both modes.
type FitResult struct {
	Model string
	D1    float64
	C1    float64

	MetaD  float64
	MRatio float64
	MDiff  float64

	MetaDRS1  float64
	MetaDRS2  float64
	MRatioRS1 float64
	MRatioRS2 float64
	MDiffRS1  float64
	MDiffRS2  float64

	T2caRS1 []float64
	T2caRS2 []float64

	ObsHR2RS1  []float64
	ObsFAR2RS1 []float64
	EstHR2RS1  []float64
	EstFAR2RS1 []float64
	ObsHR2RS2  []float64
	ObsFAR2RS2 []float64
	EstHR2RS2  []float64
	EstFAR2RS2 []float64

	MCMC MCMCSummary
}

// Fit estimates metacognitive sensitivity from one observer's response
// counts. A nil cfg means DefaultFitConfig. The count table is validated
// and reduced to type-1 point estimates, the selected model variant is
// sampled, and the posterior is reduced to meta-d, M-ratio, M-diff and
// matched observed/model-implied type-2 ROC points per response class.
func Fit(c Counts, cfg *FitConfig) (*FitResult, error) {
	conf := DefaultFitConfig()
	if cfg != nil {
		conf = *cfg
	}
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	t1, err := TypeOneFromCounts(c, conf.Fninv)
	if err != nil {
		return nil, err
	}
	obsHRRS1, obsFARRS1, obsHRRS2, obsFARRS2, err := observedBranches(c)
	if err != nil {
		return nil, err
	}

	model := newSubjectModel(c, t1, conf.ResponseConditional, conf.EstimateDPrime, conf.Fncdf)
	sampler := conf.Sampler
	if sampler == nil {
		sampler = defaultSampler{}
	}
	mcfg := mcmc.Config{
		NChains:  conf.NChains,
		NBurnin:  conf.NBurnin,
		NSamples: conf.NSamples,
		NThin:    conf.NThin,
		Parallel: conf.Parallel,
		DIC:      conf.DIC,
		Progress: conf.Progress,
		Seed:     conf.Seed,
	}
	logger.Info("sampling posterior",
		zap.String("model", model.Name()),
		zap.Int("chains", mcfg.NChains),
		zap.Int("samples", mcfg.NSamples))
	res, err := sampler.Sample(model, mcfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSamplerFailure, err)
	}

	r := c.NRatings()
	fit := &FitResult{
		Model:      model.Name(),
		D1:         res.Mean["d1"],
		C1:         res.Mean["c1"],
		MetaD:      math.NaN(),
		MRatio:     math.NaN(),
		MDiff:      math.NaN(),
		MetaDRS1:   math.NaN(),
		MetaDRS2:   math.NaN(),
		MRatioRS1:  math.NaN(),
		MRatioRS2:  math.NaN(),
		MDiffRS1:   math.NaN(),
		MDiffRS2:   math.NaN(),
		T2caRS1:    criteriaMeans(res, "cS1", r-1),
		T2caRS2:    criteriaMeans(res, "cS2", r-1),
		ObsHR2RS1:  obsHRRS1,
		ObsFAR2RS1: obsFARRS1,
		ObsHR2RS2:  obsHRRS2,
		ObsFAR2RS2: obsFARRS2,
		MCMC: MCMCSummary{
			DIC:     res.DIC,
			Rhat:    res.Rhat,
			Samples: res.Samples,
			Params:  res.Params,
		},
	}

	d1Draws := res.Draws("d1")
	mdRS1 := math.NaN()
	mdRS2 := math.NaN()
	if conf.ResponseConditional {
		fit.MetaDRS1, fit.MRatioRS1, fit.MDiffRS1 = reduceMetaD(res.Draws("meta_d_rS1"), d1Draws)
		fit.MetaDRS2, fit.MRatioRS2, fit.MDiffRS2 = reduceMetaD(res.Draws("meta_d_rS2"), d1Draws)
		mdRS1, mdRS2 = fit.MetaDRS1, fit.MetaDRS2
	} else {
		fit.MetaD, fit.MRatio, fit.MDiff = reduceMetaD(res.Draws("meta_d"), d1Draws)
		mdRS1, mdRS2 = fit.MetaD, fit.MetaD
	}

	fit.EstHR2RS1, fit.EstFAR2RS1 = estimatedT2(conf.Fncdf, mdRS1, fit.C1, fit.T2caRS1, false)
	fit.EstHR2RS2, fit.EstFAR2RS2 = estimatedT2(conf.Fncdf, mdRS2, fit.C1, fit.T2caRS2, true)

	logger.Info("fit complete",
		zap.String("model", fit.Model),
		zap.Float64("d1", fit.D1),
		zap.Float64("dic", fit.MCMC.DIC))
	return fit, nil
}

// reduceMetaD converts matched meta-d and d' draw arrays into the three
// summary statistics. Ratio terms substitute zeroD1 for exact-zero d'
// draws; difference terms use the raw draws.
func reduceMetaD(metaDraws, d1Draws []float64) (metaD, mRatio, mDiff float64) {
	if len(metaDraws) != len(d1Draws) {
		panic("metad: mismatched draw arrays")
	}
	rsum := 0.0
	dsum := 0.0
	for i, md := range metaDraws {
		d := d1Draws[i]
		dd := d
		if dd == 0 {
			dd = zeroD1
		}
		rsum += md / dd
		dsum += md - d
	}
	n := float64(len(metaDraws))
	return stat.Mean(metaDraws, nil), rsum / n, dsum / n
}

func criteriaMeans(res *mcmc.Result, prefix string, n int) []float64 {
	out := make([]float64, n)
	for k := 1; k <= n; k++ {
		out[k-1] = res.Mean[fmt.Sprintf("%s[%d]", prefix, k)]
	}
	return out
}
