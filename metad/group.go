package metad

import (
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/cogneuro/HMeta-d/mcmc"
)

// groupModel is the hierarchical variant: each subject keeps its type-1
// point estimate fixed and contributes the four rating multinomials of
// the pooled model, while metacognitive efficiency is pooled on the log
// scale. Per subject, logMratio[s] ~ N(mu_logMratio, sigma_logMratio)
// and meta_d[s] = exp(logMratio[s]) * d1[s]; the hyperpriors are
// mu_logMratio ~ N(0,1) and a standard half-normal on sigma_logMratio.
type groupModel struct {
	nRatings int
	subs     []*subjectModel
	names    []string
}

func newGroupModel(counts []Counts, t1s []*TypeOne, fncdf func(float64) float64) *groupModel {
	m := &groupModel{nRatings: counts[0].NRatings()}
	for i, c := range counts {
		m.subs = append(m.subs, newSubjectModel(c, t1s[i], false, false, fncdf))
	}
	m.names = append(m.names, "mu_logMratio", "sigma_logMratio")
	for s := 1; s <= len(m.subs); s++ {
		m.names = append(m.names, fmt.Sprintf("Mratio[%d]", s), fmt.Sprintf("meta_d[%d]", s))
		for k := 1; k < m.nRatings; k++ {
			m.names = append(m.names, fmt.Sprintf("cS1[%d,%d]", s, k))
		}
		for k := 1; k < m.nRatings; k++ {
			m.names = append(m.names, fmt.Sprintf("cS2[%d,%d]", s, k))
		}
	}
	return m
}

// block is the per-subject free-parameter count: logMratio plus the raw
// criteria of both sides.
func (m *groupModel) block() int { return 1 + 2*(m.nRatings-1) }

func (m *groupModel) Name() string { return "metad_group" }

func (m *groupModel) Dim() int { return 2 + len(m.subs)*m.block() }

func (m *groupModel) ParamNames() []string { return m.names }

func (m *groupModel) Track(theta []float64) []float64 {
	out := make([]float64, 0, len(m.names))
	out = append(out, theta[0], theta[1])
	block := m.block()
	for s, sub := range m.subs {
		base := 2 + s*block
		mratio := math.Exp(theta[base])
		out = append(out, mratio, mratio*sub.d1Hat)
		out = append(out, sortedCopy(theta[base+1:base+m.nRatings])...)
		out = append(out, sortedCopy(theta[base+m.nRatings:base+block])...)
	}
	return out
}

func (m *groupModel) LogPosterior(theta []float64) float64 {
	mu := theta[0]
	sigma := theta[1]
	if sigma <= 0 {
		return math.Inf(-1)
	}
	lp := logNormPDF(mu, 0, 1)
	lp += math.Ln2 + logNormPDF(sigma, 0, 1)

	block := m.block()
	for s, sub := range m.subs {
		base := 2 + s*block
		lp += logNormPDF(theta[base], mu, sigma)
		for _, x := range theta[base+1 : base+m.nRatings] {
			lp += logTruncNormBelow(x, 0, critSD, sub.c1Hat-tol)
		}
		for _, x := range theta[base+m.nRatings : base+block] {
			lp += logTruncNormAbove(x, 0, critSD, sub.c1Hat+tol)
		}
		if math.IsInf(lp, -1) {
			return lp
		}
	}
	return lp + m.LogLikelihood(theta)
}

func (m *groupModel) LogLikelihood(theta []float64) float64 {
	block := m.block()
	ll := 0.0
	for s, sub := range m.subs {
		base := 2 + s*block
		subTheta := make([]float64, block)
		subTheta[0] = math.Exp(theta[base]) * sub.d1Hat
		copy(subTheta[1:], theta[base+1:base+block])
		ll += sub.LogLikelihood(subTheta)
		if math.IsInf(ll, -1) {
			return ll
		}
	}
	return ll
}

func (m *groupModel) InitialState(chain int, rng *rand.Rand) []float64 {
	theta := make([]float64, 0, m.Dim())
	theta = append(theta, 0.1*rng.NormFloat64(), 0.5+0.2*rng.Float64())
	for _, sub := range m.subs {
		st := sub.InitialState(chain, rng)
		st[0] = 0.1 * rng.NormFloat64()
		theta = append(theta, st...)
	}
	return theta
}

// SubjectResult is one subject's share of a group fit.
type SubjectResult struct {
	D1     float64
	C1     float64
	MetaD  float64
	MRatio float64

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
}

// GroupResult is the outcome of a hierarchical fit across subjects.
type GroupResult struct {
	MuLogMratio    float64
	SigmaLogMratio float64
	GroupMRatio    float64
	Subjects       []SubjectResult
	MCMC           MCMCSummary
}

// FitGroup estimates metacognitive efficiency hierarchically across two
// or more subjects. Each subject's d'/criterion stays at its point
// estimate, so cfg.EstimateDPrime is ignored; the response-conditional
// flag is rejected, that split is single-subject scope. A nil cfg means
// DefaultFitConfig.
func FitGroup(subjects []Counts, cfg *FitConfig) (*GroupResult, error) {
	conf := DefaultFitConfig()
	if cfg != nil {
		conf = *cfg
	}
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if conf.ResponseConditional {
		return nil, fmt.Errorf("%w: response-conditional group fit is not supported", ErrInvalidInput)
	}
	if len(subjects) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 subjects, got %d", ErrInvalidInput, len(subjects))
	}

	r := subjects[0].NRatings()
	t1s := make([]*TypeOne, len(subjects))
	results := make([]SubjectResult, len(subjects))
	for s, c := range subjects {
		if c.NRatings() != r {
			return nil, fmt.Errorf("%w: subject %d has %d ratings, subject 1 has %d",
				ErrInvalidInput, s+1, c.NRatings(), r)
		}
		t1, err := TypeOneFromCounts(c, conf.Fninv)
		if err != nil {
			return nil, fmt.Errorf("subject %d: %w", s+1, err)
		}
		t1s[s] = t1
		results[s].D1 = t1.D1
		results[s].C1 = t1.C1
		results[s].ObsHR2RS1, results[s].ObsFAR2RS1,
			results[s].ObsHR2RS2, results[s].ObsFAR2RS2, err = observedBranches(c)
		if err != nil {
			return nil, fmt.Errorf("subject %d: %w", s+1, err)
		}
	}

	model := newGroupModel(subjects, t1s, conf.Fncdf)
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
	logger.Info("sampling group posterior",
		zap.Int("subjects", len(subjects)),
		zap.Int("chains", mcfg.NChains),
		zap.Int("samples", mcfg.NSamples))
	res, err := sampler.Sample(model, mcfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSamplerFailure, err)
	}

	group := &GroupResult{
		MuLogMratio:    res.Mean["mu_logMratio"],
		SigmaLogMratio: res.Mean["sigma_logMratio"],
		Subjects:       results,
		MCMC: MCMCSummary{
			DIC:     res.DIC,
			Rhat:    res.Rhat,
			Samples: res.Samples,
			Params:  res.Params,
		},
	}
	muDraws := res.Draws("mu_logMratio")
	expMu := make([]float64, len(muDraws))
	for i, v := range muDraws {
		expMu[i] = math.Exp(v)
	}
	group.GroupMRatio = stat.Mean(expMu, nil)

	for s := range results {
		sub := &group.Subjects[s]
		sub.MetaD = res.Mean[fmt.Sprintf("meta_d[%d]", s+1)]
		sub.MRatio = res.Mean[fmt.Sprintf("Mratio[%d]", s+1)]
		sub.T2caRS1 = make([]float64, r-1)
		sub.T2caRS2 = make([]float64, r-1)
		for k := 1; k < r; k++ {
			sub.T2caRS1[k-1] = res.Mean[fmt.Sprintf("cS1[%d,%d]", s+1, k)]
			sub.T2caRS2[k-1] = res.Mean[fmt.Sprintf("cS2[%d,%d]", s+1, k)]
		}
		sub.EstHR2RS1, sub.EstFAR2RS1 = estimatedT2(conf.Fncdf, sub.MetaD, sub.C1, sub.T2caRS1, false)
		sub.EstHR2RS2, sub.EstFAR2RS2 = estimatedT2(conf.Fncdf, sub.MetaD, sub.C1, sub.T2caRS2, true)
	}
	logger.Info("group fit complete",
		zap.Float64("mu_logMratio", group.MuLogMratio),
		zap.Float64("group_Mratio", group.GroupMRatio))
	return group, nil
}
