package metad

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/cogneuro/HMeta-d/mcmc"
)

// tol separates the type-2 criteria from the type-1 criterion so the
// rating bins keep positive width.
const tol = 1e-5

// critSD is the prior standard deviation of the raw type-2 criteria and
// of an estimated type-1 criterion (precision 2).
var critSD = 1.0 / math.Sqrt2

// NewModel builds a declared single-subject model variant from a count
// table and its type-1 point estimate. Known variants are "metad"
// (pooled sensitivity, d'/criterion held at the point estimate),
// "metad_dp" (pooled, d'/criterion estimated), and their
// response-conditional forms "metad_rc" and "metad_rc_dp". fncdf may be
// nil, in which case the standard normal CDF is used.
func NewModel(name string, c Counts, t1 *TypeOne, fncdf func(float64) float64) (mcmc.Model, error) {
	switch name {
	case "metad":
		return newSubjectModel(c, t1, false, false, fncdf), nil
	case "metad_dp":
		return newSubjectModel(c, t1, false, true, fncdf), nil
	case "metad_rc":
		return newSubjectModel(c, t1, true, false, fncdf), nil
	case "metad_rc_dp":
		return newSubjectModel(c, t1, true, true, fncdf), nil
	default:
		return nil, fmt.Errorf("%w: unknown model %q", ErrInvalidInput, name)
	}
}

func modelName(respCond, estDP bool) string {
	name := "metad"
	if respCond {
		name += "_rc"
	}
	if estDP {
		name += "_dp"
	}
	return name
}

// subjectModel is the type-2 SDT posterior for one observer. The count
// table is split into four rating histograms conditioned on the response
// classes: correct and incorrect trials within "S1" responses, correct
// and incorrect trials within "S2" responses. Each histogram is a
// multinomial over normal tail masses between the ordered type-2
// criteria of its side, normalized by the response-class area at the
// type-1 criterion. Free parameters are the metacognitive sensitivity
// (one shared value, or one per response class when respCond is set),
// the raw type-2 criteria of both sides, and in the estDP variants the
// type-1 d'/criterion pair with a binomial hit/false-alarm block.
type subjectModel struct {
	name     string
	respCond bool
	estDP    bool

	nRatings int
	cntCS1   []float64
	cntIS2   []float64
	cntIS1   []float64
	cntCS2   []float64

	s1Tot float64
	s2Tot float64
	hits  float64
	fa    float64

	d1Hat float64
	c1Hat float64

	cdf     func(float64) float64
	logCoef float64
	names   []string
}

func newSubjectModel(c Counts, t1 *TypeOne, respCond, estDP bool, fncdf func(float64) float64) *subjectModel {
	if fncdf == nil {
		fncdf = stdNormal.CDF
	}
	r := c.NRatings()
	m := &subjectModel{
		name:     modelName(respCond, estDP),
		respCond: respCond,
		estDP:    estDP,
		nRatings: r,
		cntCS1:   toFloats(c.NRS1[:r]),
		cntIS2:   toFloats(c.NRS1[r:]),
		cntIS1:   toFloats(c.NRS2[:r]),
		cntCS2:   toFloats(c.NRS2[r:]),
		d1Hat:    t1.D1,
		c1Hat:    t1.C1,
		cdf:      fncdf,
	}
	m.s1Tot = floats.Sum(m.cntCS1) + floats.Sum(m.cntIS2)
	m.s2Tot = floats.Sum(m.cntIS1) + floats.Sum(m.cntCS2)
	m.hits = floats.Sum(m.cntCS2)
	m.fa = floats.Sum(m.cntIS2)

	m.logCoef = multinomCoef(m.cntCS1) + multinomCoef(m.cntIS2) +
		multinomCoef(m.cntIS1) + multinomCoef(m.cntCS2)
	if estDP {
		m.logCoef += binomCoef(m.hits, m.s2Tot) + binomCoef(m.fa, m.s1Tot)
	}

	if respCond {
		m.names = append(m.names, "meta_d_rS1", "meta_d_rS2")
	} else {
		m.names = append(m.names, "meta_d")
	}
	for k := 1; k < r; k++ {
		m.names = append(m.names, fmt.Sprintf("cS1[%d]", k))
	}
	for k := 1; k < r; k++ {
		m.names = append(m.names, fmt.Sprintf("cS2[%d]", k))
	}
	m.names = append(m.names, "d1", "c1")
	return m
}

// Name returns the model identifier.
func (m *subjectModel) Name() string { return m.name }

// Dim returns the free-parameter count.
func (m *subjectModel) Dim() int {
	dim := 1 + 2*(m.nRatings-1)
	if m.respCond {
		dim++
	}
	if m.estDP {
		dim += 2
	}
	return dim
}

// ParamNames returns the monitored quantities in Track order.
func (m *subjectModel) ParamNames() []string { return m.names }

// split views theta as its named blocks. The criteria blocks are the raw
// unsorted values; d1 and c1 come from theta in the estDP variants and
// from the point estimate otherwise.
func (m *subjectModel) split(theta []float64) (metaD, cS1Raw, cS2Raw []float64, d1, c1 float64) {
	nm := 1
	if m.respCond {
		nm = 2
	}
	k := m.nRatings - 1
	metaD = theta[:nm]
	cS1Raw = theta[nm : nm+k]
	cS2Raw = theta[nm+k : nm+2*k]
	d1, c1 = m.d1Hat, m.c1Hat
	if m.estDP {
		d1 = theta[nm+2*k]
		c1 = theta[nm+2*k+1]
	}
	return
}

// Track emits the monitored values: sensitivities, sorted criteria, and
// the d1/c1 pair (constant columns in the fixed variants).
func (m *subjectModel) Track(theta []float64) []float64 {
	metaD, cS1Raw, cS2Raw, d1, c1 := m.split(theta)
	out := make([]float64, 0, len(m.names))
	out = append(out, metaD...)
	out = append(out, sortedCopy(cS1Raw)...)
	out = append(out, sortedCopy(cS2Raw)...)
	out = append(out, d1, c1)
	return out
}

// LogPosterior returns the unnormalized posterior log-density.
func (m *subjectModel) LogPosterior(theta []float64) float64 {
	metaD, cS1Raw, cS2Raw, d1, c1 := m.split(theta)
	lp := 0.0
	for _, md := range metaD {
		lp += logNormPDF(md, d1, math.Sqrt2)
	}
	for _, x := range cS1Raw {
		lp += logTruncNormBelow(x, 0, critSD, c1-tol)
	}
	for _, x := range cS2Raw {
		lp += logTruncNormAbove(x, 0, critSD, c1+tol)
	}
	if m.estDP {
		lp += logNormPDF(d1, 0, math.Sqrt2)
		lp += logNormPDF(c1, 0, critSD)
	}
	if math.IsInf(lp, -1) {
		return lp
	}
	return lp + m.LogLikelihood(theta)
}

// LogLikelihood returns the joint log-likelihood of the four rating
// multinomials, plus the type-1 binomial block in the estDP variants.
func (m *subjectModel) LogLikelihood(theta []float64) float64 {
	metaD, cS1Raw, cS2Raw, d1, c1 := m.split(theta)
	cS1 := sortedCopy(cS1Raw)
	cS2 := sortedCopy(cS2Raw)
	mdRS1 := metaD[0]
	mdRS2 := metaD[0]
	if m.respCond {
		mdRS2 = metaD[1]
	}

	pC := branchProbs(m.cdf, c1, cS1, -mdRS1/2, false)
	pI := branchProbs(m.cdf, c1, cS1, mdRS1/2, false)
	qC := branchProbs(m.cdf, c1, cS2, mdRS2/2, true)
	qI := branchProbs(m.cdf, c1, cS2, -mdRS2/2, true)
	if pC == nil || pI == nil || qC == nil || qI == nil {
		return math.Inf(-1)
	}
	ll := m.logCoef
	ll += multinomLogLik(m.cntCS1, pC)
	ll += multinomLogLik(m.cntIS1, pI)
	ll += multinomLogLik(m.cntCS2, qC)
	ll += multinomLogLik(m.cntIS2, qI)

	if m.estDP {
		h := m.cdf(d1/2 - c1)
		f := m.cdf(-d1/2 - c1)
		ll += binomLogLik(m.hits, m.s2Tot, h)
		ll += binomLogLik(m.fa, m.s1Tot, f)
	}
	return ll
}

// InitialState anchors each chain near the point estimate, with the
// type-2 criteria spread evenly on their own sides of c1.
func (m *subjectModel) InitialState(chain int, rng *rand.Rand) []float64 {
	d1 := m.d1Hat
	c1 := m.c1Hat
	if m.estDP {
		d1 += 0.1 * rng.NormFloat64()
		c1 += 0.1 * rng.NormFloat64()
	}
	theta := make([]float64, 0, m.Dim())
	theta = append(theta, d1+0.1*rng.NormFloat64())
	if m.respCond {
		theta = append(theta, d1+0.1*rng.NormFloat64())
	}
	r := m.nRatings
	for k := 0; k < r-1; k++ {
		theta = append(theta, c1-0.5*float64(r-1-k)-0.1*rng.Float64())
	}
	for k := 0; k < r-1; k++ {
		theta = append(theta, c1+0.5*float64(k+1)+0.1*rng.Float64())
	}
	if m.estDP {
		theta = append(theta, d1, c1)
	}
	return theta
}

// branchProbs returns the rating-bin probabilities of one response
// class for trials whose evidence has mean mu. For "S1" responses the
// bins run from -Inf up to c1 across the ascending criteria crit; for
// "S2" responses they run from c1 up to +Inf. Probabilities are
// conditioned on responding within the class. A vanished class area
// returns nil.
func branchProbs(cdf func(float64) float64, c1 float64, crit []float64, mu float64, rS2 bool) []float64 {
	p := make([]float64, len(crit)+1)
	atC1 := cdf(c1 - mu)
	if !rS2 {
		area := atC1
		if !(area > 0) {
			return nil
		}
		prev := 0.0
		for k, cr := range crit {
			cur := cdf(cr - mu)
			p[k] = (cur - prev) / area
			prev = cur
		}
		p[len(crit)] = (atC1 - prev) / area
		return p
	}
	area := 1 - atC1
	if !(area > 0) {
		return nil
	}
	prev := atC1
	for k, cr := range crit {
		cur := cdf(cr - mu)
		p[k] = (cur - prev) / area
		prev = cur
	}
	p[len(crit)] = (1 - prev) / area
	return p
}

func multinomLogLik(counts, p []float64) float64 {
	ll := 0.0
	for k, n := range counts {
		if n == 0 {
			continue
		}
		if !(p[k] > 0) {
			return math.Inf(-1)
		}
		ll += n * math.Log(p[k])
	}
	return ll
}

func binomLogLik(k, n, p float64) float64 {
	ll := 0.0
	if k > 0 {
		if !(p > 0) {
			return math.Inf(-1)
		}
		ll += k * math.Log(p)
	}
	if n-k > 0 {
		if !(p < 1) {
			return math.Inf(-1)
		}
		ll += (n - k) * math.Log(1-p)
	}
	return ll
}

func logNormPDF(x, mu, sigma float64) float64 {
	return distuv.Normal{Mu: mu, Sigma: sigma}.LogProb(x)
}

func logTruncNormBelow(x, mu, sigma, upper float64) float64 {
	if x >= upper {
		return math.Inf(-1)
	}
	z := stdNormal.CDF((upper - mu) / sigma)
	if !(z > 0) {
		return math.Inf(-1)
	}
	return logNormPDF(x, mu, sigma) - math.Log(z)
}

func logTruncNormAbove(x, mu, sigma, lower float64) float64 {
	if x <= lower {
		return math.Inf(-1)
	}
	z := stdNormal.CDF((mu - lower) / sigma)
	if !(z > 0) {
		return math.Inf(-1)
	}
	return logNormPDF(x, mu, sigma) - math.Log(z)
}

func multinomCoef(cells []float64) float64 {
	tot := 0.0
	lc := 0.0
	for _, v := range cells {
		tot += v
		g, _ := math.Lgamma(v + 1)
		lc -= g
	}
	g, _ := math.Lgamma(tot + 1)
	return lc + g
}

func binomCoef(k, n float64) float64 {
	a, _ := math.Lgamma(n + 1)
	b, _ := math.Lgamma(k + 1)
	c, _ := math.Lgamma(n - k + 1)
	return a - b - c
}

func sortedCopy(xs []float64) []float64 {
	out := append([]float64(nil), xs...)
	sort.Float64s(out)
	return out
}

func toFloats(xs []int) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[i] = float64(v)
	}
	return out
}
