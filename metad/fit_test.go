package metad

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/cogneuro/HMeta-d/mcmc"
)

// stubSampler returns canned draws so fits are deterministic. Every
// monitored parameter of the model must have an entry.
type stubSampler struct {
	draws map[string][]float64
	err   error
}

func (s stubSampler) Sample(model mcmc.Model, cfg mcmc.Config) (*mcmc.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	res := &mcmc.Result{
		Params:  model.ParamNames(),
		Samples: map[string][][]float64{},
		Mean:    map[string]float64{},
		Rhat:    map[string]float64{},
		DIC:     math.NaN(),
	}
	for _, name := range res.Params {
		d, ok := s.draws[name]
		if !ok {
			return nil, fmt.Errorf("no draws for %s", name)
		}
		res.Samples[name] = [][]float64{d}
		sum := 0.0
		for _, v := range d {
			sum += v
		}
		res.Mean[name] = sum / float64(len(d))
		res.Rhat[name] = math.NaN()
	}
	return res, nil
}

func constDraws(v float64, n int) []float64 {
	d := make([]float64, n)
	for i := range d {
		d[i] = v
	}
	return d
}

// toyDraws covers the pooled and response-conditional parameter sets in
// one map, so both model variants can share a stub.
func toyDraws() map[string][]float64 {
	return map[string][]float64{
		"meta_d":     {2.0, 2.2, 1.8},
		"meta_d_rS1": {1.6, 1.5, 1.4},
		"meta_d_rS2": {2.6, 2.5, 2.4},
		"cS1[1]":     constDraws(-1.5, 3),
		"cS1[2]":     constDraws(-1.0, 3),
		"cS1[3]":     constDraws(-0.5, 3),
		"cS2[1]":     constDraws(0.5, 3),
		"cS2[2]":     constDraws(1.0, 3),
		"cS2[3]":     constDraws(1.5, 3),
		"d1":         constDraws(2.0, 3),
		"c1":         constDraws(0.0, 3),
	}
}

func TestFitPooledWithStub(t *testing.T) {
	cfg := DefaultFitConfig()
	cfg.Sampler = stubSampler{draws: toyDraws()}
	fit, err := Fit(toyCounts, &cfg)
	if err != nil {
		t.Fatal("Fit failed:", err)
	}
	if fit.Model != "metad_dp" {
		t.Error("model = ", fit.Model, "correct = metad_dp")
	}
	if fit.D1 != 2.0 || fit.C1 != 0.0 {
		t.Error("d1/c1 = ", fit.D1, fit.C1, "correct = ", 2.0, 0.0)
	}
	if math.Abs(fit.MetaD-2.0) > 1e-12 {
		t.Error("meta_d = ", fit.MetaD, "correct = ", 2.0)
	}
	if math.Abs(fit.MRatio-1.0) > 1e-12 {
		t.Error("M-ratio = ", fit.MRatio, "correct = ", 1.0)
	}
	if math.Abs(fit.MDiff) > 1e-12 {
		t.Error("M-diff = ", fit.MDiff, "correct = ", 0.0)
	}
	if !math.IsNaN(fit.MetaDRS1) || !math.IsNaN(fit.MRatioRS2) {
		t.Error("response-conditional fields filled in pooled mode")
	}
	correctT2ca := []float64{-1.5, -1.0, -0.5}
	for i := range correctT2ca {
		if fit.T2caRS1[i] != correctT2ca[i] {
			t.Error("t2ca rS1[", i, "] = ", fit.T2caRS1[i], "correct = ", correctT2ca[i])
		}
		if fit.T2caRS2[i] != -correctT2ca[2-i] {
			t.Error("t2ca rS2[", i, "] = ", fit.T2caRS2[i], "correct = ", -correctT2ca[2-i])
		}
	}
	for i := range fit.EstHR2RS1 {
		if fit.EstHR2RS1[i] <= 0 || fit.EstHR2RS1[i] >= 1 {
			t.Error("est hr rS1[", i, "] = ", fit.EstHR2RS1[i], "correct = inside (0,1)")
		}
		if fit.EstHR2RS1[i] <= fit.EstFAR2RS1[i] {
			t.Error("est hr rS1 not above est far rS1 at", i)
		}
	}
	if len(fit.ObsHR2RS1) != 3 || len(fit.ObsFAR2RS2) != 3 {
		t.Error("observed rate lengths = ", len(fit.ObsHR2RS1), len(fit.ObsFAR2RS2), "correct = ", 3)
	}
	if len(fit.MCMC.Params) != 9 {
		t.Error("monitored params = ", len(fit.MCMC.Params), "correct = ", 9)
	}
}

func TestFitZeroD1DrawSubstitution(t *testing.T) {
	draws := toyDraws()
	draws["meta_d"] = []float64{1.0, 1.0}
	draws["d1"] = []float64{0.0, 2.0}
	draws["c1"] = constDraws(0, 2)
	for k := 1; k <= 3; k++ {
		draws[fmt.Sprintf("cS1[%d]", k)] = constDraws(-0.5*float64(4-k), 2)
		draws[fmt.Sprintf("cS2[%d]", k)] = constDraws(0.5*float64(k), 2)
	}
	cfg := DefaultFitConfig()
	cfg.Sampler = stubSampler{draws: draws}
	fit, err := Fit(toyCounts, &cfg)
	if err != nil {
		t.Fatal("Fit failed:", err)
	}
	// The zero draw enters the ratio as 1e-4: (1/1e-4 + 1/2) / 2.
	if math.Abs(fit.MRatio-5000.25) > 1e-6 {
		t.Error("M-ratio = ", fit.MRatio, "correct = ", 5000.25)
	}
	// The difference statistic keeps the raw zero draw.
	if math.Abs(fit.MDiff) > 1e-12 {
		t.Error("M-diff = ", fit.MDiff, "correct = ", 0.0)
	}
}

func TestFitResponseConditionalWithStub(t *testing.T) {
	cfg := DefaultFitConfig()
	cfg.ResponseConditional = true
	cfg.Sampler = stubSampler{draws: toyDraws()}
	fit, err := Fit(toyCounts, &cfg)
	if err != nil {
		t.Fatal("Fit failed:", err)
	}
	if fit.Model != "metad_rc_dp" {
		t.Error("model = ", fit.Model, "correct = metad_rc_dp")
	}
	if math.Abs(fit.MetaDRS1-1.5) > 1e-12 || math.Abs(fit.MetaDRS2-2.5) > 1e-12 {
		t.Error("branch meta_d = ", fit.MetaDRS1, fit.MetaDRS2, "correct = ", 1.5, 2.5)
	}
	if math.Abs(fit.MRatioRS1-0.75) > 1e-12 || math.Abs(fit.MRatioRS2-1.25) > 1e-12 {
		t.Error("branch M-ratio = ", fit.MRatioRS1, fit.MRatioRS2, "correct = ", 0.75, 1.25)
	}
	if math.Abs(fit.MDiffRS1+0.5) > 1e-12 || math.Abs(fit.MDiffRS2-0.5) > 1e-12 {
		t.Error("branch M-diff = ", fit.MDiffRS1, fit.MDiffRS2, "correct = ", -0.5, 0.5)
	}
	if !math.IsNaN(fit.MetaD) || !math.IsNaN(fit.MRatio) || !math.IsNaN(fit.MDiff) {
		t.Error("pooled fields filled in response-conditional mode")
	}

	// Both branches share the type-1 anchoring, so d1/c1 must match a
	// pooled fit over the same draws, while the branch ROC curves differ.
	pooled := DefaultFitConfig()
	pooled.Sampler = stubSampler{draws: toyDraws()}
	pfit, err := Fit(toyCounts, &pooled)
	if err != nil {
		t.Fatal("Fit failed:", err)
	}
	if fit.D1 != pfit.D1 || fit.C1 != pfit.C1 {
		t.Error("type-1 estimates differ across modes = ", fit.D1, fit.C1, pfit.D1, pfit.C1)
	}
	if fit.EstHR2RS1[0] == fit.EstHR2RS2[0] {
		t.Error("branch ROC curves identical despite different sensitivities")
	}
}

func TestFitDeterministicWithStub(t *testing.T) {
	run := func() *FitResult {
		cfg := DefaultFitConfig()
		cfg.Sampler = stubSampler{draws: toyDraws()}
		fit, err := Fit(toyCounts, &cfg)
		if err != nil {
			t.Fatal("Fit failed:", err)
		}
		return fit
	}
	a := run()
	b := run()
	if a.MetaD != b.MetaD || a.MRatio != b.MRatio || a.MDiff != b.MDiff {
		t.Error("summary statistics differ across identical runs")
	}
	if a.D1 != b.D1 || a.C1 != b.C1 {
		t.Error("type-1 estimates differ across identical runs")
	}
	for i := range a.T2caRS1 {
		if a.T2caRS1[i] != b.T2caRS1[i] || a.T2caRS2[i] != b.T2caRS2[i] {
			t.Error("criteria differ across identical runs")
		}
		if a.EstHR2RS1[i] != b.EstHR2RS1[i] || a.EstFAR2RS2[i] != b.EstFAR2RS2[i] {
			t.Error("estimated rates differ across identical runs")
		}
	}
}

func TestFitSamplerFailure(t *testing.T) {
	cfg := DefaultFitConfig()
	cfg.Sampler = stubSampler{err: errors.New("chains diverged")}
	_, err := Fit(toyCounts, &cfg)
	if !errors.Is(err, ErrSamplerFailure) {
		t.Error("error = ", err, "correct = ErrSamplerFailure")
	}
}

func TestFitInvalidCounts(t *testing.T) {
	cfg := DefaultFitConfig()
	cfg.Sampler = stubSampler{err: errors.New("must not be reached")}
	_, err := Fit(Counts{NRS1: []int{1, 2, 3}, NRS2: []int{1, 2, 3}}, &cfg)
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("error = ", err, "correct = ErrInvalidInput")
	}
}

func TestFitEmptyResponseClass(t *testing.T) {
	cfg := DefaultFitConfig()
	cfg.Sampler = stubSampler{err: errors.New("must not be reached")}
	c := Counts{NRS1: []int{0, 0, 5, 5}, NRS2: []int{1, 1, 4, 4}}
	_, err := Fit(c, &cfg)
	if !errors.Is(err, ErrDivisionByZero) {
		t.Error("error = ", err, "correct = ErrDivisionByZero")
	}
}

func TestReduceMetaDPanicsOnMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("mismatched draw arrays did not panic")
		}
	}()
	reduceMetaD([]float64{1, 2}, []float64{1})
}
