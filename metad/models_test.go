package metad

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func toyTypeOne(t *testing.T) *TypeOne {
	t.Helper()
	t1, err := TypeOneFromCounts(toyCounts, stdNormal.Quantile)
	if err != nil {
		t.Fatal("TypeOneFromCounts failed:", err)
	}
	return t1
}

func TestNewModelVariants(t *testing.T) {
	t1 := toyTypeOne(t)
	cases := []struct {
		name   string
		dim    int
		params int
	}{
		{"metad", 7, 9},
		{"metad_dp", 9, 9},
		{"metad_rc", 8, 10},
		{"metad_rc_dp", 10, 10},
	}
	for _, c := range cases {
		m, err := NewModel(c.name, toyCounts, t1, nil)
		if err != nil {
			t.Fatal("NewModel", c.name, "failed:", err)
		}
		if m.Name() != c.name {
			t.Error("Name = ", m.Name(), "correct = ", c.name)
		}
		if m.Dim() != c.dim {
			t.Error(c.name, "Dim = ", m.Dim(), "correct = ", c.dim)
		}
		if len(m.ParamNames()) != c.params {
			t.Error(c.name, "params = ", len(m.ParamNames()), "correct = ", c.params)
		}
	}
}

func TestNewModelUnknown(t *testing.T) {
	t1 := toyTypeOne(t)
	_, err := NewModel("metad_x", toyCounts, t1, nil)
	if !errors.Is(err, ErrInvalidInput) {
		t.Error("error = ", err, "correct = ErrInvalidInput")
	}
}

func TestBranchProbsHandValue(t *testing.T) {
	// One criterion at -1, type-1 criterion at 0, evidence mean -1.
	// Response area is Phi(1); the high-confidence bin holds
	// Phi(0)/Phi(1) of it.
	p := branchProbs(stdNormal.CDF, 0, []float64{-1}, -1, false)
	if p == nil {
		t.Fatal("branchProbs returned nil")
	}
	if math.Abs(p[0]-0.5942867) > 1e-6 {
		t.Error("p[0] = ", p[0], "correct = ", 0.5942867)
	}
	if math.Abs(p[1]-0.4057133) > 1e-6 {
		t.Error("p[1] = ", p[1], "correct = ", 0.4057133)
	}
}

func TestBranchProbsMirror(t *testing.T) {
	// With c1 = 0 and mirrored criteria the two response classes see the
	// same conditional bin masses.
	cS1 := []float64{-1.5, -1.0, -0.5}
	cS2 := []float64{0.5, 1.0, 1.5}
	p := branchProbs(stdNormal.CDF, 0, cS1, -1, false)
	q := branchProbs(stdNormal.CDF, 0, cS2, 1, true)
	if p == nil || q == nil {
		t.Fatal("branchProbs returned nil")
	}
	for k := range p {
		if math.Abs(p[k]-q[len(q)-1-k]) > 1e-12 {
			t.Error("bin", k, "= ", p[k], "correct = ", q[len(q)-1-k])
		}
	}
}

func TestBranchProbsSumToOne(t *testing.T) {
	cases := []struct {
		c1   float64
		crit []float64
		mu   float64
		rS2  bool
	}{
		{0, []float64{-1.5, -1.0, -0.5}, -1, false},
		{0, []float64{-1.5, -1.0, -0.5}, 1, false},
		{0.3, []float64{0.5, 1.0, 1.5}, 1, true},
		{-0.2, []float64{0.1, 0.9}, -0.5, true},
	}
	for i, c := range cases {
		p := branchProbs(stdNormal.CDF, c.c1, c.crit, c.mu, c.rS2)
		if p == nil {
			t.Fatal("case", i, "branchProbs returned nil")
		}
		sum := 0.0
		for _, v := range p {
			sum += v
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Error("case", i, "sum = ", sum, "correct = ", 1.0)
		}
	}
}

func TestBranchProbsVanishedArea(t *testing.T) {
	if p := branchProbs(stdNormal.CDF, 0, []float64{-1}, 60, false); p != nil {
		t.Error("vanished rS1 area = ", p, "correct = nil")
	}
	if p := branchProbs(stdNormal.CDF, 0, []float64{1}, -60, true); p != nil {
		t.Error("vanished rS2 area = ", p, "correct = nil")
	}
}

func TestModelFiniteAtInitialState(t *testing.T) {
	t1 := toyTypeOne(t)
	for _, name := range []string{"metad", "metad_dp", "metad_rc", "metad_rc_dp"} {
		m, err := NewModel(name, toyCounts, t1, nil)
		if err != nil {
			t.Fatal("NewModel failed:", err)
		}
		rng := rand.New(rand.NewSource(1))
		for chain := 0; chain < 3; chain++ {
			theta := m.InitialState(chain, rng)
			if len(theta) != m.Dim() {
				t.Error(name, "initial state length = ", len(theta), "correct = ", m.Dim())
			}
			lp := m.LogPosterior(theta)
			if math.IsNaN(lp) || math.IsInf(lp, 0) {
				t.Error(name, "initial log-posterior = ", lp, "correct = finite")
			}
			if got := len(m.Track(theta)); got != len(m.ParamNames()) {
				t.Error(name, "tracked length = ", got, "correct = ", len(m.ParamNames()))
			}
		}
	}
}

func TestModelCriteriaSupport(t *testing.T) {
	t1 := toyTypeOne(t)
	m, err := NewModel("metad", toyCounts, t1, nil)
	if err != nil {
		t.Fatal("NewModel failed:", err)
	}
	// A raw "S1" criterion at the type-1 criterion is outside the
	// truncated prior support.
	theta := []float64{2, -1.5, -1.0, t1.C1, 0.5, 1.0, 1.5}
	if lp := m.LogPosterior(theta); !math.IsInf(lp, -1) {
		t.Error("log-posterior = ", lp, "correct = -Inf outside support")
	}
	theta = []float64{2, -1.5, -1.0, -0.5, t1.C1, 1.0, 1.5}
	if lp := m.LogPosterior(theta); !math.IsInf(lp, -1) {
		t.Error("log-posterior = ", lp, "correct = -Inf outside support")
	}
}

func TestTrackSortsCriteria(t *testing.T) {
	t1 := toyTypeOne(t)
	m, err := NewModel("metad", toyCounts, t1, nil)
	if err != nil {
		t.Fatal("NewModel failed:", err)
	}
	theta := []float64{2, -1.0, -2.0, -1.5, 1.5, 0.5, 1.0}
	got := m.Track(theta)
	correct := []float64{2, -2.0, -1.5, -1.0, 0.5, 1.0, 1.5}
	for i := range correct {
		if got[i] != correct[i] {
			t.Error("tracked[", i, "] = ", got[i], "correct = ", correct[i])
		}
	}
	if got[7] != t1.D1 || got[8] != t1.C1 {
		t.Error("tracked d1/c1 = ", got[7], got[8], "correct = ", t1.D1, t1.C1)
	}
}

func TestLogLikelihoodPeaksNearEstimate(t *testing.T) {
	t1 := toyTypeOne(t)
	m := newSubjectModel(toyCounts, t1, false, false, nil)
	theta := func(md float64) []float64 {
		return []float64{md, -1.5, -1.0, -0.5, 0.5, 1.0, 1.5}
	}
	at := m.LogLikelihood(theta(t1.D1))
	lo := m.LogLikelihood(theta(t1.D1 - 4))
	hi := m.LogLikelihood(theta(t1.D1 + 4))
	if !(at > lo && at > hi) {
		t.Error("log-likelihood at d1 = ", at, "flanks = ", lo, hi,
			"correct = peak between flanks")
	}
}

func TestResponseConditionalSeparatesBranches(t *testing.T) {
	t1 := toyTypeOne(t)
	m := newSubjectModel(toyCounts, t1, true, false, nil)
	base := []float64{2, 2, -1.5, -1.0, -0.5, 0.5, 1.0, 1.5}
	moved := append([]float64(nil), base...)
	moved[1] = 0.5
	if m.LogLikelihood(base) == m.LogLikelihood(moved) {
		t.Error("changing meta_d_rS2 left the likelihood unchanged")
	}
	// The "S1" branch terms must not move with meta_d_rS2: compare
	// against shifting meta_d_rS1 instead, which must give a different
	// likelihood than shifting meta_d_rS2.
	movedRS1 := append([]float64(nil), base...)
	movedRS1[0] = 0.5
	if m.LogLikelihood(movedRS1) == m.LogLikelihood(moved) {
		t.Error("branch sensitivities are not applied per response class")
	}
}

func TestModelNameComposition(t *testing.T) {
	cases := []struct {
		respCond, estDP bool
		correct         string
	}{
		{false, false, "metad"},
		{false, true, "metad_dp"},
		{true, false, "metad_rc"},
		{true, true, "metad_rc_dp"},
	}
	for _, c := range cases {
		if got := modelName(c.respCond, c.estDP); got != c.correct {
			t.Error("modelName = ", got, "correct = ", c.correct)
		}
	}
}
