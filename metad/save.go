package metad

import (
	"encoding/json"
	"math"
	"os"
)

// jsonFloat marshals non-finite values as null so fit records with
// absent mode fields or single-chain Rhat stay valid JSON.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func (f *jsonFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = jsonFloat(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

type mcmcSummaryJSON struct {
	DIC     jsonFloat              `json:"dic"`
	Rhat    map[string]jsonFloat   `json:"Rhat"`
	Samples map[string][][]float64 `json:"samples"`
	Params  []string               `json:"params"`
}

type fitResultJSON struct {
	Model string    `json:"model"`
	D1    jsonFloat `json:"d1"`
	C1    jsonFloat `json:"c1"`

	MetaD  jsonFloat `json:"meta_d"`
	MRatio jsonFloat `json:"M_ratio"`
	MDiff  jsonFloat `json:"M_diff"`

	MetaDRS1  jsonFloat `json:"meta_d_rS1"`
	MetaDRS2  jsonFloat `json:"meta_d_rS2"`
	MRatioRS1 jsonFloat `json:"M_ratio_rS1"`
	MRatioRS2 jsonFloat `json:"M_ratio_rS2"`
	MDiffRS1  jsonFloat `json:"M_diff_rS1"`
	MDiffRS2  jsonFloat `json:"M_diff_rS2"`

	T2caRS1 []float64 `json:"t2ca_rS1"`
	T2caRS2 []float64 `json:"t2ca_rS2"`

	ObsHR2RS1  []float64 `json:"obs_HR2_rS1"`
	ObsFAR2RS1 []float64 `json:"obs_FAR2_rS1"`
	EstHR2RS1  []float64 `json:"est_HR2_rS1"`
	EstFAR2RS1 []float64 `json:"est_FAR2_rS1"`
	ObsHR2RS2  []float64 `json:"obs_HR2_rS2"`
	ObsFAR2RS2 []float64 `json:"obs_FAR2_rS2"`
	EstHR2RS2  []float64 `json:"est_HR2_rS2"`
	EstFAR2RS2 []float64 `json:"est_FAR2_rS2"`

	MCMC mcmcSummaryJSON `json:"mcmc"`
}

func newMCMCSummaryJSON(s MCMCSummary) mcmcSummaryJSON {
	rhat := make(map[string]jsonFloat, len(s.Rhat))
	for k, v := range s.Rhat {
		rhat[k] = jsonFloat(v)
	}
	return mcmcSummaryJSON{
		DIC:     jsonFloat(s.DIC),
		Rhat:    rhat,
		Samples: s.Samples,
		Params:  s.Params,
	}
}

func (j mcmcSummaryJSON) toSummary() MCMCSummary {
	rhat := make(map[string]float64, len(j.Rhat))
	for k, v := range j.Rhat {
		rhat[k] = float64(v)
	}
	return MCMCSummary{
		DIC:     float64(j.DIC),
		Rhat:    rhat,
		Samples: j.Samples,
		Params:  j.Params,
	}
}

func newFitResultJSON(fit *FitResult) *fitResultJSON {
	return &fitResultJSON{
		Model:      fit.Model,
		D1:         jsonFloat(fit.D1),
		C1:         jsonFloat(fit.C1),
		MetaD:      jsonFloat(fit.MetaD),
		MRatio:     jsonFloat(fit.MRatio),
		MDiff:      jsonFloat(fit.MDiff),
		MetaDRS1:   jsonFloat(fit.MetaDRS1),
		MetaDRS2:   jsonFloat(fit.MetaDRS2),
		MRatioRS1:  jsonFloat(fit.MRatioRS1),
		MRatioRS2:  jsonFloat(fit.MRatioRS2),
		MDiffRS1:   jsonFloat(fit.MDiffRS1),
		MDiffRS2:   jsonFloat(fit.MDiffRS2),
		T2caRS1:    fit.T2caRS1,
		T2caRS2:    fit.T2caRS2,
		ObsHR2RS1:  fit.ObsHR2RS1,
		ObsFAR2RS1: fit.ObsFAR2RS1,
		EstHR2RS1:  fit.EstHR2RS1,
		EstFAR2RS1: fit.EstFAR2RS1,
		ObsHR2RS2:  fit.ObsHR2RS2,
		ObsFAR2RS2: fit.ObsFAR2RS2,
		EstHR2RS2:  fit.EstHR2RS2,
		EstFAR2RS2: fit.EstFAR2RS2,
		MCMC:       newMCMCSummaryJSON(fit.MCMC),
	}
}

func (j *fitResultJSON) toFitResult() *FitResult {
	return &FitResult{
		Model:      j.Model,
		D1:         float64(j.D1),
		C1:         float64(j.C1),
		MetaD:      float64(j.MetaD),
		MRatio:     float64(j.MRatio),
		MDiff:      float64(j.MDiff),
		MetaDRS1:   float64(j.MetaDRS1),
		MetaDRS2:   float64(j.MetaDRS2),
		MRatioRS1:  float64(j.MRatioRS1),
		MRatioRS2:  float64(j.MRatioRS2),
		MDiffRS1:   float64(j.MDiffRS1),
		MDiffRS2:   float64(j.MDiffRS2),
		T2caRS1:    j.T2caRS1,
		T2caRS2:    j.T2caRS2,
		ObsHR2RS1:  j.ObsHR2RS1,
		ObsFAR2RS1: j.ObsFAR2RS1,
		EstHR2RS1:  j.EstHR2RS1,
		EstFAR2RS1: j.EstFAR2RS1,
		ObsHR2RS2:  j.ObsHR2RS2,
		ObsFAR2RS2: j.ObsFAR2RS2,
		EstHR2RS2:  j.EstHR2RS2,
		EstFAR2RS2: j.EstFAR2RS2,
		MCMC:       j.MCMC.toSummary(),
	}
}

// SaveFit writes a fit record to path as indented JSON.
func SaveFit(fit *FitResult, path string) error {
	b, err := json.MarshalIndent(newFitResultJSON(fit), "", " ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// LoadFit reads a fit record written by SaveFit.
func LoadFit(path string) (*FitResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var j fitResultJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, err
	}
	return j.toFitResult(), nil
}

type subjectResultJSON struct {
	D1     jsonFloat `json:"d1"`
	C1     jsonFloat `json:"c1"`
	MetaD  jsonFloat `json:"meta_d"`
	MRatio jsonFloat `json:"Mratio"`

	T2caRS1 []float64 `json:"t2ca_rS1"`
	T2caRS2 []float64 `json:"t2ca_rS2"`

	ObsHR2RS1  []float64 `json:"obs_HR2_rS1"`
	ObsFAR2RS1 []float64 `json:"obs_FAR2_rS1"`
	EstHR2RS1  []float64 `json:"est_HR2_rS1"`
	EstFAR2RS1 []float64 `json:"est_FAR2_rS1"`
	ObsHR2RS2  []float64 `json:"obs_HR2_rS2"`
	ObsFAR2RS2 []float64 `json:"obs_FAR2_rS2"`
	EstHR2RS2  []float64 `json:"est_HR2_rS2"`
	EstFAR2RS2 []float64 `json:"est_FAR2_rS2"`
}

type groupResultJSON struct {
	MuLogMratio    jsonFloat           `json:"mu_logMratio"`
	SigmaLogMratio jsonFloat           `json:"sigma_logMratio"`
	GroupMRatio    jsonFloat           `json:"group_Mratio"`
	Subjects       []subjectResultJSON `json:"subjects"`
	MCMC           mcmcSummaryJSON     `json:"mcmc"`
}

func newGroupResultJSON(g *GroupResult) *groupResultJSON {
	out := &groupResultJSON{
		MuLogMratio:    jsonFloat(g.MuLogMratio),
		SigmaLogMratio: jsonFloat(g.SigmaLogMratio),
		GroupMRatio:    jsonFloat(g.GroupMRatio),
		MCMC:           newMCMCSummaryJSON(g.MCMC),
	}
	for _, s := range g.Subjects {
		out.Subjects = append(out.Subjects, subjectResultJSON{
			D1:         jsonFloat(s.D1),
			C1:         jsonFloat(s.C1),
			MetaD:      jsonFloat(s.MetaD),
			MRatio:     jsonFloat(s.MRatio),
			T2caRS1:    s.T2caRS1,
			T2caRS2:    s.T2caRS2,
			ObsHR2RS1:  s.ObsHR2RS1,
			ObsFAR2RS1: s.ObsFAR2RS1,
			EstHR2RS1:  s.EstHR2RS1,
			EstFAR2RS1: s.EstFAR2RS1,
			ObsHR2RS2:  s.ObsHR2RS2,
			ObsFAR2RS2: s.ObsFAR2RS2,
			EstHR2RS2:  s.EstHR2RS2,
			EstFAR2RS2: s.EstFAR2RS2,
		})
	}
	return out
}

func (j *groupResultJSON) toGroupResult() *GroupResult {
	out := &GroupResult{
		MuLogMratio:    float64(j.MuLogMratio),
		SigmaLogMratio: float64(j.SigmaLogMratio),
		GroupMRatio:    float64(j.GroupMRatio),
		MCMC:           j.MCMC.toSummary(),
	}
	for _, s := range j.Subjects {
		out.Subjects = append(out.Subjects, SubjectResult{
			D1:         float64(s.D1),
			C1:         float64(s.C1),
			MetaD:      float64(s.MetaD),
			MRatio:     float64(s.MRatio),
			T2caRS1:    s.T2caRS1,
			T2caRS2:    s.T2caRS2,
			ObsHR2RS1:  s.ObsHR2RS1,
			ObsFAR2RS1: s.ObsFAR2RS1,
			EstHR2RS1:  s.EstHR2RS1,
			EstFAR2RS1: s.EstFAR2RS1,
			ObsHR2RS2:  s.ObsHR2RS2,
			ObsFAR2RS2: s.ObsFAR2RS2,
			EstHR2RS2:  s.EstHR2RS2,
			EstFAR2RS2: s.EstFAR2RS2,
		})
	}
	return out
}

// SaveGroupFit writes a group fit record to path as indented JSON.
func SaveGroupFit(g *GroupResult, path string) error {
	b, err := json.MarshalIndent(newGroupResultJSON(g), "", " ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// LoadGroupFit reads a group fit record written by SaveGroupFit.
func LoadGroupFit(path string) (*GroupResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var j groupResultJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return nil, err
	}
	return j.toGroupResult(), nil
}
