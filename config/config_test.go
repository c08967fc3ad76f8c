package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitDefaults(t *testing.T) {
	cfg, err := Init("")
	if err != nil {
		t.Fatal("Init failed:", err)
	}
	if cfg.Sampler.NChains != 3 || cfg.Sampler.NBurnin != 3000 || cfg.Sampler.NSamples != 10000 || cfg.Sampler.NThin != 1 {
		t.Error("sampler defaults = ", cfg.Sampler, "correct = 3/3000/10000/1")
	}
	if cfg.Sampler.Parallel || !cfg.Sampler.DIC || !cfg.Sampler.Progress {
		t.Error("sampler flags = ", cfg.Sampler.Parallel, cfg.Sampler.DIC, cfg.Sampler.Progress)
	}
	if cfg.Sampler.Seed != 1 {
		t.Error("seed = ", cfg.Sampler.Seed, "correct = ", 1)
	}
	if cfg.Fit.ResponseConditional || !cfg.Fit.EstimateDPrime {
		t.Error("fit flags = ", cfg.Fit.ResponseConditional, cfg.Fit.EstimateDPrime)
	}
	if cfg.Fit.NRatings != 4 {
		t.Error("nratings = ", cfg.Fit.NRatings, "correct = ", 4)
	}
	if cfg.Output.FitFile != "fit.json" {
		t.Error("fit file = ", cfg.Output.FitFile, "correct = fit.json")
	}
}

func TestInitFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf.yaml")
	body := "sampler:\n" +
		"  nchains: 5\n" +
		"  nburnin: 100\n" +
		"fit:\n" +
		"  response_conditional: true\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal("write failed:", err)
	}
	cfg, err := Init(path)
	if err != nil {
		t.Fatal("Init failed:", err)
	}
	if cfg.Sampler.NChains != 5 || cfg.Sampler.NBurnin != 100 {
		t.Error("sampler = ", cfg.Sampler.NChains, cfg.Sampler.NBurnin, "correct = ", 5, 100)
	}
	if !cfg.Fit.ResponseConditional {
		t.Error("response_conditional not read from file")
	}
	if cfg.Sampler.NSamples != 10000 {
		t.Error("nsamples = ", cfg.Sampler.NSamples, "correct = default 10000")
	}
}

func TestInitMissingExplicitFile(t *testing.T) {
	if _, err := Init(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing explicit config accepted")
	}
}

func TestInitEnvOverride(t *testing.T) {
	t.Setenv("HMETAD_SAMPLER_NCHAINS", "7")
	t.Setenv("HMETAD_FIT_PAD_CELLS", "true")
	cfg, err := Init("")
	if err != nil {
		t.Fatal("Init failed:", err)
	}
	if cfg.Sampler.NChains != 7 {
		t.Error("nchains = ", cfg.Sampler.NChains, "correct = ", 7)
	}
	if !cfg.Fit.PadCells {
		t.Error("pad_cells not read from environment")
	}
}
