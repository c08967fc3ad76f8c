package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/cogneuro/HMeta-d/config"
	logger "github.com/cogneuro/HMeta-d/logging"
	"github.com/cogneuro/HMeta-d/metad"
)

func main() {
	var (
		flagMode    = flag.String("mode", "fit", "run mode: fit (counts JSON), trials (CSV), sim (simulate and fit), group (multi-subject JSON)")
		flagInput   = flag.String("input", "", "input file path")
		flagConfig  = flag.String("config", "", "config file path (YAML), overrides hmetad.yaml lookup")
		flagOut     = flag.String("out", "", "fit output path, overrides config")
		flagROC     = flag.String("roc", "", "ROC chart HTML output path, overrides config")
		flagThreads = flag.Int("threads", runtime.NumCPU(), "number of threads")

		flagSimD      = flag.Float64("simD", 2.0, "simulated type-1 d'")
		flagSimMetaD  = flag.Float64("simMetaD", 1.5, "simulated meta-d'")
		flagSimC      = flag.Float64("simC", 0.0, "simulated type-1 criterion")
		flagSimTrials = flag.Int("simTrials", 1000, "simulated trial count")
	)
	flag.Parse()
	runtime.GOMAXPROCS(*flagThreads)

	cfg, err := config.Init(*flagConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *flagOut != "" {
		cfg.Output.FitFile = *flagOut
	}
	if *flagROC != "" {
		cfg.Output.ROCFile = *flagROC
	}

	log, err := logger.Init(cfg.Logging.Directory, cfg.Logging.Verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	fitCfg := fitConfigFrom(cfg, log)

	switch *flagMode {
	case "fit":
		counts, err := metad.LoadCounts(*flagInput)
		if err != nil {
			log.Fatal("could not load counts", zap.String("input", *flagInput), zap.Error(err))
		}
		runFit(counts, &fitCfg, cfg, log)
	case "trials":
		counts, err := metad.LoadTrialsCSV(*flagInput, cfg.Fit.NRatings, cfg.Fit.PadCells)
		if err != nil {
			log.Fatal("could not load trials", zap.String("input", *flagInput), zap.Error(err))
		}
		runFit(counts, &fitCfg, cfg, log)
	case "sim":
		rng := rand.New(rand.NewSource(cfg.Sampler.Seed))
		cS1, cS2 := spreadCriteria(*flagSimC, cfg.Fit.NRatings)
		counts, err := metad.SimCounts(*flagSimD, *flagSimMetaD, *flagSimC, cS1, cS2, *flagSimTrials, rng)
		if err != nil {
			log.Fatal("simulation failed", zap.Error(err))
		}
		log.Info("simulated counts",
			zap.Float64("d", *flagSimD),
			zap.Float64("meta_d", *flagSimMetaD),
			zap.Int("trials", *flagSimTrials))
		runFit(counts, &fitCfg, cfg, log)
	case "group":
		subjects, err := metad.LoadGroupCounts(*flagInput)
		if err != nil {
			log.Fatal("could not load group counts", zap.String("input", *flagInput), zap.Error(err))
		}
		runGroupFit(subjects, &fitCfg, cfg, log)
	default:
		log.Fatal("unknown mode", zap.String("mode", *flagMode))
	}
}

func fitConfigFrom(cfg *config.Config, log *zap.Logger) metad.FitConfig {
	return metad.FitConfig{
		ResponseConditional: cfg.Fit.ResponseConditional,
		EstimateDPrime:      cfg.Fit.EstimateDPrime,
		NChains:             cfg.Sampler.NChains,
		NBurnin:             cfg.Sampler.NBurnin,
		NSamples:            cfg.Sampler.NSamples,
		NThin:               cfg.Sampler.NThin,
		Parallel:            cfg.Sampler.Parallel,
		DIC:                 cfg.Sampler.DIC,
		Progress:            cfg.Sampler.Progress,
		Seed:                cfg.Sampler.Seed,
		Logger:              log,
	}
}

// spreadCriteria places simulation type-2 criteria at half-unit steps on
// each side of the type-1 criterion.
func spreadCriteria(c float64, nRatings int) (cS1, cS2 []float64) {
	for k := nRatings - 1; k >= 1; k-- {
		cS1 = append(cS1, c-0.5*float64(k))
	}
	for k := 1; k <= nRatings-1; k++ {
		cS2 = append(cS2, c+0.5*float64(k))
	}
	return cS1, cS2
}

func runFit(counts metad.Counts, fitCfg *metad.FitConfig, cfg *config.Config, log *zap.Logger) {
	fit, err := metad.Fit(counts, fitCfg)
	if err != nil {
		log.Fatal("fit failed", zap.Error(err))
	}
	if err := metad.SaveFit(fit, cfg.Output.FitFile); err != nil {
		log.Fatal("could not write fit", zap.String("path", cfg.Output.FitFile), zap.Error(err))
	}
	log.Info("wrote fit", zap.String("path", cfg.Output.FitFile))

	if cfg.Output.ROCFile != "" {
		f, err := os.Create(cfg.Output.ROCFile)
		if err != nil {
			log.Fatal("could not create ROC file", zap.String("path", cfg.Output.ROCFile), zap.Error(err))
		}
		if err := metad.WriteROC(fit, f); err != nil {
			f.Close()
			log.Fatal("could not render ROC chart", zap.Error(err))
		}
		f.Close()
		log.Info("wrote ROC chart", zap.String("path", cfg.Output.ROCFile))
	}

	fmt.Println("model =", fit.Model)
	fmt.Println("d1 =", fit.D1, "c1 =", fit.C1)
	if fitCfg.ResponseConditional {
		fmt.Println("meta_d_rS1 =", fit.MetaDRS1, "M_ratio_rS1 =", fit.MRatioRS1)
		fmt.Println("meta_d_rS2 =", fit.MetaDRS2, "M_ratio_rS2 =", fit.MRatioRS2)
	} else {
		fmt.Println("meta_d =", fit.MetaD, "M_ratio =", fit.MRatio, "M_diff =", fit.MDiff)
	}
	fmt.Println("dic =", fit.MCMC.DIC)
}

func runGroupFit(subjects []metad.Counts, fitCfg *metad.FitConfig, cfg *config.Config, log *zap.Logger) {
	group, err := metad.FitGroup(subjects, fitCfg)
	if err != nil {
		log.Fatal("group fit failed", zap.Error(err))
	}
	if err := metad.SaveGroupFit(group, cfg.Output.FitFile); err != nil {
		log.Fatal("could not write group fit", zap.String("path", cfg.Output.FitFile), zap.Error(err))
	}
	log.Info("wrote group fit", zap.String("path", cfg.Output.FitFile))

	fmt.Println("mu_logMratio =", group.MuLogMratio, "sigma_logMratio =", group.SigmaLogMratio)
	fmt.Println("group M_ratio =", group.GroupMRatio)
	for s, sub := range group.Subjects {
		fmt.Println("subject", s+1, "meta_d =", sub.MetaD, "Mratio =", sub.MRatio)
	}
}
