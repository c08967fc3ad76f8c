package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level run configuration for the hmetad command.
type Config struct {
	Fit     FitConfig     `mapstructure:"fit"`
	Sampler SamplerConfig `mapstructure:"sampler"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// FitConfig selects the model variant and input interpretation.
type FitConfig struct {
	ResponseConditional bool `mapstructure:"response_conditional"`
	EstimateDPrime      bool `mapstructure:"estimate_dprime"`
	NRatings            int  `mapstructure:"nratings"`
	PadCells            bool `mapstructure:"pad_cells"`
}

// SamplerConfig holds the MCMC run parameters.
type SamplerConfig struct {
	NChains  int   `mapstructure:"nchains"`
	NBurnin  int   `mapstructure:"nburnin"`
	NSamples int   `mapstructure:"nsamples"`
	NThin    int   `mapstructure:"nthin"`
	Parallel bool  `mapstructure:"doparallel"`
	DIC      bool  `mapstructure:"dic"`
	Progress bool  `mapstructure:"progress"`
	Seed     int64 `mapstructure:"seed"`
}

// OutputConfig holds result file paths.
type OutputConfig struct {
	FitFile string `mapstructure:"fit_file"`
	ROCFile string `mapstructure:"roc_file"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory string `mapstructure:"directory"`
	Verbose   bool   `mapstructure:"verbose"`
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	v.SetDefault("fit.response_conditional", false)
	v.SetDefault("fit.estimate_dprime", true)
	v.SetDefault("fit.nratings", 4)
	v.SetDefault("fit.pad_cells", false)

	v.SetDefault("sampler.nchains", 3)
	v.SetDefault("sampler.nburnin", 3000)
	v.SetDefault("sampler.nsamples", 10000)
	v.SetDefault("sampler.nthin", 1)
	v.SetDefault("sampler.doparallel", false)
	v.SetDefault("sampler.dic", true)
	v.SetDefault("sampler.progress", true)
	v.SetDefault("sampler.seed", 1)

	v.SetDefault("output.fit_file", "fit.json")
	v.SetDefault("output.roc_file", "")

	v.SetDefault("logging.directory", "")
	v.SetDefault("logging.verbose", false)
}

// Init loads the configuration: defaults, then an optional YAML file,
// then HMETAD_-prefixed environment variables. path may be empty, in
// which case hmetad.yaml is searched in the working directory and its
// absence is fine.
func Init(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("hmetad")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("HMETAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if path != "" || !notFound {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	return cfg, nil
}
