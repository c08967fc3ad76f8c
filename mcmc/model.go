// Package mcmc provides an adaptive random-walk Metropolis sampler for
// small fixed-dimension Bayesian models, with multi-chain Gelman-Rubin
// diagnostics and the deviance information criterion.
package mcmc

import "math/rand"

// Model is an unnormalized posterior density over a fixed-length
// parameter vector. Implementations must be safe for concurrent use by
// multiple chains; the sampler never mutates a model.
type Model interface {
	// Name identifies the model variant.
	Name() string
	// Dim is the length of the free-parameter vector theta.
	Dim() int
	// ParamNames lists the monitored quantities in the order Track emits
	// them, vector parameters expanded element by element (cS1[1], ...).
	ParamNames() []string
	// Track maps a free-parameter vector to the monitored quantities,
	// including deterministic transforms and constants.
	Track(theta []float64) []float64
	// LogPosterior returns the unnormalized posterior log-density.
	LogPosterior(theta []float64) float64
	// LogLikelihood returns the data log-likelihood alone.
	LogLikelihood(theta []float64) float64
	// InitialState draws a starting vector for one chain.
	InitialState(chain int, rng *rand.Rand) []float64
}
