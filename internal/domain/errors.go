package domain

import "errors"

var (
	// ErrValidation signals a malformed request, rejected before any backend call.
	ErrValidation = errors.New("validation failed")
	// ErrWeightsInvalid signals a weight set that cannot be normalized.
	ErrWeightsInvalid = errors.New("invalid strategy weights")
	// ErrUnknownProfile signals an unknown weight profile name.
	ErrUnknownProfile = errors.New("unknown weight profile")
	// ErrStrategyUnavailable signals a retrieval backend failure (non-fatal).
	ErrStrategyUnavailable = errors.New("strategy unavailable")
	// ErrAnalyzerUnavailable signals a query analyzer backend failure (non-fatal).
	ErrAnalyzerUnavailable = errors.New("analyzer unavailable")
	// ErrCacheUnavailable signals an unreachable cache store (non-fatal).
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrRerankUnavailable signals a reranker failure (non-fatal, fails open).
	ErrRerankUnavailable = errors.New("reranker unavailable")
)
