package models

import "errors"

// Analysis run failure classes. Callers wrap these with context and match them with errors.Is.
var (
	// ErrDataShape reports empty, ragged, non-finite or misaligned inputs.
	ErrDataShape = errors.New("data shape error")
	// ErrModelFitFailure reports that no candidate state count produced a finite likelihood.
	ErrModelFitFailure = errors.New("model fit failure")
	// ErrConfiguration reports an allocation policy that does not cover a produced regime.
	ErrConfiguration = errors.New("configuration error")
	// ErrRunNotFound reports that no analysis run is cached for a symbol.
	ErrRunNotFound = errors.New("analysis run not found")
	// ErrSymbolNotFound reports that the price source has no data for a symbol.
	ErrSymbolNotFound = errors.New("no price data for symbol")
)

// ErrRunInProgress reports that another analysis of the same symbol holds the run lock.
var ErrRunInProgress = errors.New("analysis run already in progress")
