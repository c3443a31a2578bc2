package models

import "errors"

// Validation failures. All fail fast: no partial snapshot, prediction, or
// weight set is committed when one of these is returned.
var (
	ErrInsufficientData = errors.New("insufficient candle data")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrMalformedSeries  = errors.New("malformed candle series")
)

// Expected flow-control conditions. Neither is fatal to a cycle: pending
// predictions are retried on the next batch, a rejected retrain leaves the
// active weight set in place.
var (
	ErrVerificationPending = errors.New("verification pending: insufficient lookahead")
	ErrRetrainRejected     = errors.New("retrain rejected: proposed weights failed validation")
)
