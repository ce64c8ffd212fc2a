package forecast

import "errors"

// Failure classes recorded in ForecastRun.ErrorMessage.
var (
	ErrToolFailure        = errors.New("tool failure")
	ErrSynthesisFailure   = errors.New("synthesis failure")
	ErrExtractionFailure  = errors.New("extraction failure")
	ErrPersistenceFailure = errors.New("persistence failure")
)
