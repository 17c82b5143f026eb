package models

import "errors"

// Error classes shared by the engine, the source clients and the batch runners.
// Callers wrap them with fmt.Errorf("%w: ...") and test with errors.Is.
var (
	// ErrDataInconsistency marks source data that contradicts itself, such as a
	// record date after its due date or redemptions that do not sum to face value.
	ErrDataInconsistency = errors.New("data inconsistency")
	// ErrMissingData marks a required disclosure that the sources did not provide.
	ErrMissingData = errors.New("missing data")
	// ErrClassificationFailure marks a classifier answer outside the valid frequency set.
	ErrClassificationFailure = errors.New("frequency classification failed")
	// ErrNoYieldSolution marks cashflows whose NPV has no root in the search bracket.
	ErrNoYieldSolution = errors.New("yield unavailable")
	// ErrExternalSource marks a timeout or transport failure talking to a collaborator.
	// It is retryable.
	ErrExternalSource = errors.New("external source failure")

	ErrNotFound              = errors.New("not found")
	ErrUnsupportedInstrument = errors.New("unsupported instrument")
	ErrZeroFrequency         = errors.New("zero frequency has no interest periods")
	ErrPriceUnavailable      = errors.New("price unavailable")
)

// IsRetryable reports whether err is worth retrying on a later run.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrExternalSource)
}
