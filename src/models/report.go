package models

import (
	"errors"
	"time"
)

// SkipReason classifies why an instrument was left out of a batch run.
type SkipReason string

const (
	SkipMissingData  SkipReason = "missing_data"
	SkipInconsistent SkipReason = "data_inconsistency"
	SkipUnsupported  SkipReason = "unsupported"
	SkipNoYield      SkipReason = "no_yield"
	SkipNoPrice      SkipReason = "no_price"
	SkipExternal     SkipReason = "external_source"
	SkipClassifier   SkipReason = "classification"
	SkipNotFound     SkipReason = "not_found"
	SkipUnclassified SkipReason = "error"
)

// ClassifySkip maps an error to the reason recorded in a run report.
func ClassifySkip(err error) SkipReason {
	switch {
	case errors.Is(err, ErrNotFound):
		return SkipNotFound
	case errors.Is(err, ErrExternalSource):
		return SkipExternal
	case errors.Is(err, ErrUnsupportedInstrument):
		return SkipUnsupported
	case errors.Is(err, ErrMissingData), errors.Is(err, ErrZeroFrequency):
		return SkipMissingData
	case errors.Is(err, ErrDataInconsistency):
		return SkipInconsistent
	case errors.Is(err, ErrNoYieldSolution):
		return SkipNoYield
	case errors.Is(err, ErrPriceUnavailable):
		return SkipNoPrice
	case errors.Is(err, ErrClassificationFailure):
		return SkipClassifier
	}
	return SkipUnclassified
}

// SkippedInstrument is one failed instrument of a batch run.
type SkippedInstrument struct {
	SecurityID int64      `json:"security_id"`
	ISIN       string     `json:"isin,omitempty"`
	Reason     SkipReason `json:"reason"`
	Retryable  bool       `json:"retryable"`
	Error      string     `json:"error"`
}

// BatchReport summarises one batch run.
type BatchReport struct {
	RunID      string              `json:"run_id"`
	Job        string              `json:"job"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Total      int                 `json:"total"`
	Succeeded  int                 `json:"succeeded"`
	Skipped    []SkippedInstrument `json:"skipped"`
}

func (r BatchReport) HasFailures() bool { return len(r.Skipped) > 0 }
