package processors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/username/bondflow/src/logger"
	"github.com/username/bondflow/src/models"
)

// validFrequencies are the coupon payments per year the engine understands.
var validFrequencies = map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true, 12: true}

func ValidFrequency(f int) bool { return validFrequencies[f] }

type keywordRule struct {
	frequency int
	any       []string
	none      []string
}

// Checked in order; the first rule with a matching keyword wins.
var frequencyKeywordRules = []keywordRule{
	{frequency: 12, any: []string{"monthly", "every month", "twelve"}},
	{frequency: 4, any: []string{"quarterly", "every 3 months", "every three months", "four"}},
	{frequency: 3, any: []string{"thrice"}},
	{frequency: 2, any: []string{"semi", "half-yearly", "half yearly", "every 6 months", "every six months", "twice a"}},
	{frequency: 1, any: []string{"annual", "yearly", "once a year"}, none: []string{"semi"}},
}

// MatchFrequencyKeyword applies the deterministic part of frequency
// resolution. ok is false when only the classifier can decide.
func MatchFrequencyKeyword(text string, couponRate float64) (frequency int, ok bool) {
	t := strings.ToLower(strings.TrimSpace(text))
	if couponRate <= 0 || strings.Contains(t, "on maturity") {
		return 0, true
	}
	for _, rule := range frequencyKeywordRules {
		if containsAny(t, rule.none) {
			continue
		}
		if containsAny(t, rule.any) {
			return rule.frequency, true
		}
	}
	return 0, false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

type frequencyResolverImpl struct {
	classifier  FrequencyClassifier
	maxAttempts int
	fallback    int
	log         *slog.Logger
}

// NewFrequencyResolver builds a resolver. classifier may be nil, in which case
// unmatched text resolves to the fallback frequency.
func NewFrequencyResolver(classifier FrequencyClassifier, opts EngineOptions) FrequencyResolver {
	opts = opts.withDefaults()
	return &frequencyResolverImpl{
		classifier:  classifier,
		maxAttempts: opts.ClassifierMaxAttempts,
		fallback:    opts.FallbackFrequency,
		log:         logger.OrDefault(opts.Logger),
	}
}

func (r *frequencyResolverImpl) Resolve(ctx context.Context, securityID int64, text string, couponRate float64) (int, error) {
	if f, ok := MatchFrequencyKeyword(text, couponRate); ok {
		return f, nil
	}
	if r.classifier == nil {
		r.log.Warn("No frequency classifier configured, using fallback frequency",
			"securityID", securityID, "text", text, "fallback", r.fallback)
		return r.fallback, nil
	}

	var lastErr error
	transportFailures := 0
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("%w: resolving frequency for security %d: %v", models.ErrExternalSource, securityID, err)
		}
		f, err := r.classifier.Classify(ctx, securityID, text)
		if err == nil && ValidFrequency(f) {
			r.log.Debug("Frequency classified", "securityID", securityID, "frequency", f, "attempt", attempt)
			return f, nil
		}
		if err == nil {
			err = fmt.Errorf("%w: classifier returned %d", models.ErrClassificationFailure, f)
		}
		if errors.Is(err, models.ErrExternalSource) {
			transportFailures++
		}
		lastErr = err
		r.log.Warn("Frequency classification attempt failed",
			"securityID", securityID, "attempt", attempt, "maxAttempts", r.maxAttempts, "error", err)
	}

	if transportFailures == r.maxAttempts {
		return 0, fmt.Errorf("resolving frequency for security %d: %w", securityID, lastErr)
	}
	r.log.Error("Frequency classifier gave no valid answer, USING FALLBACK FREQUENCY",
		"securityID", securityID, "text", text, "fallback", r.fallback, "lastError", lastErr)
	return r.fallback, nil
}
