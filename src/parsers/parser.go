package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/username/bondflow/src/utils"
)

// ErrParsingFailed marks a payload that could not be mapped to the typed models.
var ErrParsingFailed = errors.New("parsing failed")

// FlexFloat decodes a JSON number that some feeds send as a string, possibly
// with a percent sign, thousands separators or an "NA" placeholder.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == "" {
		*f = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s = str
	}
	v, err := ParseNumber(s)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

func (f FlexFloat) Float64() float64 { return float64(f) }

// ParseNumber reads "7.5%", "1,000.00" and similar. Placeholders read as zero.
func ParseNumber(s string) (float64, error) {
	clean := strings.TrimSpace(s)
	if i := strings.Index(clean, "%"); i >= 0 {
		clean = clean[:i]
	}
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.TrimPrefix(clean, "₹")
	clean = strings.TrimSpace(clean)
	switch strings.ToUpper(clean) {
	case "", "NA", "N.A.", "N/A", "-", "NIL":
		return 0, nil
	}
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: not a number %q", ErrParsingFailed, s)
	}
	return v, nil
}

// OptionalDate parses a feed date, returning the zero time for blanks.
// Garbage that is not blank is still an error.
func OptionalDate(s string) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	switch strings.ToUpper(trimmed) {
	case "", "NA", "N.A.", "-":
		return time.Time{}, nil
	}
	t, err := utils.ParseDate(trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}
	return t, nil
}

// RequiredDate is OptionalDate that rejects blanks. field names the value in errors.
func RequiredDate(field, s string) (time.Time, error) {
	t, err := OptionalDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	if t.IsZero() {
		return time.Time{}, fmt.Errorf("%w: %s is required", ErrParsingFailed, field)
	}
	return t, nil
}
