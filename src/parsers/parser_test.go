package parsers

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestFlexFloat(t *testing.T) {
	var payload struct {
		A FlexFloat `json:"a"`
		B FlexFloat `json:"b"`
		C FlexFloat `json:"c"`
		D FlexFloat `json:"d"`
		E FlexFloat `json:"e"`
	}
	is := is.New(t)
	is.NoErr(json.Unmarshal([]byte(`{"a": 7.5, "b": "7.50%", "c": "1,00,000", "d": "NA", "e": null}`), &payload))
	is.Equal(payload.A.Float64(), 7.5)
	is.Equal(payload.B.Float64(), 7.5)
	is.Equal(payload.C.Float64(), 100000.0)
	is.Equal(payload.D.Float64(), 0.0)
	is.Equal(payload.E.Float64(), 0.0)

	err := json.Unmarshal([]byte(`{"a": "seven"}`), &payload)
	is.True(errors.Is(err, ErrParsingFailed))
}

func TestRequiredDate(t *testing.T) {
	is := is.New(t)
	d, err := RequiredDate("dueDate", "10-06-2025")
	is.NoErr(err)
	is.Equal(d, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))

	_, err = RequiredDate("dueDate", "")
	is.True(errors.Is(err, ErrParsingFailed))

	blank, err := OptionalDate("NA")
	is.NoErr(err)
	is.True(blank.IsZero())

	_, err = OptionalDate("someday")
	is.True(errors.Is(err, ErrParsingFailed))
}
