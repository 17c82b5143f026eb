package utils

import (
	"testing"

	"github.com/matryer/is"
)

func TestNormalizeISIN(t *testing.T) {
	testCases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "INE002A01018", want: "INE002A01018"},
		{in: " ine657n07431 ", want: "INE657N07431"},
		{in: "INE01CY079E7", want: "INE01CY079E7"},
		{in: "INE002A01019", wantErr: true},
		{in: "INE002A0101", wantErr: true},
		{in: "1NE002A01018", wantErr: true},
		{in: "INE002A0101-", wantErr: true},
	}
	for i, tc := range testCases {
		got, err := NormalizeISIN(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Case #%v - %v: expected error, got %v", i, tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Case #%v - %v: unexpected error: %v", i, tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("Case #%v - %v: expected %v, got %v", i, tc.in, tc.want, got)
		}
	}
}

func TestCountryCode(t *testing.T) {
	is := is.New(t)
	is.Equal(CountryCode("ine002a01018"), "IN")
	is.Equal(CountryCode("X"), "")
}
