package normalize

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	apperrors "signal-recorder/internal/errors"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		zone string
		want string
	}{
		{"fixed offset", "2025-07-14T15:30:45Z", "UTC+5:30", "14-07-2025 21:00:45"},
		{"padded offset", "2025-07-14T15:30:45Z", "UTC+05:30", "14-07-2025 21:00:45"},
		{"iana kolkata", "2025-07-14T15:30:45Z", "Asia/Kolkata", "14-07-2025 21:00:45"},
		{"utc", "2025-07-14T15:30:45Z", "UTC", "14-07-2025 15:30:45"},
		{"negative offset crosses day", "2025-01-01T02:00:00Z", "UTC-03", "31-12-2024 23:00:00"},
		{"new york summer", "2025-07-14T15:30:45Z", "America/New_York", "14-07-2025 11:30:45"},
		{"new york winter", "2025-01-14T15:30:45Z", "America/New_York", "14-01-2025 10:30:45"},
		{"leap day", "2024-02-29T20:00:00Z", "Asia/Kolkata", "01-03-2024 01:30:00"},
		{"widest offset", "2025-07-14T10:00:00Z", "UTC+14:00", "15-07-2025 00:00:00"},
		{"widest negative offset", "2025-07-14T10:00:00Z", "GMT-14", "13-07-2025 20:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in, tt.zone)
			if err != nil {
				t.Fatalf("Normalize(%q, %q) error: %v", tt.in, tt.zone, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q, %q) = %q, want %q", tt.in, tt.zone, got, tt.want)
			}
		})
	}
}

func TestNormalize_ParseErrors(t *testing.T) {
	inputs := []string{
		"",
		"not-a-date",
		"2025-07-14 15:30:45",
		"2025-07-14T15:30:45",
		"2025-07-14T15:30:45.123Z",
		"2025-07-14T15:30:45+05:30",
		"2025-13-14T15:30:45Z",
		"2025-02-30T15:30:45Z",
	}

	for _, in := range inputs {
		_, err := Normalize(in, "Asia/Kolkata")
		if err == nil {
			t.Errorf("Normalize(%q) expected error", in)
			continue
		}
		if !apperrors.Is(err, apperrors.ErrParse) {
			t.Errorf("Normalize(%q) error kind = %s, want ParseError", in, apperrors.KindOf(err))
		}
	}
}

func TestNormalize_TimezoneErrors(t *testing.T) {
	zones := []string{"", "Mars/Olympus", "UTC+25", "UTC+05:75", "IST+5", "UTC+14:59", "GMT-14:01", "UTC+15"}

	for _, zone := range zones {
		_, err := Normalize("2025-07-14T15:30:45Z", zone)
		if err == nil {
			t.Errorf("Normalize with zone %q expected error", zone)
			continue
		}
		if apperrors.KindOf(err) != apperrors.KindTimezone {
			t.Errorf("zone %q error kind = %s, want TimezoneError", zone, apperrors.KindOf(err))
		}
	}
}

func TestNormalizer_ReusesZone(t *testing.T) {
	n, err := NewNormalizer("Asia/Kolkata")
	if err != nil {
		t.Fatalf("NewNormalizer: %v", err)
	}
	if n.Zone() != "Asia/Kolkata" {
		t.Errorf("Zone() = %q", n.Zone())
	}

	got, err := n.Normalize("2025-07-14T15:30:45Z")
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got != "14-07-2025 21:00:45" {
		t.Errorf("got %q", got)
	}
}

// Property: normalization is deterministic and, for fixed offsets, reversible.
func TestProperty_NormalizeDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	zoneGen := gen.OneConstOf("Asia/Kolkata", "UTC", "UTC+5:30", "America/New_York", "Europe/London", "UTC-09:30")
	// 1970-01-01 .. 2099-12-31
	secondsGen := gen.Int64Range(0, 4102444799)

	properties.Property("same input yields same output", prop.ForAll(
		func(secs int64, zone string) bool {
			in := time.Unix(secs, 0).UTC().Format(InputLayout)
			a, errA := Normalize(in, zone)
			b, errB := Normalize(in, zone)
			return errA == nil && errB == nil && a == b
		},
		secondsGen,
		zoneGen,
	))

	properties.Property("fixed offset output parses back to the same instant", prop.ForAll(
		func(secs int64) bool {
			in := time.Unix(secs, 0).UTC().Format(InputLayout)
			out, err := Normalize(in, "UTC+5:30")
			if err != nil {
				return false
			}
			back, err := time.ParseInLocation(OutputLayout, out, time.FixedZone("IST", 5*3600+30*60))
			if err != nil {
				return false
			}
			return back.Unix() == secs
		},
		secondsGen,
	))

	properties.TestingRun(t)
}
