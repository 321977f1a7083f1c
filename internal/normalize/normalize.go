// Package normalize converts webhook UTC timestamps into local wall-clock strings.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	apperrors "signal-recorder/internal/errors"
)

const (
	// InputLayout is the only accepted webhook time format.
	InputLayout = "2006-01-02T15:04:05Z"
	// OutputLayout renders DD-MM-YYYY HH:MM:SS.
	OutputLayout = "02-01-2006 15:04:05"
)

var (
	// time.Parse tolerates fractional seconds, the webhook format does not.
	inputPattern  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)
	offsetPattern = regexp.MustCompile(`^(?:UTC|GMT)([+-])(\d{1,2})(?::?(\d{2}))?$`)
)

// Normalizer converts timestamps into a fixed target zone.
type Normalizer struct {
	zone string
	loc  *time.Location
}

// NewNormalizer resolves zone once and returns a reusable Normalizer.
func NewNormalizer(zone string) (*Normalizer, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return nil, err
	}
	return &Normalizer{zone: zone, loc: loc}, nil
}

// Zone returns the configured zone identifier.
func (n *Normalizer) Zone() string {
	return n.zone
}

// Normalize converts a strict UTC timestamp into the normalizer's zone.
func (n *Normalizer) Normalize(utcTime string) (string, error) {
	t, err := ParseUTC(utcTime)
	if err != nil {
		return "", err
	}
	return t.In(n.loc).Format(OutputLayout), nil
}

// Normalize converts utcTime into zone and renders it as DD-MM-YYYY HH:MM:SS.
func Normalize(utcTime, zone string) (string, error) {
	n, err := NewNormalizer(zone)
	if err != nil {
		return "", err
	}
	return n.Normalize(utcTime)
}

// ParseUTC parses a YYYY-MM-DDTHH:MM:SSZ timestamp.
func ParseUTC(utcTime string) (time.Time, error) {
	if utcTime == "" {
		return time.Time{}, apperrors.NewParseError("normalize", "time is required", nil)
	}
	if !inputPattern.MatchString(utcTime) {
		return time.Time{}, apperrors.NewParseError("normalize",
			fmt.Sprintf("time %q does not match YYYY-MM-DDTHH:MM:SSZ", utcTime), nil)
	}
	t, err := time.Parse(InputLayout, utcTime)
	if err != nil {
		return time.Time{}, apperrors.NewParseError("normalize", fmt.Sprintf("invalid time %q", utcTime), err)
	}
	return t.UTC(), nil
}

// LoadZone resolves an IANA zone name or a fixed offset such as UTC+5:30.
func LoadZone(zone string) (*time.Location, error) {
	zone = strings.TrimSpace(zone)
	if zone == "" {
		return nil, apperrors.NewTimezoneError("normalize", zone, nil)
	}
	if m := offsetPattern.FindStringSubmatch(zone); m != nil {
		return fixedZone(zone, m)
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, apperrors.NewTimezoneError("normalize", zone, err)
	}
	return loc, nil
}

func fixedZone(zone string, m []string) (*time.Location, error) {
	hours, _ := strconv.Atoi(m[2])
	minutes := 0
	if m[3] != "" {
		minutes, _ = strconv.Atoi(m[3])
	}
	if hours > 14 || minutes >= 60 || (hours == 14 && minutes > 0) {
		return nil, apperrors.NewTimezoneError("normalize", zone, fmt.Errorf("offset out of range"))
	}
	offset := hours*3600 + minutes*60
	if m[1] == "-" {
		offset = -offset
	}
	return time.FixedZone(zone, offset), nil
}
