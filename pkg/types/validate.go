package types

import (
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Field rules shared by NewCatch and CatchPatch validation. The store never
// validates; these are for callers to run before Add or Update.
var (
	speciesRules   = []validation.Rule{validation.Required}
	weightRules    = []validation.Rule{validation.Required, validation.Min(0.0).Exclusive()}
	latitudeRules  = []validation.Rule{validation.Min(-90.0), validation.Max(90.0)}
	longitudeRules = []validation.Rule{validation.Min(-180.0), validation.Max(180.0)}
	dateTimeRules  = []validation.Rule{validation.Required, validation.By(isTimestamp)}
	photosRules    = []validation.Rule{validation.Length(0, MaxPhotos)}
	weatherRules   = []validation.Rule{validation.By(isWeather)}
)

func isTimestamp(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := ParseDateTime(s); err != nil {
		return errors.New("must be an RFC 3339 timestamp")
	}
	return nil
}

func isWeather(value any) error {
	w, _ := value.(*Weather)
	if w == nil || w.Valid() {
		return nil
	}
	return errors.New("must be one of sunny, cloudy, rainy, windy")
}

// ParseDateTime parses a catch DateTime. Both offset and Z forms are
// accepted, with or without fractional seconds.
func ParseDateTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// floatingLayouts are DateTime forms without a zone. Imported backups and
// older records may carry them.
var floatingLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", time.DateOnly}

// ParseDateTimeIn parses a stored DateTime leniently. Values that
// ParseDateTime rejects are tried as a bare date or a date and time without
// an offset, both read in loc.
func ParseDateTimeIn(s string, loc *time.Location) (time.Time, error) {
	t, err := ParseDateTime(s)
	if err == nil {
		return t, nil
	}
	for _, layout := range floatingLayouts {
		if ft, ferr := time.ParseInLocation(layout, s, loc); ferr == nil {
			return ft, nil
		}
	}
	return time.Time{}, err
}

// Validate checks the fields of n. The returned error is a
// validation.Errors keyed by JSON field name.
func (n NewCatch) Validate() error {
	return validation.Errors{
		"species":   validation.Validate(n.Species, speciesRules...),
		"weight":    validation.Validate(n.Weight, weightRules...),
		"latitude":  validation.Validate(n.Latitude, latitudeRules...),
		"longitude": validation.Validate(n.Longitude, longitudeRules...),
		"dateTime":  validation.Validate(n.DateTime, dateTimeRules...),
		"photoUris": validation.Validate(n.PhotoURIs, photosRules...),
		"weather":   validation.Validate(n.Weather, weatherRules...),
	}.Filter()
}

// Validate checks only the Set fields of p.
func (p CatchPatch) Validate() error {
	errs := validation.Errors{}
	if p.Species.Set {
		errs["species"] = validation.Validate(p.Species.Value, speciesRules...)
	}
	if p.Weight.Set {
		errs["weight"] = validation.Validate(p.Weight.Value, weightRules...)
	}
	if p.Latitude.Set {
		errs["latitude"] = validation.Validate(p.Latitude.Value, latitudeRules...)
	}
	if p.Longitude.Set {
		errs["longitude"] = validation.Validate(p.Longitude.Value, longitudeRules...)
	}
	if p.DateTime.Set {
		errs["dateTime"] = validation.Validate(p.DateTime.Value, dateTimeRules...)
	}
	if p.PhotoURIs.Set {
		errs["photoUris"] = validation.Validate(p.PhotoURIs.Value, photosRules...)
	}
	if p.Weather.Set {
		errs["weather"] = validation.Validate(p.Weather.Value, weatherRules...)
	}
	return errs.Filter()
}
