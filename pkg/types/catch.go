package types

import (
	"strings"
	"time"
)

// Weather conditions recorded with a catch.
type Weather string

const (
	WeatherSunny  Weather = "sunny"
	WeatherCloudy Weather = "cloudy"
	WeatherRainy  Weather = "rainy"
	WeatherWindy  Weather = "windy"
)

// validWeather is the set of recognized weather values.
var validWeather = map[Weather]bool{
	WeatherSunny:  true,
	WeatherCloudy: true,
	WeatherRainy:  true,
	WeatherWindy:  true,
}

// Valid reports whether w is one of the Weather constants.
func (w Weather) Valid() bool {
	return validWeather[w]
}

// MaxPhotos is the number of photo references a catch may carry.
const MaxPhotos = 5

// NoID is returned by Store.Add when the record could not be persisted.
// Assigned ids start at 1.
const NoID int64 = 0

// TimestampLayout is the layout of CreatedAt and UpdatedAt: UTC with
// millisecond precision, so timestamps order correctly as strings.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Catch is one logged fishing catch, the only persisted entity.
type Catch struct {
	ID           int64    `json:"id"`
	Species      string   `json:"species"`
	Weight       float64  `json:"weight"` // kilograms
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	LocationName *string  `json:"locationName"`
	DateTime     string   `json:"dateTime"` // ISO-8601, when the fish was caught
	PhotoURI     *string  `json:"photoUri"`
	PhotoURIs    []string `json:"photoUris"`
	Bait         *string  `json:"bait"`
	Weather      *Weather `json:"weather"`
	Notes        *string  `json:"notes"`
	Tags         []string `json:"tags"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
}

// NewCatch is the payload for Store.Add. The store assigns ID, CreatedAt
// and UpdatedAt.
type NewCatch struct {
	Species      string   `json:"species"`
	Weight       float64  `json:"weight"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	LocationName *string  `json:"locationName"`
	DateTime     string   `json:"dateTime"`
	PhotoURI     *string  `json:"photoUri"`
	PhotoURIs    []string `json:"photoUris"`
	Bait         *string  `json:"bait"`
	Weather      *Weather `json:"weather"`
	Notes        *string  `json:"notes"`
	Tags         []string `json:"tags"`
}

// Build returns the Catch for n with the given id and timestamp.
func (n NewCatch) Build(id int64, now string) Catch {
	return Catch{
		ID:           id,
		Species:      n.Species,
		Weight:       n.Weight,
		Latitude:     n.Latitude,
		Longitude:    n.Longitude,
		LocationName: n.LocationName,
		DateTime:     n.DateTime,
		PhotoURI:     n.PhotoURI,
		PhotoURIs:    cloneStrings(n.PhotoURIs),
		Bait:         n.Bait,
		Weather:      n.Weather,
		Notes:        n.Notes,
		Tags:         cloneStrings(n.Tags),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Normalize applies the conventions callers are expected to follow before
// Add: species is trimmed, tags are trimmed, lower-cased and deduplicated in
// insertion order, and PhotoURI mirrors the first entry of PhotoURIs.
func (n *NewCatch) Normalize() {
	n.Species = strings.TrimSpace(n.Species)
	n.Tags = NormalizeTags(n.Tags)
	n.PhotoURI = primaryPhoto(n.PhotoURI, n.PhotoURIs)
}

// NormalizeTags lower-cases and trims tags, dropping blanks and duplicates.
// Returns nil for an empty result.
func NormalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

// Clone returns a deep copy of c.
func (c Catch) Clone() Catch {
	out := c
	out.Latitude = clonePtr(c.Latitude)
	out.Longitude = clonePtr(c.Longitude)
	out.LocationName = clonePtr(c.LocationName)
	out.PhotoURI = clonePtr(c.PhotoURI)
	out.PhotoURIs = cloneStrings(c.PhotoURIs)
	out.Bait = clonePtr(c.Bait)
	out.Weather = clonePtr(c.Weather)
	out.Notes = clonePtr(c.Notes)
	out.Tags = cloneStrings(c.Tags)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func primaryPhoto(photo *string, photos []string) *string {
	if len(photos) > 0 {
		first := photos[0]
		return &first
	}
	return photo
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Opt carries an optional patch value. Set distinguishes "leave unchanged"
// from an explicit zero or nil value.
type Opt[T any] struct {
	Value T
	Set   bool
}

// Some returns an Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{Value: v, Set: true}
}

// CatchPatch is the payload for Store.Update. Only fields with Set change;
// UpdatedAt is refreshed by the store regardless.
type CatchPatch struct {
	Species      Opt[string]
	Weight       Opt[float64]
	Latitude     Opt[*float64]
	Longitude    Opt[*float64]
	LocationName Opt[*string]
	DateTime     Opt[string]
	PhotoURI     Opt[*string]
	PhotoURIs    Opt[[]string]
	Bait         Opt[*string]
	Weather      Opt[*Weather]
	Notes        Opt[*string]
	Tags         Opt[[]string]
}

// Apply copies the Set fields of p onto c and stamps UpdatedAt.
func (p CatchPatch) Apply(c *Catch, now string) {
	if p.Species.Set {
		c.Species = p.Species.Value
	}
	if p.Weight.Set {
		c.Weight = p.Weight.Value
	}
	if p.Latitude.Set {
		c.Latitude = p.Latitude.Value
	}
	if p.Longitude.Set {
		c.Longitude = p.Longitude.Value
	}
	if p.LocationName.Set {
		c.LocationName = p.LocationName.Value
	}
	if p.DateTime.Set {
		c.DateTime = p.DateTime.Value
	}
	if p.PhotoURI.Set {
		c.PhotoURI = p.PhotoURI.Value
	}
	if p.PhotoURIs.Set {
		c.PhotoURIs = cloneStrings(p.PhotoURIs.Value)
	}
	if p.Bait.Set {
		c.Bait = p.Bait.Value
	}
	if p.Weather.Set {
		c.Weather = p.Weather.Value
	}
	if p.Notes.Set {
		c.Notes = p.Notes.Value
	}
	if p.Tags.Set {
		c.Tags = cloneStrings(p.Tags.Value)
	}
	c.UpdatedAt = now
}

// Normalize applies the NewCatch conventions to the Set fields of p. When
// PhotoURIs is set, PhotoURI is set to its first entry as well.
func (p *CatchPatch) Normalize() {
	if p.Species.Set {
		p.Species.Value = strings.TrimSpace(p.Species.Value)
	}
	if p.Tags.Set {
		p.Tags.Value = NormalizeTags(p.Tags.Value)
	}
	if p.PhotoURIs.Set {
		p.PhotoURI = Some(primaryPhoto(nil, p.PhotoURIs.Value))
	}
}
