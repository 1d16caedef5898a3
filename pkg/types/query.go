package types

import (
	"sort"
	"strings"
)

// Filters selects catches for Store.FilterCatches. Every non-zero field is a
// constraint; a record must satisfy all of them. The zero Filters matches
// every record.
type Filters struct {
	Species   string   // exact match, case-insensitive
	MinWeight *float64 // inclusive
	MaxWeight *float64 // inclusive
	StartDate string   // inclusive, compared as ISO strings
	EndDate   string   // inclusive, compared as ISO strings
	Weather   Weather  // exact match
	Tags      []string // record must carry at least one of these, case-insensitive
}

// Match reports whether c satisfies every constraint in f.
func (f Filters) Match(c Catch) bool {
	if f.Species != "" && !strings.EqualFold(c.Species, f.Species) {
		return false
	}
	if f.MinWeight != nil && c.Weight < *f.MinWeight {
		return false
	}
	if f.MaxWeight != nil && c.Weight > *f.MaxWeight {
		return false
	}
	if f.StartDate != "" && c.DateTime < f.StartDate {
		return false
	}
	if f.EndDate != "" && c.DateTime > f.EndDate {
		return false
	}
	if f.Weather != "" && (c.Weather == nil || *c.Weather != f.Weather) {
		return false
	}
	if len(f.Tags) > 0 && !hasAnyTag(c.Tags, f.Tags) {
		return false
	}
	return true
}

// hasAnyTag reports whether tags shares an element with wanted, ignoring
// case and surrounding space.
func hasAnyTag(tags, wanted []string) bool {
	for _, w := range wanted {
		w = strings.TrimSpace(w)
		for _, t := range tags {
			if strings.EqualFold(strings.TrimSpace(t), w) {
				return true
			}
		}
	}
	return false
}

// MatchesQuery reports whether query occurs, ignoring case, in the species,
// location name, bait, notes or any tag of c. A blank query matches all.
func MatchesQuery(c Catch, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	contains := func(s string) bool {
		return strings.Contains(strings.ToLower(s), q)
	}
	if contains(c.Species) {
		return true
	}
	for _, s := range []*string{c.LocationName, c.Bait, c.Notes} {
		if s != nil && contains(*s) {
			return true
		}
	}
	for _, t := range c.Tags {
		if contains(t) {
			return true
		}
	}
	return false
}

// SortByDateTimeDesc orders catches most recent first. Equal DateTime values
// are ordered by descending id.
func SortByDateTimeDesc(catches []Catch) {
	sort.SliceStable(catches, func(i, j int) bool {
		if catches[i].DateTime != catches[j].DateTime {
			return catches[i].DateTime > catches[j].DateTime
		}
		return catches[i].ID > catches[j].ID
	})
}

// Select returns the catches for which keep returns true, preserving order.
// The result is never nil.
func Select(catches []Catch, keep func(Catch) bool) []Catch {
	out := make([]Catch, 0, len(catches))
	for _, c := range catches {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// DistinctTags returns every tag used by catches, deduplicated and sorted.
func DistinctTags(catches []Catch) []string {
	seen := make(map[string]bool)
	tags := []string{}
	for _, c := range catches {
		for _, t := range c.Tags {
			if !seen[t] {
				seen[t] = true
				tags = append(tags, t)
			}
		}
	}
	sort.Strings(tags)
	return tags
}
