package types

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// SpeciesCount is a species name and how many catches carry it.
type SpeciesCount struct {
	Species string `json:"species"`
	Count   int    `json:"count"`
}

// Stats is the aggregate summary returned by Store.GetStats.
type Stats struct {
	TotalCatches int           `json:"totalCatches"`
	BiggestCatch *Catch        `json:"biggestCatch"`
	TopSpecies   *SpeciesCount `json:"topSpecies"`
}

// MonthlyStat is the catch count and total weight for one calendar month.
type MonthlyStat struct {
	Month       string  `json:"month"` // YYYY-MM
	Count       int     `json:"count"`
	TotalWeight float64 `json:"totalWeight"`
}

// WeekdayStats holds catch counts indexed by time.Weekday, Sunday first.
type WeekdayStats [7]int

// ComputeStats summarizes catches. Ties are broken by creation order: the
// biggest catch is the heaviest record with the lowest id, and among species
// with equal counts the one whose earliest record has the lowest id wins.
func ComputeStats(catches []Catch) Stats {
	byID := make([]Catch, len(catches))
	copy(byID, catches)
	sort.SliceStable(byID, func(i, j int) bool { return byID[i].ID < byID[j].ID })

	stats := Stats{TotalCatches: len(byID)}
	counts := make(map[string]int)
	var order []string
	for i := range byID {
		c := byID[i]
		if stats.BiggestCatch == nil || c.Weight > stats.BiggestCatch.Weight {
			biggest := c
			stats.BiggestCatch = &biggest
		}
		if _, ok := counts[c.Species]; !ok {
			order = append(order, c.Species)
		}
		counts[c.Species]++
	}
	for _, species := range order {
		if stats.TopSpecies == nil || counts[species] > stats.TopSpecies.Count {
			stats.TopSpecies = &SpeciesCount{Species: species, Count: counts[species]}
		}
	}
	return stats
}

// MonthlyStats groups catches by calendar month in loc, ascending. A DateTime
// without an offset is read in loc. Catches whose DateTime does not parse
// at all are skipped.
func MonthlyStats(catches []Catch, loc *time.Location) []MonthlyStat {
	type bucket struct {
		count  int
		weight decimal.Decimal
	}
	buckets := make(map[string]*bucket)
	for _, c := range catches {
		t, err := ParseDateTimeIn(c.DateTime, loc)
		if err != nil {
			continue
		}
		key := t.In(loc).Format("2006-01")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.count++
		b.weight = b.weight.Add(decimal.NewFromFloat(c.Weight))
	}

	months := make([]MonthlyStat, 0, len(buckets))
	for key, b := range buckets {
		months = append(months, MonthlyStat{
			Month:       key,
			Count:       b.count,
			TotalWeight: b.weight.InexactFloat64(),
		})
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Month < months[j].Month })
	return months
}

// CountByWeekday counts catches per weekday in loc, reading DateTime the way
// MonthlyStats does.
func CountByWeekday(catches []Catch, loc *time.Location) WeekdayStats {
	var days WeekdayStats
	for _, c := range catches {
		t, err := ParseDateTimeIn(c.DateTime, loc)
		if err != nil {
			continue
		}
		days[t.In(loc).Weekday()]++
	}
	return days
}
