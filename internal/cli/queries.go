package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/catchlog/pkg/catchlog"
	"github.com/mesh-intelligence/catchlog/pkg/types"
)

func (a *app) newFilterCmd() *cobra.Command {
	var (
		species              string
		minWeight, maxWeight float64
		from, to             string
		weather              string
		tags                 []string
	)
	cmd := &cobra.Command{
		Use:     "filter",
		Short:   "List catches matching every given criterion",
		Example: `  catchlog filter --species bass --min-weight 2 --tag lake,river`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := types.Filters{
				Species: strings.TrimSpace(species),
				Tags:    types.NormalizeTags(tags),
			}
			if cmd.Flags().Changed("min-weight") {
				f.MinWeight = &minWeight
			}
			if cmd.Flags().Changed("max-weight") {
				f.MaxWeight = &maxWeight
			}
			if from != "" {
				t, err := parseWhen(from, a.settings.loc, false)
				if err != nil {
					return err
				}
				f.StartDate = types.FormatTimestamp(t)
			}
			if to != "" {
				t, err := parseWhen(to, a.settings.loc, true)
				if err != nil {
					return err
				}
				f.EndDate = types.FormatTimestamp(t)
			}
			if weather != "" {
				w := types.Weather(strings.ToLower(weather))
				if !w.Valid() {
					return userError("invalid weather %q: want sunny, cloudy, rainy or windy", weather)
				}
				f.Weather = w
			}
			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				return a.printCatches(cmd, store.FilterCatches(ctx, f))
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&species, "species", "", "species, case-insensitive exact match")
	fl.Float64Var(&minWeight, "min-weight", 0, "minimum weight in kilograms, inclusive")
	fl.Float64Var(&maxWeight, "max-weight", 0, "maximum weight in kilograms, inclusive")
	fl.StringVar(&from, "from", "", "earliest catch time, inclusive")
	fl.StringVar(&to, "to", "", "latest catch time, inclusive")
	fl.StringVar(&weather, "weather", "", "sunny, cloudy, rainy or windy")
	fl.StringSliceVar(&tags, "tag", nil, "match catches carrying any of these tags")
	return cmd
}

func (a *app) newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <text>",
		Short: "Find catches whose species, location, bait, notes or tags contain text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				return a.printCatches(cmd, store.SearchCatches(ctx, query))
			})
		},
	}
}

func (a *app) newTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List every tag in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				tags := store.GetAllTags(ctx)
				return a.output(cmd, tags, func(w io.Writer) {
					for _, tag := range tags {
						fmt.Fprintln(w, tag)
					}
				})
			})
		},
	}
}

func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize the log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				stats := store.GetStats(ctx)
				return a.output(cmd, stats, func(w io.Writer) {
					fmt.Fprintf(w, "Total catches: %d\n", stats.TotalCatches)
					if b := stats.BiggestCatch; b != nil {
						fmt.Fprintf(w, "Biggest catch: %s, %s (#%d)\n", b.Species, kilograms(b.Weight), b.ID)
					}
					if top := stats.TopSpecies; top != nil {
						fmt.Fprintf(w, "Top species:   %s (%s)\n", top.Species, plural(top.Count, "catch"))
					}
				})
			})
		},
	}
}

func (a *app) newMonthlyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monthly",
		Short: "Catch count and total weight per month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				months := store.GetMonthlyStats(ctx)
				return a.output(cmd, months, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
					fmt.Fprintln(tw, "MONTH\tCATCHES\tWEIGHT\t")
					for _, m := range months {
						fmt.Fprintf(tw, "%s\t%d\t%s\t\n", m.Month, m.Count, kilograms(m.TotalWeight))
					}
					_ = tw.Flush()
				})
			})
		},
	}
}

// weekdayCount is the JSON shape of one weekday bucket.
type weekdayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

func (a *app) newWeekdayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "weekday",
		Short: "Catch count per day of the week",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				counts := store.GetWeekdayStats(ctx)
				days := make([]weekdayCount, len(counts))
				total := 0
				for i, n := range counts {
					days[i] = weekdayCount{Day: time.Weekday(i).String(), Count: n}
					total += n
				}
				return a.output(cmd, days, func(w io.Writer) {
					for _, d := range days {
						pct := decimal.Zero
						if total > 0 {
							pct = decimal.NewFromInt(int64(d.Count)).Mul(decimal.NewFromInt(100)).Div(decimal.NewFromInt(int64(total)))
						}
						fmt.Fprintf(w, "%-9s %4d  %5s%%\n", d.Day, d.Count, pct.StringFixed(1))
					}
				})
			})
		},
	}
}
