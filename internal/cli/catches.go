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

// dateOnly is accepted wherever a date bound or catch time is given.
const dateOnly = time.DateOnly

// catchFlags holds the field flags shared by add and update.
type catchFlags struct {
	species  string
	weight   float64
	lat      float64
	lon      float64
	location string
	date     string
	photos   []string
	bait     string
	weather  string
	notes    string
	tags     []string
	clear    []string
}

func (f *catchFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.species, "species", "", "species caught")
	fl.Float64Var(&f.weight, "weight", 0, "weight in kilograms")
	fl.Float64Var(&f.lat, "lat", 0, "latitude")
	fl.Float64Var(&f.lon, "lon", 0, "longitude")
	fl.StringVar(&f.location, "location", "", "location name")
	fl.StringVar(&f.date, "date", "", "when the fish was caught, RFC 3339 or YYYY-MM-DD")
	fl.StringSliceVar(&f.photos, "photo", nil, fmt.Sprintf("photo URI, repeatable up to %d times", types.MaxPhotos))
	fl.StringVar(&f.bait, "bait", "", "bait used")
	fl.StringVar(&f.weather, "weather", "", "sunny, cloudy, rainy or windy")
	fl.StringVar(&f.notes, "notes", "", "free-form notes")
	fl.StringSliceVar(&f.tags, "tag", nil, "tag, repeatable or comma-separated")
}

// parseWhen parses a catch time or range bound given as RFC 3339 or as a
// date in loc. A bare date means the start of the day, or its last second
// when endOfDay is set.
func parseWhen(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if t, err := types.ParseDateTime(s); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(dateOnly, s, loc)
	if err != nil {
		return time.Time{}, userError("invalid date %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Second)
	}
	return d, nil
}

// parseRange parses --from and --to. Both or neither must be given.
func parseRange(from, to string, loc *time.Location) (start, end string, ok bool, err error) {
	if from == "" && to == "" {
		return "", "", false, nil
	}
	if from == "" || to == "" {
		return "", "", false, userError("--from and --to must be given together")
	}
	s, err := parseWhen(from, loc, false)
	if err != nil {
		return "", "", false, err
	}
	e, err := parseWhen(to, loc, true)
	if err != nil {
		return "", "", false, err
	}
	return types.FormatTimestamp(s), types.FormatTimestamp(e), true, nil
}

func optText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optWeather(s string) *types.Weather {
	if s == "" {
		return nil
	}
	w := types.Weather(strings.ToLower(s))
	return &w
}

// newCatch builds the Add payload from the flags that were set.
func (f *catchFlags) newCatch(cmd *cobra.Command, loc *time.Location) (types.NewCatch, error) {
	changed := cmd.Flags().Changed
	n := types.NewCatch{
		Species:   f.species,
		Weight:    f.weight,
		PhotoURIs: f.photos,
		Bait:      optText(f.bait),
		Weather:   optWeather(f.weather),
		Notes:     optText(f.notes),
		Tags:      f.tags,
	}
	if changed("lat") {
		lat := f.lat
		n.Latitude = &lat
	}
	if changed("lon") {
		lon := f.lon
		n.Longitude = &lon
	}
	n.LocationName = optText(f.location)

	when := time.Now()
	if f.date != "" {
		t, err := parseWhen(f.date, loc, false)
		if err != nil {
			return types.NewCatch{}, err
		}
		when = t
	}
	n.DateTime = types.FormatTimestamp(when)

	n.Normalize()
	if err := n.Validate(); err != nil {
		return types.NewCatch{}, userError("invalid catch: %w", err)
	}
	return n, nil
}

// patch builds the Update payload. Only flags that were set are applied;
// an empty value clears an optional text field, and --clear clears the
// named fields.
func (f *catchFlags) patch(cmd *cobra.Command, loc *time.Location) (types.CatchPatch, error) {
	changed := cmd.Flags().Changed
	var p types.CatchPatch
	if changed("species") {
		p.Species = types.Some(f.species)
	}
	if changed("weight") {
		p.Weight = types.Some(f.weight)
	}
	if changed("lat") {
		lat := f.lat
		p.Latitude = types.Some(&lat)
	}
	if changed("lon") {
		lon := f.lon
		p.Longitude = types.Some(&lon)
	}
	if changed("location") {
		p.LocationName = types.Some(optText(f.location))
	}
	if changed("date") {
		t, err := parseWhen(f.date, loc, false)
		if err != nil {
			return types.CatchPatch{}, err
		}
		p.DateTime = types.Some(types.FormatTimestamp(t))
	}
	if changed("photo") {
		p.PhotoURIs = types.Some(f.photos)
	}
	if changed("bait") {
		p.Bait = types.Some(optText(f.bait))
	}
	if changed("weather") {
		p.Weather = types.Some(optWeather(f.weather))
	}
	if changed("notes") {
		p.Notes = types.Some(optText(f.notes))
	}
	if changed("tag") {
		p.Tags = types.Some(f.tags)
	}

	for _, field := range f.clear {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "lat", "latitude":
			p.Latitude = types.Some[*float64](nil)
		case "lon", "longitude":
			p.Longitude = types.Some[*float64](nil)
		case "location":
			p.LocationName = types.Some[*string](nil)
		case "photo", "photos":
			p.PhotoURIs = types.Some[[]string](nil)
		case "bait":
			p.Bait = types.Some[*string](nil)
		case "weather":
			p.Weather = types.Some[*types.Weather](nil)
		case "notes":
			p.Notes = types.Some[*string](nil)
		case "tag", "tags":
			p.Tags = types.Some[[]string](nil)
		default:
			return types.CatchPatch{}, userError("cannot clear %q", field)
		}
	}

	p.Normalize()
	if err := p.Validate(); err != nil {
		return types.CatchPatch{}, userError("invalid update: %w", err)
	}
	return p, nil
}

func (a *app) newAddCmd() *cobra.Command {
	var f catchFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Log a new catch",
		Example: `  catchlog add --species Bass --weight 2.4 --bait worm --tag lake,morning
  catchlog add --species Trout --weight 1.1 --lat 45.5 --lon -122.6 --date 2024-05-20`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := f.newCatch(cmd, a.settings.loc)
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				id := store.Add(ctx, n)
				if id == types.NoID {
					return sysError("catch was not saved")
				}
				c, _ := store.GetByID(ctx, id)
				return a.output(cmd, c, func(w io.Writer) {
					fmt.Fprintf(w, "Logged catch #%d\n", id)
				})
			})
		},
	}
	f.register(cmd)
	_ = cmd.MarkFlagRequired("species")
	_ = cmd.MarkFlagRequired("weight")
	return cmd
}

func (a *app) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one catch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				c, ok := store.GetByID(ctx, id)
				if !ok {
					return notFound(id)
				}
				return a.output(cmd, c, func(w io.Writer) { writeCatch(w, c, a.settings.loc) })
			})
		},
	}
}

func (a *app) newListCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catches, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, ranged, err := parseRange(from, to, a.settings.loc)
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				var catches []types.Catch
				if ranged {
					catches = store.GetByDateRange(ctx, start, end)
				} else {
					catches = store.GetAll(ctx)
				}
				return a.printCatches(cmd, catches)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "earliest catch time, inclusive")
	cmd.Flags().StringVar(&to, "to", "", "latest catch time, inclusive")
	return cmd
}

func (a *app) newUpdateCmd() *cobra.Command {
	var f catchFlags
	cmd := &cobra.Command{
		Use:     "update <id>",
		Short:   "Change fields of a catch",
		Example: `  catchlog update 3 --weight 2.6 --notes "released" --clear bait`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := f.patch(cmd, a.settings.loc)
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				if _, ok := store.GetByID(ctx, id); !ok {
					return notFound(id)
				}
				store.Update(ctx, id, p)
				c, _ := store.GetByID(ctx, id)
				return a.output(cmd, c, func(w io.Writer) {
					fmt.Fprintf(w, "Updated catch #%d\n", id)
				})
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringSliceVar(&f.clear, "clear", nil, "fields to clear: lat, lon, location, photos, bait, weather, notes, tags")
	return cmd
}

func (a *app) newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a catch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd, func(ctx context.Context, store *catchlog.Store) error {
				if _, ok := store.GetByID(ctx, id); !ok {
					return notFound(id)
				}
				store.Delete(ctx, id)
				return a.output(cmd, map[string]int64{"deleted": id}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted catch #%d\n", id)
				})
			})
		},
	}
}

// printCatches writes catches as JSON or as a table.
func (a *app) printCatches(cmd *cobra.Command, catches []types.Catch) error {
	return a.output(cmd, catches, func(w io.Writer) {
		if len(catches) == 0 {
			fmt.Fprintln(w, "No catches found.")
			return
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCAUGHT\tSPECIES\tWEIGHT\tLOCATION\tTAGS")
		for _, c := range catches {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				c.ID, localTime(c.DateTime, a.settings.loc), c.Species, kilograms(c.Weight),
				deref(c.LocationName), strings.Join(c.Tags, ","))
		}
		_ = tw.Flush()
	})
}

// writeCatch writes every set field of c.
func writeCatch(w io.Writer, c types.Catch, loc *time.Location) {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "#%d\t%s\t%s\n", c.ID, c.Species, kilograms(c.Weight))
	fmt.Fprintf(tw, "caught:\t%s\n", localTime(c.DateTime, loc))
	if c.LocationName != nil || c.Latitude != nil {
		where := deref(c.LocationName)
		if c.Latitude != nil && c.Longitude != nil {
			where = strings.TrimSpace(fmt.Sprintf("%s (%.5f, %.5f)", where, *c.Latitude, *c.Longitude))
		}
		fmt.Fprintf(tw, "location:\t%s\n", where)
	}
	if c.Bait != nil {
		fmt.Fprintf(tw, "bait:\t%s\n", *c.Bait)
	}
	if c.Weather != nil {
		fmt.Fprintf(tw, "weather:\t%s\n", *c.Weather)
	}
	if c.Notes != nil {
		fmt.Fprintf(tw, "notes:\t%s\n", *c.Notes)
	}
	for i, uri := range c.PhotoURIs {
		fmt.Fprintf(tw, "photo %d:\t%s\n", i+1, uri)
	}
	if len(c.Tags) > 0 {
		fmt.Fprintf(tw, "tags:\t%s\n", strings.Join(c.Tags, ", "))
	}
	fmt.Fprintf(tw, "created:\t%s\n", c.CreatedAt)
	fmt.Fprintf(tw, "updated:\t%s\n", c.UpdatedAt)
	_ = tw.Flush()
}

func kilograms(w float64) string {
	return decimal.NewFromFloat(w).StringFixed(2) + " kg"
}

// localTime renders an ISO timestamp in loc, or verbatim if it does not
// parse.
func localTime(s string, loc *time.Location) string {
	t, err := types.ParseDateTimeIn(s, loc)
	if err != nil {
		return s
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
