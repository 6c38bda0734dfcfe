package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/venue-locator/internal/location"
	"github.com/sells-group/venue-locator/internal/venue"
)

var (
	venuesRegion string
	venuesSearch string
)

var venuesCmd = &cobra.Command{
	Use:   "venues",
	Short: "List catalog venues",
	Long:  "Lists the venue catalog, merged with the directory when one is configured. Filter by region or search by name, city or country.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("venues"); err != nil {
			return err
		}

		env, err := initEngine(ctx, cfg, location.IdleProvider{})
		if err != nil {
			return err
		}
		defer env.Close()

		if env.Sync != nil {
			if err := env.Sync.Sync(ctx, false); err != nil {
				zap.L().Warn("directory sync failed, listing local catalog", zap.Error(err))
			}
		}

		var venues []venue.Venue
		switch {
		case venuesSearch != "":
			venues = env.Engine.SearchVenues(venuesSearch)
		case venuesRegion != "":
			venues = env.Engine.VenuesByRegion(venue.ParseRegion(venuesRegion))
		default:
			venues = env.Engine.AllVenues()
		}
		if venuesSearch != "" && venuesRegion != "" {
			venues = filterRegion(venues, venue.ParseRegion(venuesRegion))
		}

		if len(venues) == 0 {
			zap.L().Info("no venues found")
			return nil
		}
		formatVenues(os.Stdout, venues)
		return nil
	},
}

func init() {
	venuesCmd.Flags().StringVar(&venuesRegion, "region", "", "region filter (e.g. europe, asia-pacific)")
	venuesCmd.Flags().StringVar(&venuesSearch, "search", "", "case-insensitive search over name, city and country")
	rootCmd.AddCommand(venuesCmd)
}

func filterRegion(venues []venue.Venue, region venue.Region) []venue.Venue {
	var out []venue.Venue
	for _, v := range venues {
		if v.Region == region {
			out = append(out, v)
		}
	}
	return out
}

// formatVenues writes a tabular representation of venues to out.
func formatVenues(out io.Writer, venues []venue.Venue) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tREGION\tCOUNTRY\tCLASS\tRADIUS_M\tLAT\tLNG")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-------\t-----\t--------\t---\t---")

	for _, v := range venues {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.0f\t%.4f\t%.4f\n",
			v.ID,
			v.Name,
			v.Region,
			v.Country,
			v.Classification,
			v.RadiusMeters,
			v.Location.Lat,
			v.Location.Lng,
		)
	}
	_ = w.Flush()
}
