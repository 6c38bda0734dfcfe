package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/venue-locator/internal/location"
)

// providerFlags selects where fixes come from.
type providerFlags struct {
	replay string
	pace   time.Duration
	lat    float64
	lng    float64
}

func (pf *providerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&pf.replay, "replay", "", "JSON Lines file of recorded fixes")
	cmd.Flags().DurationVar(&pf.pace, "pace", 0, "delay between replayed fixes")
	cmd.Flags().Float64Var(&pf.lat, "lat", 0, "fixed latitude")
	cmd.Flags().Float64Var(&pf.lng, "lng", 0, "fixed longitude")
}

// provider returns a replay provider, a static provider when --lat/--lng
// are set, or an idle provider otherwise.
func (pf *providerFlags) provider(cmd *cobra.Command) (location.Provider, error) {
	if pf.replay != "" {
		p, err := location.OpenReplay(pf.replay)
		if err != nil {
			return nil, err
		}
		p.Pace = pf.pace
		return p, nil
	}
	latSet, lngSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lng")
	if latSet != lngSet {
		return nil, eris.New("--lat and --lng must be set together")
	}
	if latSet {
		if err := validateCoordinate(pf.lat, pf.lng); err != nil {
			return nil, err
		}
		return location.NewStaticProvider(pf.lat, pf.lng), nil
	}
	return location.IdleProvider{}, nil
}

func validateCoordinate(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return eris.Errorf("latitude %v out of range", lat)
	}
	if lng < -180 || lng > 180 {
		return eris.Errorf("longitude %v out of range", lng)
	}
	return nil
}
