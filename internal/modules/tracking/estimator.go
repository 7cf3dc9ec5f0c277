package tracking

import (
	"context"
	"fmt"
	"log/slog"

	"googlemaps.github.io/maps"

	"courierd/internal/geo"
	"courierd/internal/modules/location"
	"courierd/internal/types"
)

// RouteETA answers "how many minutes from here to there" using real road
// routing. Optional; the estimator falls back to straight-line math.
type RouteETA interface {
	RouteMinutes(ctx context.Context, from, to types.Point) (float64, error)
}

// GoogleRoutes backs RouteETA with the Directions API.
type GoogleRoutes struct {
	client *maps.Client
}

func NewGoogleRoutes(apiKey string) (*GoogleRoutes, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleRoutes{client: client}, nil
}

func (g *GoogleRoutes) RouteMinutes(ctx context.Context, from, to types.Point) (float64, error) {
	r := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", from.Lat, from.Lng),
		Destination: fmt.Sprintf("%f,%f", to.Lat, to.Lng),
		Mode:        maps.TravelModeDriving,
	}
	routes, _, err := g.client.Directions(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return 0, fmt.Errorf("no route found")
	}
	var total float64
	for _, leg := range routes[0].Legs {
		total += leg.Duration.Minutes()
	}
	return total, nil
}

// Estimator turns a courier sample plus a target point into an ETA. Road
// routing is consulted when configured; any routing failure degrades to the
// straight-line estimate rather than surfacing an error.
type Estimator struct {
	routes RouteETA
	log    *slog.Logger
}

func NewEstimator(routes RouteETA, log *slog.Logger) *Estimator {
	if log == nil {
		log = slog.Default()
	}
	return &Estimator{routes: routes, log: log}
}

// Minutes estimates travel time from the sample's position to the target.
func (e *Estimator) Minutes(ctx context.Context, sample location.Sample, target types.Point) float64 {
	if e.routes != nil {
		minutes, err := e.routes.RouteMinutes(ctx, sample.Position, target)
		if err == nil {
			return minutes
		}
		e.log.Warn("route eta failed, using straight-line estimate", "err", err)
	}
	speed, ok := sample.SpeedMph()
	if !ok {
		speed = geo.DefaultCruiseMph
	}
	return geo.ETAMinutes(sample.Position, target, speed)
}
