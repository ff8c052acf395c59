// README: Geo service combines live positions with route heuristics for display.
package geo

import (
	"context"
	"errors"

	"seva/internal/types"
)

// Geocoder resolves a postal address to coordinates. A miss is not an error;
// callers degrade to "coordinates unavailable".
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, bool)
}

var ErrNoPosition = errors.New("no live position for volunteer")

type Service struct {
	store    *Store
	geocoder Geocoder
}

func NewService(store *Store, geocoder Geocoder) *Service {
	return &Service{store: store, geocoder: geocoder}
}

func (s *Service) UpdatePosition(ctx context.Context, id types.ID, pos types.Point) error {
	return s.store.SetPosition(ctx, id, pos)
}

// EstimateRoute is the pure part: straight-line → road heuristic → time/cost.
func EstimateRoute(from, to types.Point, area AreaType, mode TravelMode) RouteEstimate {
	straight := HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng)
	route := RouteKm(straight, area)
	cost := EstimateCost(route, mode)
	return RouteEstimate{
		StraightKm:  straight,
		RouteKm:     route,
		TravelMin:   TravelTimeMinutes(route, mode),
		Category:    CategoryFor(route),
		CostPaise:   cost.Amount,
		Currency:    cost.Currency,
		Approximate: true,
	}
}

// DistanceToPoint estimates the route from a volunteer's live position to a
// donation's coordinates.
func (s *Service) DistanceToPoint(ctx context.Context, volunteerID types.ID, to types.Point, area AreaType, mode TravelMode) (RouteEstimate, error) {
	from, ok, err := s.store.Position(ctx, volunteerID)
	if err != nil {
		return RouteEstimate{}, err
	}
	if !ok {
		return RouteEstimate{}, ErrNoPosition
	}
	return EstimateRoute(from, to, area, mode), nil
}

// NearbyVolunteers lists volunteers with a live position within radiusKm of
// p, closest first. A non-positive radius falls back to 10km.
func (s *Service) NearbyVolunteers(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	if radiusKm <= 0 {
		radiusKm = 10
	}
	return s.store.NearbyVolunteers(ctx, p, radiusKm)
}

// ResolveAddress looks up coordinates for an address via the geocoding
// collaborator. ok=false when the collaborator is absent or found nothing.
func (s *Service) ResolveAddress(ctx context.Context, address string) (types.Point, bool) {
	if s.geocoder == nil || address == "" {
		return types.Point{}, false
	}
	return s.geocoder.Geocode(ctx, address)
}
