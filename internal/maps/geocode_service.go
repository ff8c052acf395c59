// README: Geocoding collaborator backed by the Google Maps API.
package maps

import (
	"context"
	"fmt"
	"log"

	"googlemaps.github.io/maps"

	"seva/internal/types"
)

// GeocodeService resolves pickup addresses to coordinates for distance
// display. Lookups are best-effort: any failure degrades to "coordinates
// unavailable" and never blocks the donation lifecycle.
type GeocodeService struct {
	client *maps.Client
	region string
}

func NewGeocodeService(apiKey, region string) (*GeocodeService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodeService{client: client, region: region}, nil
}

// Geocode implements geo.Geocoder. ok is false on miss or API failure.
func (s *GeocodeService) Geocode(ctx context.Context, address string) (types.Point, bool) {
	results, err := s.client.Geocode(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  s.region,
	})
	if err != nil {
		log.Printf("geocode %q: %v", address, err)
		return types.Point{}, false
	}
	if len(results) == 0 {
		return types.Point{}, false
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, true
}
