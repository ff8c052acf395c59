// README: Route estimate returned to volunteers browsing nearby pickups.
package geo

type RouteEstimate struct {
	StraightKm  float64
	RouteKm     float64
	TravelMin   float64
	Category    Category
	CostPaise   int64
	Currency    string
	Approximate bool
}
