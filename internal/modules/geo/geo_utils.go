// Package geo — pure geographic computation helpers for pickup distance display.
package geo

import (
	"math"

	"seva/internal/types"
)

const earthRadiusKm = 6371.0

type AreaType string

const (
	AreaUrban    AreaType = "urban"
	AreaSuburban AreaType = "suburban"
	AreaRural    AreaType = "rural"
)

type TravelMode string

const (
	ModeCar  TravelMode = "car"
	ModeBike TravelMode = "bike"
	ModeWalk TravelMode = "walk"
)

type Category string

const (
	CategoryClose    Category = "close"
	CategoryModerate Category = "moderate"
	CategoryFar      Category = "far"
	CategoryVeryFar  Category = "very_far"
)

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees. Out-of-range coordinates are clamped
// to [-90,90] latitude and [-180,180] longitude before computing.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	lat1 = clamp(lat1, -90, 90)
	lat2 = clamp(lat2, -90, 90)
	lng1 = clamp(lng1, -180, 180)
	lng2 = clamp(lng2, -180, 180)

	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// RouteKm inflates a straight-line distance by an area-dependent factor to
// approximate road-network distance. This is a heuristic, not a routing
// engine; treat the result as an estimate only.
func RouteKm(straightKm float64, area AreaType) float64 {
	switch area {
	case AreaUrban:
		return straightKm * 1.35
	case AreaSuburban:
		return straightKm * 1.2
	case AreaRural:
		return straightKm * 1.1
	default:
		return straightKm * 1.35
	}
}

// TravelTimeMinutes estimates travel time for a route distance at the mode's
// assumed average speed.
func TravelTimeMinutes(routeKm float64, mode TravelMode) float64 {
	return routeKm / averageSpeedKmh(mode) * 60
}

func averageSpeedKmh(mode TravelMode) float64 {
	switch mode {
	case ModeBike:
		return 15
	case ModeWalk:
		return 5
	default:
		return 38
	}
}

// CategoryFor buckets a route distance: ≤5 close, ≤15 moderate, ≤30 far.
func CategoryFor(routeKm float64) Category {
	switch {
	case routeKm <= 5:
		return CategoryClose
	case routeKm <= 15:
		return CategoryModerate
	case routeKm <= 30:
		return CategoryFar
	default:
		return CategoryVeryFar
	}
}

// per-km fuel/effort rates in paise; car also pays a flat base.
const (
	carBasePaise   = 2000
	carPerKmPaise  = 900
	bikePerKmPaise = 300
)

// EstimateCost gives a rough pickup cost for the volunteer's travel mode.
// Walking is free.
func EstimateCost(routeKm float64, mode TravelMode) types.Money {
	var amount int64
	switch mode {
	case ModeCar:
		amount = carBasePaise + int64(math.Round(routeKm*carPerKmPaise))
	case ModeBike:
		amount = int64(math.Round(routeKm * bikePerKmPaise))
	}
	return types.Money{Amount: amount, Currency: "INR"}
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
