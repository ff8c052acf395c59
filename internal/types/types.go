// README: Common value objects shared across modules.
package types

// ID is an opaque entity identifier (hex string from the service-side generator).
type ID string

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64
	Lng float64
}

type Money struct {
	Amount   int64
	Currency string
}
