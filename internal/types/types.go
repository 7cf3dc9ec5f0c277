// Package types holds small value objects shared across modules.
package types

// ID identifies an actor, order, business, or job.
type ID string

// Point is a WGS84 coordinate pair in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Money is an amount in the smallest currency unit.
type Money struct {
	Amount   int64
	Currency string
}
