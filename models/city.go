package models

// CityCoordinate maps a city name to its geographic position
type CityCoordinate struct {
	City      string  `json:"city"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// EnrichedOrder is an order joined with the coordinates of its destination city
type EnrichedOrder struct {
	Order
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// City returns the destination city of the enriched order
func (e EnrichedOrder) City() string {
	if e.DestinationCity == nil {
		return ""
	}
	return *e.DestinationCity
}
