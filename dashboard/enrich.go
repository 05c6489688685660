package dashboard

import (
	"fmt"
	"strings"

	"github.com/cadeo/cadeo-dashboard/models"
)

// RandomSource picks an index in [0, n). *rand.Rand from math/rand/v2
// satisfies it.
type RandomSource interface {
	IntN(n int) int
}

// DroppedOrder is an order left out of the map because its city has no
// coordinates
type DroppedOrder struct {
	FullOrderNumber string `json:"full_order_number"`
	City            string `json:"city"`
}

// EnrichResult holds the orders that resolved to coordinates and the ones
// that were dropped
type EnrichResult struct {
	Records []models.EnrichedOrder `json:"records"`
	Dropped []DroppedOrder         `json:"dropped"`
}

// Err describes the dropped orders as a MISSING_COORDINATE error, or returns
// nil when every order resolved
func (r EnrichResult) Err() error {
	if len(r.Dropped) == 0 {
		return nil
	}

	cities := make([]string, 0, len(r.Dropped))
	seen := make(map[string]struct{})
	for _, d := range r.Dropped {
		if _, ok := seen[d.City]; ok {
			continue
		}
		seen[d.City] = struct{}{}
		cities = append(cities, fmt.Sprintf("%q", d.City))
	}

	return &Error{
		Code:    CodeMissingCoordinate,
		Message: fmt.Sprintf("%d orders dropped, no coordinates for %s", len(r.Dropped), strings.Join(cities, ", ")),
	}
}

// Enrich joins every order with the coordinates of its destination city.
//
// Orders without a destination get one drawn uniformly, with replacement,
// from the cities in coords (in coords order) using rnd. This stands in for
// real destination data; a nil rnd turns it off. Orders whose city is not in
// coords, including every unassigned order when coords is empty or rnd is
// nil, are dropped and reported in
// EnrichResult.Dropped, never given another city's position. Matching is
// exact and case-sensitive. orders and coords are not modified.
func Enrich(orders *OrderTable, coords []models.CityCoordinate, rnd RandomSource) EnrichResult {
	lookup := make(map[string]models.CityCoordinate, len(coords))
	names := make([]string, 0, len(coords))
	for _, c := range coords {
		if _, ok := lookup[c.City]; ok {
			continue
		}
		lookup[c.City] = c
		names = append(names, c.City)
	}

	result := EnrichResult{
		Records: make([]models.EnrichedOrder, 0, orders.Len()),
		Dropped: []DroppedOrder{},
	}

	for _, order := range orders.rows {
		order = order.Clone()
		if !order.HasDestination() && rnd != nil && len(names) > 0 {
			city := names[rnd.IntN(len(names))]
			order.DestinationCity = &city
		}

		city := ""
		if order.DestinationCity != nil {
			city = *order.DestinationCity
		}

		coord, ok := lookup[city]
		if !ok {
			result.Dropped = append(result.Dropped, DroppedOrder{
				FullOrderNumber: order.FullOrderNumber,
				City:            city,
			})
			continue
		}

		result.Records = append(result.Records, models.EnrichedOrder{
			Order:     order,
			Latitude:  coord.Latitude,
			Longitude: coord.Longitude,
		})
	}

	return result
}
