package dashboard

import (
	"github.com/shopspring/decimal"

	"github.com/cadeo/cadeo-dashboard/models"
)

// FilterByPriceRange keeps the rows with low <= price <= high, projected onto
// the named columns. Column names are validated first: an unknown or
// unavailable column fails with INVALID_COLUMN. An inverted range (low > high)
// yields an empty table. Row order is preserved and the input is not touched.
func FilterByPriceRange(orders *OrderTable, low, high decimal.Decimal, columns []string) (*OrderTable, error) {
	selected, err := orders.ResolveColumns(columns)
	if err != nil {
		return nil, err
	}

	if low.GreaterThan(high) {
		return &OrderTable{rows: []models.Order{}, columns: selected}, nil
	}

	rows := make([]models.Order, 0, len(orders.rows))
	for _, order := range orders.rows {
		price := order.TotalOrderPrice
		if price.GreaterThanOrEqual(low) && price.LessThanOrEqual(high) {
			rows = append(rows, order)
		}
	}

	return &OrderTable{rows: rows, columns: selected}, nil
}

// FilterByCities keeps the enriched records whose city is in cities. An
// empty selection keeps everything.
func FilterByCities(records []models.EnrichedOrder, cities []string) []models.EnrichedOrder {
	if len(cities) == 0 {
		out := make([]models.EnrichedOrder, len(records))
		copy(out, records)
		return out
	}

	wanted := make(map[string]struct{}, len(cities))
	for _, city := range cities {
		wanted[city] = struct{}{}
	}

	out := make([]models.EnrichedOrder, 0, len(records))
	for _, record := range records {
		if _, ok := wanted[record.City()]; ok {
			out = append(out, record)
		}
	}
	return out
}
