package dashboard

import (
	"github.com/shopspring/decimal"

	"github.com/cadeo/cadeo-dashboard/models"
)

// StatusTotals holds the count and price sum of one sender status
type StatusTotals struct {
	Count int             `json:"count"`
	Sum   decimal.Decimal `json:"sum"`
}

// MetricsSummary feeds the metric cards. It is recomputed on every request.
type MetricsSummary struct {
	TotalOrders     int                     `json:"total_orders"`
	AcceptedOrders  int                     `json:"accepted_orders"`
	Users           int                     `json:"users"`
	Earnings        decimal.Decimal         `json:"earnings"`
	PendingEarnings decimal.Decimal         `json:"pending_earnings"`
	Donations       decimal.Decimal         `json:"donations"`
	ByStatus        map[string]StatusTotals `json:"by_status"`
}

// CountByStatus returns the number of orders whose status equals status
// exactly
func (s MetricsSummary) CountByStatus(status string) int {
	return s.ByStatus[status].Count
}

// SumPriceByStatus returns the price sum of orders with the given status, 0
// when none match
func (s MetricsSummary) SumPriceByStatus(status string) decimal.Decimal {
	totals, ok := s.ByStatus[status]
	if !ok {
		return decimal.Zero
	}
	return totals.Sum
}

// Summarize computes the metrics of a table in a single pass. users is the
// size of the user snapshot, counted but not interpreted.
func Summarize(orders *OrderTable, users int) MetricsSummary {
	summary := MetricsSummary{
		TotalOrders: orders.Len(),
		Users:       users,
		Donations:   decimal.Zero,
		ByStatus:    make(map[string]StatusTotals),
	}

	for _, order := range orders.rows {
		totals := summary.ByStatus[order.SenderStatus]
		totals.Count++
		totals.Sum = totals.Sum.Add(order.TotalOrderPrice)
		summary.ByStatus[order.SenderStatus] = totals
	}

	summary.AcceptedOrders = summary.CountByStatus(models.StatusAccepted)
	summary.Earnings = summary.SumPriceByStatus(models.StatusAccepted)
	summary.PendingEarnings = summary.SumPriceByStatus(models.StatusCreated).
		Add(summary.SumPriceByStatus(models.StatusShared))

	return summary
}

// CountByStatus returns the number of rows whose status equals status
// (exact, case-sensitive)
func CountByStatus(orders *OrderTable, status string) int {
	count := 0
	for _, order := range orders.rows {
		if order.SenderStatus == status {
			count++
		}
	}
	return count
}

// SumPriceByStatus sums the price of rows with the given status. An empty
// match sums to zero.
func SumPriceByStatus(orders *OrderTable, status string) decimal.Decimal {
	sum := decimal.Zero
	for _, order := range orders.rows {
		if order.SenderStatus == status {
			sum = sum.Add(order.TotalOrderPrice)
		}
	}
	return sum
}

// PriceBounds holds the lowest and highest order price of a table
type PriceBounds struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

// Bounds returns the min and max price. An empty table has no bounds and
// returns EMPTY_TABLE.
func Bounds(orders *OrderTable) (PriceBounds, error) {
	if orders.Len() == 0 {
		return PriceBounds{}, &Error{
			Code:    CodeEmptyTable,
			Message: "cannot compute price bounds of an empty table",
		}
	}

	bounds := PriceBounds{
		Min: orders.rows[0].TotalOrderPrice,
		Max: orders.rows[0].TotalOrderPrice,
	}
	for _, order := range orders.rows[1:] {
		if order.TotalOrderPrice.LessThan(bounds.Min) {
			bounds.Min = order.TotalOrderPrice
		}
		if order.TotalOrderPrice.GreaterThan(bounds.Max) {
			bounds.Max = order.TotalOrderPrice
		}
	}
	return bounds, nil
}
