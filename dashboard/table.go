package dashboard

import (
	"slices"
	"time"

	"github.com/cadeo/cadeo-dashboard/models"
)

// Column names a field of an order that can be shown in the table
type Column string

// Columns of orders_order exposed to the table view
const (
	ColumnID              Column = "id"
	ColumnFullOrderNumber Column = "full_order_number"
	ColumnTotalOrderPrice Column = "total_order_price"
	ColumnSenderStatus    Column = "sender_status"
	ColumnSendingMethod   Column = "sending_method"
	ColumnSenderName      Column = "sender_name"
	ColumnDestinationCity Column = "destination_city"
	ColumnUpdatedAt       Column = "updated_at"
)

// AllColumns lists every known column in table order
var AllColumns = []Column{
	ColumnID,
	ColumnFullOrderNumber,
	ColumnTotalOrderPrice,
	ColumnSenderStatus,
	ColumnSendingMethod,
	ColumnSenderName,
	ColumnDestinationCity,
	ColumnUpdatedAt,
}

// DefaultColumns is the column selection used when a request names none
var DefaultColumns = []Column{
	ColumnFullOrderNumber,
	ColumnSenderStatus,
	ColumnTotalOrderPrice,
	ColumnSendingMethod,
	ColumnSenderName,
}

// columnAccessors maps each known column to its typed accessor
var columnAccessors = map[Column]func(models.Order) any{
	ColumnID:              func(o models.Order) any { return o.ID },
	ColumnFullOrderNumber: func(o models.Order) any { return o.FullOrderNumber },
	ColumnTotalOrderPrice: func(o models.Order) any { return o.TotalOrderPrice },
	ColumnSenderStatus:    func(o models.Order) any { return o.SenderStatus },
	ColumnSendingMethod:   func(o models.Order) any { return o.SendingMethod },
	ColumnSenderName:      func(o models.Order) any { return o.SenderName },
	ColumnDestinationCity: func(o models.Order) any {
		if o.DestinationCity == nil {
			return nil
		}
		return *o.DestinationCity
	},
	ColumnUpdatedAt: func(o models.Order) any {
		if o.UpdatedAt.IsZero() {
			return nil
		}
		return o.UpdatedAt.UTC().Format(time.RFC3339)
	},
}

// ParseColumn validates a column name
func ParseColumn(name string) (Column, error) {
	c := Column(name)
	if _, ok := columnAccessors[c]; !ok {
		return "", InvalidColumn(name)
	}
	return c, nil
}

// OrderTable is an immutable, ordered set of orders together with the
// columns its source provides. Every operation returns a new table.
type OrderTable struct {
	rows    []models.Order
	columns []Column
}

// NewOrderTable builds a table over a copy of rows. With no columns given
// the table provides every known column.
func NewOrderTable(rows []models.Order, columns ...Column) *OrderTable {
	if len(columns) == 0 {
		columns = AllColumns
	}
	return &OrderTable{
		rows:    cloneOrders(rows),
		columns: slices.Clone(columns),
	}
}

// Len returns the number of rows
func (t *OrderTable) Len() int {
	return len(t.rows)
}

// Rows returns a copy of the rows in table order
func (t *OrderTable) Rows() []models.Order {
	return cloneOrders(t.rows)
}

func cloneOrders(rows []models.Order) []models.Order {
	if rows == nil {
		return nil
	}
	out := make([]models.Order, len(rows))
	for i, o := range rows {
		out[i] = o.Clone()
	}
	return out
}

// Columns returns the columns the table provides, in order
func (t *OrderTable) Columns() []Column {
	return slices.Clone(t.columns)
}

// HasColumn reports whether the table provides c
func (t *OrderTable) HasColumn(c Column) bool {
	return slices.Contains(t.columns, c)
}

// ResolveColumns validates names against the columns this table provides.
// Unknown names and names of columns the table lacks are INVALID_COLUMN.
func (t *OrderTable) ResolveColumns(names []string) ([]Column, error) {
	resolved := make([]Column, 0, len(names))
	for _, name := range names {
		c, err := ParseColumn(name)
		if err != nil {
			return nil, err
		}
		if !t.HasColumn(c) {
			return nil, InvalidColumn(name)
		}
		resolved = append(resolved, c)
	}
	return resolved, nil
}

// DefaultSelection returns DefaultColumns restricted to what the table
// provides
func (t *OrderTable) DefaultSelection() []Column {
	selection := make([]Column, 0, len(DefaultColumns))
	for _, c := range DefaultColumns {
		if t.HasColumn(c) {
			selection = append(selection, c)
		}
	}
	return selection
}

// TableView is the rendered form of a table: a header and one row of values
// per order, in column order
type TableView struct {
	Columns []Column `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Project renders every row over the table's columns
func (t *OrderTable) Project() TableView {
	view := TableView{
		Columns: t.Columns(),
		Rows:    make([][]any, 0, len(t.rows)),
	}
	for _, order := range t.rows {
		row := make([]any, len(t.columns))
		for i, c := range t.columns {
			row[i] = columnAccessors[c](order)
		}
		view.Rows = append(view.Rows, row)
	}
	return view
}
