package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sender statuses seen in orders_order. The set is open: other values are
// stored and counted as-is.
const (
	StatusCreated  = "created"
	StatusShared   = "shared"
	StatusAccepted = "accepted"
)

// Order represents a row of the orders_order table
type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	FullOrderNumber string          `gorm:"not null;uniqueIndex" json:"full_order_number"`
	TotalOrderPrice decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_order_price"`
	SenderStatus    string          `gorm:"not null;index" json:"sender_status"` // created, shared, accepted, ...
	SendingMethod   string          `json:"sending_method"`
	SenderName      string          `json:"sender_name"`
	DestinationCity *string         `json:"destination_city"` // nullable, assigned by enrichment when absent
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders_order"
}

// HasDestination reports whether the order carries a non-empty destination city
func (o Order) HasDestination() bool {
	return o.DestinationCity != nil && *o.DestinationCity != ""
}

// Clone returns a copy of o that shares no pointers with it
func (o Order) Clone() Order {
	if o.DestinationCity != nil {
		city := *o.DestinationCity
		o.DestinationCity = &city
	}
	return o
}
