package model

import "time"

// OrderStatus is the lifecycle state of a supplier order.
type OrderStatus string

const (
	OrderDraft     OrderStatus = "draft"
	OrderOrdered   OrderStatus = "ordered"
	OrderReceived  OrderStatus = "received"
	OrderCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus accepts the four known statuses.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch st := OrderStatus(s); st {
	case OrderDraft, OrderOrdered, OrderReceived, OrderCancelled:
		return st, true
	}
	return "", false
}

// Order is what a tenant asked one supplier to deliver on one day.  At most
// one order exists per (tenant, supplier, day).
//
// Fields:
//  OrderDate    – delivery day, midnight UTC.
//  DayOfWeek    – OrderDate's weekday, 0 (Sunday) through 5 (Friday).
//  SupplierName – copied at save time so the order survives the supplier.
//  TotalItems   – sum of item quantities, kept by Recount.
//  ReceivedAt   – set when the delivery was checked in; ReceivedBy is the user.
type Order struct {
	ID            string
	TenantID      string
	OrderDate     time.Time
	DayOfWeek     int
	SupplierID    string
	SupplierName  string
	Items         []OrderItem
	TotalItems    float64
	Status        OrderStatus
	Notes         string
	CreatedBy     string
	CreatedByName string
	ReceivedAt    *time.Time
	ReceivedBy    string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem is one product line of an order.
type OrderItem struct {
	ProductName string  `json:"productName"`
	Quantity    float64 `json:"quantity"`
	Unit        string  `json:"unit,omitempty"`
	Notes       string  `json:"notes,omitempty"`
}

// Recount refreshes TotalItems from Items.
func (o *Order) Recount() {
	var n float64
	for _, it := range o.Items {
		n += it.Quantity
	}
	o.TotalItems = n
}

// OrderFilter narrows an order listing.  Zero fields match everything.
type OrderFilter struct {
	Date   time.Time
	Status OrderStatus
}

// OrderStat aggregates a tenant's orders of one status.
type OrderStat struct {
	Status     OrderStatus `json:"status"`
	Count      int         `json:"count"`
	TotalItems float64     `json:"totalItems"`
}
