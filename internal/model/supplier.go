package model

import "time"

// Supplier is a vendor in a tenant's directory.  Names are unique per tenant.
//
// Fields:
//  DeliveryDays – weekdays the supplier delivers on, 0 (Sunday) through 5 (Friday).
//  Products     – catalogue of items the supplier carries.
type Supplier struct {
	ID           string
	TenantID     string
	Name         string
	Phone        string
	DeliveryDays []int
	Products     []SupplierProduct
	Notes        string
	IsActive     bool
	CreatedBy    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SupplierProduct is one catalogue line.
type SupplierProduct struct {
	Name      string   `json:"name"`
	Unit      string   `json:"unit,omitempty"`
	LastPrice *float64 `json:"lastPrice,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}
