package model

import "time"

// Dispersion records one taxi ride paid for by the business.  Price is in
// shekels and never negative.
type Dispersion struct {
	ID        string
	TenantID  string
	Date      time.Time
	Payer     string
	Taxi      string
	Price     float64
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}
