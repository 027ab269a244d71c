package model

import "time"

// Tenant represents a business account as stored in the `tenants` table.
// OwnerID points at the single user whose membership in this tenant has
// role owner; keeping the two consistent is the application's job.
type Tenant struct {
	ID        string
	Name      string
	Slug      string
	OwnerID   string
	Settings  TenantSettings
	Features  Features
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TenantSettings are the owner-editable business details.
type TenantSettings struct {
	Currency string `json:"currency"`
	Language string `json:"language"`
	Logo     string `json:"logo,omitempty"`
	Address  string `json:"address,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// DefaultSettings returns the settings a new tenant starts with.
func DefaultSettings() TenantSettings {
	return TenantSettings{Currency: "ILS", Language: "he"}
}

// Merge overlays the non-empty fields of patch onto s.
func (s TenantSettings) Merge(patch TenantSettings) TenantSettings {
	if patch.Currency != "" {
		s.Currency = patch.Currency
	}
	if patch.Language != "" {
		s.Language = patch.Language
	}
	if patch.Logo != "" {
		s.Logo = patch.Logo
	}
	if patch.Address != "" {
		s.Address = patch.Address
	}
	if patch.Phone != "" {
		s.Phone = patch.Phone
	}
	return s
}

// Features is a tenant's static on/off switch map.
type Features map[string]bool

// On reports whether key is enabled.  Unknown keys are off.
func (f Features) On(key string) bool {
	if f == nil {
		return false
	}
	return f[key]
}

// Clone returns an independent copy; a nil map clones to an empty one.
func (f Features) Clone() Features {
	out := make(Features, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Feature keys known to the dashboard.
const (
	FeatureInvoices    = "invoices"
	FeatureDispersions = "dispersions"
	FeatureSuppliers   = "suppliers"
	FeatureOrders      = "orders"
	FeatureShifts      = "shifts"
)

// CatalogEntry describes an optional module that can be switched per tenant.
type CatalogEntry struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// FeatureCatalog is the static list shown to platform administrators.
var FeatureCatalog = []CatalogEntry{
	{Key: FeatureInvoices, Label: "Invoices", Description: "Invoice uploads and archive"},
	{Key: FeatureDispersions, Label: "Dispersions", Description: "Taxi cost tracking"},
	{Key: FeatureSuppliers, Label: "Suppliers", Description: "Supplier directory"},
	{Key: FeatureOrders, Label: "Orders", Description: "Supplier orders"},
	{Key: FeatureShifts, Label: "Shifts", Description: "Shift scheduling"},
}
