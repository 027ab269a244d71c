package handler

import (
	"time"

	"github.com/newdeli/backoffice/internal/model"
)

// JSON projections of the model types.  Models carry no json tags so the
// wire shape is decided here.

type userView struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	IsPlatformAdmin bool   `json:"isPlatformAdmin,omitempty"`
}

func userJSON(u *model.User) *userView {
	if u == nil {
		return nil
	}
	return &userView{ID: u.ID, Name: u.Name, Email: u.Email, IsPlatformAdmin: u.IsPlatformAdmin}
}

type tenantView struct {
	ID       string               `json:"id"`
	Name     string               `json:"name"`
	Slug     string               `json:"slug"`
	OwnerID  string               `json:"ownerId"`
	Settings model.TenantSettings `json:"settings"`
	Features model.Features       `json:"features,omitempty"`
}

func tenantJSON(t *model.Tenant) *tenantView {
	if t == nil {
		return nil
	}
	return &tenantView{ID: t.ID, Name: t.Name, Slug: t.Slug, OwnerID: t.OwnerID, Settings: t.Settings, Features: t.Features}
}

type memberView struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

func memberJSON(m *model.Member) *memberView {
	if m == nil {
		return nil
	}
	return &memberView{ID: m.UserID, Name: m.Name, Email: m.Email, Role: m.Role}
}

type inviteView struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	ExpiresAt time.Time  `json:"expiresAt"`
	CreatedBy string     `json:"createdBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

func inviteJSON(inv *model.Invite) inviteView {
	return inviteView{
		ID:        inv.ID,
		Email:     inv.Email,
		Role:      inv.Role,
		ExpiresAt: inv.ExpiresAt,
		CreatedBy: inv.CreatedBy,
		CreatedAt: inv.CreatedAt,
	}
}

type supplierView struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	Phone        string                  `json:"phone"`
	DeliveryDays []int                   `json:"deliveryDays"`
	Products     []model.SupplierProduct `json:"products"`
	Notes        string                  `json:"notes,omitempty"`
	IsActive     bool                    `json:"isActive"`
	CreatedBy    string                  `json:"createdBy,omitempty"`
	CreatedAt    time.Time               `json:"createdAt"`
	UpdatedAt    time.Time               `json:"updatedAt"`
}

func supplierJSON(s *model.Supplier) supplierView {
	v := supplierView{
		ID:           s.ID,
		Name:         s.Name,
		Phone:        s.Phone,
		DeliveryDays: s.DeliveryDays,
		Products:     s.Products,
		Notes:        s.Notes,
		IsActive:     s.IsActive,
		CreatedBy:    s.CreatedBy,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
	if v.DeliveryDays == nil {
		v.DeliveryDays = []int{}
	}
	if v.Products == nil {
		v.Products = []model.SupplierProduct{}
	}
	return v
}

func suppliersJSON(list []model.Supplier) []supplierView {
	out := make([]supplierView, 0, len(list))
	for i := range list {
		out = append(out, supplierJSON(&list[i]))
	}
	return out
}

type orderView struct {
	ID            string            `json:"id"`
	OrderDate     string            `json:"orderDate"`
	DayOfWeek     int               `json:"dayOfWeek"`
	SupplierID    string            `json:"supplierId"`
	SupplierName  string            `json:"supplierName"`
	Items         []model.OrderItem `json:"items"`
	TotalItems    float64           `json:"totalItems"`
	Status        model.OrderStatus `json:"status"`
	Notes         string            `json:"notes,omitempty"`
	CreatedBy     string            `json:"createdBy"`
	CreatedByName string            `json:"createdByName"`
	ReceivedDate  *time.Time        `json:"receivedDate,omitempty"`
	ReceivedBy    string            `json:"receivedBy,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

func orderJSON(o *model.Order) orderView {
	v := orderView{
		ID:            o.ID,
		OrderDate:     o.OrderDate.Format(time.DateOnly),
		DayOfWeek:     o.DayOfWeek,
		SupplierID:    o.SupplierID,
		SupplierName:  o.SupplierName,
		Items:         o.Items,
		TotalItems:    o.TotalItems,
		Status:        o.Status,
		Notes:         o.Notes,
		CreatedBy:     o.CreatedBy,
		CreatedByName: o.CreatedByName,
		ReceivedDate:  o.ReceivedAt,
		ReceivedBy:    o.ReceivedBy,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if v.Items == nil {
		v.Items = []model.OrderItem{}
	}
	return v
}

func ordersJSON(list []model.Order) []orderView {
	out := make([]orderView, 0, len(list))
	for i := range list {
		out = append(out, orderJSON(&list[i]))
	}
	return out
}

type dispersionView struct {
	ID    string  `json:"id"`
	Date  string  `json:"date"`
	Payer string  `json:"payer"`
	Taxi  string  `json:"taxi"`
	Price float64 `json:"price"`
}

func dispersionJSON(d *model.Dispersion) dispersionView {
	return dispersionView{ID: d.ID, Date: d.Date.Format(time.DateOnly), Payer: d.Payer, Taxi: d.Taxi, Price: d.Price}
}

func dispersionsJSON(list []model.Dispersion) []dispersionView {
	out := make([]dispersionView, 0, len(list))
	for i := range list {
		out = append(out, dispersionJSON(&list[i]))
	}
	return out
}

type activityView struct {
	ID        string               `json:"id"`
	Actor     activityActor        `json:"actor"`
	Action    string               `json:"action"`
	Target    model.ActivityTarget `json:"target"`
	Meta      map[string]any       `json:"meta,omitempty"`
	IP        string               `json:"ip,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
}

type activityActor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func activityJSON(l *model.ActivityLog) activityView {
	return activityView{
		ID:        l.ID,
		Actor:     activityActor{ID: l.ActorID, Name: l.ActorName, Email: l.ActorEmail},
		Action:    l.Action,
		Target:    l.Target,
		Meta:      l.Meta,
		IP:        l.IP,
		CreatedAt: l.CreatedAt,
	}
}
