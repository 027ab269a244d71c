package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/middleware"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/response"
	"github.com/newdeli/backoffice/internal/service"
)

// OrderHandler serves /api/orders.
type OrderHandler struct {
	Orders *service.Orders
}

func NewOrderHandler(o *service.Orders) *OrderHandler { return &OrderHandler{Orders: o} }

type batchReq struct {
	Date   string `json:"date"`
	Orders []struct {
		SupplierID string            `json:"supplierId"`
		Items      []model.OrderItem `json:"items"`
		Notes      string            `json:"notes"`
	} `json:"orders"`
}

// orderUpdateReq leaves absent fields nil.  An empty receivedDate clears
// the receipt.
type orderUpdateReq struct {
	Items        []model.OrderItem `json:"items"`
	Status       *string           `json:"status"`
	Notes        *string           `json:"notes"`
	ReceivedDate *string           `json:"receivedDate"`
}

// SuppliersByDate lists the suppliers delivering on ?date.
func (h *OrderHandler) SuppliersByDate(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		return response.Fail(c, http.StatusBadRequest, i18n.InvalidDate)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, day, err := h.Orders.SuppliersForDate(ctx, middleware.ActorFrom(c), date)
	if err != nil {
		return response.Error(c, err)
	}
	code := ""
	if len(list) == 0 && day == 6 {
		code = i18n.NoSaturdayDelivery
	}
	return response.OK(c, http.StatusOK, code, echo.Map{"suppliers": suppliersJSON(list), "dayOfWeek": day})
}

// List accepts the optional ?date and ?status filters.
func (h *OrderHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Orders.List(ctx, middleware.ActorFrom(c), c.QueryParam("date"), c.QueryParam("status"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "", echo.Map{"orders": ordersJSON(list)})
}

func (h *OrderHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Orders.Get(ctx, middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "", echo.Map{"order": orderJSON(o)})
}

// SaveBatch saves one day's orders.  Suppliers that failed are listed under
// "errors"; the status is 400 only when nothing was saved.
func (h *OrderHandler) SaveBatch(c echo.Context) error {
	var req batchReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	batch := service.OrderBatch{Date: req.Date}
	for _, o := range req.Orders {
		batch.Orders = append(batch.Orders, service.BatchOrder{SupplierID: o.SupplierID, Items: o.Items, Notes: o.Notes})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Orders.SaveBatch(ctx, middleware.ActorFrom(c), batch)
	if err != nil && res != nil {
		return response.FailWith(c, http.StatusBadRequest, service.AsError(err).Code, echo.Map{"errors": res.Failed})
	}
	if err != nil {
		return response.Error(c, err)
	}
	data := echo.Map{"orders": ordersJSON(res.Saved)}
	if len(res.Failed) > 0 {
		data["errors"] = res.Failed
	}
	return response.OK(c, http.StatusCreated, i18n.OrdersSaved, data)
}

func (h *OrderHandler) Update(c echo.Context) error {
	var req orderUpdateReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	o, err := h.Orders.Update(ctx, middleware.ActorFrom(c), c.Param("id"), service.OrderUpdate{
		Items:        req.Items,
		Status:       req.Status,
		Notes:        req.Notes,
		ReceivedDate: req.ReceivedDate,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.Saved, echo.Map{"order": orderJSON(o)})
}

func (h *OrderHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Orders.Delete(ctx, middleware.ActorFrom(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.Deleted, nil)
}

// Stats groups the tenant's orders by status.
func (h *OrderHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	stats, err := h.Orders.Stats(ctx, middleware.ActorFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "", echo.Map{"stats": stats})
}
