package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/middleware"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/response"
	"github.com/newdeli/backoffice/internal/service"
)

// SupplierHandler serves /api/suppliers.
type SupplierHandler struct {
	Suppliers *service.Suppliers
}

func NewSupplierHandler(s *service.Suppliers) *SupplierHandler { return &SupplierHandler{Suppliers: s} }

// supplierReq leaves absent fields nil so updates are partial.
type supplierReq struct {
	Name         *string                 `json:"name"`
	Phone        *string                 `json:"phone"`
	DeliveryDays []int                   `json:"deliveryDays"`
	Products     []model.SupplierProduct `json:"products"`
	Notes        *string                 `json:"notes"`
	IsActive     *bool                   `json:"isActive"`
}

func (r supplierReq) input() service.SupplierInput {
	return service.SupplierInput{
		Name:         r.Name,
		Phone:        r.Phone,
		DeliveryDays: r.DeliveryDays,
		Products:     r.Products,
		Notes:        r.Notes,
		IsActive:     r.IsActive,
	}
}

func (h *SupplierHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Suppliers.List(ctx, middleware.ActorFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "", echo.Map{"suppliers": suppliersJSON(list)})
}

// ByDay lists active suppliers delivering on weekday :day (0..5).
func (h *SupplierHandler) ByDay(c echo.Context) error {
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		return response.Fail(c, http.StatusBadRequest, i18n.InvalidInput)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Suppliers.ByDay(ctx, middleware.ActorFrom(c), day)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "", echo.Map{"suppliers": suppliersJSON(list)})
}

func (h *SupplierHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	sp, err := h.Suppliers.Get(ctx, middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "", echo.Map{"supplier": supplierJSON(sp)})
}

func (h *SupplierHandler) Create(c echo.Context) error {
	var req supplierReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sp, err := h.Suppliers.Create(ctx, middleware.ActorFrom(c), req.input())
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusCreated, i18n.Saved, echo.Map{"supplier": supplierJSON(sp)})
}

func (h *SupplierHandler) Update(c echo.Context) error {
	var req supplierReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	sp, err := h.Suppliers.Update(ctx, middleware.ActorFrom(c), c.Param("id"), req.input())
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.Saved, echo.Map{"supplier": supplierJSON(sp)})
}

func (h *SupplierHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Suppliers.Delete(ctx, middleware.ActorFrom(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.Deleted, nil)
}
