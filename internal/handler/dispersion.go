package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/middleware"
	"github.com/newdeli/backoffice/internal/response"
	"github.com/newdeli/backoffice/internal/service"
)

// DispersionHandler serves /api/dispersions.
type DispersionHandler struct {
	Dispersions *service.Dispersions
}

func NewDispersionHandler(d *service.Dispersions) *DispersionHandler {
	return &DispersionHandler{Dispersions: d}
}

type dispersionReq struct {
	Date  *string  `json:"date"`
	Payer *string  `json:"payer"`
	Taxi  *string  `json:"taxi"`
	Price *float64 `json:"price"`
}

func (r dispersionReq) input() service.DispersionInput {
	return service.DispersionInput{Date: r.Date, Payer: r.Payer, Taxi: r.Taxi, Price: r.Price}
}

func (h *DispersionHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Dispersions.List(ctx, middleware.ActorFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "", echo.Map{"dispersions": dispersionsJSON(list)})
}

// Search matches ?q against payer and taxi.
func (h *DispersionHandler) Search(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Dispersions.Search(ctx, middleware.ActorFrom(c), c.QueryParam("q"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "", echo.Map{"items": dispersionsJSON(list)})
}

func (h *DispersionHandler) Create(c echo.Context) error {
	var req dispersionReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Dispersions.Create(ctx, middleware.ActorFrom(c), req.input())
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusCreated, i18n.Saved, echo.Map{"id": d.ID, "dispersion": dispersionJSON(d)})
}

func (h *DispersionHandler) Update(c echo.Context) error {
	var req dispersionReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	d, err := h.Dispersions.Update(ctx, middleware.ActorFrom(c), c.Param("id"), req.input())
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.Saved, echo.Map{"dispersion": dispersionJSON(d)})
}

func (h *DispersionHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Dispersions.Delete(ctx, middleware.ActorFrom(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.Deleted, nil)
}
