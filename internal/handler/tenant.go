package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/middleware"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/response"
	"github.com/newdeli/backoffice/internal/service"
)

// TenantHandler serves the current tenant's dashboard data, its activity
// log and the platform administration endpoints.
type TenantHandler struct {
	Tenants  *service.Tenants
	Activity *service.Activity
}

func NewTenantHandler(t *service.Tenants, a *service.Activity) *TenantHandler {
	return &TenantHandler{Tenants: t, Activity: a}
}

type tenantUpdateReq struct {
	Name     string               `json:"name"`
	Settings model.TenantSettings `json:"settings"`
}

type featuresReq struct {
	Key      string          `json:"key"`
	Value    bool            `json:"value"`
	Features map[string]bool `json:"features"`
}

// Info returns the session tenant with its features, owner and team.
func (h *TenantHandler) Info(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	info, err := h.Tenants.Info(ctx, middleware.ActorFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "", echo.Map{
		"tenant":       tenantJSON(info.Tenant),
		"features":     info.Features,
		"featureState": info.FeatureState,
		"currentUser":  memberJSON(&info.CurrentUser),
		"owner":        memberJSON(info.Owner),
		"team":         info.Team,
	})
}

// Update renames the tenant and merges its settings.  Owner only.
func (h *TenantHandler) Update(c echo.Context) error {
	var req tenantUpdateReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	t, err := h.Tenants.Update(ctx, middleware.ActorFrom(c), req.Name, req.Settings)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.Saved, echo.Map{"tenant": tenantJSON(t)})
}

// Logs returns recent activity.  ?limit= defaults to 30, ?since= takes an
// RFC 3339 timestamp.
func (h *TenantHandler) Logs(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	var since time.Time
	if s := c.QueryParam("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return badBody(c)
		}
		since = t
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	logs, err := h.Activity.List(ctx, middleware.ActorFrom(c), limit, since)
	if err != nil {
		return response.Error(c, err)
	}
	out := make([]activityView, 0, len(logs))
	for i := range logs {
		out = append(out, activityJSON(&logs[i]))
	}
	return response.OK(c, http.StatusOK, "", echo.Map{"logs": out})
}

// ----- platform administration -----

func (h *TenantHandler) FeatureCatalog(c echo.Context) error {
	return response.OK(c, http.StatusOK, "", echo.Map{"features": h.Tenants.Catalog()})
}

// ListTenants returns every tenant with team and supplier counts.
func (h *TenantHandler) ListTenants(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Tenants.List(ctx)
	if err != nil {
		return response.Error(c, err)
	}
	out := make([]echo.Map, 0, len(list))
	for i := range list {
		s := &list[i]
		row := echo.Map{
			"tenant":        tenantJSON(&s.Tenant),
			"owner":         memberJSON(s.Owner),
			"teamCount":     s.TeamCount,
			"roles":         s.Roles,
			"supplierCount": s.SupplierCount,
		}
		if s.LastActivity != nil {
			row["lastActivity"] = activityJSON(s.LastActivity)
		}
		out = append(out, row)
	}
	return response.OK(c, http.StatusOK, "", echo.Map{"tenants": out})
}

// SetFeatures switches one feature ({key, value}) or several
// ({features: {...}}) for the tenant in the path.
func (h *TenantHandler) SetFeatures(c echo.Context) error {
	var req featuresReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	if req.Key == "" && len(req.Features) == 0 {
		return response.Fail(c, http.StatusBadRequest, i18n.MissingFields)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	f, err := h.Tenants.SetFeatures(ctx, c.Param("id"), service.FeaturePatch{Key: req.Key, Value: req.Value, Bulk: req.Features})
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.Saved, echo.Map{"features": f})
}
