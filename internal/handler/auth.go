package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/newdeli/backoffice/internal/access"
	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/logger"
	"github.com/newdeli/backoffice/internal/middleware"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/response"
	"github.com/newdeli/backoffice/internal/service"
)

// requestTimeout bounds the storage work of a single request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

type tenantGetter interface {
	GetByID(ctx context.Context, id string) (*model.Tenant, error)
}

// AuthHandler bundles dependencies for the sign-up, invite, login and
// session endpoints.
type AuthHandler struct {
	Onboard *service.Onboarding
	Tenants tenantGetter
	Profile *service.Tenants
	Session middleware.SessionConfig
}

func NewAuthHandler(o *service.Onboarding, tenants tenantGetter, profile *service.Tenants, sess middleware.SessionConfig) *AuthHandler {
	return &AuthHandler{Onboard: o, Tenants: tenants, Profile: profile, Session: sess}
}

// ----- DTOs -----

type requestCodeReq struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	TenantName  string `json:"tenantName"`
	TenantPhone string `json:"tenantPhone"`
}

type verifyCodeReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type acceptInviteReq struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotReq struct {
	Email string `json:"email"`
}

type resetReq struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type switchReq struct {
	TenantID string `json:"tenantId"`
}

type profileReq struct {
	Name string `json:"name"`
}

func badBody(c echo.Context) error {
	return response.Fail(c, http.StatusBadRequest, i18n.InvalidInput)
}

// signIn issues the session for res and answers with the landing page.
func (h *AuthHandler) signIn(c echo.Context, status int, res *service.AuthResult) error {
	if res.NoTenant {
		// no session is issued; the client shows the message
		return response.Fail(c, http.StatusOK, i18n.NoTenant)
	}
	if err := middleware.IssueSession(c, h.Session, res.Claims()); err != nil {
		logger.FromEcho(c).Error("session signing failed", zap.String("user_id", res.User.ID), zap.Error(err))
		return response.Fail(c, http.StatusInternalServerError, i18n.Internal)
	}
	return response.OK(c, status, "", echo.Map{
		"redirect": res.Redirect,
		"role":     res.Role,
		"user":     userJSON(res.User),
		"tenant":   tenantJSON(res.Tenant),
	})
}

// RequestEmailCode starts owner sign-up by mailing a one-time code.
func (h *AuthHandler) RequestEmailCode(c echo.Context) error {
	var req requestCodeReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	err := h.Onboard.RequestCode(ctx, response.Lang(c), service.SignupRequest{
		Name:        req.Name,
		Email:       req.Email,
		TenantName:  req.TenantName,
		TenantPhone: req.TenantPhone,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.CodeSent, nil)
}

// VerifyEmailCode completes sign-up and signs the owner in.
func (h *AuthHandler) VerifyEmailCode(c echo.Context) error {
	var req verifyCodeReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Onboard.VerifyCode(ctx, req.Email, strings.TrimSpace(req.Code))
	if err != nil {
		return response.Error(c, err)
	}
	return h.signIn(c, http.StatusOK, res)
}

// GetInvite shows an invite to its recipient before acceptance.
func (h *AuthHandler) GetInvite(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	v, err := h.Onboard.LookupInvite(ctx, c.Param("token"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "", echo.Map{
		"email":  v.Email,
		"role":   v.Role,
		"tenant": echo.Map{"id": v.TenantID, "name": v.TenantName},
	})
}

// AcceptInvite consumes an invite and signs the invitee in.
func (h *AuthHandler) AcceptInvite(c echo.Context) error {
	var req acceptInviteReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Onboard.AcceptInvite(ctx, req.Token, req.Name, req.Password)
	if err != nil {
		return response.Error(c, err)
	}
	return h.signIn(c, http.StatusOK, res)
}

// Login authenticates with email and password.  The same handler serves
// the employee login route.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Onboard.Login(ctx, req.Email, req.Password)
	if err != nil {
		return response.Error(c, err)
	}
	return h.signIn(c, http.StatusOK, res)
}

// ForgotPassword mails a reset link.  The answer is the same whether or
// not the email is registered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Onboard.RequestPasswordReset(ctx, response.Lang(c), req.Email); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.ResetEmailSent, nil)
}

// ResetPassword sets a new password from a mailed token.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Onboard.ResetPassword(ctx, req.Token, req.Password); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.PasswordUpdated, nil)
}

// SwitchTenant reissues the session for another tenant of the caller.
func (h *AuthHandler) SwitchTenant(c echo.Context) error {
	var req switchReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Onboard.SwitchTenant(ctx, middleware.CurrentUser(c), req.TenantID)
	if err != nil {
		return response.Error(c, err)
	}
	return h.signIn(c, http.StatusOK, res)
}

// Me returns the session user, the role resolved for the session tenant
// and every tenant the user belongs to.
func (h *AuthHandler) Me(c echo.Context) error {
	u := middleware.CurrentUser(c)
	tid := middleware.TenantID(c)
	role, _ := access.ResolveRole(u, tid)

	ctx, cancel := reqCtx(c)
	defer cancel()
	var tenant *model.Tenant
	if role != "" {
		t, err := h.Tenants.GetByID(ctx, tid)
		if err != nil {
			logger.FromEcho(c).Warn("me: tenant lookup failed", zap.String("tenant_id", tid), zap.Error(err))
		} else {
			tenant = t
		}
	}

	memberships := make([]echo.Map, 0, len(u.Memberships))
	for _, m := range u.Memberships {
		memberships = append(memberships, echo.Map{"tenantId": m.TenantID, "role": m.Role})
	}
	return response.OK(c, http.StatusOK, "", echo.Map{
		"user":        userJSON(u),
		"role":        role,
		"tenantId":    tid,
		"tenant":      tenantJSON(tenant),
		"memberships": memberships,
	})
}

// Logout clears the session cookie.  GET requests are sent to /login.
func (h *AuthHandler) Logout(c echo.Context) error {
	middleware.ClearSession(c, h.Session)
	if c.Request().Method == http.MethodGet {
		return c.Redirect(http.StatusFound, "/login")
	}
	return response.OK(c, http.StatusOK, i18n.LoggedOut, nil)
}

// UpdateProfile renames the session user.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req profileReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Profile.UpdateProfile(ctx, middleware.CurrentUser(c), req.Name)
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.Saved, echo.Map{"user": userJSON(u)})
}
