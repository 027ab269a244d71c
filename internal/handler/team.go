package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/middleware"
	"github.com/newdeli/backoffice/internal/response"
	"github.com/newdeli/backoffice/internal/service"
)

// TeamHandler serves /api/team: invites and member administration.
type TeamHandler struct {
	Team *service.Team
}

func NewTeamHandler(t *service.Team) *TeamHandler { return &TeamHandler{Team: t} }

type inviteReq struct {
	Email      string `json:"email"`
	Role       string `json:"role"`
	SendInvite *bool  `json:"sendInvite"`
}

type addMemberReq struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	SendInvite *bool  `json:"sendInvite"`
}

type memberReq struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// Invite creates an invite and, unless sendInvite is false, mails it.
func (h *TeamHandler) Invite(c echo.Context) error {
	var req inviteReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	inv, err := h.Team.Invite(ctx, middleware.ActorFrom(c), service.InviteRequest{
		Email: req.Email,
		Role:  req.Role,
		Send:  req.SendInvite,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusCreated, i18n.InviteSent, echo.Map{
		"invite":     inviteJSON(inv),
		"inviteLink": h.Team.InviteLink(inv.Token),
	})
}

// ListInvites returns the tenant's unexpired invites.
func (h *TeamHandler) ListInvites(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Team.ListInvites(ctx, middleware.ActorFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	out := make([]inviteView, 0, len(list))
	for i := range list {
		out = append(out, inviteJSON(&list[i]))
	}
	return response.OK(c, http.StatusOK, "", echo.Map{"invites": out})
}

func (h *TeamHandler) RevokeInvite(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Team.RevokeInvite(ctx, middleware.ActorFrom(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.Deleted, nil)
}

func (h *TeamHandler) ResendInvite(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Team.ResendInvite(ctx, middleware.ActorFrom(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.InviteSent, nil)
}

// AddMember grants a membership without an invite and, unless sendInvite is
// false, mails the member a sign-in link.
func (h *TeamHandler) AddMember(c echo.Context) error {
	var req addMemberReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.Team.AddMember(ctx, middleware.ActorFrom(c), service.AddMemberRequest{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
		Send:  req.SendInvite,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusCreated, i18n.MemberAdded, echo.Map{"member": memberJSON(m)})
}

// Members lists active members followed by pending invites.
func (h *TeamHandler) Members(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	team, err := h.Team.Members(ctx, middleware.ActorFrom(c))
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, "", echo.Map{"team": team})
}

func (h *TeamHandler) UpdateMember(c echo.Context) error {
	var req memberReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	m, err := h.Team.UpdateMember(ctx, middleware.ActorFrom(c), c.Param("id"), service.MemberUpdate{Name: req.Name, Role: req.Role})
	if err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.Saved, echo.Map{"member": memberJSON(m)})
}

func (h *TeamHandler) RemoveMember(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Team.RemoveMember(ctx, middleware.ActorFrom(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.OK(c, http.StatusOK, i18n.Deleted, nil)
}
