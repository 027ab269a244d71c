package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/newdeli/backoffice/internal/access"
	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/mail"
	"github.com/newdeli/backoffice/internal/metrics"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/repository"
	"github.com/newdeli/backoffice/internal/utils"
)

const maxNameLen = 80

// Team manages a tenant's members and outstanding invites.
type Team struct {
	Users    UserStore
	Tenants  TenantStore
	Invites  InviteStore
	Mailer   mail.Mailer
	Activity *Activity

	InviteTTL time.Duration
	BaseURL   string

	Now func() time.Time
	Log *zap.Logger
}

// InviteRequest is the invite form.  A nil Send means the mail is sent.
type InviteRequest struct {
	Email string
	Role  string
	Send  *bool
}

// AddMemberRequest is the direct add form.  An empty Role means employee
// and a nil Send means the access mail is sent.
type AddMemberRequest struct {
	Name  string
	Email string
	Role  string
	Send  *bool
}

// MemberUpdate carries the optional changes to a member.
type MemberUpdate struct {
	Name string
	Role string
}

// TeamEntry is one row of the team listing: an active member or a pending
// invite.
type TeamEntry struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
	Status string     `json:"status"` // active | pending
	Type   string     `json:"type"`   // member | invite
}

func (t *Team) now() time.Time { return clock(t.Now).now() }

func (t *Team) logger() *zap.Logger {
	if t.Log == nil {
		return zap.NewNop()
	}
	return t.Log
}

func (t *Team) inviteTTL() time.Duration {
	if t.InviteTTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return t.InviteTTL
}

// InviteLink is the accept-invite URL mailed for token.
func (t *Team) InviteLink(token string) string {
	return strings.TrimRight(t.BaseURL, "/") + "/login?invite=" + url.QueryEscape(token)
}

// LoginLink is the sign-in URL mailed to directly added members.
func (t *Team) LoginLink(email string) string {
	return strings.TrimRight(t.BaseURL, "/") + "/login?email=" + url.QueryEscape(email)
}

func requireTeamAdmin(actor Actor) error {
	if !actor.Role.In(model.RoleOwner, model.RoleManager) {
		return forbidden(i18n.Forbidden)
	}
	return nil
}

// Invite offers role in the actor's tenant to an email address.  The owner
// role cannot be offered and unknown roles become employee.
func (t *Team) Invite(ctx context.Context, actor Actor, req InviteRequest) (*model.Invite, error) {
	if err := requireTeamAdmin(actor); err != nil {
		return nil, err
	}
	email := utils.CleanEmail(req.Email)
	if !utils.IsEmail(email) {
		return nil, invalid(i18n.InvalidEmail)
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		role = model.RoleEmployee
	}
	if role == model.RoleOwner {
		return nil, invalid(i18n.InviteOwnerRole)
	}

	tenant, err := t.Tenants.GetByID(ctx, actor.Scope.TenantID())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(i18n.NotFound)
	}
	if err != nil {
		return nil, internal(err)
	}
	if u, err := t.Users.GetByEmail(ctx, email); err == nil {
		if _, member := u.Membership(tenant.ID); member {
			return nil, conflict(i18n.AlreadyMember)
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, internal(err)
	}

	inv := &model.Invite{
		Email:     email,
		Role:      role,
		ExpiresAt: t.now().Add(t.inviteTTL()),
		CreatedBy: actor.User.ID,
	}
	// A token collision gets exactly one regeneration.
	for attempt := 0; ; attempt++ {
		if inv.Token, err = utils.RandomToken(24); err != nil {
			return nil, internal(err)
		}
		inv.ID = ""
		err = t.Invites.Create(ctx, actor.Scope, inv)
		if !errors.Is(err, repository.ErrDuplicate) {
			break
		}
		if attempt == 1 {
			return nil, conflict(i18n.Conflict)
		}
	}
	if err != nil {
		return nil, internal(err)
	}

	if req.Send == nil || *req.Send {
		deliver(ctx, t.Mailer, t.logger(), mail.KindInvite, tenant.Settings.Language, email,
			mail.Vars{Tenant: tenant.Name, Role: string(role), Link: t.InviteLink(inv.Token)})
	}
	t.Activity.Record(ctx, actor.entry(ActionInviteCreated,
		model.ActivityTarget{Kind: "invite", ID: inv.ID, Email: email},
		map[string]any{"role": string(role)}))
	metrics.Onboarding("invite_created")
	return inv, nil
}

// AddMember grants role in the actor's tenant right away, creating the
// account when the email is unknown.  A new account has no password; its
// owner sets one through the reset flow.  The actor must be able to manage
// the granted role.
func (t *Team) AddMember(ctx context.Context, actor Actor, req AddMemberRequest) (*model.Member, error) {
	if err := requireTeamAdmin(actor); err != nil {
		return nil, err
	}
	email := utils.CleanEmail(req.Email)
	if !utils.IsEmail(email) {
		return nil, invalid(i18n.InvalidEmail)
	}
	role := model.RoleEmployee
	if strings.TrimSpace(req.Role) != "" {
		var ok bool
		if role, ok = model.ParseRole(req.Role); !ok {
			return nil, invalid(i18n.InvalidInput)
		}
	}
	if role == model.RoleOwner {
		return nil, invalid(i18n.InviteOwnerRole)
	}
	if !access.CanManage(actor.Role, role) {
		return nil, t.deny(ctx, actor, ActionMemberAdded, &model.Member{Email: email, Role: role})
	}
	name := utils.Clean(req.Name)
	if utf8.RuneCountInString(name) > maxNameLen {
		return nil, invalid(i18n.NameLength)
	}

	tenant, err := t.Tenants.GetByID(ctx, actor.Scope.TenantID())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(i18n.NotFound)
	}
	if err != nil {
		return nil, internal(err)
	}
	u, err := t.Users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if _, member := u.Membership(tenant.ID); member {
			return nil, conflict(i18n.AlreadyMember)
		}
	case errors.Is(err, repository.ErrNotFound):
		if name == "" {
			name, _, _ = strings.Cut(email, "@")
		}
		u = &model.User{Email: email, Name: name}
		if err := t.Users.Create(ctx, u); err != nil {
			return nil, internal(err)
		}
	default:
		return nil, internal(err)
	}

	err = t.Users.AddMembership(ctx, actor.Scope, u.ID, role)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, conflict(i18n.AlreadyMember)
	}
	if err != nil {
		return nil, internal(err)
	}
	if u.ActiveTenantID == "" {
		if err := t.Users.SetActiveTenant(ctx, u.ID, tenant.ID); err != nil {
			t.logger().Warn("set active tenant", zap.String("user_id", u.ID), zap.Error(err))
		}
	}

	if req.Send == nil || *req.Send {
		deliver(ctx, t.Mailer, t.logger(), mail.KindMemberAdded, tenant.Settings.Language, email,
			mail.Vars{Name: u.Name, Tenant: tenant.Name, Role: string(role), Link: t.LoginLink(email)})
	}
	m := &model.Member{UserID: u.ID, Name: u.Name, Email: u.Email, Role: role}
	t.Activity.Record(ctx, actor.entry(ActionMemberAdded,
		model.ActivityTarget{Kind: "user", ID: m.UserID, Label: m.Name, Email: m.Email},
		map[string]any{"role": string(role)}))
	metrics.Onboarding("member_added")
	return m, nil
}

// ListInvites returns the tenant's unexpired invites, newest first.
func (t *Team) ListInvites(ctx context.Context, actor Actor) ([]model.Invite, error) {
	if err := requireTeamAdmin(actor); err != nil {
		return nil, err
	}
	list, err := t.Invites.ListActive(ctx, actor.Scope, t.now())
	if err != nil {
		return nil, internal(err)
	}
	return list, nil
}

// RevokeInvite deletes an invite of the actor's tenant.
func (t *Team) RevokeInvite(ctx context.Context, actor Actor, id string) error {
	if err := requireTeamAdmin(actor); err != nil {
		return err
	}
	err := t.Invites.Delete(ctx, actor.Scope, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(i18n.InviteNotFound)
	}
	if err != nil {
		return internal(err)
	}
	t.Activity.Record(ctx, actor.entry(ActionInviteRevoked, model.ActivityTarget{Kind: "invite", ID: id}, nil))
	return nil
}

// ResendInvite mails a reminder for a live invite.  The expiry is not
// extended; an expired invite has to be replaced by a new one.
func (t *Team) ResendInvite(ctx context.Context, actor Actor, id string) error {
	if err := requireTeamAdmin(actor); err != nil {
		return err
	}
	inv, err := t.Invites.Get(ctx, actor.Scope, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(i18n.InviteNotFound)
	}
	if err != nil {
		return internal(err)
	}
	if inv.Expired(t.now()) {
		return invalid(i18n.InviteExpired)
	}
	tenant, err := t.Tenants.GetByID(ctx, inv.TenantID)
	if err != nil {
		return internal(err)
	}
	deliver(ctx, t.Mailer, t.logger(), mail.KindInviteReminder, tenant.Settings.Language, inv.Email,
		mail.Vars{Tenant: tenant.Name, Role: string(inv.Role), Link: t.InviteLink(inv.Token)})
	t.Activity.Record(ctx, actor.entry(ActionInviteResent,
		model.ActivityTarget{Kind: "invite", ID: inv.ID, Email: inv.Email}, nil))
	return nil
}

// Members lists active members followed by pending invites.
func (t *Team) Members(ctx context.Context, actor Actor) ([]TeamEntry, error) {
	members, err := t.Users.Members(ctx, actor.Scope)
	if err != nil {
		return nil, internal(err)
	}
	invites, err := t.Invites.ListActive(ctx, actor.Scope, t.now())
	if err != nil {
		return nil, internal(err)
	}
	out := make([]TeamEntry, 0, len(members)+len(invites))
	for _, m := range members {
		out = append(out, TeamEntry{ID: m.UserID, Name: m.Name, Email: m.Email, Role: m.Role, Status: "active", Type: "member"})
	}
	for _, inv := range invites {
		local, _, _ := strings.Cut(inv.Email, "@")
		out = append(out, TeamEntry{ID: inv.ID, Name: local, Email: inv.Email, Role: inv.Role, Status: "pending", Type: "invite"})
	}
	return out, nil
}

// UpdateMember renames a member or changes their role.  The actor must be
// able to manage both the member's current role and the new one.  Renaming
// is refused for users who also belong to another tenant.
func (t *Team) UpdateMember(ctx context.Context, actor Actor, userID string, upd MemberUpdate) (*model.Member, error) {
	if err := requireTeamAdmin(actor); err != nil {
		return nil, err
	}
	target, err := t.Users.Member(ctx, actor.Scope, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(i18n.MemberNotFound)
	}
	if err != nil {
		return nil, internal(err)
	}
	if !access.CanManage(actor.Role, target.Role) {
		return nil, t.deny(ctx, actor, "member:update", target)
	}

	name := utils.Clean(upd.Name)
	if utf8.RuneCountInString(name) > maxNameLen {
		return nil, invalid(i18n.NameLength)
	}
	// The display name lives on the account, not the membership, so a
	// tenant may only rename people who belong to it alone.
	if name != "" && name != target.Name {
		u, err := t.Users.GetByID(ctx, userID)
		if err != nil {
			return nil, internal(err)
		}
		if len(u.Memberships) > 1 {
			return nil, forbidden(i18n.NameShared)
		}
	}
	meta := map[string]any{}
	if strings.TrimSpace(upd.Role) != "" {
		role, ok := model.ParseRole(upd.Role)
		if !ok {
			return nil, invalid(i18n.InvalidInput)
		}
		if !access.CanManage(actor.Role, role) {
			return nil, t.deny(ctx, actor, "member:update", target)
		}
		if role != target.Role {
			if err := t.Users.SetRole(ctx, actor.Scope, userID, role); err != nil {
				return nil, internal(err)
			}
			meta["from"], meta["to"] = string(target.Role), string(role)
			target.Role = role
		}
	}
	if name != "" && name != target.Name {
		if err := t.Users.UpdateName(ctx, userID, name); err != nil {
			return nil, internal(err)
		}
		meta["name"] = name
		target.Name = name
	}

	if len(meta) > 0 {
		t.Activity.Record(ctx, actor.entry(ActionMemberUpdated,
			model.ActivityTarget{Kind: "user", ID: target.UserID, Label: target.Name, Email: target.Email}, meta))
	}
	return target, nil
}

// RemoveMember drops a member from the actor's tenant.  The owner can never
// be removed and a manager cannot remove another manager.
func (t *Team) RemoveMember(ctx context.Context, actor Actor, userID string) error {
	if err := requireTeamAdmin(actor); err != nil {
		return err
	}
	target, err := t.Users.Member(ctx, actor.Scope, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(i18n.MemberNotFound)
	}
	if err != nil {
		return internal(err)
	}
	if !access.CanManage(actor.Role, target.Role) {
		return t.deny(ctx, actor, "member:remove", target)
	}
	err = t.Users.RemoveMembership(ctx, actor.Scope, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(i18n.MemberNotFound)
	}
	if err != nil {
		return internal(err)
	}
	t.Activity.Record(ctx, actor.entry(ActionMemberRemoved,
		model.ActivityTarget{Kind: "user", ID: target.UserID, Label: target.Name, Email: target.Email},
		map[string]any{"role": string(target.Role)}))
	return nil
}

// deny logs and audits a refused team-management action.
func (t *Team) deny(ctx context.Context, actor Actor, attempted string, target *model.Member) error {
	actorID := ""
	if actor.User != nil {
		actorID = actor.User.ID
	}
	t.logger().Warn("team action denied",
		zap.String("actor_id", actorID),
		zap.String("actor_role", string(actor.Role)),
		zap.String("tenant_id", actor.Scope.TenantID()),
		zap.String("action", attempted),
		zap.String("target_id", target.UserID),
		zap.String("target_role", string(target.Role)))
	metrics.Denied("team")
	t.Activity.Record(ctx, actor.entry(ActionAccessDenied,
		model.ActivityTarget{Kind: "user", ID: target.UserID, Email: target.Email},
		map[string]any{"attempted": attempted, "targetRole": string(target.Role)}))
	return forbidden(i18n.CannotManage)
}
