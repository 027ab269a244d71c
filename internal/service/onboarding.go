package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/newdeli/backoffice/internal/access"
	"github.com/newdeli/backoffice/internal/i18n"
	"github.com/newdeli/backoffice/internal/mail"
	"github.com/newdeli/backoffice/internal/metrics"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/pending"
	"github.com/newdeli/backoffice/internal/repository"
	"github.com/newdeli/backoffice/internal/utils"
)

// codeGrace is how long a code entry outlives the code itself, so that a
// late verification reports "expired" rather than "not found".
const codeGrace = 15 * time.Minute

// slugScanLimit bounds the numeric-suffix scan for a free tenant slug.
const slugScanLimit = 1000

// Onboarding drives owner sign-up, invite acceptance, login and password
// reset.  Every successful path ends in an AuthResult the transport layer
// turns into a session.
type Onboarding struct {
	Users    UserStore
	Tenants  TenantStore
	Invites  InviteStore
	Pending  pending.Store
	Mailer   mail.Mailer
	Activity *Activity

	CodeTTL    time.Duration
	ResetTTL   time.Duration
	BcryptCost int
	BaseURL    string

	Now func() time.Time
	Log *zap.Logger
}

// SignupRequest is the owner sign-up form.
type SignupRequest struct {
	Name        string
	Email       string
	TenantName  string
	TenantPhone string
}

// AuthResult describes a verified identity and the tenant its session is
// scoped to.  NoTenant is set when the user belongs to no tenant at all; no
// session should be issued then.
type AuthResult struct {
	User     *model.User
	Tenant   *model.Tenant
	Role     model.Role
	Redirect string
	NoTenant bool
}

// Claims returns the session claims for r.
func (r *AuthResult) Claims() utils.SessionClaims {
	c := utils.SessionClaims{UserID: r.User.ID, Role: string(r.Role)}
	if r.Tenant != nil {
		c.TenantID = r.Tenant.ID
	}
	return c
}

// InviteView is what an invitee sees before accepting.
type InviteView struct {
	Email      string
	Role       model.Role
	TenantID   string
	TenantName string
}

func (o *Onboarding) now() time.Time { return clock(o.Now).now() }

func (o *Onboarding) logger() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}
	return o.Log
}

func (o *Onboarding) codeTTL() time.Duration {
	if o.CodeTTL <= 0 {
		return 5 * time.Minute
	}
	return o.CodeTTL
}

func (o *Onboarding) resetTTL() time.Duration {
	if o.ResetTTL <= 0 {
		return 30 * time.Minute
	}
	return o.ResetTTL
}

// RequestCode validates the sign-up form, stores a fresh one-time code for
// the email (replacing any earlier one) and mails it.
func (o *Onboarding) RequestCode(ctx context.Context, lang string, req SignupRequest) error {
	req.Name = utils.Clean(req.Name)
	req.Email = utils.CleanEmail(req.Email)
	req.TenantName = utils.Clean(req.TenantName)
	req.TenantPhone = utils.Clean(req.TenantPhone)
	if req.Name == "" || req.Email == "" || req.TenantName == "" || req.TenantPhone == "" {
		return invalid(i18n.MissingFields)
	}
	if !utils.IsEmail(req.Email) {
		return invalid(i18n.InvalidEmail)
	}

	code, err := utils.GenerateOTP()
	if err != nil {
		return internal(err)
	}
	err = o.Pending.PutCode(ctx, pending.CodeRequest{
		Email:       req.Email,
		Name:        req.Name,
		TenantName:  req.TenantName,
		TenantPhone: req.TenantPhone,
		CodeHash:    utils.HashSecret(code),
		ExpiresAt:   o.now().Add(o.codeTTL()),
	}, o.codeTTL()+codeGrace)
	if err != nil {
		return internal(err)
	}

	deliver(ctx, o.Mailer, o.logger(), mail.KindSignupCode, lang, req.Email,
		mail.Vars{Name: req.Name, Tenant: req.TenantName, Code: code})
	metrics.Onboarding("code_requested")
	return nil
}

// VerifyCode checks an emailed code.  The first successful verification
// creates (or finds) the owner, the tenant and the owner membership.  A
// repeat verification of a used code signs the user in again when they
// already have a tenant and is a conflict otherwise; it never creates a
// second tenant.
func (o *Onboarding) VerifyCode(ctx context.Context, email, code string) (*AuthResult, error) {
	email = utils.CleanEmail(email)
	if !utils.IsEmail(email) {
		return nil, invalid(i18n.InvalidEmail)
	}
	rec, err := o.Pending.GetCode(ctx, email)
	if errors.Is(err, pending.ErrNotFound) {
		return nil, invalid(i18n.CodeNotFound)
	}
	if err != nil {
		return nil, internal(err)
	}
	if !o.now().Before(rec.ExpiresAt) {
		if err := o.Pending.DeleteCode(ctx, email); err != nil {
			o.logger().Warn("evict expired code", zap.Error(err))
		}
		return nil, invalid(i18n.CodeExpired)
	}
	if !utils.SecretEqual(strings.TrimSpace(code), rec.CodeHash) {
		return nil, invalid(i18n.CodeInvalid)
	}
	if rec.Used {
		return o.repeatVerify(ctx, email)
	}

	won, err := o.Pending.ClaimCode(ctx, email)
	if err != nil {
		return nil, internal(err)
	}
	if !won {
		// Another request is completing this sign-up, or just did.
		if again, err := o.Pending.GetCode(ctx, email); err == nil && again.Used {
			return o.repeatVerify(ctx, email)
		}
		return nil, conflict(i18n.AlreadyVerified)
	}

	res, err := o.completeSignup(ctx, rec)
	if err != nil {
		if rerr := o.Pending.ReleaseCode(ctx, email); rerr != nil {
			o.logger().Warn("release code claim", zap.Error(rerr))
		}
		return nil, err
	}
	if err := o.Pending.MarkCodeUsed(ctx, email); err != nil {
		o.logger().Warn("mark code used", zap.String("email", email), zap.Error(err))
	}
	metrics.Onboarding("signup_completed")
	return res, nil
}

func (o *Onboarding) repeatVerify(ctx context.Context, email string) (*AuthResult, error) {
	user, err := o.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, conflict(i18n.AlreadyVerified)
	}
	if err != nil {
		return nil, internal(err)
	}
	role, ok := access.ResolveRole(user, user.ActiveTenantID)
	if !ok {
		return nil, conflict(i18n.AlreadyVerified)
	}
	tenant, err := o.Tenants.GetByID(ctx, user.ActiveTenantID)
	if err != nil {
		return nil, conflict(i18n.AlreadyVerified)
	}
	metrics.Onboarding("signup_repeat")
	return result(user, tenant, role), nil
}

func (o *Onboarding) completeSignup(ctx context.Context, rec *pending.CodeRequest) (*AuthResult, error) {
	user, err := o.findOrCreateUser(ctx, &model.User{Email: rec.Email, Name: rec.Name})
	if err != nil {
		return nil, internal(err)
	}
	if user.Name == "" && rec.Name != "" {
		if err := o.Users.UpdateName(ctx, user.ID, rec.Name); err != nil {
			return nil, internal(err)
		}
	}

	created := false
	tenant, err := o.Tenants.FindByOwnerAndName(ctx, user.ID, rec.TenantName)
	if errors.Is(err, repository.ErrNotFound) {
		tenant, err = o.createTenant(ctx, user.ID, rec.TenantName, rec.TenantPhone)
		created = err == nil
	}
	if err != nil {
		return nil, AsError(err)
	}

	sc := repository.ForTenant(tenant.ID)
	if err := o.Users.AddMembership(ctx, sc, user.ID, model.RoleOwner); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, internal(err)
		}
		if err := o.Users.SetRole(ctx, sc, user.ID, model.RoleOwner); err != nil {
			return nil, internal(err)
		}
	}
	if err := o.Users.SetActiveTenant(ctx, user.ID, tenant.ID); err != nil {
		return nil, internal(err)
	}
	user, err = o.Users.GetByID(ctx, user.ID)
	if err != nil {
		return nil, internal(err)
	}

	if created {
		o.Activity.Record(ctx, Entry{
			Scope:      sc,
			ActorID:    user.ID,
			ActorName:  user.Name,
			ActorEmail: user.Email,
			Action:     ActionTenantCreated,
			Target:     model.ActivityTarget{Kind: "tenant", ID: tenant.ID, Label: tenant.Name},
		})
	}
	return result(user, tenant, model.RoleOwner), nil
}

// findOrCreateUser returns the user with u.Email, inserting u when there is
// none.  Losing an insert race to a concurrent request is not an error.
func (o *Onboarding) findOrCreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	existing, err := o.Users.GetByEmail(ctx, u.Email)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if err := o.Users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return o.Users.GetByEmail(ctx, u.Email)
		}
		return nil, err
	}
	return o.Users.GetByID(ctx, u.ID)
}

// createTenant inserts a tenant under the first free slug for name.  If a
// concurrent sign-up takes the slug first, one retry with a random suffix
// is made before giving up with a conflict.
func (o *Onboarding) createTenant(ctx context.Context, ownerID, name, phone string) (*model.Tenant, error) {
	slug, err := o.freeSlug(ctx, utils.SlugBase(name))
	if err != nil {
		return nil, internal(err)
	}
	t := &model.Tenant{
		Name:     name,
		Slug:     slug,
		OwnerID:  ownerID,
		Settings: model.TenantSettings{Phone: phone},
	}
	err = o.Tenants.Create(ctx, t)
	if errors.Is(err, repository.ErrDuplicate) {
		t.ID = ""
		t.Slug = slug + "-" + utils.RandomBase36(3)
		err = o.Tenants.Create(ctx, t)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict(i18n.SlugTaken)
		}
	}
	if err != nil {
		return nil, internal(err)
	}
	return t, nil
}

func (o *Onboarding) freeSlug(ctx context.Context, base string) (string, error) {
	for i := 0; i < slugScanLimit; i++ {
		cand := utils.SlugCandidate(base, i)
		taken, err := o.Tenants.SlugExists(ctx, cand)
		if err != nil {
			return "", err
		}
		if !taken {
			return cand, nil
		}
	}
	return base + "-" + utils.RandomBase36(6), nil
}

// LookupInvite returns the public view of a live invite.
func (o *Onboarding) LookupInvite(ctx context.Context, token string) (*InviteView, error) {
	token = utils.Clean(token)
	if token == "" {
		return nil, notFound(i18n.InviteNotFound)
	}
	inv, err := o.Invites.GetByToken(ctx, token, o.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(i18n.InviteNotFound)
	}
	if err != nil {
		return nil, internal(err)
	}
	view := &InviteView{Email: inv.Email, Role: inv.Role, TenantID: inv.TenantID}
	if t, err := o.Tenants.GetByID(ctx, inv.TenantID); err == nil {
		view.TenantName = t.Name
	}
	return view, nil
}

// AcceptInvite consumes token and makes its email a member of the invite's
// tenant, creating the account when needed.  If anything after consumption
// fails the invite is put back so the call can be retried.
func (o *Onboarding) AcceptInvite(ctx context.Context, token, name, password string) (*AuthResult, error) {
	token, name = utils.Clean(token), utils.Clean(name)
	if token == "" || name == "" || password == "" {
		return nil, invalid(i18n.MissingFields)
	}
	hash, err := utils.HashPassword(password, o.BcryptCost)
	if err := passwordError(err); err != nil {
		return nil, err
	}

	inv, err := o.Invites.Consume(ctx, token, o.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(i18n.InviteNotFound)
	}
	if err != nil {
		return nil, internal(err)
	}

	user, err := o.joinTenant(ctx, inv, name, hash)
	if err != nil {
		if rerr := o.Invites.Restore(ctx, inv); rerr != nil {
			o.logger().Error("restore invite", zap.String("invite_id", inv.ID), zap.Error(rerr))
		}
		return nil, internal(err)
	}
	role, ok := access.ResolveRole(user, inv.TenantID)
	if !ok {
		return nil, internal(errors.New("membership missing after invite accept"))
	}
	tenant, err := o.Tenants.GetByID(ctx, inv.TenantID)
	if err != nil {
		return nil, internal(err)
	}

	o.Activity.Record(ctx, Entry{
		Scope:      repository.ForTenant(inv.TenantID),
		ActorID:    user.ID,
		ActorName:  user.Name,
		ActorEmail: user.Email,
		Action:     ActionInviteAccepted,
		Target:     model.ActivityTarget{Kind: "invite", ID: inv.ID, Email: inv.Email},
		Meta:       map[string]any{"role": string(role)},
	})
	metrics.Onboarding("invite_accepted")
	return result(user, tenant, role), nil
}

func (o *Onboarding) joinTenant(ctx context.Context, inv *model.Invite, name, hash string) (*model.User, error) {
	user, err := o.findOrCreateUser(ctx, &model.User{
		Email:          inv.Email,
		Name:           name,
		PasswordHash:   hash,
		ActiveTenantID: inv.TenantID,
	})
	if err != nil {
		return nil, err
	}
	sc := repository.ForTenant(inv.TenantID)
	if err := o.Users.AddMembership(ctx, sc, user.ID, inv.Role); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return nil, err
	}
	if !user.HasPassword() {
		if err := o.Users.SetPassword(ctx, user.ID, hash); err != nil {
			return nil, err
		}
	}
	if user.Name == "" {
		if err := o.Users.UpdateName(ctx, user.ID, name); err != nil {
			return nil, err
		}
	}
	if err := o.Users.SetActiveTenant(ctx, user.ID, inv.TenantID); err != nil {
		return nil, err
	}
	return o.Users.GetByID(ctx, user.ID)
}

// Login checks a password and picks the tenant to sign into: the stored
// active tenant while the user is still a member there, else a tenant the
// user owns, else the oldest membership.
func (o *Onboarding) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = utils.CleanEmail(email)
	if email == "" || password == "" {
		return nil, invalid(i18n.MissingFields)
	}
	if !utils.IsEmail(email) {
		return nil, invalid(i18n.InvalidEmail)
	}
	user, err := o.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, unauthenticated(i18n.InvalidCredentials)
	}
	if err != nil {
		return nil, internal(err)
	}
	if !utils.VerifyPassword(user.PasswordHash, password) {
		return nil, unauthenticated(i18n.InvalidCredentials)
	}

	tenantID, role := pickTenant(user)
	if tenantID == "" {
		return &AuthResult{User: user, NoTenant: true}, nil
	}
	if user.ActiveTenantID != tenantID {
		if err := o.Users.SetActiveTenant(ctx, user.ID, tenantID); err != nil {
			return nil, internal(err)
		}
		user.ActiveTenantID = tenantID
	}
	tenant, err := o.Tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, internal(err)
	}
	metrics.Onboarding("login")
	return result(user, tenant, role), nil
}

func pickTenant(user *model.User) (string, model.Role) {
	if role, ok := access.ResolveRole(user, user.ActiveTenantID); ok {
		return user.ActiveTenantID, role
	}
	for _, m := range user.Memberships {
		if m.Role == model.RoleOwner {
			return m.TenantID, m.Role
		}
	}
	if len(user.Memberships) > 0 {
		m := user.Memberships[0]
		return m.TenantID, m.Role
	}
	return "", ""
}

// SwitchTenant re-scopes the session of user to another tenant they belong to.
func (o *Onboarding) SwitchTenant(ctx context.Context, user *model.User, tenantID string) (*AuthResult, error) {
	tenantID = utils.Clean(tenantID)
	role, ok := access.ResolveRole(user, tenantID)
	if !ok {
		return nil, forbidden(i18n.NotMember)
	}
	tenant, err := o.Tenants.GetByID(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(i18n.NotFound)
	}
	if err != nil {
		return nil, internal(err)
	}
	if err := o.Users.SetActiveTenant(ctx, user.ID, tenantID); err != nil {
		return nil, internal(err)
	}
	user.ActiveTenantID = tenantID
	return result(user, tenant, role), nil
}

// RequestPasswordReset mails a reset link when email belongs to a user.
// Unknown addresses succeed silently.
func (o *Onboarding) RequestPasswordReset(ctx context.Context, lang, email string) error {
	email = utils.CleanEmail(email)
	if !utils.IsEmail(email) {
		return invalid(i18n.InvalidEmail)
	}
	user, err := o.Users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return internal(err)
	}
	token, err := utils.RandomToken(24)
	if err != nil {
		return internal(err)
	}
	if err := o.Pending.PutReset(ctx, token, user.ID, o.resetTTL()); err != nil {
		return internal(err)
	}
	link := strings.TrimRight(o.BaseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
	deliver(ctx, o.Mailer, o.logger(), mail.KindPasswordReset, lang, email,
		mail.Vars{Name: user.Name, Link: link})
	metrics.Onboarding("password_reset_requested")
	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (o *Onboarding) ResetPassword(ctx context.Context, token, password string) error {
	token = utils.Clean(token)
	if token == "" {
		return invalid(i18n.ResetTokenInvalid)
	}
	hash, err := utils.HashPassword(password, o.BcryptCost)
	if err := passwordError(err); err != nil {
		return err
	}
	userID, err := o.Pending.TakeReset(ctx, token)
	if errors.Is(err, pending.ErrNotFound) {
		return invalid(i18n.ResetTokenInvalid)
	}
	if err != nil {
		return internal(err)
	}
	err = o.Users.SetPassword(ctx, userID, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return invalid(i18n.ResetTokenInvalid)
	}
	if err != nil {
		return internal(err)
	}
	metrics.Onboarding("password_reset")
	return nil
}

func result(user *model.User, tenant *model.Tenant, role model.Role) *AuthResult {
	return &AuthResult{User: user, Tenant: tenant, Role: role, Redirect: access.HomeFor(role)}
}

// mailTimeout caps a single delivery attempt made while serving a request.
const mailTimeout = 5 * time.Second

// deliver renders and sends one email.  Failures are logged and dropped:
// the state change that triggered the mail has already been committed.
func deliver(ctx context.Context, m mail.Mailer, lg *zap.Logger, kind, lang, to string, v mail.Vars) {
	if m == nil {
		return
	}
	msg, err := mail.Render(kind, lang, to, v)
	if err != nil {
		lg.Error("render mail", zap.String("kind", kind), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
	defer cancel()
	if err := m.Send(ctx, msg); err != nil {
		lg.Warn("send mail failed", zap.String("kind", kind), zap.String("to", to), zap.Error(err))
	}
}

// passwordError maps a HashPassword failure to the service error returned to
// the client.  It returns nil for a nil err.
func passwordError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, utils.ErrWeakPassword):
		return invalid(i18n.WeakPassword)
	case errors.Is(err, utils.ErrPasswordTooLong):
		return invalid(i18n.PasswordTooLong)
	default:
		return internal(err)
	}
}
