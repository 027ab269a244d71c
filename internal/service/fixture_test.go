package service

import (
	"context"
	"errors"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/newdeli/backoffice/internal/access"
	"github.com/newdeli/backoffice/internal/mail"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/pending"
	"github.com/newdeli/backoffice/internal/repository"
	"github.com/newdeli/backoffice/internal/repository/memstore"
	"github.com/newdeli/backoffice/internal/utils"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *recordingMailer) last(t *testing.T) mail.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no mail sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var (
	codeRe  = regexp.MustCompile(`\b(\d{6})\b`)
	tokenRe = regexp.MustCompile(`(?:token|invite)=([^&\s"]+)`)
)

func codeFrom(t *testing.T, msg mail.Message) string {
	t.Helper()
	all := codeRe.FindAllStringSubmatch(msg.Text, -1)
	if len(all) == 0 {
		t.Fatalf("no code in %q", msg.Text)
	}
	return all[len(all)-1][1]
}

func tokenFrom(t *testing.T, msg mail.Message) string {
	t.Helper()
	m := tokenRe.FindStringSubmatch(msg.Text)
	if m == nil {
		t.Fatalf("no token in %q", msg.Text)
	}
	tok, err := url.QueryUnescape(m[1])
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

type fixture struct {
	db      *memstore.Store
	pend    *pending.MemoryStore
	mailer  *recordingMailer
	clock   *fakeClock
	act     *Activity
	onboard *Onboarding
	team    *Team
	tenants *Tenants
	supp    *Suppliers
	orders  *Orders
	disp    *Dispersions
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:     memstore.NewStore(),
		mailer: &recordingMailer{},
		clock:  &fakeClock{t: time.Now().UTC()},
	}
	f.pend = pending.NewMemoryStore(f.clock.Now)
	f.act = &Activity{Store: f.db.Activity()}
	f.onboard = &Onboarding{
		Users:      f.db.Users(),
		Tenants:    f.db.Tenants(),
		Invites:    f.db.Invites(),
		Pending:    f.pend,
		Mailer:     f.mailer,
		Activity:   f.act,
		CodeTTL:    5 * time.Minute,
		ResetTTL:   30 * time.Minute,
		BcryptCost: 4,
		BaseURL:    "https://app.example",
		Now:        f.clock.Now,
	}
	f.team = &Team{
		Users:     f.db.Users(),
		Tenants:   f.db.Tenants(),
		Invites:   f.db.Invites(),
		Mailer:    f.mailer,
		Activity:  f.act,
		InviteTTL: 7 * 24 * time.Hour,
		BaseURL:   "https://app.example",
		Now:       f.clock.Now,
	}
	f.tenants = &Tenants{
		Users:     f.db.Users(),
		Tenants:   f.db.Tenants(),
		Invites:   f.db.Invites(),
		Features:  f.db.Tenants(),
		Suppliers: f.db.Suppliers(),
		Activity:  f.act,
		Now:       f.clock.Now,
	}
	f.supp = &Suppliers{Store: f.db.Suppliers(), Activity: f.act}
	f.orders = &Orders{Store: f.db.Orders(), Directory: f.supp, Activity: f.act}
	f.disp = &Dispersions{Store: f.db.Dispersions(), Activity: f.act}
	return f
}

// signup runs request-code and verify-code for a new owner.
func (f *fixture) signup(t *testing.T, name, email, tenantName string) *AuthResult {
	t.Helper()
	ctx := context.Background()
	err := f.onboard.RequestCode(ctx, "en", SignupRequest{Name: name, Email: email, TenantName: tenantName, TenantPhone: "0500000000"})
	if err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	res, err := f.onboard.VerifyCode(ctx, email, codeFrom(t, f.mailer.last(t)))
	if err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	return res
}

// addMember creates a user holding role in tenantID.
func (f *fixture) addMember(t *testing.T, tenantID, email string, role model.Role) *model.User {
	t.Helper()
	ctx := context.Background()
	users := f.db.Users()
	u := &model.User{Email: email, Name: email}
	if err := users.Create(ctx, u); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		t.Fatal(err)
	}
	u, err := users.GetByEmail(ctx, email)
	if err != nil {
		t.Fatal(err)
	}
	if err := users.AddMembership(ctx, repository.ForTenant(tenantID), u.ID, role); err != nil {
		t.Fatal(err)
	}
	u, _ = users.GetByID(ctx, u.ID)
	return u
}

// actor builds the caller for user inside tenantID the way the session
// middleware does.
func (f *fixture) actor(t *testing.T, userID, tenantID string) Actor {
	t.Helper()
	u, err := f.db.Users().GetByID(context.Background(), userID)
	if err != nil {
		t.Fatal(err)
	}
	role, _ := access.ResolveRole(u, tenantID)
	return Actor{User: u, Role: role, Scope: repository.ForTenant(tenantID)}
}

func wantKind(t *testing.T, err error, k Kind, code string) {
	t.Helper()
	se := AsError(err)
	if se == nil {
		t.Fatalf("err = nil, want kind %d code %s", k, code)
	}
	if se.Kind != k || (code != "" && se.Code != code) {
		t.Fatalf("err = %v (kind %d), want kind %d code %s", se, se.Kind, k, code)
	}
}

func mustHash(t *testing.T, plain string) string {
	t.Helper()
	h, err := utils.HashPassword(plain, 4)
	if err != nil {
		t.Fatal(err)
	}
	return h
}
