package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/newdeli/backoffice/internal/config"
	"github.com/newdeli/backoffice/internal/mail"
	"github.com/newdeli/backoffice/internal/middleware"
	"github.com/newdeli/backoffice/internal/pending"
	"github.com/newdeli/backoffice/internal/repository/memstore"
	"github.com/newdeli/backoffice/internal/utils"
)

const adminSecret = "platform-secret"

type outbox struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (o *outbox) Send(_ context.Context, m mail.Message) error {
	o.mu.Lock()
	o.sent = append(o.sent, m)
	o.mu.Unlock()
	return nil
}

func (o *outbox) lastTo(t *testing.T, to string) mail.Message {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].To == to {
			return o.sent[i]
		}
	}
	t.Fatalf("no mail to %s", to)
	return mail.Message{}
}

var (
	codeRe   = regexp.MustCompile(`\b(\d{6})\b`)
	inviteRe = regexp.MustCompile(`invite=([^&\s"]+)`)
)

type server struct {
	e    *echo.Echo
	db   *memstore.Store
	mail *outbox
}

func newServer(t *testing.T) *server {
	t.Helper()
	db := memstore.NewStore()
	box := &outbox{}
	cfg := config.Config{
		Env:                 "test",
		JWTSecret:           "e2e-secret",
		SessionTTL:          7 * 24 * time.Hour,
		CookieSecure:        true,
		BcryptCost:          4,
		OTPTTL:              5 * time.Minute,
		ResetTTL:            30 * time.Minute,
		InviteTTL:           7 * 24 * time.Hour,
		BaseURL:             "https://app.example",
		AdminSecret:         adminSecret,
		PlatformAdminEmails: []string{"ops@newdeli.example"},
	}
	e := New(Options{
		Cfg:     cfg,
		Stores:  MemoryStores(db, nil, config.FeatureCacheConfig{}),
		Pending: pending.NewMemoryStore(time.Now),
		Mailer:  box,
	})
	return &server{e: e, db: db, mail: box}
}

// client keeps the session cookie between calls like a browser would.
type client struct {
	s     *server
	token string
}

type resp struct {
	code int
	body map[string]any
	hdr  http.Header
}

func (c *client) call(t *testing.T, method, path string, body any, hdr ...string) resp {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Accept-Language", "en")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: c.token})
	}
	rec := httptest.NewRecorder()
	c.s.e.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.Name == middleware.SessionCookie {
			c.token = ck.Value
		}
	}
	r := resp{code: rec.Code, hdr: rec.Header()}
	if len(bytes.TrimSpace(rec.Body.Bytes())) > 0 && rec.Body.Bytes()[0] == '{' {
		if err := json.Unmarshal(rec.Body.Bytes(), &r.body); err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
	}
	return r
}

func (r resp) str(keys ...string) string {
	var cur any = r.body
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return ""
		}
		cur = m[k]
	}
	s, _ := cur.(string)
	return s
}

func must(t *testing.T, r resp, want int) resp {
	t.Helper()
	if r.code != want {
		t.Fatalf("status %d, want %d: %v", r.code, want, r.body)
	}
	return r
}

// signInto gives c a session for any tenant, as a tampered client could
// present.
func signInto(c *client, userID, tenantID string) error {
	tok, err := utils.NewSessionToken("e2e-secret", utils.SessionClaims{UserID: userID, TenantID: tenantID, Role: "owner"}, time.Hour)
	if err != nil {
		return err
	}
	c.token = tok.Token
	return nil
}

// signUp runs the owner sign-up flow and returns the signed-in client.
func (s *server) signUp(t *testing.T, name, email, tenant string) (*client, resp) {
	t.Helper()
	c := &client{s: s}
	must(t, c.call(t, http.MethodPost, "/auth/request-email-code", map[string]string{
		"name": name, "email": email, "tenantName": tenant, "tenantPhone": "0500000000",
	}), http.StatusOK)
	m := codeRe.FindAllStringSubmatch(s.mail.lastTo(t, email).Text, -1)
	if len(m) == 0 {
		t.Fatal("no code mailed")
	}
	code := m[len(m)-1][1]
	r := must(t, c.call(t, http.MethodPost, "/auth/verify-email-code", map[string]string{"email": email, "code": code}), http.StatusOK)
	return c, r
}

func (s *server) invite(t *testing.T, owner *client, email, role string) string {
	t.Helper()
	must(t, owner.call(t, http.MethodPost, "/api/team/invite", map[string]string{"email": email, "role": role}), http.StatusCreated)
	m := inviteRe.FindStringSubmatch(s.mail.lastTo(t, email).Text)
	if m == nil {
		t.Fatal("no invite link mailed")
	}
	tok, err := url.QueryUnescape(m[1])
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestOwnerSignUp(t *testing.T) {
	s := newServer(t)
	dana, r := s.signUp(t, "Dana", "dana@x.com", "Dana's Deli")
	if r.str("redirect") == "" || dana.token == "" {
		t.Fatalf("verify response %v, cookie %q", r.body, dana.token)
	}
	tenantID := r.str("tenant", "id")

	me := must(t, dana.call(t, http.MethodGet, "/me", nil), http.StatusOK)
	if me.str("role") != "owner" || me.str("tenantId") != tenantID || tenantID == "" {
		t.Errorf("/me = %v", me.body)
	}
	if me.str("tenant", "slug") == "" {
		t.Errorf("tenant = %v", me.body["tenant"])
	}

	tenants, _ := s.db.Tenants().List(context.Background())
	if len(tenants) != 1 {
		t.Fatalf("tenants = %d", len(tenants))
	}
}

func TestInviteFlow(t *testing.T) {
	s := newServer(t)
	dana, r := s.signUp(t, "Dana", "dana@x.com", "Dana's Deli")
	tenantID := r.str("tenant", "id")
	tok := s.invite(t, dana, "bob@x.com", "employee")

	bob := &client{s: s}
	inv := must(t, bob.call(t, http.MethodGet, "/auth/invite/"+url.PathEscape(tok), nil), http.StatusOK)
	if inv.str("email") != "bob@x.com" || inv.str("role") != "employee" || inv.str("tenant", "name") != "Dana's Deli" {
		t.Errorf("invite = %v", inv.body)
	}

	acc := must(t, bob.call(t, http.MethodPost, "/auth/accept-invite", map[string]string{
		"token": tok, "name": "Bob", "password": "hunter22",
	}), http.StatusOK)
	if acc.str("redirect") != "/worker" {
		t.Errorf("redirect = %q", acc.str("redirect"))
	}

	again := &client{s: s}
	must(t, again.call(t, http.MethodPost, "/auth/accept-invite", map[string]string{
		"token": tok, "name": "Bob", "password": "hunter22",
	}), http.StatusNotFound)
	must(t, again.call(t, http.MethodGet, "/auth/invite/"+url.PathEscape(tok), nil), http.StatusNotFound)

	fresh := &client{s: s}
	must(t, fresh.call(t, http.MethodPost, "/auth/login", map[string]string{"email": "bob@x.com", "password": "hunter22"}), http.StatusOK)
	me := must(t, fresh.call(t, http.MethodGet, "/me", nil), http.StatusOK)
	if me.str("role") != "employee" || me.str("tenantId") != tenantID {
		t.Errorf("bob /me = %v", me.body)
	}

	team := must(t, dana.call(t, http.MethodGet, "/api/team/members", nil), http.StatusOK)
	if list, _ := team.body["team"].([]any); len(list) != 2 {
		t.Errorf("team = %v", team.body["team"])
	}
}

func TestRoleGates(t *testing.T) {
	s := newServer(t)
	dana, _ := s.signUp(t, "Dana", "dana@x.com", "Deli")
	tok := s.invite(t, dana, "bob@x.com", "employee")
	bob := &client{s: s}
	must(t, bob.call(t, http.MethodPost, "/auth/accept-invite", map[string]string{"token": tok, "name": "Bob", "password": "hunter22"}), http.StatusOK)

	r := must(t, bob.call(t, http.MethodPut, "/api/tenant/update", map[string]string{"name": "Bob's"}), http.StatusForbidden)
	if r.body["ok"] != false || r.str("message") == "" {
		t.Errorf("403 envelope = %v", r.body)
	}
	r = must(t, bob.call(t, http.MethodPut, "/api/tenant/update", map[string]string{"name": "Bob's"}, echo.HeaderAccept, "text/html"), http.StatusFound)
	if r.hdr.Get("Location") != "/worker" {
		t.Errorf("redirect = %q", r.hdr.Get("Location"))
	}
	must(t, bob.call(t, http.MethodPost, "/api/team/invite", map[string]string{"email": "eve@x.com"}), http.StatusForbidden)
	must(t, bob.call(t, http.MethodGet, "/api/tenant/info", nil), http.StatusOK)

	anon := &client{s: s}
	must(t, anon.call(t, http.MethodGet, "/api/tenant/info", nil), http.StatusUnauthorized)
	r = must(t, anon.call(t, http.MethodGet, "/me", nil, echo.HeaderAccept, "text/html"), http.StatusFound)
	if r.hdr.Get("Location") != "/login" {
		t.Errorf("anon html redirect = %q", r.hdr.Get("Location"))
	}

	must(t, dana.call(t, http.MethodPut, "/api/tenant/update", map[string]any{"name": "Deli Two", "settings": map[string]string{"address": "Herzl 1"}}), http.StatusOK)
}

func TestFeatureGateAndTenantIsolation(t *testing.T) {
	s := newServer(t)
	dana, ra := s.signUp(t, "Dana", "dana@x.com", "Deli A")
	eli, rb := s.signUp(t, "Eli", "eli@x.com", "Deli B")
	tenantA, tenantB := ra.str("tenant", "id"), rb.str("tenant", "id")
	tok := s.invite(t, dana, "bob@x.com", "employee")
	bob := &client{s: s}
	must(t, bob.call(t, http.MethodPost, "/auth/accept-invite", map[string]string{"token": tok, "name": "Bob", "password": "hunter22"}), http.StatusOK)

	// Suppliers are off by default, whatever the role.
	r := must(t, dana.call(t, http.MethodGet, "/api/suppliers", nil), http.StatusForbidden)
	if r.str("code") != "feature_disabled" {
		t.Errorf("code = %q", r.str("code"))
	}

	ops := &client{s: s}
	for _, tid := range []string{tenantA, tenantB} {
		must(t, ops.call(t, http.MethodPut, "/api/admin/tenants/"+tid+"/features",
			map[string]any{"key": "suppliers", "value": true}, middleware.HeaderTeamToken, adminSecret), http.StatusOK)
	}

	created := must(t, eli.call(t, http.MethodPost, "/api/suppliers", map[string]any{
		"name": "Tnuva", "phone": "03-5555555", "deliveryDays": []int{0, 2},
	}), http.StatusCreated)
	supplierB := created.str("supplier", "id")

	must(t, bob.call(t, http.MethodPost, "/api/suppliers", map[string]any{"name": "X", "phone": "1"}), http.StatusForbidden)
	must(t, bob.call(t, http.MethodGet, "/api/suppliers/"+supplierB, nil), http.StatusNotFound)
	must(t, dana.call(t, http.MethodDelete, "/api/suppliers/"+supplierB, nil), http.StatusNotFound)

	list := must(t, bob.call(t, http.MethodGet, "/api/suppliers", nil), http.StatusOK)
	if l, _ := list.body["suppliers"].([]any); len(l) != 0 {
		t.Errorf("tenant A sees %v", l)
	}

	// Bob holds no membership in B, by switch or by forged claim.
	must(t, bob.call(t, http.MethodPost, "/auth/switch-tenant", map[string]string{"tenantId": tenantB}), http.StatusForbidden)
	bobUser, _ := s.db.Users().GetByEmail(context.Background(), "bob@x.com")
	forged := &client{s: s}
	if err := signInto(forged, bobUser.ID, tenantB); err != nil {
		t.Fatal(err)
	}
	must(t, forged.call(t, http.MethodGet, "/api/suppliers/"+supplierB, nil), http.StatusForbidden)
	r = must(t, forged.call(t, http.MethodGet, "/api/suppliers/"+supplierB, nil, echo.HeaderAccept, "text/html"), http.StatusFound)
	if r.hdr.Get("Location") != "/worker" {
		t.Errorf("redirect = %q", r.hdr.Get("Location"))
	}

	day := must(t, eli.call(t, http.MethodGet, "/api/suppliers/by-day/2", nil), http.StatusOK)
	if l, _ := day.body["suppliers"].([]any); len(l) != 1 {
		t.Errorf("by day = %v", day.body)
	}
}

func TestOrdersAndDispersions(t *testing.T) {
	s := newServer(t)
	dana, ra := s.signUp(t, "Dana", "dana@x.com", "Deli A")
	eli, rb := s.signUp(t, "Eli", "eli@x.com", "Deli B")
	tenantA, tenantB := ra.str("tenant", "id"), rb.str("tenant", "id")
	tok := s.invite(t, dana, "bob@x.com", "employee")
	bob := &client{s: s}
	must(t, bob.call(t, http.MethodPost, "/auth/accept-invite", map[string]string{"token": tok, "name": "Bob", "password": "hunter22"}), http.StatusOK)

	r := must(t, dana.call(t, http.MethodGet, "/api/orders", nil), http.StatusForbidden)
	if r.str("code") != "feature_disabled" {
		t.Errorf("orders code = %q", r.str("code"))
	}
	must(t, dana.call(t, http.MethodGet, "/api/dispersions/list", nil), http.StatusForbidden)

	ops := &client{s: s}
	for _, tid := range []string{tenantA, tenantB} {
		for _, key := range []string{"suppliers", "orders", "dispersions"} {
			must(t, ops.call(t, http.MethodPut, "/api/admin/tenants/"+tid+"/features",
				map[string]any{"key": key, "value": true}, middleware.HeaderTeamToken, adminSecret), http.StatusOK)
		}
	}

	sp := must(t, dana.call(t, http.MethodPost, "/api/suppliers", map[string]any{
		"name": "Tnuva", "phone": "03", "deliveryDays": []int{3},
	}), http.StatusCreated).str("supplier", "id")

	day := must(t, bob.call(t, http.MethodGet, "/api/orders/suppliers-by-date?date=2026-03-04", nil), http.StatusOK)
	if l, _ := day.body["suppliers"].([]any); len(l) != 1 || day.body["dayOfWeek"] != float64(3) {
		t.Errorf("suppliers by date = %v", day.body)
	}
	sat := must(t, bob.call(t, http.MethodGet, "/api/orders/suppliers-by-date?date=2026-03-07", nil), http.StatusOK)
	if l, _ := sat.body["suppliers"].([]any); len(l) != 0 || sat.str("message") == "" {
		t.Errorf("saturday = %v", sat.body)
	}

	batch := map[string]any{"date": "2026-03-04", "orders": []map[string]any{{
		"supplierId": sp, "items": []map[string]any{{"productName": "milk", "quantity": 4, "unit": "l"}},
	}}}
	must(t, bob.call(t, http.MethodPost, "/api/orders", batch), http.StatusForbidden)
	saved := must(t, dana.call(t, http.MethodPost, "/api/orders", batch), http.StatusCreated)
	l, _ := saved.body["orders"].([]any)
	if len(l) != 1 {
		t.Fatalf("saved = %v", saved.body)
	}
	orderID, _ := l[0].(map[string]any)["id"].(string)

	got := must(t, bob.call(t, http.MethodGet, "/api/orders/"+orderID, nil), http.StatusOK)
	if got.str("order", "supplierName") != "Tnuva" || got.str("order", "orderDate") != "2026-03-04" {
		t.Errorf("order = %v", got.body)
	}
	must(t, eli.call(t, http.MethodGet, "/api/orders/"+orderID, nil), http.StatusNotFound)
	must(t, eli.call(t, http.MethodPost, "/api/orders", batch), http.StatusBadRequest)
	must(t, dana.call(t, http.MethodPut, "/api/orders/"+orderID, map[string]any{"status": "received", "receivedDate": "2026-03-04T08:00:00Z"}), http.StatusOK)
	stats := must(t, bob.call(t, http.MethodGet, "/api/orders/stats/summary", nil), http.StatusOK)
	if l, _ := stats.body["stats"].([]any); len(l) != 1 {
		t.Errorf("stats = %v", stats.body)
	}

	must(t, bob.call(t, http.MethodPost, "/api/dispersions", map[string]any{"date": "2026-03-04", "payer": "Bob", "taxi": "Gett", "price": 40}), http.StatusForbidden)
	must(t, dana.call(t, http.MethodPost, "/api/dispersions", map[string]any{"date": "2026-03-04", "payer": "Dana", "taxi": "Gett", "price": -1}), http.StatusBadRequest)
	ride := must(t, dana.call(t, http.MethodPost, "/api/dispersions", map[string]any{"date": "2026-03-04", "payer": "Dana", "taxi": "Gett", "price": 40}), http.StatusCreated).str("id")
	found := must(t, bob.call(t, http.MethodGet, "/api/dispersions/search?q=gett", nil), http.StatusOK)
	if l, _ := found.body["items"].([]any); len(l) != 1 {
		t.Errorf("search = %v", found.body)
	}
	must(t, eli.call(t, http.MethodPut, "/api/dispersions/"+ride, map[string]any{"price": 1}), http.StatusNotFound)
	mine := must(t, eli.call(t, http.MethodGet, "/api/dispersions/list", nil), http.StatusOK)
	if l, _ := mine.body["dispersions"].([]any); len(l) != 0 {
		t.Errorf("tenant B sees %v", l)
	}
	must(t, dana.call(t, http.MethodDelete, "/api/dispersions/"+ride, nil), http.StatusOK)
}

func TestAddMemberDirectly(t *testing.T) {
	s := newServer(t)
	dana, _ := s.signUp(t, "Dana", "dana@x.com", "Deli")
	r := must(t, dana.call(t, http.MethodPost, "/api/team/members", map[string]string{"name": "Gil", "email": "gil@x.com", "role": "manager"}), http.StatusCreated)
	if r.str("member", "email") != "gil@x.com" || r.str("member", "role") != "manager" {
		t.Errorf("member = %v", r.body)
	}
	if m := s.mail.lastTo(t, "gil@x.com"); m.Kind != "member_added" {
		t.Errorf("mail kind = %q", m.Kind)
	}
	must(t, dana.call(t, http.MethodPost, "/api/team/members", map[string]string{"email": "gil@x.com"}), http.StatusConflict)
}

func TestPlatformAdmin(t *testing.T) {
	s := newServer(t)
	dana, _ := s.signUp(t, "Dana", "dana@x.com", "Deli")

	must(t, (&client{s: s}).call(t, http.MethodGet, "/api/admin/tenants", nil), http.StatusUnauthorized)
	must(t, dana.call(t, http.MethodGet, "/api/admin/tenants", nil), http.StatusForbidden)

	ops := &client{s: s}
	r := must(t, ops.call(t, http.MethodGet, "/api/admin/tenants", nil, middleware.HeaderTeamToken, adminSecret), http.StatusOK)
	rows, _ := r.body["tenants"].([]any)
	if len(rows) != 1 {
		t.Fatalf("tenants = %v", r.body)
	}
	row := rows[0].(map[string]any)
	if row["teamCount"] != float64(1) {
		t.Errorf("row = %v", row)
	}
	must(t, ops.call(t, http.MethodGet, "/api/admin/features-catalog?token="+adminSecret, nil), http.StatusOK)
	must(t, ops.call(t, http.MethodPut, "/api/admin/tenants/nope/features", map[string]any{"key": "orders", "value": true}, middleware.HeaderTeamToken, adminSecret), http.StatusNotFound)
}

func TestLogoutAndProfile(t *testing.T) {
	s := newServer(t)
	dana, _ := s.signUp(t, "Dana", "dana@x.com", "Deli")

	r := must(t, dana.call(t, http.MethodPut, "/api/user/update", map[string]string{"name": "Dana Levi"}), http.StatusOK)
	if r.str("user", "name") != "Dana Levi" {
		t.Errorf("profile = %v", r.body)
	}
	logs := must(t, dana.call(t, http.MethodGet, "/api/logs", nil), http.StatusOK)
	if l, _ := logs.body["logs"].([]any); len(l) == 0 {
		t.Error("no activity after sign-up")
	}

	must(t, dana.call(t, http.MethodPost, "/logout", nil), http.StatusOK)
	if dana.token != "" {
		t.Errorf("cookie not cleared: %q", dana.token)
	}
	must(t, dana.call(t, http.MethodGet, "/me", nil), http.StatusUnauthorized)
}

func TestPasswordReset(t *testing.T) {
	s := newServer(t)
	s.signUp(t, "Dana", "dana@x.com", "Deli")

	anon := &client{s: s}
	must(t, anon.call(t, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "nobody@x.com"}), http.StatusOK)
	must(t, anon.call(t, http.MethodPost, "/auth/forgot-password", map[string]string{"email": "dana@x.com"}), http.StatusOK)
	m := regexp.MustCompile(`token=([^&\s"]+)`).FindStringSubmatch(s.mail.lastTo(t, "dana@x.com").Text)
	if m == nil {
		t.Fatal("no reset link")
	}
	tok, _ := url.QueryUnescape(m[1])
	must(t, anon.call(t, http.MethodPost, "/auth/employee/reset", map[string]string{"token": tok, "password": "newpass1"}), http.StatusOK)
	must(t, anon.call(t, http.MethodPost, "/auth/employee/reset", map[string]string{"token": tok, "password": "newpass1"}), http.StatusBadRequest)
	must(t, anon.call(t, http.MethodPost, "/auth/login", map[string]string{"email": "dana@x.com", "password": "newpass1"}), http.StatusOK)
}

func TestHealthAndUnknownRoute(t *testing.T) {
	s := newServer(t)
	c := &client{s: s}
	must(t, c.call(t, http.MethodGet, "/healthz", nil), http.StatusOK)
	r := must(t, c.call(t, http.MethodGet, "/nope", nil), http.StatusNotFound)
	if r.body["ok"] != false {
		t.Errorf("404 envelope = %v", r.body)
	}
}
