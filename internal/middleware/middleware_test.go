package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/newdeli/backoffice/internal/config"
	"github.com/newdeli/backoffice/internal/model"
	"github.com/newdeli/backoffice/internal/repository"
	"github.com/newdeli/backoffice/internal/repository/memstore"
	"github.com/newdeli/backoffice/internal/service"
	"github.com/newdeli/backoffice/internal/utils"
)

const secret = "test-secret"

type env struct {
	db     *memstore.Store
	e      *echo.Echo
	tenant *model.Tenant
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := memstore.NewStore()
	ctx := context.Background()
	tn := &model.Tenant{Name: "Deli", Slug: "deli", Settings: model.DefaultSettings()}
	if err := db.Tenants().Create(ctx, tn); err != nil {
		t.Fatal(err)
	}
	return &env{db: db, e: echo.New(), tenant: tn}
}

func (v *env) user(t *testing.T, email string, role model.Role) *model.User {
	t.Helper()
	ctx := context.Background()
	u := &model.User{Email: email, Name: email}
	if err := v.db.Users().Create(ctx, u); err != nil {
		t.Fatal(err)
	}
	if role != "" {
		if err := v.db.Users().AddMembership(ctx, repository.ForTenant(v.tenant.ID), u.ID, role); err != nil {
			t.Fatal(err)
		}
	}
	u, _ = v.db.Users().GetByID(ctx, u.ID)
	return u
}

func token(t *testing.T, userID, tenantID, role string) string {
	t.Helper()
	tok, err := utils.NewSessionToken(secret, utils.SessionClaims{UserID: userID, TenantID: tenantID, Role: role}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok.Token
}

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func (v *env) do(h echo.HandlerFunc, tok string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if tok != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tok})
	}
	for k, val := range hdr {
		req.Header.Set(k, val)
	}
	rec := httptest.NewRecorder()
	c := v.e.NewContext(req, rec)
	c.SetPath("/x")
	if err := h(c); err != nil {
		v.e.HTTPErrorHandler(err, c)
	}
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("body %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestSession(t *testing.T) {
	v := newEnv(t)
	u := v.user(t, "dana@x.com", model.RoleOwner)
	h := Session(secret, v.db.Users())(func(c echo.Context) error {
		if CurrentUser(c).ID != u.ID || TenantID(c) != v.tenant.ID {
			t.Errorf("context user %v tenant %q", CurrentUser(c), TenantID(c))
		}
		return ok(c)
	})

	if rec := v.do(h, token(t, u.ID, v.tenant.ID, "owner"), nil); rec.Code != http.StatusOK {
		t.Fatalf("valid cookie: %d", rec.Code)
	}
	bearer := map[string]string{echo.HeaderAuthorization: "Bearer " + token(t, u.ID, v.tenant.ID, "owner")}
	if rec := v.do(h, "", bearer); rec.Code != http.StatusOK {
		t.Fatalf("bearer: %d", rec.Code)
	}

	rec := v.do(h, "", nil)
	if rec.Code != http.StatusUnauthorized || decode(t, rec)["ok"] != false {
		t.Errorf("no token: %d %s", rec.Code, rec.Body)
	}
	if rec := v.do(h, "garbage", map[string]string{echo.HeaderAccept: "text/html"}); rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Errorf("html no session: %d %q", rec.Code, rec.Header().Get("Location"))
	}
	if rec := v.do(h, token(t, "ghost", v.tenant.ID, "owner"), nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown user: %d", rec.Code)
	}
}

func TestIssueAndClearSession(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	cfg := SessionConfig{Secret: secret, Secure: true}
	if err := IssueSession(c, cfg, utils.SessionClaims{UserID: "u1", TenantID: "t1", Role: "owner"}); err != nil {
		t.Fatal(err)
	}
	ck := rec.Result().Cookies()[0]
	if ck.Name != SessionCookie || !ck.HttpOnly || !ck.Secure || ck.SameSite != http.SameSiteNoneMode || ck.Path != "/" {
		t.Errorf("cookie = %+v", ck)
	}
	if ck.MaxAge != 7*24*3600 {
		t.Errorf("max age = %d", ck.MaxAge)
	}
	cl, err := utils.ParseSessionToken(secret, ck.Value)
	if err != nil || cl.TenantID != "t1" {
		t.Errorf("claims = %+v %v", cl, err)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	ClearSession(c, cfg)
	if ck := rec.Result().Cookies()[0]; ck.MaxAge >= 0 || ck.Value != "" {
		t.Errorf("cleared cookie = %+v", ck)
	}

	if err := IssueSession(c, SessionConfig{}, utils.SessionClaims{UserID: "u1"}); err == nil {
		t.Error("signing without a secret succeeded")
	}
}

func TestRequireRoles(t *testing.T) {
	v := newEnv(t)
	activity := &service.Activity{Store: v.db.Activity()}
	gate := func(roles ...model.Role) echo.HandlerFunc {
		return Session(secret, v.db.Users())(RequireRoles(activity, roles...)(ok))
	}
	users := map[model.Role]*model.User{}
	for _, r := range model.AllRoles {
		users[r] = v.user(t, string(r)+"@x.com", r)
	}

	for _, r := range model.AllRoles {
		want := http.StatusForbidden
		if r == model.RoleOwner {
			want = http.StatusOK
		}
		// The claim says owner for everyone; only memberships count.
		rec := v.do(gate(model.RoleOwner), token(t, users[r].ID, v.tenant.ID, "owner"), nil)
		if rec.Code != want {
			t.Errorf("%s: status %d, want %d", r, rec.Code, want)
		}
	}

	rec := v.do(gate(model.RoleOwner), token(t, users[model.RoleEmployee].ID, v.tenant.ID, ""), map[string]string{echo.HeaderAccept: "text/html,application/xhtml+xml"})
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != DeniedLanding {
		t.Errorf("html deny: %d %q", rec.Code, rec.Header().Get("Location"))
	}

	if rec := v.do(gate(model.RoleOwner), token(t, users[model.RoleOwner].ID, "", ""), nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("no tenant claim: %d", rec.Code)
	}
	if rec := v.do(gate(model.RoleOwner), "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: %d", rec.Code)
	}

	logs, _ := v.db.Activity().List(context.Background(), repository.ForTenant(v.tenant.ID), 10, time.Time{})
	if len(logs) == 0 || logs[0].Action != service.ActionAccessDenied {
		t.Errorf("denials not audited: %+v", logs)
	}
}

func TestRequireRoles_OtherTenantClaim(t *testing.T) {
	v := newEnv(t)
	emp := v.user(t, "emp@x.com", model.RoleEmployee)
	other := &model.Tenant{Name: "Other", Slug: "other"}
	if err := v.db.Tenants().Create(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	h := Session(secret, v.db.Users())(RequireRoles(nil, model.AllRoles...)(ok))
	if rec := v.do(h, token(t, emp.ID, other.ID, "owner"), nil); rec.Code != http.StatusForbidden {
		t.Errorf("claim for non-member tenant: %d", rec.Code)
	}
}

func TestRequireFeature(t *testing.T) {
	v := newEnv(t)
	u := v.user(t, "dana@x.com", model.RoleOwner)
	h := Session(secret, v.db.Users())(RequireFeature(model.FeatureInvoices, v.db.Tenants())(ok))
	tok := token(t, u.ID, v.tenant.ID, "owner")

	rec := v.do(h, tok, nil)
	if rec.Code != http.StatusForbidden || decode(t, rec)["code"] != "feature_disabled" {
		t.Fatalf("absent key: %d %s", rec.Code, rec.Body)
	}
	ctx := context.Background()
	_ = v.db.Tenants().SetFeatures(ctx, v.tenant.ID, model.Features{model.FeatureInvoices: false})
	if rec := v.do(h, tok, nil); rec.Code != http.StatusForbidden {
		t.Errorf("false key: %d", rec.Code)
	}
	_ = v.db.Tenants().SetFeatures(ctx, v.tenant.ID, model.Features{model.FeatureInvoices: true})
	if rec := v.do(h, tok, nil); rec.Code != http.StatusOK {
		t.Errorf("enabled: %d", rec.Code)
	}
}

func TestRequirePlatformAdmin(t *testing.T) {
	v := newEnv(t)
	plain := v.user(t, "dana@x.com", model.RoleOwner)
	listed := v.user(t, "Ops@x.com", "")
	flagged := v.user(t, "root@x.com", "")
	_ = v.db.Users().SetPlatformAdmin(flagged.ID, true)

	cfg := PlatformConfig{SessionSecret: secret, AdminSecret: "s3cret", AdminEmails: []string{"ops@x.com"}}
	h := RequirePlatformAdmin(cfg, v.db.Users())(ok)

	cases := []struct {
		name string
		tok  string
		hdr  map[string]string
		want int
	}{
		{"header secret", "", map[string]string{HeaderTeamToken: "s3cret"}, http.StatusOK},
		{"wrong secret", "", map[string]string{HeaderTeamToken: "nope"}, http.StatusUnauthorized},
		{"listed email", token(t, listed.ID, "", ""), nil, http.StatusOK},
		{"admin flag", token(t, flagged.ID, "", ""), nil, http.StatusOK},
		{"tenant owner", token(t, plain.ID, v.tenant.ID, "owner"), nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := v.do(h, tc.tok, tc.hdr); rec.Code != tc.want {
				t.Errorf("status %d, want %d", rec.Code, tc.want)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/x?token=s3cret", nil)
	rec := httptest.NewRecorder()
	if err := h(v.e.NewContext(req, rec)); err != nil || rec.Code != http.StatusOK {
		t.Errorf("query secret: %d %v", rec.Code, err)
	}

	noSecret := RequirePlatformAdmin(PlatformConfig{SessionSecret: secret}, v.db.Users())(ok)
	if rec := v.do(noSecret, "", map[string]string{HeaderTeamToken: ""}); rec.Code != http.StatusUnauthorized {
		t.Errorf("empty secret accepted: %d", rec.Code)
	}
}

func TestTokenBucket(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl:test",
	}
	e := echo.New()
	h := NewTokenBucket(cfg, rdb)(ok)
	call := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/auth/login")
		if err := h(c); err != nil {
			t.Fatal(err)
		}
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := call(); rec.Code != http.StatusOK {
			t.Fatalf("call %d: %d", i, rec.Code)
		}
	}
	rec := call()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third call: %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" || decode(t, rec)["code"] != "rate_limited" {
		t.Errorf("429 response: %v %s", rec.Header(), rec.Body)
	}

	// Redis down fails open.
	mr.Close()
	if rec := call(); rec.Code != http.StatusOK {
		t.Errorf("redis down: %d", rec.Code)
	}
}

func TestTokenBucket_Disabled(t *testing.T) {
	h := NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil)(ok)
	rec := httptest.NewRecorder()
	if err := h(echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)); err != nil || rec.Code != http.StatusOK {
		t.Errorf("disabled limiter: %d %v", rec.Code, err)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/auth/login")
	cases := map[string]string{
		"ip":       "rl:ip:10.0.0.9",
		"ip_route": "rl:ip:10.0.0.9:route:POST /auth/login",
		"user":     "rl:user:anon",
		"":         "rl:ip:10.0.0.9:user:anon:route:POST /auth/login",
	}
	for strategy, want := range cases {
		if got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: strategy}, c); got != want {
			t.Errorf("%q: %q, want %q", strategy, got, want)
		}
	}
}
