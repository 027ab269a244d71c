package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	netmail "net/mail"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRender_EscapesAndLocalizes(t *testing.T) {
	msg, err := Render(KindSignupCode, "en", "dana@x.com", Vars{Name: "Dana", Tenant: "Dana's <Deli>", Code: "123456"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if msg.Subject != "Your verification code" || msg.Kind != KindSignupCode || msg.To != "dana@x.com" {
		t.Errorf("msg = %+v", msg)
	}
	if strings.Contains(msg.HTML, "<Deli>") || !strings.Contains(msg.HTML, "&lt;Deli&gt;") {
		t.Errorf("tenant name not escaped: %s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "123456") || !strings.Contains(msg.Text, "123456") {
		t.Error("code missing from body")
	}
	if !strings.Contains(msg.HTML, `dir="ltr"`) {
		t.Error("english mail should be ltr")
	}
}

func TestRender_DefaultsToHebrew(t *testing.T) {
	msg, err := Render(KindInvite, "fr", "bob@x.com", Vars{Tenant: "Deli", Role: "employee", Link: "https://app/login?invite=abc"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(msg.Subject, "Deli") || !strings.Contains(msg.HTML, `dir="rtl"`) {
		t.Errorf("msg = %+v", msg)
	}
	if !strings.Contains(msg.HTML, `href="https://app/login?invite=abc"`) {
		t.Errorf("link missing: %s", msg.HTML)
	}
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	if err := (Log{Logger: zap.New(core)}).Send(context.Background(), Message{To: "a@b.co", Subject: "s", Text: "x"}); err != nil {
		t.Fatal(err)
	}
	if logs.Len() != 1 {
		t.Errorf("log lines = %d", logs.Len())
	}
}

func TestBuildMIME_Alternative(t *testing.T) {
	raw, err := buildMIME("no-reply@deli", Message{To: "a@b.co", Subject: "שלום", Text: "plain body", HTML: "<p>html body</p>"}, time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	m, err := netmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(m.Header.Get("Subject"), "=?utf-8?q?") {
		t.Errorf("subject = %q", m.Header.Get("Subject"))
	}
	mt, params, err := mime.ParseMediaType(m.Header.Get("Content-Type"))
	if err != nil || mt != "multipart/alternative" {
		t.Fatalf("content-type = %q (%v)", m.Header.Get("Content-Type"), err)
	}
	mr := multipart.NewReader(m.Body, params["boundary"])
	want := []struct{ ctype, body string }{{"text/plain", "plain body"}, {"text/html", "<p>html body</p>"}}
	for _, w := range want {
		p, err := mr.NextPart()
		if err != nil {
			t.Fatalf("part %s: %v", w.ctype, err)
		}
		b, _ := io.ReadAll(p)
		if !strings.HasPrefix(p.Header.Get("Content-Type"), w.ctype) || string(b) != w.body {
			t.Errorf("part = %q %q, want %s %q", p.Header.Get("Content-Type"), b, w.ctype, w.body)
		}
	}
	if _, err := mr.NextPart(); err != io.EOF {
		t.Errorf("extra part: %v", err)
	}
}

func TestBuildMIME_SingleBody(t *testing.T) {
	raw, err := buildMIME("no-reply@deli", Message{To: "a@b.co", Subject: "hi", Text: "only text"}, time.Unix(0, 0))
	if err != nil {
		t.Fatal(err)
	}
	m, err := netmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(m.Header.Get("Content-Type"), "text/plain") {
		t.Errorf("content-type = %q", m.Header.Get("Content-Type"))
	}
	b, _ := io.ReadAll(quotedprintable.NewReader(m.Body))
	if string(b) != "only text" {
		t.Errorf("body = %q", b)
	}
}

func TestSMTPSender_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	// 192.0.2.0/24 is reserved for documentation and never routes.
	err := SMTPSender{Host: "192.0.2.1", Port: "25", From: "x@y.z"}.Send(ctx, Message{To: "a@b.co", Text: "x"})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestSMTPSender_StalledRelayIsClosed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	host, port, _ := net.SplitHostPort(ln.Addr().String())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	// The relay accepts but never sends its greeting.
	err = SMTPSender{Host: host, Port: port, From: "x@y.z"}.Send(ctx, Message{To: "a@b.co", Text: "x"})
	if err == nil || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("Send took %s", time.Since(start))
	}

	conn := <-accepted
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("relay side read = %v, want EOF after client gave up", err)
	}
}
