package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/smtp"
	"net/textproto"
	"time"
)

const (
	smtpDialTimeout = 10 * time.Second
	smtpIOTimeout   = 30 * time.Second
)

// SMTPSender delivers through an SMTP relay, upgrading with STARTTLS when
// offered and authenticating with PLAIN when User is set.
type SMTPSender struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

// Send delivers msg.  The whole exchange is bounded by ctx and by
// smtpIOTimeout, whichever ends first; the connection is closed as soon as
// ctx is done so nothing outlives the call.
func (s SMTPSender) Send(ctx context.Context, msg Message) (err error) {
	if err := msg.Validate(); err != nil {
		return err
	}
	raw, err := buildMIME(s.From, msg, time.Now())
	if err != nil {
		return err
	}

	d := net.Dialer{Timeout: smtpDialTimeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(s.Host, s.Port))
	if err != nil {
		return fmt.Errorf("smtp dial: %w", err)
	}
	_ = conn.SetDeadline(time.Now().Add(smtpIOTimeout))
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer func() {
		if err != nil && ctx.Err() != nil {
			err = fmt.Errorf("smtp send to %s: %w", msg.To, errors.Join(ctx.Err(), err))
		}
	}()

	c, err := smtp.NewClient(conn, s.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.User != "" {
		if err := c.Auth(smtp.PlainAuth("", s.User, s.Pass, s.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(s.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	return c.Quit()
}

// buildMIME renders msg as an RFC 5322 message.  With both bodies present it
// is multipart/alternative, text first; parts are quoted-printable.
func buildMIME(from string, msg Message, now time.Time) ([]byte, error) {
	var body bytes.Buffer
	var ctype string
	switch {
	case msg.HTML != "" && msg.Text != "":
		mw := multipart.NewWriter(&body)
		if err := writePart(mw, "text/plain", msg.Text); err != nil {
			return nil, err
		}
		if err := writePart(mw, "text/html", msg.HTML); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
		ctype = "multipart/alternative; boundary=" + mw.Boundary()
	case msg.HTML != "":
		ctype = `text/html; charset="utf-8"`
		if err := writeQP(&body, msg.HTML); err != nil {
			return nil, err
		}
	default:
		ctype = `text/plain; charset="utf-8"`
		if err := writeQP(&body, msg.Text); err != nil {
			return nil, err
		}
	}

	var b bytes.Buffer
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", msg.Subject) + "\r\n")
	b.WriteString("Date: " + now.UTC().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: " + ctype + "\r\n")
	if msg.HTML == "" || msg.Text == "" {
		b.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	}
	b.WriteString("\r\n")
	b.Write(body.Bytes())
	return b.Bytes(), nil
}

func writePart(mw *multipart.Writer, ctype, content string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", ctype+`; charset="utf-8"`)
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	pw, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	return writeQP(pw, content)
}

func writeQP(w io.Writer, content string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(content)); err != nil {
		return err
	}
	return qp.Close()
}
