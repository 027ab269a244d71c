package mail

import (
	"bytes"
	"html/template"
	ttemplate "text/template"
)

// Template kinds, carried in Message.Kind.
const (
	KindSignupCode     = "signup_code"
	KindInvite         = "invite"
	KindInviteReminder = "invite_reminder"
	KindPasswordReset  = "password_reset"
	KindMemberAdded    = "member_added"
)

type copyText struct {
	subject string
	intro   string
	action  string
}

var copies = map[string]map[string]copyText{
	KindSignupCode: {
		"he": {"קוד האימות שלך", "שלום {{.Name}}, קוד האימות שלך לפתיחת {{.Tenant}} הוא:", ""},
		"en": {"Your verification code", "Hi {{.Name}}, your code for setting up {{.Tenant}} is:", ""},
	},
	KindInvite: {
		"he": {"הוזמנת להצטרף ל-{{.Tenant}}", "הוזמנת להצטרף ל-{{.Tenant}} בתפקיד {{.Role}}.", "פתח הזמנה"},
		"en": {"You're invited to join {{.Tenant}}", "You were invited to join {{.Tenant}} as {{.Role}}.", "Open invite"},
	},
	KindInviteReminder: {
		"he": {"תזכורת: הוזמנת להצטרף ל-{{.Tenant}}", "ההזמנה שלך ל-{{.Tenant}} עדיין ממתינה.", "פתח הזמנה"},
		"en": {"Reminder: join {{.Tenant}}", "Your invite to {{.Tenant}} is still waiting.", "Open invite"},
	},
	KindPasswordReset: {
		"he": {"איפוס סיסמה", "התקבלה בקשה לאיפוס הסיסמה שלך. הקישור תקף ל-30 דקות.", "איפוס סיסמה"},
		"en": {"Reset your password", "We received a request to reset your password. The link is valid for 30 minutes.", "Reset password"},
	},
	KindMemberAdded: {
		"he": {"קיבלת גישה ל-{{.Tenant}}", "שלום {{.Name}}, נוספת ל-{{.Tenant}} בתפקיד {{.Role}}.", "כניסה למערכת"},
		"en": {"You now have access to {{.Tenant}}", "Hi {{.Name}}, you were added to {{.Tenant}} as {{.Role}}.", "Sign in"},
	},
}

var layout = template.Must(template.New("mail").Parse(
	`<div dir="{{.Dir}}" style="font-family:sans-serif">` +
		`<p>{{.Intro}}</p>` +
		`{{if .Code}}<p style="font-size:24px;letter-spacing:4px"><b>{{.Code}}</b></p>{{end}}` +
		`{{if .Link}}<p><a href="{{.Link}}">{{.Action}}</a></p>{{end}}` +
		`</div>`))

// Vars are the values a template may reference.
type Vars struct {
	Name   string
	Tenant string
	Role   string
	Code   string
	Link   string
}

// Render builds the message of the given kind in lang ("he" or "en").
func Render(kind, lang, to string, v Vars) (Message, error) {
	set, ok := copies[kind]
	if !ok {
		set = copies[KindSignupCode]
	}
	c, ok := set[lang]
	if !ok {
		lang, c = "he", set["he"]
	}

	subject, err := expand(c.subject, v)
	if err != nil {
		return Message{}, err
	}
	intro, err := expand(c.intro, v)
	if err != nil {
		return Message{}, err
	}
	dir := "rtl"
	if lang == "en" {
		dir = "ltr"
	}

	var body bytes.Buffer
	err = layout.Execute(&body, map[string]string{
		"Dir": dir, "Intro": intro, "Code": v.Code, "Link": v.Link, "Action": c.action,
	})
	if err != nil {
		return Message{}, err
	}
	text := intro
	if v.Code != "" {
		text += " " + v.Code
	}
	if v.Link != "" {
		text += " " + v.Link
	}
	return Message{To: to, Subject: subject, HTML: body.String(), Text: text, Kind: kind}, nil
}

// expand fills a copy line as plain text; the HTML layout escapes it.
func expand(line string, v Vars) (string, error) {
	t, err := ttemplate.New("line").Parse(line)
	if err != nil {
		return "", err
	}
	var b bytes.Buffer
	if err := t.Execute(&b, v); err != nil {
		return "", err
	}
	return b.String(), nil
}
