// Package i18n maps message codes to user-facing strings.  Hebrew is the
// default language; English is the only other catalog.
package i18n

import (
	"golang.org/x/text/language"
)

// Message codes.  Handlers and services refer to messages only by code.
const (
	InvalidInput       = "invalid_input"
	MissingFields      = "missing_fields"
	InvalidEmail       = "invalid_email"
	WeakPassword       = "weak_password"
	PasswordTooLong    = "password_too_long"
	NameLength         = "name_length"
	CodeSent           = "code_sent"
	CodeInvalid        = "code_invalid"
	CodeExpired        = "code_expired"
	CodeNotFound       = "code_not_found"
	AlreadyVerified    = "already_verified"
	InviteNotFound     = "invite_not_found"
	InviteExpired      = "invite_expired"
	InviteOwnerRole    = "invite_owner_role"
	InviteSent         = "invite_sent"
	AlreadyMember      = "already_member"
	NameShared         = "name_shared"
	Unauthenticated    = "unauthenticated"
	InvalidCredentials = "invalid_credentials"
	NoTenant           = "no_tenant"
	NotMember          = "not_member"
	Forbidden          = "forbidden"
	CannotManage       = "cannot_manage"
	FeatureDisabled    = "feature_disabled"
	NotFound           = "not_found"
	MemberNotFound     = "member_not_found"
	Conflict           = "conflict"
	SupplierExists     = "supplier_exists"
	NoSaturdayDelivery = "no_saturday_delivery"
	InvalidDate        = "invalid_date"
	OrdersSaved        = "orders_saved"
	OrdersFailed       = "orders_failed"
	PayerRequired      = "payer_required"
	TaxiRequired       = "taxi_required"
	InvalidPrice       = "invalid_price"
	MemberAdded        = "member_added"
	SlugTaken          = "slug_taken"
	ResetEmailSent     = "reset_email_sent"
	ResetTokenInvalid  = "reset_token_invalid"
	PasswordUpdated    = "password_updated"
	LoggedOut          = "logged_out"
	Saved              = "saved"
	Deleted            = "deleted"
	RateLimited        = "rate_limited"
	Internal           = "internal"
)

type entry struct{ he, en string }

var catalog = map[string]entry{
	InvalidInput:       {"קלט לא תקין", "Invalid input"},
	MissingFields:      {"חסרים שדות חובה", "Required fields are missing"},
	InvalidEmail:       {"כתובת אימייל לא תקינה", "Invalid email address"},
	WeakPassword:       {"הסיסמה חייבת להכיל לפחות 6 תווים", "Password must be at least 6 characters"},
	PasswordTooLong:    {"הסיסמה ארוכה מדי (עד 72 תווים)", "Password must be at most 72 characters"},
	NameLength:         {"השם חייב להכיל 1 עד 80 תווים", "Name must be 1 to 80 characters"},
	CodeSent:           {"קוד אימות נשלח לאימייל", "A verification code was sent to your email"},
	CodeInvalid:        {"קוד שגוי", "Incorrect code"},
	CodeExpired:        {"פג תוקף הקוד, בקש קוד חדש", "The code has expired, request a new one"},
	CodeNotFound:       {"לא נמצאה בקשת אימות לאימייל זה", "No pending verification for this email"},
	AlreadyVerified:    {"הקוד כבר נוצל", "This code was already used"},
	InviteNotFound:     {"ההזמנה לא נמצאה או שפג תוקפה", "Invite not found or expired"},
	InviteExpired:      {"פג תוקף ההזמנה", "The invite has expired"},
	InviteOwnerRole:    {"לא ניתן להזמין בעלים נוספים", "An invite cannot grant the owner role"},
	InviteSent:         {"ההזמנה נשלחה", "Invite sent"},
	AlreadyMember:      {"המשתמש כבר חבר בעסק", "This user is already a member"},
	NameShared:         {"לא ניתן לשנות שם של משתמש החבר בעסק נוסף", "This user also belongs to another business, only they can change their name"},
	Unauthenticated:    {"נדרשת התחברות", "Please sign in"},
	InvalidCredentials: {"אימייל או סיסמה שגויים", "Incorrect email or password"},
	NoTenant:           {"המשתמש אינו משויך לעסק", "This account is not linked to a business"},
	NotMember:          {"אינך חבר בעסק זה", "You are not a member of this business"},
	Forbidden:          {"אין לך הרשאה לפעולה זו", "You do not have permission for this action"},
	CannotManage:       {"אין לך הרשאה לנהל משתמש זה", "You cannot manage this member"},
	FeatureDisabled:    {"התכונה אינה פעילה בעסק זה", "This feature is not enabled for your business"},
	NotFound:           {"לא נמצא", "Not found"},
	MemberNotFound:     {"המשתמש לא נמצא", "Member not found"},
	Conflict:           {"הפעולה מתנגשת עם נתונים קיימים", "The request conflicts with existing data"},
	SupplierExists:     {"ספק בשם זה כבר קיים", "A supplier with this name already exists"},
	NoSaturdayDelivery: {"אין משלוחים בשבת", "There are no deliveries on Saturday"},
	InvalidDate:        {"תאריך לא תקין", "Invalid date"},
	OrdersSaved:        {"ההזמנות נשמרו בהצלחה", "Orders saved"},
	OrdersFailed:       {"שגיאה ביצירת הזמנות", "No order could be saved"},
	PayerRequired:      {"יש להזין מי שילם", "Enter who paid"},
	TaxiRequired:       {"יש להזין שם מונית/נהג", "Enter the taxi or driver"},
	InvalidPrice:       {"מחיר לא תקין", "Invalid price"},
	MemberAdded:        {"המשתמש נוסף לצוות", "Member added"},
	SlugTaken:          {"לא ניתן ליצור כתובת ייחודית לעסק, נסה שוב", "Could not allocate a unique business address, try again"},
	ResetEmailSent:     {"אם האימייל קיים, נשלח אליו קישור לאיפוס", "If the email exists, a reset link was sent"},
	ResetTokenInvalid:  {"קישור האיפוס אינו תקף", "The reset link is invalid or expired"},
	PasswordUpdated:    {"הסיסמה עודכנה", "Password updated"},
	LoggedOut:          {"התנתקת בהצלחה", "Signed out"},
	Saved:              {"נשמר", "Saved"},
	Deleted:            {"נמחק", "Deleted"},
	RateLimited:        {"יותר מדי בקשות, נסה שוב מאוחר יותר", "Too many requests, try again later"},
	Internal:           {"שגיאת שרת", "Server error"},
}

var (
	supported = []language.Tag{language.Hebrew, language.English}
	matcher   = language.NewMatcher(supported)
)

// Lang picks "he" or "en" from an Accept-Language header value.  Empty or
// unparseable headers yield "he".
func Lang(acceptLanguage string) string {
	if acceptLanguage == "" {
		return "he"
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return "he"
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No || idx >= len(supported) {
		return "he"
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// T returns the message for code in lang.  Unknown codes are returned as is
// so callers never render an empty message.
func T(lang, code string) string {
	e, ok := catalog[code]
	if !ok {
		return code
	}
	if lang == "en" {
		return e.en
	}
	return e.he
}

// Known reports whether code has a catalog entry.
func Known(code string) bool {
	_, ok := catalog[code]
	return ok
}
