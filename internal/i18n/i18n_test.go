package i18n

import "testing"

func TestLang(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", "he"},
		{"en-US,en;q=0.9", "en"},
		{"he-IL", "he"},
		{"fr-FR", "he"},
		{"fr;q=0.9,en;q=0.5", "en"},
		{";;;", "he"},
	}
	for _, tt := range tests {
		if got := Lang(tt.header); got != tt.want {
			t.Errorf("Lang(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestT(t *testing.T) {
	if T("en", Forbidden) == T("he", Forbidden) {
		t.Error("catalogs should differ")
	}
	if T("en", "no_such_code") != "no_such_code" {
		t.Error("unknown code should echo")
	}
	for code, e := range catalog {
		if e.he == "" || e.en == "" {
			t.Errorf("%s has an empty translation", code)
		}
	}
}
