package i18n

import "testing"

func TestEveryLanguageHasEveryKey(t *testing.T) {
	keys := []string{
		KeyScan, KeyHistory, KeyEmpty, KeyFact, KeyScannerTitle,
		KeyTapToScan, KeyDecrypting, KeySystemReady, KeyError, KeyDone,
	}
	for _, lang := range Languages() {
		for _, key := range keys {
			if got := T(lang, key); got == key || got == "" {
				t.Errorf("%s: missing translation for %q", lang, key)
			}
		}
	}
}

func TestT_FallsBackToKey(t *testing.T) {
	if got := T(EN, "no_such_key"); got != "no_such_key" {
		t.Errorf("unknown key: got %q", got)
	}
	if got := T("de", KeyScan); got != KeyScan {
		t.Errorf("unknown language: got %q", got)
	}
}

func TestDirection(t *testing.T) {
	tests := []struct {
		lang Language
		want Direction
	}{
		{AR, RTL},
		{EN, LTR},
		{FR, LTR},
	}
	for _, tt := range tests {
		if got := tt.lang.Direction(); got != tt.want {
			t.Errorf("%s: want %s, got %s", tt.lang, tt.want, got)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Language
		wantErr bool
	}{
		{"ar", AR, false},
		{"EN", EN, false},
		{" fr ", FR, false},
		{"de", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q): err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultIsValid(t *testing.T) {
	if !Default.Valid() {
		t.Fatalf("default language %q is not valid", Default)
	}
	if Language("xx").Valid() {
		t.Error("unknown language reported valid")
	}
	if Name(FR) != "Français" || Name("xx") != "xx" {
		t.Error("unexpected display names")
	}
}
