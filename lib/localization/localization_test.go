package localization

import (
	"encoding/json"
	"net/http/httptest"
	"sort"
	"testing"

	captcha "github.com/MelihcanSimsek/CaptchaGenerator"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/token"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

func TestLocalizationService(t *testing.T) {
	service := NewLocalizationService()

	for _, tt := range []struct {
		lang string
		want string
	}{
		{"en", "Captcha is not valid"},
		{"tr", "Captcha geçerli değil"},
		{"de", "Captcha ist ungültig"},
		{"fr", "Le captcha n'est pas valide"},
	} {
		t.Run(tt.lang, func(t *testing.T) {
			localizer := service.GetLocalizer(tt.lang)
			result := localizer.MustLocalize(&i18n.LocalizeConfig{MessageID: "outcome_answer_mismatch"})
			if result != tt.want {
				t.Errorf("wanted %q, got %q", tt.want, result)
			}
		})
	}
}

func TestOutcomeMessagesMatchEnglish(t *testing.T) {
	sl := SimpleLocalizer{Localizer: NewLocalizationService().GetLocalizer("en")}

	for _, o := range []token.Outcome{token.Valid, token.TokenExpiredOrInvalid, token.AddressMismatch, token.AnswerMismatch} {
		if got := sl.T(o.MessageID()); got != o.Message() {
			t.Errorf("%s: english translation %q differs from %q", o, got, o.Message())
		}
	}
}

func TestGetLocalizer(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.8")

	if got := GetLocalizer(r).T("outcome_valid"); got != "Captcha ist gültig" {
		t.Errorf("wanted German, got %q", got)
	}

	r.Header.Set("Accept-Language", "ja")
	if got := GetLocalizer(r).T("outcome_valid"); got != "Captcha is valid" {
		t.Errorf("wanted the English fallback, got %q", got)
	}

	if got := GetLocalizer(r).T("no_such_message"); got != "no_such_message" {
		t.Errorf("wanted the message ID back, got %q", got)
	}
}

func TestForcedLanguage(t *testing.T) {
	captcha.ForcedLanguage = "tr"
	t.Cleanup(func() { captcha.ForcedLanguage = "" })

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Accept-Language", "fr")

	if got := GetLocalizer(r).T("outcome_valid"); got != "Captcha geçerli" {
		t.Errorf("wanted Turkish, got %q", got)
	}
}

type manifest struct {
	SupportedLanguages []string `json:"supported_languages"`
}

func loadManifest(t *testing.T) manifest {
	t.Helper()

	fin, err := localeFS.Open("locales/manifest.json")
	if err != nil {
		t.Fatal(err)
	}
	defer fin.Close()

	var result manifest
	if err := json.NewDecoder(fin).Decode(&result); err != nil {
		t.Fatal(err)
	}

	return result
}

func TestComprehensiveTranslations(t *testing.T) {
	service := NewLocalizationService()

	var translations = map[string]any{}
	fin, err := localeFS.Open("locales/en.json")
	if err != nil {
		t.Fatal(err)
	}
	defer fin.Close()

	if err := json.NewDecoder(fin).Decode(&translations); err != nil {
		t.Fatal(err)
	}

	var keys []string
	for k := range translations {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, lang := range loadManifest(t).SupportedLanguages {
		t.Run(lang, func(t *testing.T) {
			loc := service.GetLocalizer(lang)
			for _, key := range keys {
				t.Run(key, func(t *testing.T) {
					if _, tag, err := loc.LocalizeWithTag(&i18n.LocalizeConfig{MessageID: key}); err != nil {
						t.Error(err)
					} else if tag.String() != lang {
						t.Errorf("key is not translated, fell back to %s", tag)
					}
				})
			}
		})
	}
}
