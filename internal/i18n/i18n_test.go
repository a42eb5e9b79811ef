package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return WithLanguage(context.Background(), lang)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "AppTitle"); got != "CBSE Tutor" {
		t.Errorf("T(AppTitle) = %q, want 'CBSE Tutor'", got)
	}
	if got := T(ctx, "ModeExaminer"); got != "Examiner" {
		t.Errorf("T(ModeExaminer) = %q, want 'Examiner'", got)
	}
}

func TestTranslateHindi(t *testing.T) {
	ctx := initLang(t, "hi")

	if got := T(ctx, "ModeExaminer"); got != "परीक्षक" {
		t.Errorf("T(ModeExaminer) = %q, want 'परीक्षक'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	if got := Tp(ctx, "AttemptCount", 1); got != "1 exam recorded" {
		t.Errorf("Tp(AttemptCount, 1) = %q", got)
	}
	if got := Tp(ctx, "AttemptCount", 3); got != "3 exams recorded" {
		t.Errorf("Tp(AttemptCount, 3) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "ScoreOf", map[string]any{"Marks": 62, "Total": 80, "Percent": 78})
	if got != "62 / 80 (78%)" {
		t.Errorf("Td(ScoreOf) = %q, want '62 / 80 (78%%)'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NonExistentKey"); got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestGreetingsForEveryMode(t *testing.T) {
	for _, lang := range []string{"en", "hi"} {
		ctx := initLang(t, lang)
		for _, mode := range []string{"teacher", "examiner", "oral", "practice", "revision", "progress"} {
			id := "Greeting_" + mode
			if got := T(ctx, id); got == id {
				t.Errorf("%s: missing %s", lang, id)
			}
		}
	}
}

func TestSupported(t *testing.T) {
	initLang(t, "en")
	if !IsSupported("en") || !IsSupported("hi") {
		t.Errorf("Supported() = %v, want en and hi", Supported())
	}
	if IsSupported("ru") {
		t.Error("ru has no locale file")
	}
}

func TestMiddlewareQueryParam(t *testing.T) {
	initLang(t, "en")

	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ModeTeacher")
	}))

	req := httptest.NewRequest(http.MethodGet, "/?lang=hi", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got != "शिक्षक" {
		t.Errorf("translated = %q, want Hindi", got)
	}
	if c := rec.Result().Cookies(); len(c) != 1 || c[0].Value != "hi" {
		t.Errorf("expected lang cookie, got %v", c)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: LangCookie, Value: "hi"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "शिक्षक" {
		t.Errorf("cookie language not honoured: %q", got)
	}
	if RequestLanguage(req) != "hi" {
		t.Errorf("RequestLanguage = %q, want hi", RequestLanguage(req))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Teacher" {
		t.Errorf("default language = %q, want English", got)
	}
}
