package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "Interviewer" {
		t.Errorf("T(AppTitle) = %q, want 'Interviewer'", got)
	}

	got = T(ctx, "ErrDuplicateStart")
	if got != "The interview has already started." {
		t.Errorf("T(ErrDuplicateStart) = %q", got)
	}
}

func TestTranslateRussian(t *testing.T) {
	ctx := initLang(t, "ru")

	got := T(ctx, "AppTitle")
	if got != "Интервьюер" {
		t.Errorf("T(AppTitle) = %q, want 'Интервьюер'", got)
	}

	got = T(ctx, "StatusCompleted")
	if got != "Завершено" {
		t.Errorf("T(StatusCompleted) = %q, want 'Завершено'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "CandidatesCount", 1)
	if got1 != "1 candidate" {
		t.Errorf("Tp(CandidatesCount, 1) = %q, want '1 candidate'", got1)
	}

	got5 := Tp(ctx, "CandidatesCount", 5)
	if got5 != "5 candidates" {
		t.Errorf("Tp(CandidatesCount, 5) = %q, want '5 candidates'", got5)
	}

	ru := initLang(t, "ru")
	if got := Tp(ru, "CandidatesCount", 3); got != "3 кандидата" {
		t.Errorf("Tp(ru, 3) = %q", got)
	}
	if got := Tp(ru, "CandidatesCount", 5); got != "5 кандидатов" {
		t.Errorf("Tp(ru, 5) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "TimeSpent", map[string]any{"Seconds": 42})
	if got != "42s spent" {
		t.Errorf("Td(TimeSpent, Seconds=42) = %q, want '42s spent'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestInitRejectsBadTag(t *testing.T) {
	if err := Init("not a language!"); err == nil {
		t.Fatalf("expected error for invalid tag")
	}
}

func TestLocalesHaveSameKeys(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	en := WithLocalizer(context.Background(), NewLocalizer("en"))
	ru := WithLocalizer(context.Background(), NewLocalizer("ru"))
	for _, id := range []string{"Dashboard", "ErrSessionPending", "ErrScoringUnavailable", "DownloadReport", "StatusInProgress"} {
		if T(en, id) == T(ru, id) {
			t.Errorf("%s is not translated to Russian", id)
		}
	}
	if len(Languages()) != 2 {
		t.Errorf("Languages() = %v, want 2 entries", Languages())
	}
}

func TestMiddlewareNegotiates(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	var got string
	h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "AppTitle")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,en;q=0.5")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Интервьюер" {
		t.Errorf("Accept-Language ru: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/?lang=en", nil)
	req.Header.Set("Accept-Language", "ru")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Interviewer" {
		t.Errorf("lang=en: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "fr")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Interviewer" {
		t.Errorf("fallback: got %q", got)
	}
}
