package i18n

import "net/http"

// LangCookie remembers the language picked in the UI.
const LangCookie = "lang"

// Middleware puts a localizer in every request context. The ?lang= query
// parameter wins, then the lang cookie, then Accept-Language.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var prefs []string
		if q := r.URL.Query().Get("lang"); IsSupported(q) {
			prefs = append(prefs, q)
			http.SetCookie(w, &http.Cookie{Name: LangCookie, Value: q, Path: "/", SameSite: http.SameSiteLaxMode})
		} else if c, err := r.Cookie(LangCookie); err == nil && IsSupported(c.Value) {
			prefs = append(prefs, c.Value)
		}
		if al := r.Header.Get("Accept-Language"); al != "" {
			prefs = append(prefs, al)
		}
		ctx := WithLocalizer(r.Context(), NewLocalizer(prefs...))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLanguage returns the language a request asked for, or the default.
func RequestLanguage(r *http.Request) string {
	if q := r.URL.Query().Get("lang"); IsSupported(q) {
		return q
	}
	if c, err := r.Cookie(LangCookie); err == nil && IsSupported(c.Value) {
		return c.Value
	}
	return defaultLang
}
