package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

// ContextLocale is the key for the negotiated language tag string.
const ContextLocale = "locale"

// Locale picks the display language from the lang query parameter, the lang
// cookie, then Accept-Language, matched against supported (the first is the default).
func Locale(supported []language.Tag) gin.HandlerFunc {
	if len(supported) == 0 {
		supported = []language.Tag{language.English}
	}
	matcher := language.NewMatcher(supported)
	return func(c *gin.Context) {
		var prefs []language.Tag
		if q := c.Query("lang"); q != "" {
			if t, err := language.Parse(q); err == nil {
				prefs = append(prefs, t)
			}
		}
		if ck, err := c.Cookie("lang"); err == nil && ck != "" {
			if t, err := language.Parse(ck); err == nil {
				prefs = append(prefs, t)
			}
		}
		if accept, _, err := language.ParseAcceptLanguage(c.GetHeader("Accept-Language")); err == nil {
			prefs = append(prefs, accept...)
		}
		_, idx, conf := matcher.Match(prefs...)
		tag := supported[0]
		if conf != language.No {
			tag = supported[idx]
		}
		c.Set(ContextLocale, tag.String())
		c.Header("Content-Language", tag.String())
		c.Next()
	}
}

// ParseLocales parses tags like "en,fr,de", skipping invalid entries.
func ParseLocales(list []string) []language.Tag {
	var out []language.Tag
	for _, s := range list {
		if t, err := language.Parse(s); err == nil {
			out = append(out, t)
		}
	}
	return out
}

// LocaleFrom returns the negotiated locale, or "" outside the Locale middleware.
func LocaleFrom(c *gin.Context) string {
	return c.GetString(ContextLocale)
}
