package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/text/language"

	"github.com/aura-community/backend/internal/auth"
	"github.com/aura-community/backend/internal/permissions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubResolver map[string]*auth.Session

func (s stubResolver) Resolve(_ context.Context, token string) (*auth.Session, error) {
	switch token {
	case "banned":
		return nil, auth.ErrBanned
	case "broken":
		return nil, errors.New("db down")
	}
	if sess, ok := s[token]; ok {
		return sess, nil
	}
	return nil, auth.ErrNotAuthenticated
}

func TestAuth(t *testing.T) {
	uid := uuid.New()
	resolver := stubResolver{"mod": {UserID: uid, Role: permissions.RoleModerator}}
	r := gin.New()
	r.GET("/x", Auth(resolver, zap.NewNop()), func(c *gin.Context) {
		id, role := Actor(c)
		assert.Equal(t, uid, id)
		assert.Equal(t, permissions.RoleModerator, role)
		c.Status(http.StatusOK)
	})

	tests := []struct {
		header string
		want   int
	}{
		{"", http.StatusUnauthorized},
		{"Token mod", http.StatusUnauthorized},
		{"Bearer nope", http.StatusUnauthorized},
		{"Bearer banned", http.StatusForbidden},
		{"Bearer broken", http.StatusInternalServerError},
		{"Bearer mod", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, tt.want, w.Code, tt.header)
	}
}

func TestRequireCapability(t *testing.T) {
	build := func(role permissions.Role, set bool) *gin.Engine {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) {
			if set {
				c.Set(ContextUserRole, role)
			}
		}, RequireCapability(permissions.CanManageMembers), func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}
	cases := []struct {
		role permissions.Role
		set  bool
		want int
	}{
		{permissions.RoleAdmin, true, http.StatusOK},
		{permissions.RoleOwner, true, http.StatusOK},
		{permissions.RoleModerator, true, http.StatusForbidden},
		{permissions.RoleNone, true, http.StatusForbidden},
		{permissions.RoleNone, false, http.StatusUnauthorized},
	}
	for _, tt := range cases {
		w := httptest.NewRecorder()
		build(tt.role, tt.set).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, tt.want, w.Code, tt.role.String())
	}
}

func TestRequireRole(t *testing.T) {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { c.Set(ContextUserRole, permissions.RoleModerator) },
		RequireRole(permissions.RoleModerator), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS("http://a.test, http://b.test"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://b.test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://b.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	open := gin.New()
	open.Use(CORS("*"))
	open.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://elsewhere.test")
	w = httptest.NewRecorder()
	open.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, map[string]bool{"http://a.test": true, "https://b.test": true}, ParseOrigins(" http://a.test/ ,https://b.test,, "))
	assert.Empty(t, ParseOrigins(""))
}

func TestLocale(t *testing.T) {
	r := gin.New()
	r.Use(Locale(ParseLocales([]string{"en", "fr", "de", "bogus!!"})))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, LocaleFrom(c)) })

	tests := []struct {
		name   string
		query  string
		cookie string
		accept string
		want   string
	}{
		{"default", "", "", "", "en"},
		{"accept language", "", "", "de-CH,de;q=0.9,en;q=0.5", "de"},
		{"cookie beats header", "", "fr", "de", "fr"},
		{"query beats cookie", "?lang=de", "fr", "", "de"},
		{"unsupported falls back", "", "", "ja", "en"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x"+tt.query, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "lang", Value: tt.cookie})
			}
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Body.String())
			assert.Equal(t, tt.want, w.Header().Get("Content-Language"))
		})
	}
	assert.Len(t, ParseLocales([]string{"en", "??"}), 1)
	assert.Equal(t, language.English, ParseLocales([]string{"en"})[0])
}

func TestLogger_IncludesRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(requestid.New(), Logger(zap.New(core)))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "req-123")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		ctx := entries[0].ContextMap()
		assert.Equal(t, "req-123", ctx["request_id"])
		assert.Equal(t, int64(http.StatusTeapot), ctx["status"])
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
	}
}
