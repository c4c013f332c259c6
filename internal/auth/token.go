package auth

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/shacrom/mmorpg-news/internal/strapi"
)

const (
	DefaultCookieName = "strapi_jwt"
	CookieMaxAge      = 7 * 24 * time.Hour
)

// Authenticator performs the credential login against the CMS.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
}

type Credentials struct {
	Identifier string
	Password   string
}

// TokenMiddleware makes sure every request carries a CMS token. A missing or
// empty cookie triggers one login; the token is then stored in the cookie and
// attached to the request context. Login failures are logged and the request
// continues without a token. Token expiry is only tracked by the cookie's max-age.
type TokenMiddleware struct {
	authn      Authenticator
	creds      Credentials
	cookieName string
	secure     bool
	logger     *log.Logger
}

func NewTokenMiddleware(authn Authenticator, creds Credentials, cookieName string, secure bool, logger *log.Logger) *TokenMiddleware {
	if logger == nil {
		logger = log.Default()
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	return &TokenMiddleware{
		authn:      authn,
		creds:      creds,
		cookieName: cookieName,
		secure:     secure,
		logger:     logger,
	}
}

// Handler wraps next; its signature matches mux.MiddlewareFunc.
func (m *TokenMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := m.cookieToken(r); token != "" {
			next.ServeHTTP(w, r.WithContext(strapi.ContextWithToken(r.Context(), token)))
			return
		}

		m.logger.Println("auth: token cookie missing, logging in to CMS")
		token, err := m.authn.Login(r.Context(), m.creds.Identifier, m.creds.Password)
		if err != nil {
			m.logger.Printf("auth: could not obtain CMS token: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		http.SetCookie(w, m.cookie(token))
		m.logger.Println("auth: token stored in cookie")

		next.ServeHTTP(w, r.WithContext(strapi.ContextWithToken(r.Context(), token)))
	})
}

func (m *TokenMiddleware) cookieToken(r *http.Request) string {
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

func (m *TokenMiddleware) cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(CookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
