package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Simplici0/labsite/internal/accounts"
	"github.com/Simplici0/labsite/internal/calculator"
)

const sessionCookieName = "labsite_session"

type authService struct {
	sessionSecret []byte
}

func newAuthService(sessionSecret string) *authService {
	return &authService{sessionSecret: []byte(sessionSecret)}
}

func (a *authService) createSessionValue(userID int64) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(userID, 10)))
	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return payload + "." + signature
}

func (a *authService) verifySessionValue(value string) (int64, bool) {
	payload, signature, ok := strings.Cut(value, ".")
	if !ok {
		return 0, false
	}

	mac := hmac.New(sha256.New, a.sessionSecret)
	_, _ = mac.Write([]byte(payload))
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return 0, false
	}
	if !hmac.Equal(provided, expected) {
		return 0, false
	}

	decoded, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(string(decoded), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}

	return id, true
}

func (a *authService) setSessionCookie(w http.ResponseWriter, userID int64) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    a.createSessionValue(userID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *authService) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

type userContextKey struct{}

// loadUser attaches the signed-in user, if any, to the request context.
func (s *server) loadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		id, ok := s.auth.verifySessionValue(cookie.Value)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		user, err := s.users.UserByID(r.Context(), id)
		if errors.Is(err, accounts.ErrNotFound) {
			s.auth.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			s.logger.Error("load session user", zap.Int64("user_id", id), zap.Error(err))
			http.Error(w, "failed to load user", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey{}, &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) *accounts.User {
	u, _ := r.Context().Value(userContextKey{}).(*accounts.User)
	return u
}

func (s *server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == nil {
			http.Redirect(w, r, loginURL(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r)
		if u == nil {
			http.Redirect(w, r, loginURL(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		if !u.IsAdmin() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loginURL(next string) string {
	return "/login?next=" + url.QueryEscape(safeNext(next))
}

// safeNext keeps redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}

// accountBridge persists calculations for the user of one request.
type accountBridge struct {
	users    *accounts.Store
	user     *accounts.User
	redirect string
}

var _ calculator.PersistenceBridge = (*accountBridge)(nil)

func (b *accountBridge) IsAuthenticated() bool {
	return b.user != nil
}

func (b *accountBridge) RequestAuthentication(hint string) {
	b.redirect = loginURL(hint)
}

func (b *accountBridge) Persist(ctx context.Context, calc calculator.SavedCalculation) error {
	if b.user == nil {
		return errors.New("persist calculation: no user")
	}
	_, err := b.users.SaveCalculation(ctx, b.user.ID, calc)
	return err
}
