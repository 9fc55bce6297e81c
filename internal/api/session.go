package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/teris-io/shortid"
)

// Guest sessions: the landing page hands out a signed token so only
// browsers that loaded the app can open a websocket. No accounts are
// involved; room admission is governed by the shared room code.

const (
	tokenCookieKey = "token"
	guestClaim     = "guest-id"
	expClaim       = "exp"

	defaultExp = 24 * time.Hour
)

func (a *App) createGuestToken(exp time.Duration) (string, error) {
	guestId, err := shortid.Generate()
	if err != nil {
		return "", fmt.Errorf("generate guest id: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		guestClaim: guestId,
		expClaim:   time.Now().Add(exp).Unix(),
	})

	return token.SignedString(a.signingKey)
}

func (a *App) verifyGuestToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return a.signingKey, nil
	})
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}

	if !token.Valid {
		return fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("invalid token claims")
	}

	if _, ok := claims[guestClaim].(string); !ok {
		return fmt.Errorf("invalid guest id claim")
	}

	return nil
}

func createSessionCookie(tokenString string, exp time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     tokenCookieKey,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(exp),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}

// ensureSession sets a guest cookie if the request doesn't already
// carry a valid one.
func (a *App) ensureSession(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(tokenCookieKey); err == nil {
		if a.verifyGuestToken(cookie.Value) == nil {
			return
		}
	}

	token, err := a.createGuestToken(defaultExp)
	if err != nil {
		a.log.Println("create guest token:", err)
		return
	}

	http.SetCookie(w, createSessionCookie(token, defaultExp))
}

func (a *App) sessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(tokenCookieKey)
		if err != nil {
			errResp := NewUnauthorizedError()
			a.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		if err := a.verifyGuestToken(cookie.Value); err != nil {
			a.log.Println("verify guest token:", err)
			errResp := NewUnauthorizedError()
			a.writeJson(w, errResp.StatusCode, errResp)
			return
		}

		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next(w, r)
	}
}
