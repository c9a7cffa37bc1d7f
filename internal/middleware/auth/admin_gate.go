package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/vkuznec/parts_shop/internal/handlers"
	"github.com/vkuznec/parts_shop/internal/service/token"
)

// Gate admits only the admin account. A request may carry one of two
// credential kinds: a bearer token in the Authorization header, or the
// session cookie pair (accessToken, refreshToken). Both resolve through the
// same claims check; the session kind additionally rotates an expired access
// token from the refresh cookie.
type Gate struct {
	Tokens *token.Service
}

type credKind int

const (
	credNone credKind = iota
	credBearer
	credSession
)

func credentialFrom(c echo.Context) (credKind, string) {
	if h := c.Request().Header.Get(echo.HeaderAuthorization); h != "" {
		return credBearer, strings.TrimPrefix(h, "Bearer ")
	}
	if ck, err := c.Cookie("accessToken"); err == nil && ck.Value != "" {
		return credSession, ck.Value
	}
	return credNone, ""
}

func (g *Gate) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		kind, raw := credentialFrom(c)

		switch kind {
		case credBearer:
			claims, err := g.Tokens.ParseAccess(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			return g.admit(c, next, claims)

		case credSession:
			claims, err := g.Tokens.ParseAccess(raw)
			if err == nil {
				return g.admit(c, next, claims)
			}
			if !errors.Is(err, token.ErrTokenExpired) {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
			}
			// expired session, fall through to the refresh cookie
		}

		rfCookie, err := c.Cookie("refreshToken")
		if err != nil || rfCookie.Value == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "authorization required")
		}

		ctx := c.Request().Context()
		newAccess, newRefresh, claims, err := g.Tokens.Rotate(ctx, rfCookie.Value)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "cannot rotate token")
		}

		c.SetCookie(handlers.CreateCookie("accessToken", newAccess, "/", time.Now().Add(time.Hour)))
		c.SetCookie(handlers.CreateCookie("refreshToken", newRefresh, "/", time.Now().Add(14*24*time.Hour)))

		return g.admit(c, next, claims)
	}
}

func (g *Gate) admit(c echo.Context, next echo.HandlerFunc, claims jwt.MapClaims) error {
	userID, role, err := token.Identity(claims)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	if role != "admin" {
		return echo.NewHTTPError(http.StatusForbidden, "admin access required")
	}

	c.Set("userID", userID)
	c.Set("role", role)
	return next(c)
}
