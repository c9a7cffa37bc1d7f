package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/vkuznec/parts_shop/internal/hash"
	"github.com/vkuznec/parts_shop/internal/logging"
	"github.com/vkuznec/parts_shop/internal/models"
	"github.com/vkuznec/parts_shop/internal/mykafka"
	"github.com/vkuznec/parts_shop/internal/service/token"
)

type AuthHandler struct {
	DB       *gorm.DB
	Tokens   *token.Service
	Producer *mykafka.Producer
}

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Login answers with a token pair and also sets the session cookies, so both
// the browser flow and API clients authenticate through the same endpoint.
func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var user models.User
	if err := h.DB.WithContext(ctx).Where("username = ?", req.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "reason", "unknown user")
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		l.Warn("login_failed", "reason", "wrong password")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid username or password")
	}

	access, err := h.Tokens.SignAccessToken(user.ID, user.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
	refresh, err := h.Tokens.SignRefreshToken(ctx, user.ID, user.Role)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}

	c.SetCookie(CreateCookie("accessToken", access, "/", time.Now().Add(time.Hour)))
	c.SetCookie(CreateCookie("refreshToken", refresh, "/", time.Now().Add(14*24*time.Hour)))

	l.Info("login_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  access,
		"refresh_token": refresh,
		"user":          user.Username,
	})
}

func (h *AuthHandler) LogOut(c echo.Context) error {
	ctx := c.Request().Context()

	if ck, err := c.Cookie("refreshToken"); err == nil {
		if err := h.Tokens.Revoke(ctx, ck.Value); err != nil {
			logging.FromContext(ctx).Warn("revoke refresh token failed", "error", err)
		}
	}

	c.SetCookie(CreateCookie("accessToken", "", "/", time.Unix(0, 0)))
	c.SetCookie(CreateCookie("refreshToken", "", "/", time.Unix(0, 0)))

	return c.JSON(http.StatusOK, echo.Map{"status": "logged out"})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a refresh token from the JSON body or, for the browser
// session, from the cookie.
func (h *AuthHandler) Refresh(c echo.Context) error {
	ctx := c.Request().Context()

	var req refreshRequest
	_ = c.Bind(&req)
	raw := req.RefreshToken
	if raw == "" {
		if ck, err := c.Cookie("refreshToken"); err == nil {
			raw = ck.Value
		}
	}
	if raw == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "refresh token required")
	}

	access, refresh, _, err := h.Tokens.Rotate(ctx, raw)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
	}

	c.SetCookie(CreateCookie("accessToken", access, "/", time.Now().Add(time.Hour)))
	c.SetCookie(CreateCookie("refreshToken", refresh, "/", time.Now().Add(14*24*time.Hour)))

	return c.JSON(http.StatusOK, echo.Map{
		"access_token":  access,
		"refresh_token": refresh,
	})
}
