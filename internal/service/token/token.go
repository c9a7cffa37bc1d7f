package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/vkuznec/parts_shop/internal/models"
)

const (
	TypAccess  = "access"
	TypRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

type Service struct {
	DB            *gorm.DB
	JWTSecret     []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func (s *Service) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return time.Hour
}

func (s *Service) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return 14 * 24 * time.Hour
}

func (s *Service) SignAccessToken(userID uint, role string) (string, error) {
	exp := time.Now().Add(s.accessTTL())
	claims := jwt.MapClaims{
		"sub":  float64(userID),
		"role": role,
		"exp":  exp.Unix(),
		"typ":  TypAccess,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.JWTSecret)
}

// SignRefreshToken signs and persists a refresh token, so it can be revoked.
func (s *Service) SignRefreshToken(ctx context.Context, userID uint, role string) (string, error) {
	exp := time.Now().Add(s.refreshTTL())
	claims := jwt.MapClaims{
		"sub":  float64(userID),
		"role": role,
		"exp":  exp.Unix(),
		"typ":  TypRefresh,
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := t.SignedString(s.RefreshSecret)
	if err != nil {
		return "", err
	}

	row := models.RefreshToken{
		Token:     raw,
		UserID:    userID,
		ExpiresAt: exp.Unix(),
		Revoked:   false,
	}
	if err := s.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}

	return raw, nil
}

// ParseAccess verifies the signature and the "access" kind tag.
func (s *Service) ParseAccess(raw string) (jwt.MapClaims, error) {
	claims, err := parseHS256(raw, s.JWTSecret)
	if err != nil {
		return nil, err
	}
	if typ, ok := claims["typ"].(string); !ok || typ != TypAccess {
		return nil, fmt.Errorf("%w: not an access token", ErrInvalidToken)
	}
	return claims, nil
}

// ValidateRefresh verifies the signature, the "refresh" kind tag and the
// stored row (revocation and expiry).
func (s *Service) ValidateRefresh(ctx context.Context, raw string) (jwt.MapClaims, error) {
	claims, err := parseHS256(raw, s.RefreshSecret)
	if err != nil {
		return nil, err
	}
	if typ, ok := claims["typ"].(string); !ok || typ != TypRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", ErrInvalidToken)
	}

	var stored models.RefreshToken
	if err := s.DB.WithContext(ctx).Where("token = ?", raw).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: refresh token not found", ErrInvalidToken)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if stored.Revoked {
		return nil, fmt.Errorf("%w: refresh token revoked", ErrInvalidToken)
	}
	if time.Now().Unix() > stored.ExpiresAt {
		return nil, fmt.Errorf("%w: refresh token expired", ErrTokenExpired)
	}

	return claims, nil
}

// Rotate exchanges a valid refresh token for a fresh access/refresh pair,
// revoking the old one.
func (s *Service) Rotate(ctx context.Context, raw string) (string, string, jwt.MapClaims, error) {
	claims, err := s.ValidateRefresh(ctx, raw)
	if err != nil {
		return "", "", nil, err
	}

	userID, role, err := Identity(claims)
	if err != nil {
		return "", "", nil, err
	}

	newAccess, err := s.SignAccessToken(userID, role)
	if err != nil {
		return "", "", nil, err
	}
	newRefresh, err := s.SignRefreshToken(ctx, userID, role)
	if err != nil {
		return "", "", nil, err
	}
	if err := s.Revoke(ctx, raw); err != nil {
		return "", "", nil, err
	}

	return newAccess, newRefresh, claims, nil
}

func (s *Service) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	err := s.DB.WithContext(ctx).
		Model(&models.RefreshToken{}).
		Where("token = ?", raw).
		Update("revoked", true).Error
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Identity extracts the subject id and role from parsed claims.
func Identity(claims jwt.MapClaims) (uint, string, error) {
	sub, ok := claims["sub"].(float64)
	if !ok {
		return 0, "", fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	role, ok := claims["role"].(string)
	if !ok {
		return 0, "", fmt.Errorf("%w: missing role claim", ErrInvalidToken)
	}
	return uint(sub), role, nil
}

func parseHS256(raw string, secret []byte) (jwt.MapClaims, error) {
	t, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signature method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
