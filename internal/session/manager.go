package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/driveline/driveline-backend/pkg/config"
	"github.com/driveline/driveline-backend/pkg/errors"
)

// Claims represents an onboarding session token. A session is scoped to
// one driver and carries no roles or permissions.
type Claims struct {
	jwt.RegisteredClaims
	DriverID string `json:"driver_id"`
	Email    string `json:"email,omitempty"`
}

// Manager issues and validates onboarding session tokens
type Manager struct {
	config *config.SessionConfig
}

func NewManager(cfg *config.SessionConfig) *Manager {
	return &Manager{config: cfg}
}

// Token is the issued session token plus its expiry
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	TokenType string    `json:"token_type"`
}

// Generate issues a session token for a driver
func (m *Manager) Generate(driverID, email string) (*Token, error) {
	now := time.Now()
	expiry := now.Add(m.config.Expiry)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   driverID,
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
		DriverID: driverID,
		Email:    email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(m.config.Secret))
	if err != nil {
		return nil, err
	}

	return &Token{
		Value:     signed,
		ExpiresAt: expiry,
		TokenType: "Bearer",
	}, nil
}

// Validate parses a session token and returns its claims
func (m *Manager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.TokenInvalid()
		}
		return []byte(m.config.Secret), nil
	})

	if err != nil {
		if err.Error() == "token has invalid claims: token is expired" {
			return nil, errors.TokenExpired()
		}
		return nil, errors.TokenInvalid()
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.TokenInvalid()
	}

	return claims, nil
}

// Expiry returns the configured session lifetime
func (m *Manager) Expiry() time.Duration {
	return m.config.Expiry
}
