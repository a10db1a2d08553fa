package services

import (
	"errors"
	"fmt"
	"time"

	"cctvdash/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrForbidden    = errors.New("insufficient role")
)

type AuthService interface {
	GenerateToken(operator string, role domain.OperatorRole) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	Authorize(claims *Claims, required domain.OperatorRole) error
}

type Claims struct {
	Operator string              `json:"operator"`
	Role     domain.OperatorRole `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret      []byte
	accessTokenTTL time.Duration
	now            func() time.Time
}

// NewAuthService returns an HS256 token service. The secret must not be empty.
func NewAuthService(jwtSecret string, accessTokenTTL time.Duration) (AuthService, error) {
	if jwtSecret == "" {
		return nil, fmt.Errorf("jwt secret must not be empty")
	}
	return &authService{
		jwtSecret:      []byte(jwtSecret),
		accessTokenTTL: accessTokenTTL,
		now:            time.Now,
	}, nil
}

func (s *authService) GenerateToken(operator string, role domain.OperatorRole) (string, error) {
	if operator == "" {
		return "", fmt.Errorf("operator name must not be empty")
	}
	if role != domain.RoleViewer && role != domain.RoleOperator {
		return "", fmt.Errorf("unknown role %q", role)
	}
	now := s.now()
	claims := &Claims{
		Operator: operator,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   operator,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses tokenString and rejects expired or foreign tokens.
func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

func (s *authService) Authorize(claims *Claims, required domain.OperatorRole) error {
	if claims == nil || !claims.Role.Allows(required) {
		return ErrForbidden
	}
	return nil
}
