package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	OperatorSubject = "operator"
	TokenTTL        = 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginDisabled      = errors.New("operator login is not configured")
)

// AuthService issues tokens for the operator API. There is a single operator
// identity whose bcrypt password hash comes from configuration.
type AuthService struct {
	secretKey    []byte
	passwordHash []byte
	logger       zerolog.Logger
	now          func() time.Time
}

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func NewAuthService(secret, passwordHash string, logger zerolog.Logger) *AuthService {
	if secret == "" {
		secret = "default-secret-key-change-in-production"
		logger.Warn().Msg("JWT_SECRET not set, using default key")
	}
	if passwordHash == "" {
		logger.Warn().Msg("OPERATOR_PASSWORD_HASH not set, operator login disabled")
	}

	return &AuthService{
		secretKey:    []byte(secret),
		passwordHash: []byte(passwordHash),
		logger:       logger,
		now:          time.Now,
	}
}

func (s *AuthService) Login(password string) (string, error) {
	if len(s.passwordHash) == 0 {
		return "", ErrLoginDisabled
	}
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		s.logger.Warn().Msg("Failed operator authentication attempt")
		return "", ErrInvalidCredentials
	}
	return s.GenerateToken()
}

func (s *AuthService) GenerateToken() (string, error) {
	now := s.now()
	claims := &Claims{
		Role: OperatorSubject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   OperatorSubject,
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error generating token")
		return "", err
	}
	return tokenString, nil
}

func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secretKey, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
