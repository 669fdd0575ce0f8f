package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried in a patient access token.
type Claims struct {
	PatientID uuid.UUID `json:"patient_id"`
	Email     string    `json:"email"`
	jwt.RegisteredClaims
}

type JWTService interface {
	GenerateToken(patientID uuid.UUID, email string) (string, error)
	ValidateToken(token string) (*Claims, error)
}

type jwtService struct {
	secret []byte
	expiry time.Duration
}

func NewJWTService(secret string, expiry time.Duration) JWTService {
	return &jwtService{secret: []byte(secret), expiry: expiry}
}

func (s *jwtService) GenerateToken(patientID uuid.UUID, email string) (string, error) {
	now := time.Now()
	claims := &Claims{
		PatientID: patientID,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   patientID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *jwtService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
