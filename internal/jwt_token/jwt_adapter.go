package jwttoken

import (
	"consentbroker/internal/consent/models"
	"consentbroker/internal/platform/middleware"
)

// JWTServiceAdapter exposes JWTService as a middleware.TokenValidator.
type JWTServiceAdapter struct {
	service *JWTService
}

func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.Principal, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.Principal{
		EntityID: claims.Subject,
		Role:     models.Role(claims.Role),
	}, nil
}
