package auth

import (
	"github.com/angelmondragon/quoteflow/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID     uuid.UUID
	Role       enums.Role
	ResellerID *uuid.UUID
	Email      string
}

// AccessTokenClaims represents the typed session JWT presented by the browser.
type AccessTokenClaims struct {
	UserID     uuid.UUID  `json:"user_id"`
	Role       enums.Role `json:"role"`
	ResellerID *uuid.UUID `json:"reseller_id,omitempty"`
	Email      string     `json:"email,omitempty"`
	jwt.RegisteredClaims
}
