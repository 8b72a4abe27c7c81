package security

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"talkquest/internal/models"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// IdentityClaims are the claims issued by the identity provider
type IdentityClaims struct {
	Role     string   `json:"role"`
	Name     string   `json:"name,omitempty"`
	Email    string   `json:"email,omitempty"`
	Children []string `json:"children,omitempty"`
	jwt.RegisteredClaims
}

// IdentityVerifier checks HS256 identity tokens
type IdentityVerifier struct {
	secret []byte
	issuer string
}

// NewIdentityVerifier creates a verifier. An empty issuer accepts any issuer.
func NewIdentityVerifier(secret, issuer string) (*IdentityVerifier, error) {
	if secret == "" {
		return nil, errors.New("JWT secret cannot be empty")
	}
	return &IdentityVerifier{secret: []byte(secret), issuer: issuer}, nil
}

// Verify parses a token string and returns the caller identity
func (v *IdentityVerifier) Verify(tokenString string) (*models.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject missing", ErrTokenInvalid)
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	identity := &models.Identity{
		UserID: claims.Subject,
		Role:   role,
		Name:   claims.Name,
		Email:  claims.Email,
	}
	if role == models.RoleParent {
		identity.Children = claims.Children
	}
	return identity, nil
}

// Sign issues a token for identity. Used by tooling and tests.
func (v *IdentityVerifier) Sign(identity *models.Identity, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = identity.UserID
	if claims.Issuer == "" {
		claims.Issuer = v.issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, IdentityClaims{
		Role:             string(identity.Role),
		Name:             identity.Name,
		Email:            identity.Email,
		Children:         identity.Children,
		RegisteredClaims: claims,
	})
	return token.SignedString(v.secret)
}

// BearerToken extracts the token from the Authorization header
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
