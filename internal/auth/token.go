package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/sla-service/internal/domain"
)

const (
	tokenIssuer = "sla-service"
	clockSkew   = 30 * time.Second
)

var (
	errUnknownSubject   = errors.New("unknown subject type")
	errIncompleteClaims = errors.New("token lacks subject id or organization")
)

// TokenManager signs and verifies the HS256 bearer tokens that carry a
// caller's organization and staff role. Accounts live elsewhere; this
// service trusts the claims once the signature checks out.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	parser *jwt.Parser
}

// NewTokenManager builds a manager. A non-positive ttl defaults to one hour.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{
		secret: []byte(secret),
		ttl:    time.Duration(ttlMinutes) * time.Minute,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockSkew),
		),
	}
}

// Claims is the token payload.
type Claims struct {
	Subject        domain.SubjectType `json:"subject"`
	OrganizationID string             `json:"org"`
	Role           *domain.StaffRole  `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims check and rejects principals
// the API cannot scope.
func (c *Claims) Validate() error {
	switch c.Subject {
	case domain.SubjectTypeUser, domain.SubjectTypeStaff:
	default:
		return errUnknownSubject
	}
	if c.RegisteredClaims.Subject == "" || c.OrganizationID == "" {
		return errIncompleteClaims
	}
	return nil
}

// Principal converts verified claims to the caller identity.
func (c *Claims) Principal() domain.Principal {
	return domain.Principal{
		SubjectID:      c.RegisteredClaims.Subject,
		Subject:        c.Subject,
		OrganizationID: c.OrganizationID,
		Role:           c.Role,
	}
}

// GenerateToken signs a token for p and returns it with its expiry.
func (tm *TokenManager) GenerateToken(p domain.Principal) (string, time.Time, error) {
	issuedAt := time.Now()
	expiresAt := issuedAt.Add(tm.ttl)
	claims := &Claims{
		Subject:        p.Subject,
		OrganizationID: p.OrganizationID,
		Role:           p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   p.SubjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseToken verifies signature, issuer, expiry and principal completeness.
func (tm *TokenManager) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, err := tm.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return tm.secret, nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}
