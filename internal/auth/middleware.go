package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-service/internal/domain"
	util "github.com/spec-kit/sla-service/pkg/util"
)

const principalKey = "auth_principal"

// AuthMiddleware turns a bearer token into a request-scoped principal.
type AuthMiddleware struct {
	tokens *TokenManager
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle rejects the request with UNAUTHORIZED unless it carries a valid token.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := bearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}
	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return util.NewUnauthorized("invalid token")
	}
	principal := claims.Principal()
	c.Locals(principalKey, &principal)
	return c.Next()
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", util.NewUnauthorized("missing authorization header")
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", util.NewUnauthorized("invalid authorization header")
	}
	return token, nil
}

// PrincipalFromContext returns the principal stored by Handle.
func PrincipalFromContext(c *fiber.Ctx) (*domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(*domain.Principal)
	return principal, ok && principal != nil
}
