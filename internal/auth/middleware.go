package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"carevoice-backend/internal/model"
	"carevoice-backend/internal/store"
)

const claimsKey = "auth.claims"

// OrganizationGetter loads the caller's organization.
type OrganizationGetter interface {
	GetOrganization(ctx context.Context, orgID string) (*model.Organization, error)
}

// Authenticate requires a valid "Authorization: Bearer" token and stores its
// claims on the context.
func (m *Manager) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims, err := m.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Authenticate.
func ClaimsFrom(c *gin.Context) *Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}

// RequireManager rejects callers whose role cannot change organization data.
func RequireManager() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil || !claims.Role.CanManage() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// RequireActiveSubscription rejects mutations for organizations whose
// subscription is neither TRIAL nor ACTIVE. Reads are never gated.
func RequireActiveSubscription(orgs OrganizationGetter) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		claims := ClaimsFrom(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		org, err := orgs.GetOrganization(c.Request.Context(), claims.OrganizationID)
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "organization not found"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "failed to load organization"})
			return
		}
		if !org.SubscriptionStatus.AllowsMutation() {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{"error": "subscription is " + string(org.SubscriptionStatus)})
			return
		}
		c.Next()
	}
}
