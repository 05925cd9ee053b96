package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/stagingfs/internal/domain/sandbox"
)

// PathGuard rejects any route parameter that climbs above the sandbox root
// before a handler sees it. Handlers still resolve paths against the
// caller's home; this only short-circuits plain traversal attempts.
func PathGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range c.Params {
			if _, err := sandbox.Normalize(p.Value); err != nil {
				var forbidden *sandbox.ForbiddenError
				msg := "Unallowed path"
				if errors.As(err, &forbidden) {
					msg = forbidden.Error()
				}
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": msg})
				return
			}
		}
		c.Next()
	}
}
