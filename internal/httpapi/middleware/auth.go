package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/ai-prime/internal/auth"
	"github.com/suPer8Hu/ai-prime/internal/common"
)

const OperatorKey = "operator_email"

// AuthRequired accepts "Authorization: Bearer <jwt>". EventSource cannot set
// headers, so the token may also come as the access_token query parameter.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			tok = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
		if tok == "" {
			tok = c.Query("access_token")
		}
		if tok == "" {
			common.Fail(c, http.StatusUnauthorized, "missing bearer token", "")
			return
		}

		claims, err := auth.ParseJWT(tok, secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, "invalid token", "")
			return
		}
		c.Set(OperatorKey, claims.Email)
		c.Next()
	}
}
