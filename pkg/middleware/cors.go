package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	corsMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}, ", ")
	corsHeaders = "Authorization, Content-Type"
)

// CORS は許可リストにあるオリジンへCORSヘッダーを付与する。
// "*" を含めれば全オリジンを許可する。OPTIONSは常に204で終える。
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowed := slices.Clone(allowedOrigins)
	wildcard := slices.Contains(allowed, "*")

	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" && (wildcard || slices.Contains(allowed, origin)) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}
		c.AbortWithStatus(http.StatusNoContent)
	}
}
