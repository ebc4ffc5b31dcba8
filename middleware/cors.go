package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"ngo-report-api/config"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// CORSMiddleware allows the configured origins, any origin matching one of the
// patterns (preview deployments) and FRONTEND_URL.
func CORSMiddleware(opts config.CORSOptions) gin.HandlerFunc {
	allowed := map[string]bool{}
	for _, origin := range opts.AllowedOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			allowed[origin] = true
		}
	}
	if frontend := strings.TrimRight(strings.TrimSpace(opts.FrontendURL), "/"); frontend != "" {
		allowed[frontend] = true
	}

	var patterns []*regexp.Regexp
	for _, p := range opts.OriginPatterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			config.Logger.WithError(err).WithField("pattern", p).Warn("ignoring invalid CORS origin pattern")
			continue
		}
		patterns = append(patterns, re)
	}

	c := cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			if allowed[origin] {
				return true
			}
			for _, re := range patterns {
				if re.MatchString(origin) {
					return true
				}
			}
			return false
		},
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		MaxAge:           600,
	})

	return func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)
		if ctx.Request.Method == http.MethodOptions && ctx.GetHeader("Access-Control-Request-Method") != "" {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}
