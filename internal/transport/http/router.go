package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ecomsvc/order-payments/internal/config"
)

// NewRouter wires the common middleware chain; each service registers its
// own handlers on the returned engine.
func NewRouter(rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	if rl.RPS > 0 {
		r.Use(RateLimit(rl))
	}
	return r
}
