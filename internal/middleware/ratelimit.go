package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// RateLimit allows each client IP one request per every, with the given
// burst. Idle limiters are forgotten after expiresIn.
func RateLimit(every time.Duration, burst int, expiresIn time.Duration) gin.HandlerFunc {
	limiters := cache.New(expiresIn, 2*expiresIn)

	return func(ctx *gin.Context) {
		ip := ctx.ClientIP()

		var limiter *rate.Limiter
		if v, found := limiters.Get(ip); found {
			limiter = v.(*rate.Limiter)
		} else {
			limiter = rate.NewLimiter(rate.Every(every), burst)
			if err := limiters.Add(ip, limiter, cache.DefaultExpiration); err != nil {
				// Another request for this IP won the race.
				if v, found := limiters.Get(ip); found {
					limiter = v.(*rate.Limiter)
				}
			}
		}

		if !limiter.Allow() {
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}

		// Touch to keep an active client's limiter alive.
		limiters.Set(ip, limiter, cache.DefaultExpiration)

		ctx.Next()
	}
}
