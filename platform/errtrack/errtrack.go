// Package errtrack reports unexpected failures to Sentry. When no DSN is
// configured every call is a no-op.
package errtrack

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"premunia_crm_backend/platform/config"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
)

const flushTimeout = 2 * time.Second

// Init configures the global Sentry client. The returned function flushes
// buffered events and must be deferred by the caller.
func Init(cfg config.ErrorTrackingConfig) (func(), error) {
	if cfg.GetSentryDSN() == "" {
		return func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.GetSentryDSN(),
		Environment:      cfg.GetEnv(),
		Release:          "premunia-crm@" + cfg.GetRelease(),
		TracesSampleRate: cfg.GetSentryTracesSampleRate(),
	})
	if err != nil {
		return func() {}, fmt.Errorf("sentry initialization failed: %w", err)
	}

	return func() { sentry.Flush(flushTimeout) }, nil
}

// Middleware starts a transaction per request and attaches a request-scoped hub.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sentry.CurrentHub().Client() == nil {
			c.Next()
			return
		}

		hub := sentry.CurrentHub().Clone()
		hub.ConfigureScope(func(scope *sentry.Scope) {
			scope.SetContext("Request", map[string]interface{}{
				"Method":  c.Request.Method,
				"URL":     c.Request.URL.String(),
				"Headers": safeHeaders(c.Request.Header),
			})
			scope.SetTag("http.method", c.Request.Method)
		})

		ctx := sentry.SetHubOnContext(c.Request.Context(), hub)
		transaction := sentry.StartTransaction(ctx,
			fmt.Sprintf("%s %s", c.Request.Method, c.FullPath()),
			sentry.ContinueFromRequest(c.Request),
		)
		defer func() {
			transaction.Status = sentry.HTTPtoSpanStatus(c.Writer.Status())
			transaction.Finish()
		}()

		c.Request = c.Request.WithContext(transaction.Context())
		c.Next()
	}
}

// Capture reports err with optional extras. Uses the request hub when present.
func Capture(ctx context.Context, err error, extras map[string]interface{}) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}
	hub.WithScope(func(scope *sentry.Scope) {
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		hub.CaptureException(err)
	})
}

func safeHeaders(h http.Header) map[string]interface{} {
	safe := make(map[string]interface{}, len(h))
	for k, v := range h {
		if strings.EqualFold(k, "Authorization") || strings.EqualFold(k, "Cookie") {
			safe[k] = "[FILTERED]"
			continue
		}
		safe[k] = v
	}
	return safe
}
