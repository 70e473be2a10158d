package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareCountsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := New()

	engine := gin.New()
	engine.Use(reg.Middleware())
	engine.GET("/api/prospects/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prospects/"+id, nil))
	}

	got := testutil.ToFloat64(reg.RequestsTotal.WithLabelValues(http.MethodGet, "/api/prospects/:id", "200"))
	if got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := New()
	reg.ObserveProspect("premium", 100)

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
}

func TestObserveOnNilRegistry(t *testing.T) {
	var reg *Registry
	reg.ObserveProspect("standard", 55)
	reg.ObserveTaskCompleted()
}
