package httpkit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"premunia_crm_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type jwtCfg struct{}

func (jwtCfg) GetJWTAccessSecret() string { return "access-secret" }

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("access-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return token
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/me", AuthRequired(jwtCfg{}), func(c *gin.Context) {
		id := MustGetIdentity(c)
		if id == nil {
			return
		}
		scope := ""
		if s := id.ScopeUserID(); s != nil {
			scope = s.String()
		}
		OK(c, gin.H{"email": id.Email(), "scope": scope})
	})
	engine.GET("/admin", AuthRequired(jwtCfg{}), RequireRole(RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return engine
}

func TestAuthRequired(t *testing.T) {
	userID := uuid.New()
	valid := signedToken(t, jwt.MapClaims{
		"sub":   userID.String(),
		"email": "agent@premunia.fr",
		"type":  "access",
		"roles": []string{RoleCommercial},
		"exp":   time.Now().Add(time.Minute).Unix(),
	})
	refresh := signedToken(t, jwt.MapClaims{
		"sub":  userID.String(),
		"type": "refresh",
		"exp":  time.Now().Add(time.Minute).Unix(),
	})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"refresh token rejected", "/me", "Bearer " + refresh, http.StatusUnauthorized},
		{"valid access token", "/me", "Bearer " + valid, http.StatusOK},
		{"role not granted", "/admin", "Bearer " + valid, http.StatusForbidden},
	}

	engine := newEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d (%s)", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestScopeUserID(t *testing.T) {
	id := uuid.New()
	if NewIdentity(id, "", RoleCommercial).ScopeUserID() == nil {
		t.Fatal("commercial staff should be scoped to their own records")
	}
	if NewIdentity(id, "", RoleCommercial, RoleManager).ScopeUserID() != nil {
		t.Fatal("managers see every record")
	}
	if NewIdentity(id, "", RoleMarketing).ScopeUserID() != nil {
		t.Fatal("marketing is not scoped")
	}
}

func TestHandleError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err  error
		want int
	}{
		{apperr.NotFound("prospect not found"), http.StatusNotFound},
		{apperr.Validation("bad"), http.StatusBadRequest},
		{apperr.Unavailable("prospects.list", errors.New("dial tcp")), http.StatusServiceUnavailable},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if !HandleError(c, tt.err) {
			t.Fatalf("expected error to be handled")
		}
		if rec.Code != tt.want {
			t.Errorf("%v: expected %d, got %d", tt.err, tt.want, rec.Code)
		}
	}
}

func TestRequestIDEchoesHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Header().Get(HeaderRequestID) != "req-42" {
		t.Fatalf("expected request id to be echoed, got %q", rec.Header().Get(HeaderRequestID))
	}
}
