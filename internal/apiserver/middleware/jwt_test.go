package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jsvc "github.com/medlinkx/medlinkx/internal/auth/jwt"
	"github.com/medlinkx/medlinkx/internal/common/errorx"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var hdrSvc = func() *jsvc.Service {
	s, _ := jsvc.NewService(jsvc.Config{SecretKey: "this-is-a-very-long-secret-key-for-testing", Duration: time.Hour})
	return s
}()

func performRequest(headers map[string]string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/p", JWTAuthMiddleware(hdrSvc, errorx.NewErrorHandler(zap.NewNop())), func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, claims.Email)
	})
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuthMiddleware_Rejects(t *testing.T) {
	cases := []struct {
		name    string
		headers map[string]string
	}{
		{"missing header", nil},
		{"bad prefix", map[string]string{"Authorization": "Token abc"}},
		{"invalid token", map[string]string{"Authorization": "Bearer invalid"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := performRequest(tc.headers)
			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body struct {
				Error errorx.APIError `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, "E2001", body.Error.Code)
			assert.Equal(t, w.Header().Get("X-Request-Id"), body.Error.TraceID)
		})
	}
}

func TestJWTAuthMiddleware_Valid(t *testing.T) {
	tok, err := hdrSvc.GenerateToken("nurse@x.com", "nurse")
	require.NoError(t, err)

	w := performRequest(map[string]string{"Authorization": "Bearer " + tok})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nurse@x.com", w.Body.String())
}

func TestRequestID_PropagatesHeader(t *testing.T) {
	w := performRequest(map[string]string{"X-Request-Id": "req-1"})
	assert.Equal(t, "req-1", w.Header().Get("X-Request-Id"))

	w = performRequest(nil)
	assert.Len(t, w.Header().Get("X-Request-Id"), 36)
}

func TestAccessLog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(RequestID(), AccessLog(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(http.StatusNoContent), entries[0].ContextMap()["status"])
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}
