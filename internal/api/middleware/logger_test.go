package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerMiddleware(t *testing.T) {
	newObservedRouter := func() (*gin.Engine, *observer.ObservedLogs) {
		core, recorded := observer.New(zapcore.InfoLevel)
		router := setupTestRouter()
		router.Use(LoggerMiddleware(zap.New(core)))
		return router, recorded
	}

	t.Run("Logs successful request", func(t *testing.T) {
		router, recorded := newObservedRouter()
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "success"})
		})

		req, _ := http.NewRequest(http.MethodGet, "/test?foo=bar", nil)
		req.Header.Set("User-Agent", "test-agent")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		logs := recorded.All()
		assert.Len(t, logs, 1)
		assert.Equal(t, "HTTP request", logs[0].Message)

		fields := logs[0].ContextMap()
		assert.Equal(t, "GET", fields["method"])
		assert.Equal(t, "/test", fields["path"])
		assert.Equal(t, "foo=bar", fields["query"])
		assert.Equal(t, int64(200), fields["status"])
		assert.Equal(t, "test-agent", fields["user_agent"])
		assert.NotNil(t, fields["ip"])
	})

	t.Run("Logs error status", func(t *testing.T) {
		router, recorded := newObservedRouter()
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "something went wrong"})
		})

		req, _ := http.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		logs := recorded.All()
		assert.Len(t, logs, 1)
		assert.Equal(t, int64(500), logs[0].ContextMap()["status"])
	})

	t.Run("Logs request latency", func(t *testing.T) {
		router, recorded := newObservedRouter()
		router.GET("/test", func(c *gin.Context) {
			time.Sleep(10 * time.Millisecond)
			c.JSON(http.StatusOK, gin.H{"message": "success"})
		})

		req, _ := http.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		logs := recorded.All()
		assert.Len(t, logs, 1)
		latency, ok := logs[0].ContextMap()["latency"].(time.Duration)
		assert.True(t, ok)
		assert.GreaterOrEqual(t, latency, 10*time.Millisecond)
	})

	t.Run("Logs 404 for unknown routes", func(t *testing.T) {
		router, recorded := newObservedRouter()
		router.GET("/exists", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "success"})
		})

		req, _ := http.NewRequest(http.MethodGet, "/notfound", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		logs := recorded.All()
		assert.Len(t, logs, 1)
		fields := logs[0].ContextMap()
		assert.Equal(t, "/notfound", fields["path"])
		assert.Equal(t, int64(404), fields["status"])
	})

	t.Run("Logs one entry per request", func(t *testing.T) {
		router, recorded := newObservedRouter()
		router.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"message": "success"})
		})

		for i := 0; i < 3; i++ {
			req, _ := http.NewRequest(http.MethodGet, "/test", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
		}

		assert.Len(t, recorded.All(), 3)
	})
}
