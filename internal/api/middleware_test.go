package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(60, 3)

	// 突发额度内的请求全部放行
	for i := 0; i < 3; i++ {
		if !rl.Allow("client-a") {
			t.Fatalf("第 %d 次请求不应被限流", i+1)
		}
	}
	if rl.Allow("client-a") {
		t.Error("超出突发额度后应该被限流")
	}

	// 不同客户端独立计数
	if !rl.Allow("client-b") {
		t.Error("其他客户端不应受影响")
	}
}

func TestRateLimitMiddlewareRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter(60, 1)
	router := gin.New()
	router.Use(RateLimitMiddleware(rl, func(c *gin.Context) string { return "fixed" }))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("第一次请求应该成功: %d", first.Code)
	}

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("第二次请求应该被限流，实际: %d", second.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(requestIDMiddleware())
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	// 透传调用方提供的ID
	withID := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "caller-id")
	router.ServeHTTP(withID, req)
	if withID.Body.String() != "caller-id" {
		t.Errorf("应透传调用方的请求ID: %s", withID.Body.String())
	}

	// 未提供时自动生成
	without := httptest.NewRecorder()
	router.ServeHTTP(without, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if without.Body.String() == "" {
		t.Error("应自动生成请求ID")
	}
	if without.Header().Get("X-Request-ID") == "" {
		t.Error("响应头中应包含请求ID")
	}
}
