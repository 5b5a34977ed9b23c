package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parking-sign-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

func TestGenerateAndVerify(t *testing.T) {
	at, err := NewAuthToken("secret", time.Minute)
	if err != nil {
		t.Fatalf("NewAuthToken error = %v", err)
	}

	token, err := at.GenerateToken("phone-1")
	if err != nil {
		t.Fatalf("GenerateToken error = %v", err)
	}

	clientID, err := at.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken error = %v", err)
	}
	if clientID != "phone-1" {
		t.Errorf("clientID = %q, want phone-1", clientID)
	}
}

func TestVerifyRejects(t *testing.T) {
	at, _ := NewAuthToken("secret", time.Minute)
	other, _ := NewAuthToken("other-secret", time.Minute)
	expired, _ := NewAuthToken("secret", time.Nanosecond)

	foreign, _ := other.GenerateToken("phone-1")
	stale, _ := expired.GenerateToken("phone-1")
	time.Sleep(1100 * time.Millisecond)

	tests := []struct {
		name  string
		token string
	}{
		{name: "不同密钥签发", token: foreign},
		{name: "已过期", token: stale},
		{name: "乱码", token: "not-a-jwt"},
		{name: "空字符串", token: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := at.VerifyToken(tt.token); err == nil {
				t.Errorf("VerifyToken(%s) expected error", tt.name)
			}
		})
	}
}

func TestNewAuthTokenRequiresSecret(t *testing.T) {
	if _, err := NewAuthToken("", 0); err == nil {
		t.Error("empty secret should be rejected")
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	at, _ := NewAuthToken("secret", time.Minute)
	token, _ := at.GenerateToken("phone-7")

	router := gin.New()
	router.Use(Middleware(at, utils.NewConsoleLogger("info", nil)))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ClientIDKey))
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "有效令牌", header: "Bearer " + token, wantStatus: http.StatusOK, wantBody: "phone-7"},
		{name: "缺少头", header: "", wantStatus: http.StatusUnauthorized},
		{name: "错误前缀", header: "Token " + token, wantStatus: http.StatusUnauthorized},
		{name: "无效令牌", header: "Bearer abc", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}
