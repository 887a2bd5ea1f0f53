package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func authRouter(token string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/guarded", RequireToken(token), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestRequireToken(t *testing.T) {
	r := authRouter("secret-token")

	cases := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"bearer header", "Authorization", "Bearer secret-token", http.StatusOK},
		{"api key header", "X-API-Key", "secret-token", http.StatusOK},
		{"wrong token", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"missing header", "", "", http.StatusUnauthorized},
		{"basic scheme", "Authorization", "Basic secret-token", http.StatusUnauthorized},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/guarded", nil)
			if c.header != "" {
				req.Header.Set(c.header, c.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != c.want {
				t.Errorf("status = %d, want %d", w.Code, c.want)
			}
		})
	}
}

func TestNewTokenUnique(t *testing.T) {
	a, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	b, err := NewToken()
	if err != nil {
		t.Fatalf("NewToken: %v", err)
	}
	if len(a) != 64 {
		t.Errorf("token length = %d, want 64 hex chars", len(a))
	}
	if a == b {
		t.Error("two tokens were identical")
	}
}

func TestValidateSinceParam(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/updates", ValidateSinceParam(), func(c *gin.Context) {
		since := int64(0)
		if v, ok := c.Get("since"); ok {
			since = v.(int64)
		}
		c.JSON(http.StatusOK, gin.H{"since": since})
	})

	for _, c := range []struct {
		query string
		want  int
	}{
		{"", http.StatusOK},
		{"?since=0", http.StatusOK},
		{"?since=42", http.StatusOK},
		{"?since=-1", http.StatusBadRequest},
		{"?since=abc", http.StatusBadRequest},
	} {
		req := httptest.NewRequest(http.MethodGet, "/updates"+c.query, nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != c.want {
			t.Errorf("GET /updates%s status = %d, want %d", c.query, w.Code, c.want)
		}
	}
}
