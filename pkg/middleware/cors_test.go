package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORSPreflightAndOrigin(t *testing.T) {
	h := CORS(CORSOptions{
		AllowedOrigins: []string{"https://canteen.campus.test"},
		AllowedMethods: []string{"GET", "PATCH"},
		AllowedHeaders: []string{"Authorization"},
		MaxAge:         60,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	pre := httptest.NewRequest(http.MethodOptions, "/api/orders/1/status", nil)
	pre.Header.Set("Origin", "https://canteen.campus.test")
	pre.Header.Set("Access-Control-Request-Method", "PATCH")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, pre)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://canteen.campus.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, PATCH", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "60", rec.Header().Get("Access-Control-Max-Age"))

	other := httptest.NewRequest(http.MethodGet, "/api/shops", nil)
	other.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCheckOriginFollowsCORSList(t *testing.T) {
	opts := CORSOptions{AllowedOrigins: []string{"https://canteen.campus.test"}}
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, opts.CheckOrigin(req("https://canteen.campus.test")))
	assert.True(t, opts.CheckOrigin(req("")), "non-browser clients send no origin")
	assert.False(t, opts.CheckOrigin(req("https://evil.test")))
	assert.True(t, CORSOptions{AllowedOrigins: []string{"*"}}.CheckOrigin(req("https://evil.test")))
}
