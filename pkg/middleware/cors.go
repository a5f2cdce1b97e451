package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/campusbite/canteen/config"
)

type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int // seconds
}

// CORSFromConfig reads CORS_ORIGINS (comma separated, default "*").
func CORSFromConfig() CORSOptions {
	var origins []string
	for _, o := range strings.Split(config.Get("CORS_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return CORSOptions{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}
}

// Allowed returns the Access-Control-Allow-Origin value for origin, or ""
// when the origin is not configured.
func (o CORSOptions) Allowed(origin string) string {
	for _, a := range o.AllowedOrigins {
		if a == "*" || a == origin {
			return a
		}
	}
	return ""
}

// CheckOrigin gates websocket upgrades with the same origin list. Requests
// without an Origin header come from non-browser clients and pass.
func (o CORSOptions) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || o.Allowed(origin) != ""
}

// CORS answers preflights and decorates responses for the configured
// web origins.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	methods := strings.Join(opts.AllowedMethods, ", ")
	headers := strings.Join(opts.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed := opts.Allowed(r.Header.Get("Origin"))

			w.Header().Add("Vary", "Origin")
			if allowed != "" {
				w.Header().Set("Access-Control-Allow-Origin", allowed)
				// Browsers hide response headers from the web app unless exposed.
				w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
				w.Header().Set("Access-Control-Allow-Methods", methods)
				w.Header().Set("Access-Control-Allow-Headers", headers)
				if opts.MaxAge > 0 {
					w.Header().Set("Access-Control-Max-Age", strconv.Itoa(opts.MaxAge))
				}
			}

			// Only a real preflight short-circuits; a bare OPTIONS still routes.
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
