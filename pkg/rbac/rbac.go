// Package rbac gates routes by the role carried in the access token.
// Every guard here must run after middleware.AuthMiddleware.
package rbac

import (
	"net/http"
	"strings"

	"github.com/campusbite/canteen/pkg/auth"
	"github.com/campusbite/canteen/pkg/logger"
	"github.com/campusbite/canteen/pkg/middleware"
	"github.com/campusbite/canteen/pkg/response"
)

var (
	// Customer admits students placing and paying for orders.
	Customer = HasRole(auth.RoleCustomer)
	// Staff admits shop owners and administrators. Which shops a
	// shopkeeper may touch is checked by the services.
	Staff = HasRole(auth.RoleShopkeeper, auth.RoleAdmin)
)

// HasRole allows the request through only for the listed roles.
func HasRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	need := strings.Join(roles, " or ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := middleware.RoleFromCtx(r)
			if !ok || !allowed[role] {
				uid, _ := middleware.UserIDFromCtx(r)
				logger.WithCtx(r.Context()).Debug("rbac: denied",
					"user_id", uid, "role", role, "need", need, "path", r.URL.Path)
				response.Error(w, http.StatusForbidden, "This action requires the "+need+" role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
