package session

import (
	"net/http"
	"strings"

	"github.com/driveline/driveline-backend/pkg/errors"
	"github.com/driveline/driveline-backend/pkg/httputil"
	"github.com/driveline/driveline-backend/pkg/logger"
)

// Middleware validates the session token on driver-scoped routes and
// attaches the driver ID to the request context. Handlers compare it
// against the driver the request addresses.
func Middleware(manager *Manager, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.Error(w, errors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				httputil.Error(w, errors.Unauthorized("invalid authorization header format"))
				return
			}

			claims, err := manager.Validate(parts[1])
			if err != nil {
				log.Debug().Err(err).Msg("session validation failed")
				httputil.Error(w, err)
				return
			}

			ctx := httputil.WithDriverID(r.Context(), claims.DriverID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
