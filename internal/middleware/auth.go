package middleware

import (
	"encoding/json"
	"net/http"

	"gst-checkout/internal/apperr"
	"gst-checkout/internal/auth"
	"gst-checkout/internal/logger"

	"go.uber.org/zap"
)

// Auth identifies the caller from a JWT when one is presented. Requests
// without a token pass through anonymously; a bad token is rejected.
func Auth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := auth.ExtractAccessToken(r)
			if tokenStr == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := auth.ParseToken(secret, tokenStr)
			if err != nil {
				logger.FromCtx(r.Context()).Info("rejected access token",
					zap.String("layer", "middleware"),
					zap.Error(err),
				)
				writeError(w, apperr.ErrUnauthenticated)
				return
			}

			ctx := auth.WithIdentity(r.Context(), *id)
			ctx = logger.WithUserID(ctx, id.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous callers.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserIDFrom(r.Context()); !ok {
			writeError(w, apperr.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.IdentityFrom(r.Context())
		switch {
		case !ok:
			writeError(w, apperr.ErrUnauthenticated)
		case !id.IsAdmin():
			writeError(w, apperr.ErrForbidden)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperr.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(apperr.Body(err))
}
