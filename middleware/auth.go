package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

type contextKey string

// OperatorContextKey stores the authenticated operator token in request
// context, for handlers that want to log who issued a command.
const OperatorContextKey contextKey = "operator_token"

// AuthMiddleware validates the analyst console's operator token — there is
// no upstream identity provider to delegate to here, so the token is a
// configured shared secret checked in constant time rather than the
// cached-bearer-token-against-backend pattern a provider-facing gateway
// would use.
type AuthMiddleware struct {
	logger    zerolog.Logger
	token     string
	headerKey string
}

// NewAuthMiddleware creates an operator-token auth middleware. If token is
// empty, auth is disabled — intended for local/dev runs only.
func NewAuthMiddleware(logger zerolog.Logger, token string) *AuthMiddleware {
	return &AuthMiddleware{logger: logger, token: token, headerKey: "Authorization"}
}

// Handler returns the middleware handler function.
func (am *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if am.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get(am.headerKey)
		presented := authHeader
		if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
			presented = authHeader[7:]
		}

		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(am.token)) != 1 {
			am.logger.Warn().Str("path", r.URL.Path).Msg("rejected unauthenticated console request")
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), OperatorContextKey, presented)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Operator extracts the authenticated operator token from the request
// context, if any.
func Operator(ctx context.Context) string {
	if v, ok := ctx.Value(OperatorContextKey).(string); ok {
		return v
	}
	return ""
}
