package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// requireKey authenticates the api_key header and checks that the key was
// granted scope.
func (h *Handler) requireKey(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := h.auth.Authenticate(r.Context(), r.Header.Get(APIKeyHeader))
			if err != nil {
				h.mapError(w, r, err)
				return
			}
			if !info.HasScope(scope) {
				writeError(w, http.StatusForbidden, "api key lacks scope "+scope, "")
				return
			}

			ctx := zctx.With(r.Context(),
				zap.String("api_key_id", info.ID),
				zap.String("api_key", info.Name),
			)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
