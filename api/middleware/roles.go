package middleware

import (
	"net/http"

	"github.com/angelmondragon/quoteflow/api/responses"
	"github.com/angelmondragon/quoteflow/pkg/enums"
	pkgerrors "github.com/angelmondragon/quoteflow/pkg/errors"
	"github.com/angelmondragon/quoteflow/pkg/logger"
)

// RequireRole admits only callers authenticated with the given role.
func RequireRole(role enums.Role, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != role {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "This action is only available to "+role.String()+"s"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
