package authz

import (
	"log/slog"
	"net/http"
	"strings"
)

// Middleware authenticates HTTP requests carrying a bearer token.
type Middleware struct {
	Resolver  *SessionResolver
	Evaluator Evaluator
	Logger    *slog.Logger
}

// Authenticate stores the caller's AuthContext in the request context.
// Requests without a valid token continue anonymously.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" || m.Resolver == nil {
			next.ServeHTTP(w, r)
			return
		}
		ac, err := m.Resolver.ResolveToken(r.Context(), token)
		if err != nil {
			m.logger().Error("authz resolve", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		ctx := WithToken(r.Context(), token)
		if ac != nil {
			ctx = WithAuthContext(ctx, ac)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAny rejects requests whose caller holds none of perms.
func (m Middleware) RequireAny(perms ...Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(perms) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			ac := FromContext(r.Context())
			if ac == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			for _, p := range perms {
				ok, err := m.evaluator().HasPermission(r.Context(), ac, p.Resource, p.Action)
				if err != nil {
					m.logger().Error("authz require any", slog.Any("error", err))
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				if ok {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func (m Middleware) evaluator() Evaluator {
	if m.Evaluator == nil {
		return RoleEvaluator{}
	}
	return m.Evaluator
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger == nil {
		return slog.Default()
	}
	return m.Logger
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
