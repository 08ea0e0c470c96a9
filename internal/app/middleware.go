package app

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger      *slog.Logger
	Config      *Config
	Idempotency *shared.IdempotencyStore
}

// MiddlewareStack installs the Ledgerline middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	requestTimeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		requestTimeout = cfg.Config.AppRequestTimeout
	}

	stack := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Timeout(requestTimeout),
		httprate.Limit(120, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)),
		secureMiddleware.Handler,
		tenantMiddleware(cfg.Logger),
	}
	if cfg.Idempotency != nil {
		stack = append(stack, idempotencyMiddleware(cfg.Idempotency))
	}
	return stack
}

// idempotencyMiddleware rejects a replayed mutation when the client sends
// an Idempotency-Key it has used before. The key is scoped per tenant and
// per top-level resource, so "ar" and "ap" keys never collide.
func idempotencyMiddleware(store *shared.IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			companyID := shared.CompanyFromContext(r.Context())
			if companyID == 0 {
				next.ServeHTTP(w, r)
				return
			}
			module := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)[0]
			if err := store.CheckAndInsert(r.Context(), companyID, key, module); err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// tenantMiddleware resolves the tenant and acting user from gateway headers.
// Authentication itself happens upstream; this service only consumes the
// verified identity the gateway forwards.
func tenantMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || strings.HasPrefix(r.URL.Path, "/jobs/") {
				next.ServeHTTP(w, r)
				return
			}
			companyID, err := strconv.ParseInt(r.Header.Get("X-Company-ID"), 10, 64)
			if err != nil || companyID <= 0 {
				httpx.Problem(w, http.StatusBadRequest, "Missing Tenant", "X-Company-ID header is required")
				return
			}
			actorID, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
			role := shared.Role(r.Header.Get("X-Actor-Role"))
			if role == "" {
				role = shared.RoleClerk
			}

			ctx := shared.ContextWithCompany(r.Context(), companyID)
			ctx = shared.ContextWithActor(ctx, shared.Actor{ID: actorID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
