// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/convokit/warden/internal/app/engine"
	adminapifeature "github.com/convokit/warden/internal/app/features/adminapi"
	healthfeature "github.com/convokit/warden/internal/app/features/health"
	"github.com/convokit/warden/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. The service surface is small: a health
// endpoint for orchestrators, and the /v1 API the channel adapters and
// administrative tools call.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	eng := engine.New(deps.MongoClient, deps.MongoDatabase, logger)

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Versioned API
	limiter := ratelimit.New(appCfg.RateLimitRequests, appCfg.RateLimitWindow)
	apiHandler := adminapifeature.NewHandler(eng, logger)
	r.Mount("/v1", adminapifeature.Routes(apiHandler, limiter))

	return r, nil
}
