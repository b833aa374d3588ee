// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	workspacestore "github.com/convokit/warden/internal/app/store/workspaces"
	"github.com/convokit/warden/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It
// applies the configured timeout tiers and ensures the public singleton
// workspace exists; concurrent instances starting at once converge on the
// same row through the partial unique index on the system tag.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Ping:   appCfg.TimeoutPing,
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})

	workspaces := workspacestore.New(deps.MongoDatabase)
	ws, err := workspaces.EnsurePublicWorkspace(ctx, appCfg.PublicWorkspaceName)
	if err != nil {
		logger.Error("ensuring public workspace failed", zap.Error(err))
		return err
	}
	logger.Info("public workspace ready",
		zap.String("workspace_id", ws.ID.Hex()),
		zap.String("name", ws.Name))
	return nil
}
