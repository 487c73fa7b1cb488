package app

import (
	"context"

	"sheets/internal/logger"
	mcpserver "sheets/internal/mcp"
)

// ServeMCP runs the MCP server on stdin/stdout until the client disconnects.
// Logs go to stderr so they never mix with the protocol stream.
func (a *App) ServeMCP(ctx context.Context) error {
	stopMetrics := a.serveMetrics(ctx)
	defer stopMetrics()

	if a.cfg.RepairSchedule != "" {
		if err := a.repairer.Start(ctx, a.cfg.RepairSchedule); err != nil {
			return err
		}
	}

	srv := mcpserver.New(mcpserver.Deps{
		Emitter:  a.emitter,
		Catalog:  a.catalog,
		Repairer: a.repairer,
		Fetcher:  a.seeder,
		IDs:      a.ids,
		Logger:   logger.Component(a.log, "mcp"),
	})
	return srv.ServeStdio()
}
