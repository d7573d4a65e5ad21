package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsgovern/lanegate/internal/mcp"
	"github.com/opsgovern/lanegate/internal/observability"
	"github.com/opsgovern/lanegate/internal/staleness"
	"github.com/opsgovern/lanegate/pkg/version"
)

// NewMCPCommand creates the MCP server command.
func NewMCPCommand() *cobra.Command {
	var (
		debug    bool
		diagAddr string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes read-only governance state as tools agents can discover
and invoke:
  - lanegate_staleness: live freshness verdict for a scope
  - lanegate_version: the knowledge version pointer and its history
  - lanegate_latest_bundle: the newest sealed bundle per scope
  - lanegate_sufficiency: the sufficiency record and delivery verdict`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			rc, err := newRunContext()
			if err != nil {
				return err
			}

			providers, err := initMCPObservability(debug)
			if err != nil {
				return err
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			if diagAddr != "" {
				diag, diagErr := observability.NewDiagnosticsServer(diagAddr, providers.Meter)
				if diagErr != nil {
					return diagErr
				}

				defer func() {
					closeErr := diag.Close()
					if closeErr != nil {
						providers.Logger.Warn("diagnostics shutdown failed", "error", closeErr)
					}
				}()

				providers.Logger.Info("diagnostics listening", "addr", diag.Addr())
			}

			red, redErr := observability.NewREDMetrics(providers.Meter)
			if redErr != nil {
				return redErr
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Layout:    rc.Layout,
				Staleness: staleness.New(rc.Git, rc.Config.Staleness),
				Logger:    providers.Logger,
				Metrics:   red,
				Tracer:    providers.Tracer,
			})

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging to stderr")
	cmd.Flags().StringVar(&diagAddr, "diag-addr", "", "serve /healthz, /readyz, and /metrics on this address")

	return cmd
}

func initMCPObservability(debug bool) (observability.Providers, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	cfg.Mode = observability.ModeMCP
	cfg.LogJSON = true

	if debug {
		cfg.LogLevel = slog.LevelDebug
		cfg.DebugTrace = true
	}

	return observability.Init(cfg)
}
