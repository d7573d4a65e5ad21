package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opsgovern/lanegate/internal/depgraph"
	"github.com/opsgovern/lanegate/internal/model"
	"github.com/opsgovern/lanegate/internal/observability"
	"github.com/opsgovern/lanegate/internal/registry"
	"github.com/opsgovern/lanegate/internal/scan"
	"github.com/opsgovern/lanegate/pkg/version"
)

// NewScanCommand creates the scan subcommand.
func NewScanCommand() *cobra.Command {
	var (
		repoID   string
		force    bool
		diagAddr string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Extract evidence-backed knowledge scans from indexed repos",
		Long: `Run the knowledge scan over every active repo: facts, unknowns,
evidence references, and the per-repo scan report. The dependency graph
override must be approved first; --force bypasses that gate.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			rc, err := newRunContext()
			if err != nil {
				return err
			}

			reg, err := registry.Load(rc.Layout)
			if err != nil {
				return err
			}

			repos, err := selectRepos(reg, repoID)
			if err != nil {
				return err
			}

			effective, err := depgraph.Load(rc.Layout)
			if err != nil {
				return err
			}

			err = depgraph.EnsureApproved(rc.Layout, effective, force, time.Now())
			if err != nil {
				return err
			}

			providers, metrics, err := initScanObservability(diagAddr)
			if err != nil {
				return err
			}

			defer func() {
				shutdownErr := providers.Shutdown(context.Background())
				if shutdownErr != nil {
					providers.Logger.Warn("observability shutdown failed", "error", shutdownErr)
				}
			}()

			return rc.withLock("scan", func() error {
				scanner := scan.New(rc.Git)
				scanner.Workers = rc.Config.Pipeline.Workers

				started := time.Now()
				results := scanner.RunAll(cobraCmd.Context(), rc.Layout, repos)

				var failed []error

				for _, res := range results {
					if res.Err != nil {
						failed = append(failed, res.Err)

						fmt.Fprintf(cobraCmd.OutOrStdout(), "%s %s: %v\n",
							color.RedString("FAIL"), res.RepoID, res.Err)

						continue
					}

					metrics.RecordScan(cobraCmd.Context(), res.RepoID,
						len(res.Scan.Facts), evidenceRefCount(res.Scan), time.Since(started))

					fmt.Fprintf(cobraCmd.OutOrStdout(), "%s %s: %d facts, %d unknowns (scan_version %d)\n",
						color.GreenString("ok"), res.RepoID,
						len(res.Scan.Facts), len(res.Scan.Unknowns), res.Scan.ScanVersion)
				}

				return errors.Join(failed...)
			})
		},
	}

	cmd.Flags().StringVar(&repoID, "repo-id", "", "scan a single repo instead of every active repo")
	cmd.Flags().BoolVar(&force, "force", false, "bypass the dependency graph approval gate")
	cmd.Flags().StringVar(&diagAddr, "diag-addr", "", "serve /healthz, /readyz, and /metrics on this address during the scan")

	return cmd
}

// initScanObservability builds the CLI-mode providers and pipeline metrics,
// optionally exposing the diagnostics endpoints for long scans.
func initScanObservability(diagAddr string) (observability.Providers, *observability.PipelineMetrics, error) {
	cfg := observability.DefaultConfig()
	cfg.ServiceVersion = version.Version
	cfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	cfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"

	providers, err := observability.Init(cfg)
	if err != nil {
		return observability.Providers{}, nil, err
	}

	metrics, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return observability.Providers{}, nil, err
	}

	if diagAddr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(diagAddr, providers.Meter)
		if diagErr != nil {
			return observability.Providers{}, nil, diagErr
		}

		providers.Logger.Info("diagnostics listening", "addr", diag.Addr())
	}

	return providers, metrics, nil
}

// evidenceRefCount counts distinct evidence ids cited by a scan's facts.
func evidenceRefCount(doc *model.KnowledgeScan) int {
	seen := map[string]bool{}

	for _, fact := range doc.Facts {
		for _, id := range fact.EvidenceIDs {
			seen[id] = true
		}
	}

	return len(seen)
}
