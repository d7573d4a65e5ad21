package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricReposScanned   = "lanegate.scan.repos.total"
	metricScanDuration   = "lanegate.scan.duration.seconds"
	metricFactsTotal     = "lanegate.scan.facts.total"
	metricEvidenceTotal  = "lanegate.scan.evidence_refs.total"
	metricBundlesTotal   = "lanegate.bundle.builds.total"
	metricEventsAppended = "lanegate.events.appended.total"
	metricGateRejections = "lanegate.gate.rejections.total"

	attrRepo   = "repo_id"
	attrScope  = "scope"
	attrReason = "reason_code"
)

// PipelineMetrics holds OTel instruments for the knowledge pipeline and the
// governance gate.
type PipelineMetrics struct {
	reposScanned   metric.Int64Counter
	scanDuration   metric.Float64Histogram
	factsTotal     metric.Int64Counter
	evidenceTotal  metric.Int64Counter
	bundlesTotal   metric.Int64Counter
	eventsAppended metric.Int64Counter
	gateRejections metric.Int64Counter
}

// NewPipelineMetrics creates pipeline metric instruments from the given
// meter.
func NewPipelineMetrics(mt metric.Meter) (*PipelineMetrics, error) {
	b := newMetricBuilder(mt)

	pm := &PipelineMetrics{
		reposScanned:   b.counter(metricReposScanned, "Repos scanned", "{repo}"),
		scanDuration:   b.histogram(metricScanDuration, "Per-repo scan duration in seconds", "s", durationBucketBoundaries...),
		factsTotal:     b.counter(metricFactsTotal, "Facts derived across scans", "{fact}"),
		evidenceTotal:  b.counter(metricEvidenceTotal, "Evidence refs built across scans", "{ref}"),
		bundlesTotal:   b.counter(metricBundlesTotal, "Knowledge bundles built", "{bundle}"),
		eventsAppended: b.counter(metricEventsAppended, "Merge events appended", "{event}"),
		gateRejections: b.counter(metricGateRejections, "Governance gate rejections by reason", "{rejection}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return pm, nil
}

// RecordScan records one completed repo scan.
func (pm *PipelineMetrics) RecordScan(ctx context.Context, repoID string, facts, evidenceRefs int, duration time.Duration) {
	repoAttr := metric.WithAttributes(attribute.String(attrRepo, repoID))

	pm.reposScanned.Add(ctx, 1, repoAttr)
	pm.scanDuration.Record(ctx, duration.Seconds(), repoAttr)
	pm.factsTotal.Add(ctx, int64(facts), repoAttr)
	pm.evidenceTotal.Add(ctx, int64(evidenceRefs), repoAttr)
}

// RecordBundle records one sealed bundle.
func (pm *PipelineMetrics) RecordBundle(ctx context.Context, scope string) {
	pm.bundlesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrScope, scope)))
}

// RecordEventAppend records one merge-event append.
func (pm *PipelineMetrics) RecordEventAppend(ctx context.Context, repoID string) {
	pm.eventsAppended.Add(ctx, 1, metric.WithAttributes(attribute.String(attrRepo, repoID)))
}

// RecordGateRejection records one governance refusal by reason code.
func (pm *PipelineMetrics) RecordGateRejection(ctx context.Context, scope, reasonCode string) {
	pm.gateRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrScope, scope),
		attribute.String(attrReason, reasonCode),
	))
}
